// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// LineKind tags a terminal output line.
type LineKind string

const (
	LineCommand LineKind = "command"
	LineOutput  LineKind = "output"
	LineSystem  LineKind = "system"
	LineError   LineKind = "error"
)

// Line is one entry in a terminal's ordered output.
type Line struct {
	Kind LineKind `json:"kind"`
	Text string   `json:"text"`
}

// Terminal is one interactive session against the runtime.
type Terminal struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Lines     []Line `json:"lines"`
	IsLoading bool   `json:"isLoading"`

	proc Process
}

// ErrLastTerminal is returned when closing the only remaining terminal;
// at least one must always exist.
var ErrLastTerminal = errors.New("sandbox: cannot close the last terminal")

// ErrNoTerminal is returned for operations against an unknown terminal ID.
var ErrNoTerminal = errors.New("sandbox: no such terminal")

// TerminalManager owns the terminal sessions of one project session.
//
// # Thread Safety
//
// Safe for concurrent use. Process output is appended from a background
// goroutine per running command.
type TerminalManager struct {
	mu      sync.Mutex
	runtime Runtime
	byID    map[string]*Terminal
	order   []string
	active  string
	nextSeq int
}

// NewTerminalManager creates a manager with one initial terminal.
func NewTerminalManager(runtime Runtime) *TerminalManager {
	m := &TerminalManager{
		runtime: runtime,
		byID:    make(map[string]*Terminal),
	}
	m.mu.Lock()
	m.createLocked("")
	m.mu.Unlock()
	return m
}

// Create adds a terminal and makes it active. An empty name gets a
// generated "Terminal N" name.
func (m *TerminalManager) Create(name string) *Terminal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createLocked(name)
}

func (m *TerminalManager) createLocked(name string) *Terminal {
	m.nextSeq++
	if name == "" {
		name = fmt.Sprintf("Terminal %d", m.nextSeq)
	}
	t := &Terminal{ID: uuid.New().String(), Name: name}
	m.byID[t.ID] = t
	m.order = append(m.order, t.ID)
	m.active = t.ID
	return t
}

// Rename changes a terminal's display name.
func (m *TerminalManager) Rename(id, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return ErrNoTerminal
	}
	t.Name = name
	return nil
}

// Close destroys a terminal, killing any running process. Closing the last
// terminal fails with ErrLastTerminal.
func (m *TerminalManager) Close(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return ErrNoTerminal
	}
	if len(m.order) == 1 {
		return ErrLastTerminal
	}
	if t.proc != nil {
		if err := t.proc.Kill(); err != nil {
			slog.Warn("failed to kill terminal process", "terminal", id, "error", err)
		}
	}
	delete(m.byID, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	if m.active == id {
		m.active = m.order[0]
	}
	return nil
}

// Switch makes the terminal with the given ID active.
func (m *TerminalManager) Switch(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return ErrNoTerminal
	}
	m.active = id
	return nil
}

// Active returns the active terminal ID.
func (m *TerminalManager) Active() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Terminals returns snapshots of all terminals in creation order.
func (m *TerminalManager) Terminals() []Terminal {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Terminal, 0, len(m.order))
	for _, id := range m.order {
		t := m.byID[id]
		snap := *t
		snap.Lines = append([]Line(nil), t.Lines...)
		snap.proc = nil
		out = append(out, snap)
	}
	return out
}

// Run spawns command in the given terminal, echoing the command line and
// streaming process output into the terminal's line log. The call returns
// once the process is spawned; output accumulates in the background.
func (m *TerminalManager) Run(ctx context.Context, id, command string) error {
	m.mu.Lock()
	t, ok := m.byID[id]
	if !ok {
		m.mu.Unlock()
		return ErrNoTerminal
	}
	t.Lines = append(t.Lines, Line{Kind: LineCommand, Text: command})
	t.IsLoading = true
	m.mu.Unlock()

	proc, err := m.runtime.Spawn(ctx, command)
	if err != nil {
		m.appendLine(id, Line{Kind: LineError, Text: err.Error()})
		m.setLoading(id, false)
		return fmt.Errorf("spawn %q: %w", command, err)
	}

	m.mu.Lock()
	if t, ok := m.byID[id]; ok {
		t.proc = proc
	}
	m.mu.Unlock()

	go func() {
		for line := range proc.Output() {
			m.appendLine(id, Line{Kind: LineOutput, Text: line})
		}
		code, err := proc.Wait(ctx)
		switch {
		case err != nil:
			m.appendLine(id, Line{Kind: LineError, Text: err.Error()})
		case code != 0:
			m.appendLine(id, Line{Kind: LineSystem, Text: fmt.Sprintf("exited with code %d", code)})
		}
		m.setLoading(id, false)
	}()
	return nil
}

// AppendSystem adds a system-tagged line (used for server-ready and mount
// notifications).
func (m *TerminalManager) AppendSystem(id, text string) {
	m.appendLine(id, Line{Kind: LineSystem, Text: text})
}

func (m *TerminalManager) appendLine(id string, line Line) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.byID[id]; ok {
		t.Lines = append(t.Lines, line)
	}
}

func (m *TerminalManager) setLoading(id string, loading bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.byID[id]; ok {
		t.IsLoading = loading
	}
}

// Shutdown kills every running process. The manager is unusable afterwards.
func (m *TerminalManager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.byID {
		if t.proc != nil {
			if err := t.proc.Kill(); err != nil {
				slog.Warn("failed to kill terminal process", "terminal", t.ID, "error", err)
			}
		}
	}
}
