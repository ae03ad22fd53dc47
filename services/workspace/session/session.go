// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session owns all mutable per-project state: the file tree store,
// the editor session, the chat log, the outward syncs, and the terminal
// sessions. Nothing here is a package-level singleton; a Session is
// explicitly constructed for the active project and torn down on Close,
// so no state leaks across projects. The execution runtime is a singleton
// per browser tab — only one project's files are mounted at a time, and
// switching projects remounts.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/devgrid/devgrid/services/workspace/chat"
	"github.com/devgrid/devgrid/services/workspace/datatypes"
	"github.com/devgrid/devgrid/services/workspace/editor"
	"github.com/devgrid/devgrid/services/workspace/filetree"
	"github.com/devgrid/devgrid/services/workspace/sandbox"
	"github.com/devgrid/devgrid/services/workspace/syncer"
)

// NodeStore is the slice of the durable store a session needs.
type NodeStore interface {
	syncer.NodeWriter
	ListFileNodes(projectID string) ([]datatypes.FileNode, error)
}

// Options configures a session.
type Options struct {
	// MountDebounce overrides the mount sync quiet period. Zero selects
	// the default.
	MountDebounce time.Duration

	// NotifyMountError surfaces mount failures to the UI layer. May be nil.
	NotifyMountError syncer.NotifyFunc
}

// Session is the live state of one open project.
//
// # Concurrency
//
// The underlying components are individually synchronized, but compound
// operations need more: a merge is a read-modify-write over the whole file
// tree, and an edit landing inside that window would be silently overwritten
// by the merge's snapshot. mu serializes every state-mutating session
// operation (merge, edit, save) so that never happens. Session also carries
// a cancellable context so completion callbacks from in-flight persistence
// or mount calls can detect that the session ended and leave state alone.
type Session struct {
	ProjectID string

	Store     *filetree.Store
	Editor    *editor.Manager
	ChatLog   *chat.Log
	Terminals *sandbox.TerminalManager

	interp  *chat.Interpreter
	persist *syncer.PersistenceSync
	mount   *syncer.MountSync
	runtime sandbox.Runtime
	nodes   NodeStore

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	previewURL string
}

// Open constructs a session for projectID, hydrating the file tree from
// durable storage and wiring the mount sync to the runtime.
func Open(projectID string, nodes NodeStore, runtime sandbox.Runtime, opts Options) (*Session, error) {
	store := filetree.NewStore()
	persist := syncer.NewPersistenceSync(projectID, store, nodes)

	persisted, err := nodes.ListFileNodes(projectID)
	if err != nil {
		return nil, fmt.Errorf("open session %s: %w", projectID, err)
	}
	persist.Hydrate(persisted)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ProjectID: projectID,
		Store:     store,
		Editor:    editor.NewManager(store),
		ChatLog:   chat.NewLog(),
		Terminals: sandbox.NewTerminalManager(runtime),
		interp:    chat.NewInterpreter(),
		persist:   persist,
		mount:     syncer.NewMountSync(store, runtime, opts.MountDebounce, opts.NotifyMountError),
		runtime:   runtime,
		nodes:     nodes,
		ctx:       ctx,
		cancel:    cancel,
	}

	// The callback fires from the runtime's goroutine.
	runtime.OnServerReady(func(port int, url string) {
		if !s.Active() {
			return
		}
		s.mu.Lock()
		s.previewURL = url
		s.mu.Unlock()
		slog.Info("sandbox server ready", "project", projectID, "port", port, "url", url)
	})

	slog.Info("project session opened", "project", projectID, "files", store.Len())
	return s, nil
}

// Active reports whether the session is still the live project context.
func (s *Session) Active() bool {
	return s.ctx.Err() == nil
}

// SetRuntimeReady flips the mount gate once the sandbox has booted, and
// schedules the initial mount of any hydrated-but-unmounted dirty files.
func (s *Session) SetRuntimeReady(ready bool) {
	s.mount.SetReady(ready)
}

// PreviewURL returns the sandbox preview endpoint, or empty string before
// the server-ready notification.
func (s *Session) PreviewURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.previewURL
}

// HandleIncoming processes one realtime event delivered to this project's
// room. Every message lands in the chat log (deduplicated); structured AI
// payloads additionally flow through the merge engine into the file tree,
// refresh open editors, and wake the mount sync.
func (s *Session) HandleIncoming(msg datatypes.ProjectMessage) {
	if !s.Active() {
		return
	}
	cm := datatypes.ChatMessage{
		Sender:    msg.Sender,
		Body:      msg.Message,
		Direction: datatypes.Incoming,
	}
	if !s.ChatLog.Append(cm) {
		return
	}
	if msg.Sender != datatypes.AISender {
		return
	}

	result, fresh := s.interp.Process(cm)
	if !fresh || result.Kind != chat.Structured {
		return
	}
	s.MergeFiles(result.Files)
}

// MergeFiles reconciles a candidate file set (AI or explorer originated)
// into the file tree and propagates the result to the editor and the mount
// sync. Returns the changed paths.
func (s *Session) MergeFiles(candidates []datatypes.FileTreeItem) []string {
	if !s.Active() {
		return nil
	}
	// Snapshot-to-replace must be atomic with respect to edits and saves.
	s.mu.Lock()
	defer s.mu.Unlock()
	res := filetree.Merge(candidates, s.Store.All())
	if len(res.Changed) == 0 {
		return nil
	}
	s.Store.Replace(res.Files)
	s.Editor.RefreshMerged(res.Changed)
	s.mount.Signal()
	slog.Info("merged candidate files", "project", s.ProjectID, "changed", len(res.Changed))
	return res.Changed
}

// SendOutgoing appends a user-authored message to the local log. The
// realtime broadcast is the caller's concern (the hub owns connections).
func (s *Session) SendOutgoing(sender, body string) datatypes.ChatMessage {
	cm := datatypes.ChatMessage{
		Sender:    sender,
		Body:      body,
		Direction: datatypes.Outgoing,
	}
	s.ChatLog.Append(cm)
	return cm
}

// EditFile applies an editor keystroke batch and wakes the mount sync.
func (s *Session) EditFile(path, content string) {
	if !s.Active() {
		return
	}
	s.mu.Lock()
	s.Editor.Edit(path, content)
	s.mu.Unlock()
	s.mount.Signal()
}

// SaveFile persists one file (save-current keybinding). The open tab is
// marked saved only when the save actually cleared the record's dirty flag;
// a write overtaken by newer edits leaves the tab unsaved.
func (s *Session) SaveFile(path string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, clean, err := s.persist.SaveOne(s.ctx, path)
	if err == nil && clean {
		s.Editor.MarkSaved(path)
	}
	return id, err
}

// SaveAll persists every dirty file in stable order, reporting per-file
// outcomes (save-all keybinding).
func (s *Session) SaveAll() []syncer.SaveResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	results := s.persist.SaveAll(s.ctx)
	for _, r := range results {
		if r.Err == nil && r.Clean {
			s.Editor.MarkSaved(r.Path)
		}
	}
	return results
}

// RunCommand executes a shell command in the given terminal.
func (s *Session) RunCommand(terminalID, command string) error {
	return s.Terminals.Run(s.ctx, terminalID, command)
}

// Close tears the session down: the mount debounce timer stops, terminal
// processes die, and in-flight completion callbacks see an inactive
// session. Close is idempotent.
func (s *Session) Close() {
	if !s.Active() {
		return
	}
	s.cancel()
	s.mount.Stop()
	s.Terminals.Shutdown()
	s.Editor.CloseAll()
	slog.Info("project session closed", "project", s.ProjectID)
}
