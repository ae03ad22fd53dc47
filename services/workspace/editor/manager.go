// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package editor tracks which project files are open in the browser editor,
// which one is active, and per-file unsaved-change flags.
//
// The unsaved flag on an open handle is UI-local and independent from the
// file record's dirty flag until a save completes; an optimistic edit marks
// the handle unsaved immediately while the record's dirty flag tracks the
// persistence surface.
package editor

import (
	"errors"
	"sync"

	"github.com/devgrid/devgrid/services/workspace/datatypes"
	"github.com/devgrid/devgrid/services/workspace/filetree"
)

// ErrCloseRefused is returned when the confirmation callback vetoes closing
// a file with unsaved changes.
var ErrCloseRefused = errors.New("editor: close refused, file has unsaved changes")

// ConfirmFunc asks the user to confirm discarding unsaved changes for a
// path. Returning false aborts the close.
type ConfirmFunc func(path string) bool

// OpenFileHandle wraps a path reference into the file tree store plus the
// UI-local unsaved flag. Tab order is the open order.
type OpenFileHandle struct {
	Path              string `json:"path"`
	HasUnsavedChanges bool   `json:"hasUnsavedChanges"`
}

// Manager tracks the open-file list and the active file for one project
// session.
//
// # Thread Safety
//
// Safe for concurrent use; all state is guarded by one mutex.
type Manager struct {
	mu     sync.Mutex
	store  *filetree.Store
	open   []OpenFileHandle
	active string
}

// NewManager creates an editor session manager over the given store.
func NewManager(store *filetree.Store) *Manager {
	return &Manager{store: store}
}

// Open makes path the active file, appending it to the open list if it is
// not already open. When no record for path exists yet, a fresh dirty,
// unmounted record is created first so edits have somewhere to land.
func (m *Manager) Open(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store.Get(path); !ok {
		m.store.Upsert(datatypes.FileRecord{
			Path:    path,
			Dirty:   true,
			Mounted: false,
		})
	}
	for _, h := range m.open {
		if h.Path == path {
			m.active = path
			return
		}
	}
	m.open = append(m.open, OpenFileHandle{Path: path})
	m.active = path
}

// Edit updates the record's content and flags the open handle unsaved.
// The mounted flag is untouched; mounting is the mount sync's concern.
func (m *Manager) Edit(path, newContent string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store.Mutate(path, func(rec *datatypes.FileRecord) {
		rec.Content = newContent
		rec.Dirty = true
	})
	m.markUnsavedLocked(path, true)
}

// Close removes path from the open list. When the handle has unsaved
// changes, confirm is consulted first; a false answer aborts the close and
// ErrCloseRefused is returned. If the closed file was active, the first
// remaining open file becomes active, or none.
func (m *Manager) Close(path string, confirm ConfirmFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := -1
	for i, h := range m.open {
		if h.Path == path {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	if m.open[idx].HasUnsavedChanges {
		if confirm == nil || !confirm(path) {
			return ErrCloseRefused
		}
	}
	m.open = append(m.open[:idx], m.open[idx+1:]...)
	if m.active == path {
		if len(m.open) > 0 {
			m.active = m.open[0].Path
		} else {
			m.active = ""
		}
	}
	return nil
}

// CloseAll empties the open list without confirmation. Used on session
// teardown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = nil
	m.active = ""
}

// Active returns the active path, or empty string when nothing is open.
func (m *Manager) Active() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// OpenFiles returns the open handles in tab order.
func (m *Manager) OpenFiles() []OpenFileHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]OpenFileHandle, len(m.open))
	copy(out, m.open)
	return out
}

// IsOpen reports whether path is in the open list.
func (m *Manager) IsOpen(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range m.open {
		if h.Path == path {
			return true
		}
	}
	return false
}

// MarkSaved clears the unsaved flag after a successful save of path.
func (m *Manager) MarkSaved(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markUnsavedLocked(path, false)
}

// RefreshMerged flags open files among the given paths as unsaved so the
// user sees a merge result immediately rather than on next open. The
// editor-visible copy reads through the store, so content is already fresh.
func (m *Manager) RefreshMerged(paths []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range paths {
		m.markUnsavedLocked(p, true)
	}
}

func (m *Manager) markUnsavedLocked(path string, unsaved bool) {
	for i := range m.open {
		if m.open[i].Path == path {
			m.open[i].HasUnsavedChanges = unsaved
			return
		}
	}
}
