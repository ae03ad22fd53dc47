// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package syncer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/devgrid/devgrid/services/workspace/datatypes"
	"github.com/devgrid/devgrid/services/workspace/filetree"
	"github.com/devgrid/devgrid/services/workspace/observability"
	"github.com/devgrid/devgrid/services/workspace/sandbox"
)

// DefaultMountDebounce is the quiet period after the last observed change
// before a mount pass runs, so a burst of keystrokes results in one mount.
const DefaultMountDebounce = 300 * time.Millisecond

// NotifyFunc surfaces a mount failure to the UI layer. Never invoked on
// success.
type NotifyFunc func(err error)

// MountSync pushes dirty-but-unmounted files into the execution runtime.
//
// # Description
//
// Signal marks the file set changed; after a debounce window with no
// further signals, every record with dirty=true and mounted=false is
// batched, converted to the runtime filesystem shape, and mounted. Success
// sets mounted=true on the batch and leaves dirty untouched (mounting does
// not imply persistence). Failure leaves all flags untouched and surfaces a
// notification; the records still qualify, so the next signal naturally
// retries.
//
// The debounce timer resets (never stacks) on every signal. Mount passes
// are gated on the runtime being ready; signals received before readiness
// are honored by the pass triggered from SetReady.
//
// # Thread Safety
//
// Safe for concurrent use. At most one mount pass runs at a time.
type MountSync struct {
	store   *filetree.Store
	runtime sandbox.Runtime
	delay   time.Duration
	notify  NotifyFunc

	mu      sync.Mutex
	timer   *time.Timer
	ready   bool
	stopped bool
	pending bool
}

// NewMountSync creates a mount sync over the store. A zero delay selects
// DefaultMountDebounce. notify may be nil.
func NewMountSync(store *filetree.Store, runtime sandbox.Runtime, delay time.Duration, notify NotifyFunc) *MountSync {
	if delay <= 0 {
		delay = DefaultMountDebounce
	}
	return &MountSync{store: store, runtime: runtime, delay: delay, notify: notify}
}

// SetReady flips the runtime-ready gate. Becoming ready schedules a pass if
// signals arrived while the runtime was booting.
func (m *MountSync) SetReady(ready bool) {
	m.mu.Lock()
	m.ready = ready
	fire := ready && m.pending && !m.stopped
	m.mu.Unlock()
	if fire {
		m.Signal()
	}
}

// Signal notes a qualifying state change and (re)starts the debounce
// window. Safe to call on every keystroke.
func (m *MountSync) Signal() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	m.pending = true
	if !m.ready {
		return
	}
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.delay, m.flush)
}

// Stop cancels any scheduled pass and disables the sync. Called on session
// teardown; a flush racing Stop observes the stopped flag and does nothing.
func (m *MountSync) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// Flush runs a mount pass immediately, bypassing the debounce window. Used
// for the initial mount when a session opens against a ready runtime.
func (m *MountSync) Flush() {
	m.flush()
}

func (m *MountSync) flush() {
	m.mu.Lock()
	if m.stopped || !m.ready {
		m.mu.Unlock()
		return
	}
	m.pending = false
	m.mu.Unlock()

	batch := m.store.NeedingMount()
	if len(batch) == 0 {
		return
	}

	tree := sandbox.BuildFSTree(batch)
	err := m.runtime.Mount(context.Background(), tree)
	if pm := observability.DefaultMetrics; pm != nil {
		pm.RecordMount(err == nil)
	}

	m.mu.Lock()
	stopped := m.stopped
	m.mu.Unlock()
	if stopped {
		// Session closed while the mount was in flight; do not touch state.
		return
	}

	if err != nil {
		slog.Warn("sandbox mount failed", "files", len(batch), "error", err)
		if m.notify != nil {
			m.notify(err)
		}
		return
	}

	for _, rec := range batch {
		content := rec.Content
		m.store.Mutate(rec.Path, func(r *datatypes.FileRecord) {
			// Content may have moved on during the mount call; only the
			// mounted version counts as pushed.
			if r.Content == content {
				r.Mounted = true
			}
		})
	}
	slog.Debug("sandbox mount complete", "files", len(batch))
}
