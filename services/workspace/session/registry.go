// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import (
	"sync"

	"github.com/devgrid/devgrid/services/workspace/datatypes"
)

// Registry tracks the live session per project and routes realtime events
// to the right one. One registry exists per service instance.
//
// # Thread Safety
//
// Safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Attach registers an externally opened session. Replaces (and closes) any
// previous session for the same project.
func (r *Registry) Attach(s *Session) {
	r.mu.Lock()
	prev := r.sessions[s.ProjectID]
	r.sessions[s.ProjectID] = s
	r.mu.Unlock()
	if prev != nil && prev != s {
		prev.Close()
	}
}

// GetOrOpen returns the live session for a project, opening one through the
// supplied constructor when none exists. The constructor runs under the
// registry lock, so two concurrent first joins never open two sessions.
func (r *Registry) GetOrOpen(projectID string, open func() (*Session, error)) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[projectID]; ok {
		return s, nil
	}
	s, err := open()
	if err != nil {
		return nil, err
	}
	r.sessions[projectID] = s
	return s, nil
}

// Get returns the live session for a project, or nil.
func (r *Registry) Get(projectID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[projectID]
}

// Dispatch routes an inbound room event to the project's session. Events
// for projects without a live session are dropped; the room broadcast has
// already happened.
func (r *Registry) Dispatch(msg datatypes.ProjectMessage) {
	if s := r.Get(msg.ProjectID); s != nil {
		s.HandleIncoming(msg)
	}
}

// Close tears down and forgets the session for a project.
func (r *Registry) Close(projectID string) {
	r.mu.Lock()
	s := r.sessions[projectID]
	delete(r.sessions, projectID)
	r.mu.Unlock()
	if s != nil {
		s.Close()
	}
}

// CloseAll tears down every live session. Used on service shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()
	for _, s := range all {
		s.Close()
	}
}
