// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package chat owns a project session's message log and the interpreter
// that extracts file-tree deltas from AI response payloads.
package chat

import (
	"sync"

	"github.com/devgrid/devgrid/services/workspace/datatypes"
)

// Log is an ordered, append-only chat message sequence with duplicate
// suppression. Messages are never mutated after insertion and are discarded
// with the session; nothing here persists.
//
// # Thread Safety
//
// Safe for concurrent use.
type Log struct {
	mu       sync.Mutex
	messages []datatypes.ChatMessage
	seen     map[string]struct{}
}

// NewLog returns an empty chat log.
func NewLog() *Log {
	return &Log{seen: make(map[string]struct{})}
}

// Append adds the message unless its dedupe key was seen before. Returns
// whether the message was inserted.
func (l *Log) Append(msg datatypes.ChatMessage) bool {
	key := msg.DedupeKey()
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, dup := l.seen[key]; dup {
		return false
	}
	l.seen[key] = struct{}{}
	l.messages = append(l.messages, msg)
	return true
}

// Messages returns the log in insertion order.
func (l *Log) Messages() []datatypes.ChatMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]datatypes.ChatMessage, len(l.messages))
	copy(out, l.messages)
	return out
}

// Len returns the number of logged messages.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.messages)
}
