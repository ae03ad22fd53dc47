// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package chat

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/devgrid/devgrid/services/workspace/datatypes"
	"github.com/devgrid/devgrid/services/workspace/filetree"
)

// ResultKind discriminates interpreter outcomes.
type ResultKind int

const (
	// Plain means the payload did not match the structured envelope and is
	// opaque display text. This is a silent degradation, not an error.
	Plain ResultKind = iota

	// Structured means the payload carried narrative text plus a file-tree
	// delta and optional build commands.
	Structured
)

// Result is the tagged union produced by a single parse attempt. Files and
// BuildCommands are only meaningful when Kind is Structured.
type Result struct {
	Kind          ResultKind
	Text          string
	Files         []datatypes.FileTreeItem
	BuildCommands []string
}

// Interpret parses one AI chat payload.
//
// A payload is structured when it is valid JSON with a non-empty "text"
// field and a "code.filetree" array; anything else falls back to plain
// text. Per-file language resolution: an explicit language field wins,
// otherwise the language derives from the path extension, with unknown
// extensions mapping to a generic text language. Directory entries are kept
// for the explorer but carry no content.
func Interpret(raw string) Result {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return Result{Kind: Plain, Text: raw}
	}

	var env datatypes.StructuredResponse
	if err := json.Unmarshal([]byte(trimmed), &env); err != nil {
		return Result{Kind: Plain, Text: raw}
	}
	if env.Text == "" || env.Code.FileTree == nil {
		return Result{Kind: Plain, Text: raw}
	}

	files := make([]datatypes.FileTreeItem, 0, len(env.Code.FileTree))
	for _, item := range env.Code.FileTree {
		if item.Validate() != nil {
			// A malformed entry degrades the whole payload to plain text
			// rather than merging a partial tree.
			return Result{Kind: Plain, Text: raw}
		}
		if item.Language == "" && item.Type == datatypes.NodeFile && !item.IsSymlink {
			item.Language = filetree.DetectLanguage(item.Path)
		}
		files = append(files, item)
	}

	return Result{
		Kind:          Structured,
		Text:          env.Text,
		Files:         files,
		BuildCommands: env.BuildCommands,
	}
}

// Interpreter wraps Interpret with processed-message tracking so a message
// re-rendered or re-delivered is never merged twice.
//
// # Thread Safety
//
// Safe for concurrent use.
type Interpreter struct {
	mu        sync.Mutex
	processed map[string]struct{}
}

// NewInterpreter returns an interpreter with empty dedupe state.
func NewInterpreter() *Interpreter {
	return &Interpreter{processed: make(map[string]struct{})}
}

// Process interprets the message body. The second return is false when the
// message's dedupe key was already processed, in which case the caller must
// skip merging.
func (i *Interpreter) Process(msg datatypes.ChatMessage) (Result, bool) {
	key := msg.DedupeKey()
	i.mu.Lock()
	_, dup := i.processed[key]
	if !dup {
		i.processed[key] = struct{}{}
	}
	i.mu.Unlock()
	if dup {
		return Result{}, false
	}
	return Interpret(msg.Body), true
}
