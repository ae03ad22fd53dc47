// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides data structures for the workspace service.
//
// This file contains the file-tree types shared between the merge engine,
// the editor session, the persistence layer, and the AI response envelope.
// For chat and realtime event types, see chat.go.
package datatypes

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Node Types
// =============================================================================

// NodeType discriminates file-tree entries on the wire.
type NodeType string

const (
	// NodeFile is a regular file entry carrying content.
	NodeFile NodeType = "file"

	// NodeDirectory is a structural entry with no content. Directories exist
	// only to pre-create empty folders in the explorer view; the merge engine
	// ignores them.
	NodeDirectory NodeType = "directory"
)

// =============================================================================
// FileRecord
// =============================================================================

// FileRecord is the canonical in-memory representation of one project file.
//
// # Description
//
// A FileRecord tracks a single file across three independent surfaces:
// durable storage (PersistedID + Dirty), the in-memory editor state
// (Content), and the execution sandbox (Mounted). Dirty and Mounted are
// deliberately orthogonal: a file can be mounted into the sandbox while
// still dirty relative to persistence, and vice versa.
//
// # Fields
//
//   - Path: Unique key within a project's file set. Hierarchical via
//     "/"-separated segments; acts as both name and location.
//   - Content: File body. Empty string is valid and distinct from absent.
//     Not authoritative when IsSymlink is true.
//   - Language: Display hint for the editor. Recomputed from the path
//     extension when not explicitly supplied.
//   - IsSymlink: True when the record is a symbolic link.
//   - SymlinkTarget: Referent path; only meaningful when IsSymlink is true.
//   - Dirty: Local content differs from the last known persisted state.
//   - Mounted: Local content has been pushed to the execution sandbox.
//   - PersistedID: Opaque identifier assigned once the record exists in
//     durable storage. Empty string means "not yet created".
//
// # Invariants
//
//   - At most one FileRecord per Path in a given store snapshot.
//   - Content is ignored for symlinks; SymlinkTarget is authoritative.
type FileRecord struct {
	Path          string `json:"path"`
	Content       string `json:"content"`
	Language      string `json:"language,omitempty"`
	IsSymlink     bool   `json:"isSymlink,omitempty"`
	SymlinkTarget string `json:"symlinkTarget,omitempty"`
	Dirty         bool   `json:"dirty"`
	Mounted       bool   `json:"mounted"`
	PersistedID   string `json:"persistedId,omitempty"`
}

// Name returns the final path segment for display purposes.
func (r *FileRecord) Name() string {
	if i := strings.LastIndex(r.Path, "/"); i >= 0 {
		return r.Path[i+1:]
	}
	return r.Path
}

// NeedsMount reports whether the mount sync should pick this record up on
// its next reactive pass.
func (r *FileRecord) NeedsMount() bool {
	return r.Dirty && !r.Mounted
}

// =============================================================================
// FileTreeItem (wire shape)
// =============================================================================

// FileTreeItem is the wire shape of one file-tree entry in the AI response
// envelope and the explorer create/update requests.
//
// # Description
//
// Items of type "directory" carry no content and are structural only.
// Content, Language, IsSymlink, and Symlink are optional; Path and Type are
// required. Symlink holds the referent path when IsSymlink is true.
//
// # Validation
//
// Uses go-playground/validator:
//   - Path: required
//   - Type: required, must be "file" or "directory"
type FileTreeItem struct {
	Path      string   `json:"path" validate:"required"`
	Type      NodeType `json:"type" validate:"required,oneof=file directory"`
	Content   string   `json:"content,omitempty"`
	Language  string   `json:"language,omitempty"`
	IsSymlink bool     `json:"isSymlink,omitempty"`
	Symlink   string   `json:"symlink,omitempty"`
}

// filetreeValidate is the shared validator instance for file-tree datatypes.
var filetreeValidate = validator.New()

// Validate checks the item against the wire contract.
func (it *FileTreeItem) Validate() error {
	return filetreeValidate.Struct(it)
}
