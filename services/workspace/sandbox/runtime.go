// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sandbox models the external code-execution runtime: an isolated
// filesystem that project files are mounted into, process spawning, and the
// server-ready notification. The runtime itself is an external capability;
// this package defines the contract the rest of the service consumes, the
// path-to-filesystem conversion, and the terminal session state.
package sandbox

import (
	"context"
	"strings"

	"github.com/devgrid/devgrid/services/workspace/datatypes"
)

// FSNode is one node of the runtime filesystem tree. Exactly one of File,
// Symlink, or Directory is set.
type FSNode struct {
	File      *FileLeaf          `json:"file,omitempty"`
	Symlink   *SymlinkLeaf       `json:"symlink,omitempty"`
	Directory map[string]*FSNode `json:"directory,omitempty"`
}

// FileLeaf carries file contents into the runtime filesystem.
type FileLeaf struct {
	Contents string `json:"contents"`
}

// SymlinkLeaf carries only the target path, never content.
type SymlinkLeaf struct {
	Target string `json:"target"`
}

// FSTree is the root of a runtime filesystem, keyed by top-level name.
type FSTree map[string]*FSNode

// Process is a handle to a command running inside the runtime.
type Process interface {
	// Output streams combined stdout/stderr lines. The channel closes when
	// the process exits.
	Output() <-chan string

	// Wait blocks until exit and returns the exit code.
	Wait(ctx context.Context) (int, error)

	// Kill terminates the process.
	Kill() error
}

// ServerReadyFunc is invoked when a process inside the runtime starts
// listening; port and url describe the preview endpoint.
type ServerReadyFunc func(port int, url string)

// Runtime is the sandboxed execution environment contract.
//
// One runtime instance exists per browser tab; only one project's files may
// be mounted at a time, so switching projects implies remounting.
type Runtime interface {
	// Mount loads the fileset into the runtime filesystem, replacing any
	// previous content at the covered paths.
	Mount(ctx context.Context, tree FSTree) error

	// Spawn starts a shell command inside the runtime.
	Spawn(ctx context.Context, command string) (Process, error)

	// OnServerReady registers the server-ready notification callback.
	OnServerReady(fn ServerReadyFunc)
}

// BuildFSTree converts flat file records into the runtime filesystem shape.
// Each "/"-separated path segment becomes a directory node except the last,
// which becomes a file leaf; symlink records become a symlink leaf carrying
// only the target path.
func BuildFSTree(records []datatypes.FileRecord) FSTree {
	root := make(FSTree)
	for _, rec := range records {
		parts := strings.Split(rec.Path, "/")
		current := root
		for _, part := range parts[:len(parts)-1] {
			node, ok := current[part]
			if !ok || node.Directory == nil {
				node = &FSNode{Directory: make(map[string]*FSNode)}
				current[part] = node
			}
			current = node.Directory
		}
		name := parts[len(parts)-1]
		if rec.IsSymlink {
			current[name] = &FSNode{Symlink: &SymlinkLeaf{Target: rec.SymlinkTarget}}
		} else {
			current[name] = &FSNode{File: &FileLeaf{Contents: rec.Content}}
		}
	}
	return root
}
