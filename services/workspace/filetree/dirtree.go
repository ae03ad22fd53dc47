// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package filetree

import (
	"strings"

	"github.com/devgrid/devgrid/services/workspace/datatypes"
)

// DirEntry is one node of the nested explorer view built from a flat file
// list. Directories carry Children keyed by segment name; files carry the
// backing record.
type DirEntry struct {
	Type     datatypes.NodeType    `json:"type"`
	Children map[string]*DirEntry  `json:"children,omitempty"`
	File     *datatypes.FileRecord `json:"file,omitempty"`
}

// BuildDirTree converts a flat path-keyed file list into a nested directory
// structure for the explorer view. Every "/"-separated segment except the
// last becomes a directory node; the last becomes a file leaf.
//
// When a file name collides with an intermediate directory name the
// directory wins; the flat store's uniqueness-by-path keeps this case out
// of normal operation.
func BuildDirTree(records []datatypes.FileRecord) map[string]*DirEntry {
	root := make(map[string]*DirEntry)
	for i := range records {
		rec := records[i]
		parts := strings.Split(rec.Path, "/")
		current := root
		for _, part := range parts[:len(parts)-1] {
			entry, ok := current[part]
			if !ok || entry.Type != datatypes.NodeDirectory {
				entry = &DirEntry{
					Type:     datatypes.NodeDirectory,
					Children: make(map[string]*DirEntry),
				}
				current[part] = entry
			}
			current = entry.Children
		}
		name := parts[len(parts)-1]
		current[name] = &DirEntry{Type: datatypes.NodeFile, File: &rec}
	}
	return root
}
