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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devgrid/devgrid/services/workspace/datatypes"
)

func fileItem(path, content string) datatypes.FileTreeItem {
	return datatypes.FileTreeItem{Path: path, Type: datatypes.NodeFile, Content: content}
}

// TestMerge_InsertNewFile verifies an unknown path lands as a dirty,
// unmounted record.
func TestMerge_InsertNewFile(t *testing.T) {
	res := Merge([]datatypes.FileTreeItem{fileItem("src/app.js", "console.log(1)")}, nil)

	require.Len(t, res.Files, 1)
	rec := res.Files[0]
	assert.Equal(t, "src/app.js", rec.Path)
	assert.Equal(t, "console.log(1)", rec.Content)
	assert.True(t, rec.Dirty)
	assert.False(t, rec.Mounted)
	assert.Equal(t, []string{"src/app.js"}, res.Changed)
}

// TestMerge_IdenticalContent verifies a byte-identical candidate is a no-op.
func TestMerge_IdenticalContent(t *testing.T) {
	current := []datatypes.FileRecord{{Path: "a.go", Content: "package a"}}
	res := Merge([]datatypes.FileTreeItem{fileItem("a.go", "package a")}, current)

	require.Len(t, res.Files, 1)
	assert.False(t, res.Files[0].Dirty)
	assert.Empty(t, res.Changed)
}

// TestMerge_SubsumedContent verifies content already contained in the
// existing record changes nothing.
func TestMerge_SubsumedContent(t *testing.T) {
	current := []datatypes.FileRecord{{Path: "a.go", Content: "package a\n\nfunc F() {}\n"}}
	res := Merge([]datatypes.FileTreeItem{fileItem("a.go", "func F() {}")}, current)

	require.Len(t, res.Files, 1)
	assert.Equal(t, current[0].Content, res.Files[0].Content)
	assert.False(t, res.Files[0].Dirty)
	assert.Empty(t, res.Changed)
}

// TestMerge_SupersetReplaces verifies a strict extension of the existing
// content replaces it wholesale.
func TestMerge_SupersetReplaces(t *testing.T) {
	current := []datatypes.FileRecord{{Path: "a.go", Content: "func F() {}"}}
	bigger := "package a\n\nfunc F() {}\n\nfunc G() {}\n"
	res := Merge([]datatypes.FileTreeItem{fileItem("a.go", bigger)}, current)

	require.Len(t, res.Files, 1)
	assert.Equal(t, bigger, res.Files[0].Content)
	assert.True(t, res.Files[0].Dirty)
	assert.False(t, res.Files[0].Mounted)
	assert.Equal(t, []string{"a.go"}, res.Changed)
}

// TestMerge_DivergentConcatenates verifies divergent content keeps both
// versions joined by the separator.
func TestMerge_DivergentConcatenates(t *testing.T) {
	current := []datatypes.FileRecord{{Path: "a.go", Content: "local version"}}
	res := Merge([]datatypes.FileTreeItem{fileItem("a.go", "remote version")}, current)

	require.Len(t, res.Files, 1)
	got := res.Files[0].Content
	assert.Equal(t, "local version"+MergeSeparator+"remote version", got)
	assert.True(t, strings.Contains(got, "local version"))
	assert.True(t, strings.Contains(got, "remote version"))
	assert.True(t, res.Files[0].Dirty)
}

// TestMerge_DirectoryCandidatesIgnored verifies directory entries never
// produce records.
func TestMerge_DirectoryCandidatesIgnored(t *testing.T) {
	res := Merge([]datatypes.FileTreeItem{
		{Path: "src", Type: datatypes.NodeDirectory},
		fileItem("src/a.js", "x"),
	}, nil)

	require.Len(t, res.Files, 1)
	assert.Equal(t, "src/a.js", res.Files[0].Path)
}

// TestMerge_SymlinkMismatchSkipped verifies a file candidate never
// overwrites a symlink record and vice versa.
func TestMerge_SymlinkMismatchSkipped(t *testing.T) {
	current := []datatypes.FileRecord{
		{Path: "link", IsSymlink: true, SymlinkTarget: "target"},
		{Path: "plain.go", Content: "package plain"},
	}

	res := Merge([]datatypes.FileTreeItem{
		fileItem("link", "now a file"),
		{Path: "plain.go", Type: datatypes.NodeFile, IsSymlink: true, Symlink: "elsewhere"},
	}, current)

	require.Len(t, res.Files, 2)
	assert.True(t, res.Files[0].IsSymlink)
	assert.Equal(t, "target", res.Files[0].SymlinkTarget)
	assert.Empty(t, res.Files[0].Content)
	assert.False(t, res.Files[1].IsSymlink)
	assert.Equal(t, "package plain", res.Files[1].Content)
	assert.Empty(t, res.Changed)
}

// TestMerge_SymlinkTargetUpdate verifies a symlink candidate retargets a
// symlink record.
func TestMerge_SymlinkTargetUpdate(t *testing.T) {
	current := []datatypes.FileRecord{{Path: "link", IsSymlink: true, SymlinkTarget: "old"}}
	res := Merge([]datatypes.FileTreeItem{
		{Path: "link", Type: datatypes.NodeFile, IsSymlink: true, Symlink: "new"},
	}, current)

	require.Len(t, res.Files, 1)
	assert.Equal(t, "new", res.Files[0].SymlinkTarget)
	assert.True(t, res.Files[0].Dirty)
	assert.Equal(t, []string{"link"}, res.Changed)
}

// TestMerge_Idempotent verifies merging the same candidates into the
// merge's own output is a no-op.
func TestMerge_Idempotent(t *testing.T) {
	candidates := []datatypes.FileTreeItem{
		fileItem("a.go", "alpha"),
		fileItem("b.go", "beta"),
	}
	current := []datatypes.FileRecord{{Path: "a.go", Content: "something else"}}

	first := Merge(candidates, current)
	second := Merge(candidates, first.Files)

	assert.Empty(t, second.Changed)
	assert.Equal(t, first.Files, second.Files)
}

// TestMerge_StableOrder verifies existing records keep their order and new
// records append in candidate order.
func TestMerge_StableOrder(t *testing.T) {
	current := []datatypes.FileRecord{
		{Path: "one.go", Content: "1"},
		{Path: "two.go", Content: "2"},
	}
	res := Merge([]datatypes.FileTreeItem{
		fileItem("three.go", "3"),
		fileItem("two.go", "2"),
		fileItem("four.go", "4"),
	}, current)

	paths := make([]string, len(res.Files))
	for i, r := range res.Files {
		paths[i] = r.Path
	}
	assert.Equal(t, []string{"one.go", "two.go", "three.go", "four.go"}, paths)
}

// TestMerge_DoesNotMutateInput verifies the current slice is left intact.
func TestMerge_DoesNotMutateInput(t *testing.T) {
	current := []datatypes.FileRecord{{Path: "a.go", Content: "local"}}
	Merge([]datatypes.FileTreeItem{fileItem("a.go", "remote")}, current)

	assert.Equal(t, "local", current[0].Content)
	assert.False(t, current[0].Dirty)
}

// TestMerge_LanguageDetection verifies a missing language is derived from
// the file extension on insert.
func TestMerge_LanguageDetection(t *testing.T) {
	res := Merge([]datatypes.FileTreeItem{fileItem("src/main.py", "print(1)")}, nil)

	require.Len(t, res.Files, 1)
	assert.Equal(t, "python", res.Files[0].Language)
}
