// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devgrid/devgrid/services/workspace/datatypes"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// TestProjectLifecycle covers create, get, membership, and delete.
func TestProjectLifecycle(t *testing.T) {
	s := openTestStore(t)

	p, err := s.CreateProject("demo", "alice")
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.True(t, p.HasUser("alice"))

	got, err := s.GetProject(p.ID)
	require.NoError(t, err)
	assert.Equal(t, "demo", got.Name)

	_, err = s.GetProject("nope")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.DeleteProject(p.ID))
	_, err = s.GetProject(p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteProject(p.ID), ErrNotFound)
}

// TestListProjectsForUser filters by membership.
func TestListProjectsForUser(t *testing.T) {
	s := openTestStore(t)

	a, err := s.CreateProject("a", "alice")
	require.NoError(t, err)
	_, err = s.CreateProject("b", "bob")
	require.NoError(t, err)
	shared, err := s.CreateProject("shared", "bob")
	require.NoError(t, err)
	_, err = s.AddUser(shared.ID, "alice")
	require.NoError(t, err)

	projects, err := s.ListProjectsForUser("alice")
	require.NoError(t, err)
	require.Len(t, projects, 2)
	ids := []string{projects[0].ID, projects[1].ID}
	assert.Contains(t, ids, a.ID)
	assert.Contains(t, ids, shared.ID)
}

// TestAddUser_Idempotent verifies re-adding a member changes nothing.
func TestAddUser_Idempotent(t *testing.T) {
	s := openTestStore(t)
	p, err := s.CreateProject("demo", "alice")
	require.NoError(t, err)

	p, err = s.AddUser(p.ID, "bob")
	require.NoError(t, err)
	p, err = s.AddUser(p.ID, "bob")
	require.NoError(t, err)
	assert.Len(t, p.Users, 2)

	_, err = s.AddUser("missing", "bob")
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestCreateFileNode_NeverDuplicatesPath verifies create-or-update
// semantics for retried creates.
func TestCreateFileNode_NeverDuplicatesPath(t *testing.T) {
	s := openTestStore(t)
	p, err := s.CreateProject("demo", "alice")
	require.NoError(t, err)

	first, err := s.CreateFileNode(p.ID, "src/app.js", "v1", datatypes.NodeFile)
	require.NoError(t, err)

	second, err := s.CreateFileNode(p.ID, "src/app.js", "v2", datatypes.NodeFile)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "retried create must reuse the node")
	assert.Equal(t, "v2", second.Content)

	nodes, err := s.ListFileNodes(p.ID)
	require.NoError(t, err)
	assert.Len(t, nodes, 1)
}

// TestCreateFileNode_UnknownProject rejects orphan nodes.
func TestCreateFileNode_UnknownProject(t *testing.T) {
	s := openTestStore(t)
	_, err := s.CreateFileNode("ghost", "a.go", "x", datatypes.NodeFile)
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestUpdateFileNode verifies content replacement by node ID.
func TestUpdateFileNode(t *testing.T) {
	s := openTestStore(t)
	p, err := s.CreateProject("demo", "alice")
	require.NoError(t, err)
	node, err := s.CreateFileNode(p.ID, "a.go", "old", datatypes.NodeFile)
	require.NoError(t, err)

	updated, err := s.UpdateFileNode(p.ID, node.ID, "new")
	require.NoError(t, err)
	assert.Equal(t, "new", updated.Content)
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt) || updated.UpdatedAt.Equal(updated.CreatedAt))

	_, err = s.UpdateFileNode(p.ID, "missing", "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestMoveFileNode verifies path changes maintain the path index.
func TestMoveFileNode(t *testing.T) {
	s := openTestStore(t)
	p, err := s.CreateProject("demo", "alice")
	require.NoError(t, err)
	node, err := s.CreateFileNode(p.ID, "old/path.js", "x", datatypes.NodeFile)
	require.NoError(t, err)
	_, err = s.CreateFileNode(p.ID, "taken.js", "y", datatypes.NodeFile)
	require.NoError(t, err)

	moved, err := s.MoveFileNode(p.ID, node.ID, "new/path.js")
	require.NoError(t, err)
	assert.Equal(t, "new/path.js", moved.Path)

	// The old path is free again; the new one is occupied.
	_, err = s.MoveFileNode(p.ID, node.ID, "taken.js")
	assert.ErrorIs(t, err, ErrExists)

	fresh, err := s.CreateFileNode(p.ID, "old/path.js", "z", datatypes.NodeFile)
	require.NoError(t, err)
	assert.NotEqual(t, node.ID, fresh.ID)
}

// TestDeleteFileNode verifies node and index removal.
func TestDeleteFileNode(t *testing.T) {
	s := openTestStore(t)
	p, err := s.CreateProject("demo", "alice")
	require.NoError(t, err)
	node, err := s.CreateFileNode(p.ID, "a.go", "x", datatypes.NodeFile)
	require.NoError(t, err)

	require.NoError(t, s.DeleteFileNode(p.ID, node.ID))
	assert.ErrorIs(t, s.DeleteFileNode(p.ID, node.ID), ErrNotFound)

	// The path is reusable after deletion.
	again, err := s.CreateFileNode(p.ID, "a.go", "y", datatypes.NodeFile)
	require.NoError(t, err)
	assert.NotEqual(t, node.ID, again.ID)
}

// TestDeleteProject_CascadesNodes verifies project deletion removes all
// its nodes.
func TestDeleteProject_CascadesNodes(t *testing.T) {
	s := openTestStore(t)
	p, err := s.CreateProject("demo", "alice")
	require.NoError(t, err)
	_, err = s.CreateFileNode(p.ID, "a.go", "x", datatypes.NodeFile)
	require.NoError(t, err)
	_, err = s.CreateFileNode(p.ID, "b.go", "y", datatypes.NodeFile)
	require.NoError(t, err)

	require.NoError(t, s.DeleteProject(p.ID))

	_, err = s.ListFileNodes(p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
