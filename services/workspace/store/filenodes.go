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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/devgrid/devgrid/services/workspace/datatypes"
)

// CreateFileNode creates a file node, or updates the existing node when one
// already exists at the same path. The returned node carries the assigned
// (or existing) ID; a path is never created twice.
func (s *Store) CreateFileNode(projectID, path, content string, nodeType datatypes.NodeType) (datatypes.FileNode, error) {
	var node datatypes.FileNode
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(projectKey(projectID)); err != nil {
			return err
		}

		now := time.Now().UTC()
		// Create-or-update by path: reuse the existing node when present.
		if item, err := txn.Get(nodePathKey(projectID, path)); err == nil {
			var existingID string
			if err := item.Value(func(val []byte) error {
				existingID = string(val)
				return nil
			}); err != nil {
				return err
			}
			nodeItem, err := txn.Get(nodeKey(projectID, existingID))
			if err != nil {
				return err
			}
			if err := nodeItem.Value(func(val []byte) error {
				return json.Unmarshal(val, &node)
			}); err != nil {
				return err
			}
			node.Content = content
			node.Type = nodeType
			node.UpdatedAt = now
			data, err := json.Marshal(node)
			if err != nil {
				return err
			}
			return txn.Set(nodeKey(projectID, node.ID), data)
		}

		node = datatypes.FileNode{
			ID:        uuid.New().String(),
			ProjectID: projectID,
			Path:      path,
			Type:      nodeType,
			Content:   content,
			CreatedAt: now,
			UpdatedAt: now,
		}
		data, err := json.Marshal(node)
		if err != nil {
			return err
		}
		if err := txn.Set(nodeKey(projectID, node.ID), data); err != nil {
			return err
		}
		return txn.Set(nodePathKey(projectID, path), []byte(node.ID))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return datatypes.FileNode{}, ErrNotFound
	}
	if err != nil {
		return datatypes.FileNode{}, fmt.Errorf("create file node: %w", err)
	}
	return node, nil
}

// UpdateFileNode replaces the content of an existing node by ID.
func (s *Store) UpdateFileNode(projectID, nodeID, content string) (datatypes.FileNode, error) {
	var node datatypes.FileNode
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(nodeKey(projectID, nodeID))
		if err != nil {
			return err
		}
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &node)
		}); err != nil {
			return err
		}
		if node.ProjectID != projectID {
			return ErrWrongProject
		}
		node.Content = content
		node.UpdatedAt = time.Now().UTC()
		data, err := json.Marshal(node)
		if err != nil {
			return err
		}
		return txn.Set(nodeKey(projectID, nodeID), data)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return datatypes.FileNode{}, ErrNotFound
	}
	if err != nil {
		if errors.Is(err, ErrWrongProject) {
			return datatypes.FileNode{}, err
		}
		return datatypes.FileNode{}, fmt.Errorf("update file node: %w", err)
	}
	return node, nil
}

// ListFileNodes returns every node of a project.
func (s *Store) ListFileNodes(projectID string) ([]datatypes.FileNode, error) {
	var out []datatypes.FileNode
	err := s.db.View(func(txn *badger.Txn) error {
		if _, err := txn.Get(projectKey(projectID)); err != nil {
			return err
		}
		opts := badger.DefaultIteratorOptions
		opts.Prefix = nodePrefix(projectID)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var n datatypes.FileNode
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &n)
			})
			if err != nil {
				return err
			}
			out = append(out, n)
		}
		return nil
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("list file nodes: %w", err)
	}
	return out, nil
}

// DeleteFileNode removes a node and its path index entry.
func (s *Store) DeleteFileNode(projectID, nodeID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(nodeKey(projectID, nodeID))
		if err != nil {
			return err
		}
		var node datatypes.FileNode
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &node)
		}); err != nil {
			return err
		}
		if node.ProjectID != projectID {
			return ErrWrongProject
		}
		if err := txn.Delete(nodePathKey(projectID, node.Path)); err != nil {
			return err
		}
		return txn.Delete(nodeKey(projectID, nodeID))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil && !errors.Is(err, ErrWrongProject) {
		return fmt.Errorf("delete file node: %w", err)
	}
	return err
}

// MoveFileNode changes a node's path, maintaining the path index. Moving
// onto an occupied path returns ErrExists.
func (s *Store) MoveFileNode(projectID, nodeID, newPath string) (datatypes.FileNode, error) {
	var node datatypes.FileNode
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(nodePathKey(projectID, newPath)); err == nil {
			return ErrExists
		}
		item, err := txn.Get(nodeKey(projectID, nodeID))
		if err != nil {
			return err
		}
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &node)
		}); err != nil {
			return err
		}
		if node.ProjectID != projectID {
			return ErrWrongProject
		}
		if err := txn.Delete(nodePathKey(projectID, node.Path)); err != nil {
			return err
		}
		node.Path = newPath
		node.UpdatedAt = time.Now().UTC()
		data, err := json.Marshal(node)
		if err != nil {
			return err
		}
		if err := txn.Set(nodeKey(projectID, nodeID), data); err != nil {
			return err
		}
		return txn.Set(nodePathKey(projectID, newPath), []byte(node.ID))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return datatypes.FileNode{}, ErrNotFound
	}
	if err != nil {
		if errors.Is(err, ErrWrongProject) || errors.Is(err, ErrExists) {
			return datatypes.FileNode{}, err
		}
		return datatypes.FileNode{}, fmt.Errorf("move file node: %w", err)
	}
	return node, nil
}
