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

// Sentinel errors for callers that need to map storage outcomes onto HTTP
// status codes.
var (
	ErrNotFound     = errors.New("store: not found")
	ErrWrongProject = errors.New("store: node does not belong to this project")
	ErrExists       = errors.New("store: already exists")
)

// CreateProject inserts a new project owned by creatorID and returns it.
func (s *Store) CreateProject(name, creatorID string) (datatypes.Project, error) {
	p := datatypes.Project{
		ID:        uuid.New().String(),
		Name:      name,
		Users:     []string{creatorID},
		CreatedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(p)
	if err != nil {
		return datatypes.Project{}, fmt.Errorf("marshal project: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(projectKey(p.ID), data)
	})
	if err != nil {
		return datatypes.Project{}, fmt.Errorf("save project: %w", err)
	}
	return p, nil
}

// GetProject fetches a project by ID. Returns ErrNotFound when absent.
func (s *Store) GetProject(projectID string) (datatypes.Project, error) {
	var p datatypes.Project
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(projectKey(projectID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &p)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return datatypes.Project{}, ErrNotFound
	}
	if err != nil {
		return datatypes.Project{}, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

// ListProjectsForUser returns every project the user is a member of.
func (s *Store) ListProjectsForUser(userID string) ([]datatypes.Project, error) {
	var out []datatypes.Project
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = projectPrefix()
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var p datatypes.Project
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &p)
			})
			if err != nil {
				return err
			}
			if p.HasUser(userID) {
				out = append(out, p)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return out, nil
}

// AddUser adds userID as a project collaborator. Adding an existing member
// is a no-op.
func (s *Store) AddUser(projectID, userID string) (datatypes.Project, error) {
	var p datatypes.Project
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(projectKey(projectID))
		if err != nil {
			return err
		}
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &p)
		}); err != nil {
			return err
		}
		if p.HasUser(userID) {
			return nil
		}
		p.Users = append(p.Users, userID)
		data, err := json.Marshal(p)
		if err != nil {
			return err
		}
		return txn.Set(projectKey(projectID), data)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return datatypes.Project{}, ErrNotFound
	}
	if err != nil {
		return datatypes.Project{}, fmt.Errorf("add user: %w", err)
	}
	return p, nil
}

// DeleteProject removes a project and all of its file nodes.
func (s *Store) DeleteProject(projectID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(projectKey(projectID)); err != nil {
			return err
		}
		opts := badger.DefaultIteratorOptions
		opts.Prefix = nodePrefix(projectID)
		it := txn.NewIterator(opts)
		var keys [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
			var n datatypes.FileNode
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &n)
			})
			if err == nil {
				keys = append(keys, nodePathKey(projectID, n.Path))
			}
		}
		it.Close()
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return txn.Delete(projectKey(projectID))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return nil
}
