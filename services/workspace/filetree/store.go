// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package filetree holds the canonical in-memory file set of a project and
// the merge engine that reconciles AI-proposed file trees into it.
//
// The store is a keyed collection with uniqueness-by-path; iteration order
// is insertion order and carries no semantic meaning beyond stable display.
package filetree

import (
	"sync"

	"github.com/devgrid/devgrid/services/workspace/datatypes"
)

// Store is the canonical in-memory representation of a project's files.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Records are copied on the way in
// and out so callers can never alias the store's internal state.
type Store struct {
	mu      sync.RWMutex
	byPath  map[string]int
	records []datatypes.FileRecord
}

// NewStore returns an empty file tree store.
func NewStore() *Store {
	return &Store{byPath: make(map[string]int)}
}

// Upsert inserts the record or replaces the record at the same path.
// Insertion order is preserved for existing paths.
func (s *Store) Upsert(rec datatypes.FileRecord) {
	if rec.Language == "" && !rec.IsSymlink {
		rec.Language = DetectLanguage(rec.Path)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.byPath[rec.Path]; ok {
		s.records[i] = rec
		return
	}
	s.byPath[rec.Path] = len(s.records)
	s.records = append(s.records, rec)
}

// Get returns the record at path and whether it exists.
func (s *Store) Get(path string) (datatypes.FileRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byPath[path]
	if !ok {
		return datatypes.FileRecord{}, false
	}
	return s.records[i], true
}

// Remove deletes the record at path. Returns false when no such record
// exists.
func (s *Store) Remove(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.byPath[path]
	if !ok {
		return false
	}
	s.records = append(s.records[:i], s.records[i+1:]...)
	delete(s.byPath, path)
	for p, j := range s.byPath {
		if j > i {
			s.byPath[p] = j - 1
		}
	}
	return true
}

// All returns every record in insertion order.
func (s *Store) All() []datatypes.FileRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]datatypes.FileRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Replace swaps the entire file set for the given records, preserving the
// order of the slice. Used after a merge pass to apply the reconciled set
// atomically.
func (s *Store) Replace(records []datatypes.FileRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make([]datatypes.FileRecord, 0, len(records))
	s.byPath = make(map[string]int, len(records))
	for _, rec := range records {
		if _, dup := s.byPath[rec.Path]; dup {
			continue
		}
		s.byPath[rec.Path] = len(s.records)
		s.records = append(s.records, rec)
	}
}

// NeedingMount returns the records with dirty content not yet pushed to the
// execution sandbox, in insertion order.
func (s *Store) NeedingMount() []datatypes.FileRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []datatypes.FileRecord
	for _, rec := range s.records {
		if rec.NeedsMount() {
			out = append(out, rec)
		}
	}
	return out
}

// DirtyPaths returns the paths of all dirty records in insertion order.
func (s *Store) DirtyPaths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, rec := range s.records {
		if rec.Dirty {
			out = append(out, rec.Path)
		}
	}
	return out
}

// Mutate applies fn to the record at path under the store lock. It is a
// no-op when the path is absent. Returns whether the record existed.
func (s *Store) Mutate(path string, fn func(*datatypes.FileRecord)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.byPath[path]
	if !ok {
		return false
	}
	fn(&s.records[i])
	return true
}
