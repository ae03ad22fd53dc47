// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package syncer pushes file state outward from the in-memory file tree:
// dirty open files to durable storage, and dirty unmounted files into the
// execution runtime. The two directions are independent; persistence never
// implies mounting and mounting never implies persistence.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/devgrid/devgrid/services/workspace/datatypes"
	"github.com/devgrid/devgrid/services/workspace/filetree"
	"github.com/devgrid/devgrid/services/workspace/observability"
)

// NodeWriter is the slice of the durable store the persistence sync needs.
// Decoupling it as an interface lets unit tests inject fakes.
type NodeWriter interface {
	CreateFileNode(projectID, path, content string, nodeType datatypes.NodeType) (datatypes.FileNode, error)
	UpdateFileNode(projectID, nodeID, content string) (datatypes.FileNode, error)
}

// SaveResult reports the outcome of saving one file. Batch saves return one
// result per file so a caller can tell exactly which files failed. Clean is
// false when the write succeeded but the record picked up newer edits while
// it was in flight and therefore stayed dirty.
type SaveResult struct {
	Path        string
	PersistedID string
	Clean       bool
	Err         error
}

// saveOutcome travels through the singleflight slot for one path.
type saveOutcome struct {
	id    string
	clean bool
}

// PersistenceSync pushes dirty files to durable storage and reconciles
// returned identifiers back into the file tree store.
//
// # Description
//
// A file without a persisted ID is created (create-or-update by path, so a
// retried create never duplicates); a file with one is updated in place. On
// success the record's dirty flag is cleared and the mounted flag is left
// alone — persistence and mounting are orthogonal. On failure the record
// stays dirty and the error is reported per file; retries happen only on
// the next explicit save action.
//
// Overlapping saves of the same path (saveOne racing saveAll) are collapsed
// through a singleflight group keyed by path, so a file is never written
// twice concurrently.
//
// # Thread Safety
//
// Safe for concurrent use.
type PersistenceSync struct {
	projectID string
	store     *filetree.Store
	nodes     NodeWriter
	inflight  singleflight.Group
}

// NewPersistenceSync creates a persistence sync for one project.
func NewPersistenceSync(projectID string, store *filetree.Store, nodes NodeWriter) *PersistenceSync {
	return &PersistenceSync{projectID: projectID, store: store, nodes: nodes}
}

// SaveOne persists the record at path. Returns the persisted ID and whether
// the record's dirty flag was actually cleared; a write that lands after
// further edits leaves the record dirty and reports clean=false. Saving a
// clean record is a no-op that returns its existing ID.
func (p *PersistenceSync) SaveOne(ctx context.Context, path string) (string, bool, error) {
	v, err, _ := p.inflight.Do(path, func() (interface{}, error) {
		return p.saveLocked(ctx, path)
	})
	if err != nil {
		return "", false, err
	}
	out := v.(saveOutcome)
	return out.id, out.clean, nil
}

// SaveAll persists every dirty record in stable store order, reporting the
// outcome per file. It never stops at the first failure and never collapses
// failures into a single aggregate error.
func (p *PersistenceSync) SaveAll(ctx context.Context) []SaveResult {
	paths := p.store.DirtyPaths()
	results := make([]SaveResult, 0, len(paths))
	for _, path := range paths {
		id, clean, err := p.SaveOne(ctx, path)
		results = append(results, SaveResult{Path: path, PersistedID: id, Clean: clean, Err: err})
	}
	return results
}

// saveLocked performs the actual create-or-update for one path. Runs inside
// the singleflight slot for that path.
func (p *PersistenceSync) saveLocked(ctx context.Context, path string) (saveOutcome, error) {
	if err := ctx.Err(); err != nil {
		return saveOutcome{}, err
	}
	rec, ok := p.store.Get(path)
	if !ok {
		return saveOutcome{}, fmt.Errorf("save %s: no such file", path)
	}
	if !rec.Dirty {
		return saveOutcome{id: rec.PersistedID, clean: true}, nil
	}

	var (
		node datatypes.FileNode
		err  error
		op   = "update"
	)
	start := time.Now()
	if rec.PersistedID == "" {
		op = "create"
		node, err = p.nodes.CreateFileNode(p.projectID, rec.Path, rec.Content, datatypes.NodeFile)
	} else {
		node, err = p.nodes.UpdateFileNode(p.projectID, rec.PersistedID, rec.Content)
	}
	if m := observability.DefaultMetrics; m != nil {
		m.RecordSave(op, err == nil, time.Since(start).Seconds())
	}
	if err != nil {
		slog.Warn("file save failed", "project", p.projectID, "path", path, "error", err)
		return saveOutcome{}, fmt.Errorf("save %s: %w", path, err)
	}
	if ctx.Err() != nil {
		// Session closed while the write was in flight; the node is saved
		// but local state must not be touched.
		return saveOutcome{id: node.ID}, nil
	}

	clean := false
	p.store.Mutate(path, func(r *datatypes.FileRecord) {
		// A save completing after further edits must not mark newer
		// content clean.
		if r.Content == rec.Content {
			r.Dirty = false
			clean = true
		}
		r.PersistedID = node.ID
	})
	slog.Debug("file saved", "project", p.projectID, "path", path, "node", node.ID)
	return saveOutcome{id: node.ID, clean: clean}, nil
}

// Hydrate seeds the file tree store from the durable node list: clean,
// unmounted records carrying their persisted IDs. Called once when a
// project session opens.
func (p *PersistenceSync) Hydrate(nodes []datatypes.FileNode) {
	for _, n := range nodes {
		if n.Type != datatypes.NodeFile {
			continue
		}
		p.store.Upsert(datatypes.FileRecord{
			Path:        n.Path,
			Content:     n.Content,
			Dirty:       false,
			Mounted:     false,
			PersistedID: n.ID,
		})
	}
}
