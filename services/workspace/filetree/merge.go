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
	"github.com/devgrid/devgrid/services/workspace/observability"
)

// MergeSeparator visibly marks an AI-injected block inside concatenated
// content so a human can reconcile divergent versions by hand.
const MergeSeparator = "\n\n// ---- merged from AI suggestion ----\n"

// MergeResult is the outcome of one merge pass.
//
// Files holds the full reconciled set in stable order: existing records
// first (insertion order preserved), then newly inserted candidates in
// candidate order. Changed holds only the paths whose records were inserted
// or modified, for notification purposes.
type MergeResult struct {
	Files   []datatypes.FileRecord
	Changed []string
}

// Merge reconciles an incoming candidate set against the current file set
// using content-comparison rules, never silently discarding local edits.
//
// # Description
//
// Per candidate matched against an existing record by path:
//
//   - No existing record: insert as a new record with Dirty=true,
//     Mounted=false. New files always need persisting and mounting.
//   - Identical content: no-op, no dirty flag set.
//   - Existing content contains the candidate: no-op, the incoming content
//     is subsumed.
//   - Candidate contains the existing content: replace with the candidate
//     (a strict extension), Dirty=true, Mounted=false.
//   - Divergent: concatenate existing + MergeSeparator + candidate,
//     Dirty=true, Mounted=false. Neither version is dropped.
//   - Symlink-ness differs between record and candidate: skip entirely.
//     No conversion between symlink and regular file happens through this
//     path; this is a deliberate no-op, not an error.
//
// Candidates of type directory are ignored; they are structural only.
// Symlink candidates matched against symlink records update the target when
// it changed.
//
// The rule ordering (identical, subsumed, superset, concatenate) is a
// conservative policy: favor never losing content over clean merges. The
// identical-content branch makes the pass idempotent — merging the same
// candidate set against its own output changes nothing.
//
// # Inputs
//
//   - candidates: Incoming file-tree delta (from AI or explorer).
//   - current: Current file set, not mutated.
//
// # Outputs
//
//   - MergeResult: Full reconciled set plus the changed subset.
//
// Merge is pure with respect to its inputs; notification is the caller's
// concern.
func Merge(candidates []datatypes.FileTreeItem, current []datatypes.FileRecord) MergeResult {
	files := make([]datatypes.FileRecord, len(current))
	copy(files, current)
	index := make(map[string]int, len(files))
	for i, rec := range files {
		index[rec.Path] = i
	}

	var changed []string
	for _, c := range candidates {
		if c.Type != datatypes.NodeFile {
			continue
		}
		outcome := observability.OutcomeUnchanged
		i, exists := index[c.Path]
		if !exists {
			rec := recordFromItem(c)
			index[rec.Path] = len(files)
			files = append(files, rec)
			changed = append(changed, rec.Path)
			recordOutcome(observability.OutcomeInserted)
			continue
		}

		e := &files[i]
		if e.IsSymlink != c.IsSymlink {
			// Symlink-ness never changes through a merge.
			recordOutcome(observability.OutcomeSkipped)
			continue
		}

		if e.IsSymlink {
			if c.Symlink != "" && c.Symlink != e.SymlinkTarget {
				e.SymlinkTarget = c.Symlink
				e.Dirty = true
				e.Mounted = false
				changed = append(changed, e.Path)
				outcome = observability.OutcomeReplaced
			}
			recordOutcome(outcome)
			continue
		}

		switch {
		case e.Content == c.Content:
			// Already present, nothing changes.
		case strings.Contains(e.Content, c.Content):
			// Incoming content is redundant.
		case strings.Contains(c.Content, e.Content):
			e.Content = c.Content
			e.Dirty = true
			e.Mounted = false
			changed = append(changed, e.Path)
			outcome = observability.OutcomeReplaced
		default:
			e.Content = e.Content + MergeSeparator + c.Content
			e.Dirty = true
			e.Mounted = false
			changed = append(changed, e.Path)
			outcome = observability.OutcomeConcatenated
		}
		if c.Language != "" {
			e.Language = c.Language
		}
		recordOutcome(outcome)
	}

	return MergeResult{Files: files, Changed: changed}
}

func recordOutcome(outcome observability.MergeOutcome) {
	if m := observability.DefaultMetrics; m != nil {
		m.RecordMerge(outcome)
	}
}

// recordFromItem converts a wire item into a fresh dirty, unmounted record.
func recordFromItem(c datatypes.FileTreeItem) datatypes.FileRecord {
	rec := datatypes.FileRecord{
		Path:      c.Path,
		Language:  c.Language,
		IsSymlink: c.IsSymlink,
		Dirty:     true,
		Mounted:   false,
	}
	if c.IsSymlink {
		rec.SymlinkTarget = c.Symlink
	} else {
		rec.Content = c.Content
	}
	if rec.Language == "" && !rec.IsSymlink {
		rec.Language = DetectLanguage(rec.Path)
	}
	return rec
}
