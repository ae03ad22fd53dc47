// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/devgrid/devgrid/pkg/validation"
	"github.com/devgrid/devgrid/services/workspace/datatypes"
	"github.com/devgrid/devgrid/services/workspace/filetree"
	"github.com/devgrid/devgrid/services/workspace/store"
)

func CreateFileNode(db *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireProjectAccess(c, db); !ok {
			return
		}
		var req datatypes.CreateNodeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		path, err := validation.SanitizeNodePath(req.Path)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.Type != datatypes.NodeFile && req.Type != datatypes.NodeDirectory {
			c.JSON(http.StatusBadRequest, gin.H{"error": "type must be file or directory"})
			return
		}
		projectID := c.Param("projectId")
		node, err := db.CreateFileNode(projectID, path, req.Content, req.Type)
		if err != nil {
			slog.Error("failed to create file node", "projectId", projectID, "path", path, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create file node"})
			return
		}
		c.JSON(http.StatusCreated, node)
	}
}

func UpdateFileNode(db *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireProjectAccess(c, db); !ok {
			return
		}
		var req datatypes.UpdateNodeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		projectID := c.Param("projectId")
		node, err := db.UpdateFileNode(projectID, c.Param("nodeId"), req.Content)
		if err != nil {
			writeNodeError(c, err)
			return
		}
		c.JSON(http.StatusOK, node)
	}
}

func MoveFileNode(db *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireProjectAccess(c, db); !ok {
			return
		}
		var req datatypes.MoveNodeRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.NewPath == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "newPath is required"})
			return
		}
		newPath, err := validation.SanitizeNodePath(req.NewPath)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		projectID := c.Param("projectId")
		node, err := db.MoveFileNode(projectID, c.Param("nodeId"), newPath)
		if err != nil {
			if errors.Is(err, store.ErrExists) {
				c.JSON(http.StatusConflict, gin.H{"error": "a node already exists at the target path"})
				return
			}
			writeNodeError(c, err)
			return
		}
		c.JSON(http.StatusOK, node)
	}
}

func DeleteFileNode(db *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireProjectAccess(c, db); !ok {
			return
		}
		projectID := c.Param("projectId")
		nodeID := c.Param("nodeId")
		if err := db.DeleteFileNode(projectID, nodeID); err != nil {
			writeNodeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "deleted", "nodeId": nodeID})
	}
}

// ListFileTree returns the persisted nodes for a project. With ?format=tree
// the flat list is folded into the nested explorer shape.
func ListFileTree(db *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireProjectAccess(c, db); !ok {
			return
		}
		projectID := c.Param("projectId")
		nodes, err := db.ListFileNodes(projectID)
		if err != nil {
			slog.Error("failed to list file nodes", "projectId", projectID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list file nodes"})
			return
		}
		if c.Query("format") != "tree" {
			c.JSON(http.StatusOK, gin.H{"nodes": nodes})
			return
		}
		records := make([]datatypes.FileRecord, 0, len(nodes))
		for _, n := range nodes {
			if n.Type != datatypes.NodeFile {
				continue
			}
			records = append(records, datatypes.FileRecord{
				Path:        n.Path,
				Content:     n.Content,
				Language:    filetree.DetectLanguage(n.Path),
				PersistedID: n.ID,
			})
		}
		c.JSON(http.StatusOK, gin.H{"tree": filetree.BuildDirTree(records)})
	}
}

func writeNodeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "file node not found"})
	case errors.Is(err, store.ErrWrongProject):
		c.JSON(http.StatusForbidden, gin.H{"error": "node belongs to a different project"})
	default:
		slog.Error("file node operation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "file node operation failed"})
	}
}
