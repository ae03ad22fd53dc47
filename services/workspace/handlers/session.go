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
	"github.com/devgrid/devgrid/services/workspace/sandbox"
	"github.com/devgrid/devgrid/services/workspace/session"
	"github.com/devgrid/devgrid/services/workspace/store"
)

// ensureSession hands back the live session for the project, opening one on
// first use. The session hydrates from the durable store and immediately
// gates the mount sync open — the runtime is available as soon as the
// service is.
func ensureSession(c *gin.Context, sessions *session.Registry, db *store.Store,
	rt sandbox.Runtime, projectID string) (*session.Session, bool) {

	s, err := sessions.GetOrOpen(projectID, func() (*session.Session, error) {
		opened, err := session.Open(projectID, db, rt, session.Options{})
		if err != nil {
			return nil, err
		}
		opened.SetRuntimeReady(true)
		return opened, nil
	})
	if err != nil {
		slog.Error("failed to open project session", "projectId", projectID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open project session"})
		return nil, false
	}
	return s, true
}

// EditSessionFile applies editor content to a file in the live session. The
// file is opened as a tab if it is not already; a file that does not exist
// yet is created dirty so the next save persists it.
func EditSessionFile(sessions *session.Registry, db *store.Store, rt sandbox.Runtime) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireProjectAccess(c, db); !ok {
			return
		}
		var req datatypes.EditFileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		path, err := validation.SanitizeNodePath(req.Path)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		projectID := c.Param("projectId")
		sess, ok := ensureSession(c, sessions, db, rt, projectID)
		if !ok {
			return
		}
		sess.Editor.Open(path)
		sess.EditFile(path, req.Content)
		c.JSON(http.StatusOK, gin.H{"path": path, "openFiles": sess.Editor.OpenFiles()})
	}
}

// SaveSessionFile persists one file from the live session.
func SaveSessionFile(sessions *session.Registry, db *store.Store, rt sandbox.Runtime) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireProjectAccess(c, db); !ok {
			return
		}
		var req datatypes.SaveFileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		projectID := c.Param("projectId")
		sess, ok := ensureSession(c, sessions, db, rt, projectID)
		if !ok {
			return
		}
		id, err := sess.SaveFile(req.Path)
		if err != nil {
			slog.Error("session save failed", "projectId", projectID, "path", req.Path, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save file"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"path": req.Path, "persistedId": id})
	}
}

// SaveAllSessionFiles persists every dirty file, reporting per-file
// outcomes; a partial failure is not an HTTP failure.
func SaveAllSessionFiles(sessions *session.Registry, db *store.Store, rt sandbox.Runtime) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireProjectAccess(c, db); !ok {
			return
		}
		sess, ok := ensureSession(c, sessions, db, rt, c.Param("projectId"))
		if !ok {
			return
		}
		results := sess.SaveAll()
		out := make([]gin.H, 0, len(results))
		for _, r := range results {
			entry := gin.H{"path": r.Path, "persistedId": r.PersistedID}
			if r.Err != nil {
				entry["error"] = r.Err.Error()
			}
			out = append(out, entry)
		}
		c.JSON(http.StatusOK, gin.H{"results": out})
	}
}

// GetSessionPreview reports the sandbox preview URL, empty until the
// server-ready notification fires.
func GetSessionPreview(sessions *session.Registry, db *store.Store, rt sandbox.Runtime) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireProjectAccess(c, db); !ok {
			return
		}
		sess, ok := ensureSession(c, sessions, db, rt, c.Param("projectId"))
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"url": sess.PreviewURL()})
	}
}

// ListTerminals returns the session's terminals in creation order plus the
// active terminal ID.
func ListTerminals(sessions *session.Registry, db *store.Store, rt sandbox.Runtime) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireProjectAccess(c, db); !ok {
			return
		}
		sess, ok := ensureSession(c, sessions, db, rt, c.Param("projectId"))
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"terminals": sess.Terminals.Terminals(),
			"active":    sess.Terminals.Active(),
		})
	}
}

// CreateTerminal adds a terminal to the session and makes it active.
func CreateTerminal(sessions *session.Registry, db *store.Store, rt sandbox.Runtime) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireProjectAccess(c, db); !ok {
			return
		}
		var req datatypes.CreateTerminalRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		sess, ok := ensureSession(c, sessions, db, rt, c.Param("projectId"))
		if !ok {
			return
		}
		c.JSON(http.StatusCreated, sess.Terminals.Create(req.Name))
	}
}

// RunTerminalCommand spawns a shell command in the given terminal. Output
// accumulates in the terminal's line log, readable via ListTerminals.
func RunTerminalCommand(sessions *session.Registry, db *store.Store, rt sandbox.Runtime) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireProjectAccess(c, db); !ok {
			return
		}
		var req datatypes.RunCommandRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		sess, ok := ensureSession(c, sessions, db, rt, c.Param("projectId"))
		if !ok {
			return
		}
		if err := sess.RunCommand(c.Param("terminalId"), req.Command); err != nil {
			writeTerminalError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"terminalId": c.Param("terminalId")})
	}
}

// CloseTerminal destroys a terminal, killing any running process.
func CloseTerminal(sessions *session.Registry, db *store.Store, rt sandbox.Runtime) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireProjectAccess(c, db); !ok {
			return
		}
		sess, ok := ensureSession(c, sessions, db, rt, c.Param("projectId"))
		if !ok {
			return
		}
		if err := sess.Terminals.Close(c.Param("terminalId")); err != nil {
			writeTerminalError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "closed"})
	}
}

func writeTerminalError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, sandbox.ErrNoTerminal):
		c.JSON(http.StatusNotFound, gin.H{"error": "no such terminal"})
	case errors.Is(err, sandbox.ErrLastTerminal):
		c.JSON(http.StatusConflict, gin.H{"error": "cannot close the last terminal"})
	default:
		slog.Error("terminal operation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "terminal operation failed"})
	}
}
