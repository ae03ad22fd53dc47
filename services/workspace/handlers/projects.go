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

	"github.com/devgrid/devgrid/services/workspace/datatypes"
	"github.com/devgrid/devgrid/services/workspace/middleware"
	"github.com/devgrid/devgrid/services/workspace/store"
)

func CreateProject(db *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.CreateProjectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if req.Name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "project name is required"})
			return
		}
		creator := middleware.GetPrincipal(c)
		project, err := db.CreateProject(req.Name, creator)
		if err != nil {
			slog.Error("failed to create project", "name", req.Name, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create project"})
			return
		}
		slog.Info("created project", "projectId", project.ID, "creator", creator)
		c.JSON(http.StatusCreated, project)
	}
}

func ListProjects(db *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.GetPrincipal(c)
		projects, err := db.ListProjectsForUser(user)
		if err != nil {
			slog.Error("failed to list projects", "user", user, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list projects"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"projects": projects})
	}
}

func GetProject(db *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		project, ok := requireProjectAccess(c, db)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, project)
	}
}

func AddProjectUser(db *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireProjectAccess(c, db); !ok {
			return
		}
		var req datatypes.AddUserRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
			return
		}
		project, err := db.AddUser(c.Param("projectId"), req.UserID)
		if err != nil {
			slog.Error("failed to add user to project", "projectId", c.Param("projectId"), "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add user"})
			return
		}
		c.JSON(http.StatusOK, project)
	}
}

func DeleteProject(db *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireProjectAccess(c, db); !ok {
			return
		}
		projectID := c.Param("projectId")
		if err := db.DeleteProject(projectID); err != nil {
			slog.Error("failed to delete project", "projectId", projectID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete project"})
			return
		}
		slog.Info("deleted project", "projectId", projectID)
		c.JSON(http.StatusOK, gin.H{"status": "deleted", "projectId": projectID})
	}
}

// requireProjectAccess loads the project from the path parameter and checks
// that the authenticated principal is a member. Writes the error response
// itself when access is refused.
func requireProjectAccess(c *gin.Context, db *store.Store) (datatypes.Project, bool) {
	projectID := c.Param("projectId")
	project, err := db.GetProject(projectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
		} else {
			slog.Error("failed to load project", "projectId", projectID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load project"})
		}
		return datatypes.Project{}, false
	}
	if !project.HasUser(middleware.GetPrincipal(c)) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member of this project"})
		return datatypes.Project{}, false
	}
	return project, true
}
