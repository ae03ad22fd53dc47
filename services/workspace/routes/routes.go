// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/devgrid/devgrid/services/llm"
	"github.com/devgrid/devgrid/services/workspace/handlers"
	"github.com/devgrid/devgrid/services/workspace/middleware"
	"github.com/devgrid/devgrid/services/workspace/realtime"
	"github.com/devgrid/devgrid/services/workspace/sandbox"
	"github.com/devgrid/devgrid/services/workspace/session"
	"github.com/devgrid/devgrid/services/workspace/store"
)

func SetupRoutes(router *gin.Engine, db *store.Store, hub *realtime.Hub,
	sessions *session.Registry, llmClient llm.Client, verifier middleware.Verifier,
	runtime sandbox.Runtime) {

	router.GET("/health", handlers.HealthCheck)

	// The websocket handshake authenticates itself (query-param token), so
	// it sits outside the auth middleware group.
	router.GET("/v1/projects/:projectId/ws",
		handlers.HandleProjectWebSocket(hub, verifier, db, sessions, runtime))

	// API version 1 group
	v1 := router.Group("/v1")
	v1.Use(middleware.AuthMiddleware(verifier))
	{
		projects := v1.Group("/projects")
		{
			projects.POST("", handlers.CreateProject(db))
			projects.GET("", handlers.ListProjects(db))
			projects.GET("/:projectId", handlers.GetProject(db))
			projects.POST("/:projectId/users", handlers.AddProjectUser(db))
			projects.DELETE("/:projectId", handlers.DeleteProject(db))

			projects.GET("/:projectId/filetree", handlers.ListFileTree(db))
			projects.POST("/:projectId/filetree", handlers.CreateFileNode(db))
			projects.PUT("/:projectId/filetree/:nodeId", handlers.UpdateFileNode(db))
			projects.POST("/:projectId/filetree/:nodeId/move", handlers.MoveFileNode(db))
			projects.DELETE("/:projectId/filetree/:nodeId", handlers.DeleteFileNode(db))

			projects.POST("/:projectId/ai", handlers.HandleAIPrompt(llmClient, hub, sessions, db))

			// Live-session surface: editor, saves, preview, terminals.
			sess := projects.Group("/:projectId/session")
			{
				sess.POST("/files", handlers.EditSessionFile(sessions, db, runtime))
				sess.POST("/save", handlers.SaveSessionFile(sessions, db, runtime))
				sess.POST("/save-all", handlers.SaveAllSessionFiles(sessions, db, runtime))
				sess.GET("/preview", handlers.GetSessionPreview(sessions, db, runtime))
				sess.GET("/terminals", handlers.ListTerminals(sessions, db, runtime))
				sess.POST("/terminals", handlers.CreateTerminal(sessions, db, runtime))
				sess.POST("/terminals/:terminalId/run", handlers.RunTerminalCommand(sessions, db, runtime))
				sess.DELETE("/terminals/:terminalId", handlers.CloseTerminal(sessions, db, runtime))
			}
		}
	}
}
