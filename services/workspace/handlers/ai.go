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
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/devgrid/devgrid/services/llm"
	"github.com/devgrid/devgrid/services/workspace/datatypes"
	"github.com/devgrid/devgrid/services/workspace/observability"
	"github.com/devgrid/devgrid/services/workspace/realtime"
	"github.com/devgrid/devgrid/services/workspace/session"
	"github.com/devgrid/devgrid/services/workspace/store"
)

// HandleAIPrompt forwards a prompt to the model and feeds the answer back
// into the project as an AI chat message: it is broadcast to every room
// participant and run through the interpreter, so any file tree embedded in
// the response lands in the live session exactly as a peer message would.
func HandleAIPrompt(llmClient llm.Client, hub *realtime.Hub, sessions *session.Registry,
	db *store.Store) gin.HandlerFunc {

	return func(c *gin.Context) {
		if _, ok := requireProjectAccess(c, db); !ok {
			return
		}
		var req datatypes.AIRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		projectID := c.Param("projectId")
		slog.Info("forwarding prompt to model", "projectId", projectID, "bytes", len(req.Prompt))

		start := time.Now()
		answer, err := llmClient.Generate(c.Request.Context(), req.Prompt, llm.GenerationParams{})
		if m := observability.DefaultMetrics; m != nil {
			m.RecordAIRequest(err == nil, time.Since(start).Seconds())
		}
		if err != nil {
			slog.Error("model generation failed", "projectId", projectID, "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "model generation failed"})
			return
		}

		msg := datatypes.ProjectMessage{
			Message:   answer,
			Sender:    datatypes.AISender,
			ProjectID: projectID,
		}
		// Server-originated: everyone in the room sees it, and the session
		// interprets it directly rather than via the hub callback.
		hub.Broadcast(nil, msg)
		sessions.Dispatch(msg)

		c.JSON(http.StatusOK, gin.H{"message": msg})
	}
}
