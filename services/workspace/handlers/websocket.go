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

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/devgrid/devgrid/services/workspace/middleware"
	"github.com/devgrid/devgrid/services/workspace/realtime"
	"github.com/devgrid/devgrid/services/workspace/sandbox"
	"github.com/devgrid/devgrid/services/workspace/session"
	"github.com/devgrid/devgrid/services/workspace/store"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// HandleProjectWebSocket upgrades a connection into a project room.
//
// Authentication happens before the upgrade: browsers cannot set headers on
// WebSocket handshakes, so the token rides in the ?token query parameter
// (an Authorization header is also accepted). A bad token or a project the
// principal does not belong to is refused with a plain HTTP status; the
// socket is never opened for an unauthenticated peer.
//
// The first join for a project opens its live session, so room traffic
// flows through the interpreter and the merge engine from the first
// message onward.
func HandleProjectWebSocket(hub *realtime.Hub, verifier middleware.Verifier, db *store.Store,
	sessions *session.Registry, rt sandbox.Runtime) gin.HandlerFunc {

	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			token = middleware.ExtractBearerToken(c)
		}
		principal, err := verifier.Verify(token)
		if err != nil {
			slog.Warn("rejected websocket handshake", "error", err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing token"})
			return
		}
		middleware.SetPrincipal(c, principal)

		project, ok := requireProjectAccess(c, db)
		if !ok {
			return
		}

		if _, ok := ensureSession(c, sessions, db, rt, project.ID); !ok {
			return
		}

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("failed to upgrade the websocket", "error", err)
			return
		}
		slog.Info("websocket client connected", "projectId", project.ID, "principal", principal)

		realtime.NewClient(hub, ws, project.ID, principal).Serve()
	}
}
