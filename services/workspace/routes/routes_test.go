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
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devgrid/devgrid/services/workspace/middleware"
	"github.com/devgrid/devgrid/services/workspace/realtime"
	"github.com/devgrid/devgrid/services/workspace/sandbox"
	"github.com/devgrid/devgrid/services/workspace/session"
	"github.com/devgrid/devgrid/services/workspace/store"
)

const routeTestSecret = "route-test-secret"

func newTestRouter(t *testing.T) (*gin.Engine, *store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := store.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	router := gin.New()
	SetupRoutes(router, db, realtime.NewHub(nil), session.NewRegistry(), nil,
		middleware.NewJWTVerifier(routeTestSecret), sandbox.NewLocalRuntime(t.TempDir()))
	return router, db
}

func bearerFor(t *testing.T, principal string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": principal,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(routeTestSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func TestRoutes_HealthIsPublic(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRoutes_APIRequiresAuth(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/projects", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRoutes_APIAcceptsBearerToken(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/projects",
		strings.NewReader(`{"name":"demo"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearerFor(t, "alice"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "demo")
}

func TestRoutes_SessionSurfaceRequiresAuth(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/projects/p1/session/terminals", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRoutes_WebSocketAuthenticatesItself(t *testing.T) {
	router, _ := newTestRouter(t)

	// No token: the handshake is rejected before any upgrade.
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/projects/p1/ws", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
