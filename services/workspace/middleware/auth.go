// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides HTTP middleware for the workspace service.
//
// # Authentication Flow
//
// The auth middleware extracts a bearer token from the Authorization
// header, validates it with the Verifier, and stores the resulting
// principal in the Gin context for downstream handlers:
//
//	Request
//	   │
//	   ▼
//	AuthMiddleware
//	   │
//	   ├─► Extract token from "Authorization: Bearer <token>"
//	   │
//	   ├─► verifier.Verify(token)
//	   │
//	   └─► Store principal in context
//	           │
//	           ▼
//	       Handler (retrieves via GetPrincipal)
//
// Token issuance and session invalidation live outside this service; the
// verifier only checks the opaque capability "verify(token) → principal".
package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthorized is returned for missing, malformed, or expired tokens.
var ErrUnauthorized = errors.New("middleware: unauthorized")

// principalKey is the context key for the authenticated principal.
// Using a namespaced key prevents collisions with other context values.
const principalKey = "devgrid_principal"

// Verifier checks bearer tokens and extracts the principal identity.
type Verifier interface {
	Verify(token string) (string, error)
}

// JWTVerifier validates HMAC-signed JWTs against a shared secret. The
// principal is the token's subject claim, falling back to an "email" claim
// for tokens minted by older issuers.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier creates a verifier over the shared signing secret.
func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

// Verify implements Verifier.
func (v *JWTVerifier) Verify(token string) (string, error) {
	if token == "" {
		return "", ErrUnauthorized
	}
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", ErrUnauthorized
	}
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		return sub, nil
	}
	if email, ok := claims["email"].(string); ok && email != "" {
		return email, nil
	}
	return "", ErrUnauthorized
}

// SetPrincipal stores the authenticated principal in the Gin context.
func SetPrincipal(c *gin.Context, principal string) {
	c.Set(principalKey, principal)
}

// GetPrincipal retrieves the authenticated principal, or empty string when
// the request is not authenticated.
func GetPrincipal(c *gin.Context) string {
	if v, exists := c.Get(principalKey); exists {
		if p, ok := v.(string); ok {
			return p
		}
	}
	return ""
}

// AuthMiddleware authenticates requests with the given verifier. Requests
// without a valid bearer token are rejected with 401 before reaching the
// handler.
func AuthMiddleware(verifier Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractBearerToken(c)
		principal, err := verifier.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "unauthorized",
			})
			return
		}
		SetPrincipal(c, principal)
		c.Next()
	}
}

// ExtractBearerToken parses the Authorization header expecting the format
// "Bearer <token>". Returns empty string if the header is missing or
// malformed. The "Bearer" prefix is case-insensitive per RFC 7235.
func ExtractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
