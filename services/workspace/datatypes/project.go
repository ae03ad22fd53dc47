// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import "time"

// Project is a collaborative workspace shared by one or more users.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name" validate:"required"`
	Users     []string  `json:"users"`
	CreatedAt time.Time `json:"createdAt"`
}

// HasUser reports whether the principal is a member of the project.
func (p *Project) HasUser(userID string) bool {
	for _, u := range p.Users {
		if u == userID {
			return true
		}
	}
	return false
}

// FileNode is the durable form of a project file.
//
// Nodes are keyed by an opaque ID assigned at creation time; the (ProjectID,
// Path) pair is unique, and creates against an existing path update the
// existing node instead of inserting a second one.
type FileNode struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	Path      string    `json:"path"`
	Type      NodeType  `json:"type"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreateProjectRequest is the body of POST /v1/projects.
type CreateProjectRequest struct {
	Name string `json:"name" validate:"required"`
}

// AddUserRequest is the body of PUT /v1/projects/:projectId/users.
type AddUserRequest struct {
	UserID string `json:"userId" validate:"required"`
}

// CreateNodeRequest is the body of POST /v1/projects/:projectId/filetree.
type CreateNodeRequest struct {
	Path    string   `json:"path" validate:"required"`
	Type    NodeType `json:"type" validate:"required,oneof=file directory"`
	Content string   `json:"content"`
}

// UpdateNodeRequest is the body of PUT /v1/projects/:projectId/filetree/:nodeId.
type UpdateNodeRequest struct {
	Content string `json:"content"`
}

// MoveNodeRequest is the body of POST /v1/projects/:projectId/filetree/:nodeId/move.
type MoveNodeRequest struct {
	NewPath string `json:"newPath" validate:"required"`
}

// EditFileRequest is the body of POST /v1/projects/:projectId/session/files.
type EditFileRequest struct {
	Path    string `json:"path" validate:"required"`
	Content string `json:"content"`
}

// SaveFileRequest is the body of POST /v1/projects/:projectId/session/save.
type SaveFileRequest struct {
	Path string `json:"path" validate:"required"`
}

// CreateTerminalRequest is the body of POST
// /v1/projects/:projectId/session/terminals. Name is optional; an empty one
// gets a generated name.
type CreateTerminalRequest struct {
	Name string `json:"name"`
}

// RunCommandRequest is the body of POST
// /v1/projects/:projectId/session/terminals/:terminalId/run.
type RunCommandRequest struct {
	Command string `json:"command" validate:"required"`
}

// Validate checks the request against the wire contract.
func (r *CreateProjectRequest) Validate() error { return chatValidate.Struct(r) }

// Validate checks the request against the wire contract.
func (r *AddUserRequest) Validate() error { return chatValidate.Struct(r) }

// Validate checks the request against the wire contract.
func (r *CreateNodeRequest) Validate() error { return chatValidate.Struct(r) }

// Validate checks the request against the wire contract.
func (r *MoveNodeRequest) Validate() error { return chatValidate.Struct(r) }

// Validate checks the request against the wire contract.
func (r *EditFileRequest) Validate() error { return chatValidate.Struct(r) }

// Validate checks the request against the wire contract.
func (r *SaveFileRequest) Validate() error { return chatValidate.Struct(r) }

// Validate checks the request against the wire contract.
func (r *RunCommandRequest) Validate() error { return chatValidate.Struct(r) }
