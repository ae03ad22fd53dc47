// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides data structures for the workspace service.
//
// This file contains chat and realtime event types. For the file-tree
// types consumed by the merge engine, see filetree.go.
package datatypes

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Constants for Input Limits
// =============================================================================

const (
	// MaxMessageBytes is the maximum size of a single chat message body.
	// Checks byte length (not rune count) to bound memory on large payloads.
	MaxMessageBytes = 256 * 1024 // 256KB

	// MaxPromptBytes is the maximum size of an AI prompt.
	MaxPromptBytes = 32 * 1024 // 32KB

	// AISender is the sentinel sender identity used for assistant messages.
	AISender = "AI"
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// chatValidate is the validator instance for chat datatypes.
// Initialized in init() with custom validators.
var chatValidate *validator.Validate

func init() {
	chatValidate = validator.New()
	_ = chatValidate.RegisterValidation("maxmsgbytes", validateMaxMessageBytes)
	_ = chatValidate.RegisterValidation("maxpromptbytes", validateMaxPromptBytes)
}

func validateMaxMessageBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxMessageBytes
}

func validateMaxPromptBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxPromptBytes
}

// =============================================================================
// Chat Types
// =============================================================================

// Direction reports whether a message entered or left the local session.
type Direction string

const (
	Incoming Direction = "incoming"
	Outgoing Direction = "outgoing"
)

// ChatMessage is one entry in a project session's append-only chat log.
//
// # Description
//
// The Body is either plain display text or a serialized structured envelope
// (see StructuredResponse). Messages are never mutated after insertion and
// are not persisted by this service; they live for the session only.
//
// # Fields
//
//   - ID: Optional message identifier supplied by the sender. When present
//     it becomes the dedupe key; otherwise a content-derived key is used.
//   - Sender: Principal identifier, or the sentinel AISender.
//   - Body: Plain text or serialized envelope.
//   - Direction: Incoming or Outgoing relative to the local session.
type ChatMessage struct {
	ID        string    `json:"id,omitempty"`
	Sender    string    `json:"sender" validate:"required"`
	Body      string    `json:"body" validate:"required,maxmsgbytes"`
	Direction Direction `json:"direction" validate:"required,oneof=incoming outgoing"`
}

// Validate checks the message against the wire contract.
func (m *ChatMessage) Validate() error {
	return chatValidate.Struct(m)
}

// DedupeKey derives the key used to suppress duplicate insertion from
// redundant delivery. An explicit message ID wins; otherwise the key is a
// digest over sender, direction, and body.
func (m *ChatMessage) DedupeKey() string {
	if m.ID != "" {
		return m.ID
	}
	h := sha256.New()
	h.Write([]byte(m.Sender))
	h.Write([]byte{0})
	h.Write([]byte(m.Direction))
	h.Write([]byte{0})
	h.Write([]byte(m.Body))
	return hex.EncodeToString(h.Sum(nil))
}

// =============================================================================
// Realtime Event Payload
// =============================================================================

// ProjectMessageEvent is the event name used on the realtime channel for
// chat/file traffic within a project room.
const ProjectMessageEvent = "project-message"

// ProjectMessage is the payload of a ProjectMessageEvent.
type ProjectMessage struct {
	Message   string `json:"message" validate:"required,maxmsgbytes"`
	Sender    string `json:"sender" validate:"required"`
	ProjectID string `json:"projectId" validate:"required"`
}

// Validate checks the event payload against the wire contract.
func (p *ProjectMessage) Validate() error {
	return chatValidate.Struct(p)
}

// =============================================================================
// AI Response Envelope
// =============================================================================

// CodeBlock carries the file-tree delta inside a structured AI response.
type CodeBlock struct {
	FileTree []FileTreeItem `json:"filetree"`
}

// StructuredResponse is the AI's JSON response shape: narrative text plus a
// file-tree delta and optional build commands.
//
// Required fields for a payload to be treated as structured: Text and
// Code.FileTree. Anything else is rendered as opaque display text.
type StructuredResponse struct {
	Text          string    `json:"text"`
	BuildCommands []string  `json:"buildcommands,omitempty"`
	Code          CodeBlock `json:"code"`
}

// =============================================================================
// AI Request
// =============================================================================

// AIRequest is the body of POST /v1/ai/result.
type AIRequest struct {
	Prompt string `json:"prompt" validate:"required,maxpromptbytes"`
}

// Validate checks the request against the wire contract.
func (r *AIRequest) Validate() error {
	return chatValidate.Struct(r)
}
