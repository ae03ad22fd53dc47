// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devgrid/devgrid/services/workspace/datatypes"
)

const structuredPayload = `{
	"text": "Here is the app skeleton.",
	"buildcommands": ["npm install", "npm start"],
	"code": {
		"filetree": [
			{"path": "src/index.js", "type": "file", "content": "console.log(1)"},
			{"path": "src", "type": "directory"},
			{"path": "app.py", "type": "file", "content": "print(1)", "language": "python3"}
		]
	}
}`

// TestInterpret_StructuredEnvelope verifies a well-formed envelope yields
// text, files, and build commands.
func TestInterpret_StructuredEnvelope(t *testing.T) {
	res := Interpret(structuredPayload)

	require.Equal(t, Structured, res.Kind)
	assert.Equal(t, "Here is the app skeleton.", res.Text)
	assert.Equal(t, []string{"npm install", "npm start"}, res.BuildCommands)
	require.Len(t, res.Files, 3)

	// Missing language derives from the extension; explicit wins.
	assert.Equal(t, "javascript", res.Files[0].Language)
	assert.Equal(t, "python3", res.Files[2].Language)
	assert.Equal(t, datatypes.NodeDirectory, res.Files[1].Type)
}

// TestInterpret_PlainText verifies non-JSON payloads pass through.
func TestInterpret_PlainText(t *testing.T) {
	res := Interpret("Sure, I can help with that.")
	assert.Equal(t, Plain, res.Kind)
	assert.Equal(t, "Sure, I can help with that.", res.Text)
	assert.Empty(t, res.Files)
}

// TestInterpret_MalformedJSON verifies broken JSON degrades to plain text,
// never to an error.
func TestInterpret_MalformedJSON(t *testing.T) {
	raw := `{"text": "broken", "code": {`
	res := Interpret(raw)
	assert.Equal(t, Plain, res.Kind)
	assert.Equal(t, raw, res.Text)
}

// TestInterpret_MissingEnvelopeFields verifies JSON without the required
// envelope shape is plain text.
func TestInterpret_MissingEnvelopeFields(t *testing.T) {
	cases := []string{
		`{"message": "wrong shape"}`,
		`{"text": "no code block"}`,
		`{"text": "", "code": {"filetree": []}}`,
		`{"code": {"filetree": [{"path": "a", "type": "file"}]}}`,
	}
	for _, raw := range cases {
		res := Interpret(raw)
		assert.Equal(t, Plain, res.Kind, "payload %s", raw)
		assert.Equal(t, raw, res.Text)
	}
}

// TestInterpret_EmptyFileTreeIsStructured verifies an empty (but present)
// filetree still counts as structured.
func TestInterpret_EmptyFileTreeIsStructured(t *testing.T) {
	res := Interpret(`{"text": "nothing to change", "code": {"filetree": []}}`)
	assert.Equal(t, Structured, res.Kind)
	assert.Empty(t, res.Files)
}

// TestInterpret_MalformedEntryDegradesWhole verifies one invalid filetree
// entry drops the entire payload to plain text.
func TestInterpret_MalformedEntryDegradesWhole(t *testing.T) {
	raw := `{"text": "x", "code": {"filetree": [
		{"path": "good.js", "type": "file", "content": "a"},
		{"path": "", "type": "file"}
	]}}`
	res := Interpret(raw)
	assert.Equal(t, Plain, res.Kind)
	assert.Equal(t, raw, res.Text)
}

// TestInterpret_LeadingWhitespace verifies the JSON sniff tolerates
// surrounding whitespace.
func TestInterpret_LeadingWhitespace(t *testing.T) {
	res := Interpret("\n  \t" + `{"text": "t", "code": {"filetree": []}}` + "\n")
	assert.Equal(t, Structured, res.Kind)
}

// TestInterpreter_ProcessOnce verifies redelivered messages are never
// interpreted twice.
func TestInterpreter_ProcessOnce(t *testing.T) {
	interp := NewInterpreter()
	msg := datatypes.ChatMessage{
		Sender:    datatypes.AISender,
		Body:      structuredPayload,
		Direction: datatypes.Incoming,
	}

	res, first := interp.Process(msg)
	require.True(t, first)
	assert.Equal(t, Structured, res.Kind)

	_, again := interp.Process(msg)
	assert.False(t, again)
}

// TestInterpreter_DistinctMessages verifies different bodies from the same
// sender each process.
func TestInterpreter_DistinctMessages(t *testing.T) {
	interp := NewInterpreter()
	a := datatypes.ChatMessage{Sender: "u", Body: "one", Direction: datatypes.Incoming}
	b := datatypes.ChatMessage{Sender: "u", Body: "two", Direction: datatypes.Incoming}

	_, okA := interp.Process(a)
	_, okB := interp.Process(b)
	assert.True(t, okA)
	assert.True(t, okB)
}

// TestInterpreter_ExplicitIDWins verifies the explicit message ID is the
// dedupe key even when bodies differ.
func TestInterpreter_ExplicitIDWins(t *testing.T) {
	interp := NewInterpreter()
	a := datatypes.ChatMessage{ID: "m-1", Sender: "u", Body: "one", Direction: datatypes.Incoming}
	b := datatypes.ChatMessage{ID: "m-1", Sender: "u", Body: "edited", Direction: datatypes.Incoming}

	_, okA := interp.Process(a)
	_, okB := interp.Process(b)
	assert.True(t, okA)
	assert.False(t, okB)
}
