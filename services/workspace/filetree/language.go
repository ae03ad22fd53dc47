// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package filetree

import (
	"path"
	"strings"
)

// DefaultLanguage is used when no extension mapping exists.
const DefaultLanguage = "text"

// languageByExtension maps a lowercase file extension (without the dot) to
// an editor display language.
var languageByExtension = map[string]string{
	"js":      "javascript",
	"jsx":     "javascript",
	"mjs":     "javascript",
	"cjs":     "javascript",
	"ts":      "typescript",
	"tsx":     "typescript",
	"json":    "json",
	"html":    "html",
	"htm":     "html",
	"css":     "css",
	"scss":    "scss",
	"less":    "less",
	"md":      "markdown",
	"go":      "go",
	"py":      "python",
	"rb":      "ruby",
	"rs":      "rust",
	"java":    "java",
	"c":       "c",
	"h":       "c",
	"cc":      "cpp",
	"cpp":     "cpp",
	"hpp":     "cpp",
	"cs":      "csharp",
	"php":     "php",
	"sh":      "shell",
	"bash":    "shell",
	"yml":     "yaml",
	"yaml":    "yaml",
	"toml":    "toml",
	"xml":     "xml",
	"sql":     "sql",
	"svg":     "xml",
	"vue":     "vue",
	"svelte":  "svelte",
	"graphql": "graphql",
	"proto":   "protobuf",
}

// DetectLanguage maps a path string to a display language via extension
// lookup. Unknown extensions map to DefaultLanguage. Pure function, no state.
func DetectLanguage(p string) string {
	base := strings.ToLower(path.Base(p))
	if base == "dockerfile" {
		return "dockerfile"
	}
	ext := strings.TrimPrefix(path.Ext(base), ".")
	if ext == "" {
		return DefaultLanguage
	}
	if lang, ok := languageByExtension[ext]; ok {
		return lang
	}
	return DefaultLanguage
}
