// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package aitext post-processes raw model output.
package aitext

import (
	"strings"
	"unicode/utf8"
)

// StripFences removes a surrounding markdown code fence (```html ... ```
// or ``` ... ```) and trims whitespace. Text outside the fence, such as a
// chatty preamble, is dropped with it. A response that already starts as
// an HTML document is returned as is, fences inside it included.
func StripFences(response string) string {
	response = strings.TrimSpace(response)

	start := strings.Index(response, "```")
	if start == -1 || startsAsDocument(response) {
		return response
	}
	if start > 0 && !strings.HasPrefix(response, "```") {
		// Only treat a fence after a preamble as the payload when it
		// closes too.
		if strings.Count(response[start:], "```") < 2 {
			return response
		}
	}
	body := response[start+3:]
	if nl := strings.IndexByte(body, '\n'); nl != -1 {
		body = body[nl+1:]
	} else {
		body = ""
	}
	if end := strings.LastIndex(body, "```"); end != -1 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

func startsAsDocument(s string) bool {
	head := strings.ToLower(s)
	return strings.HasPrefix(head, "<!doctype html") || strings.HasPrefix(head, "<html")
}

// IsHTMLDocument reports whether s looks like a complete HTML document:
// it starts with a doctype or <html> root and closes the root element.
func IsHTMLDocument(s string) bool {
	s = strings.TrimSpace(s)
	if !startsAsDocument(s) {
		return false
	}
	return strings.Contains(strings.ToLower(s), "</html>")
}

// ExtractJSON returns the outermost {...} object in s, after fence
// stripping. It returns "" when s holds no object.
func ExtractJSON(s string) string {
	s = StripFences(s)
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start == -1 || end < start {
		return ""
	}
	return s[start : end+1]
}

// Truncate shortens s to at most n runes, appending "..." when cut.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}
