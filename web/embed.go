// Package web holds the page templates and static assets of the server.
package web

import "embed"

// TemplatesFS holds the page and ledger fragment templates.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds the stylesheet and scripts.
//
//go:embed static/*
var StaticFS embed.FS
