// Package packer renders page records into channel messages. Renderers are
// pure: they do no I/O and never fail.
package packer

import (
	"strings"
	"unicode"

	"github.com/wolfeidau/pagedigest/internal/models"
)

// EmptyMessage is rendered when there are no records to report.
const EmptyMessage = "No pages were updated."

// Message is one outbound post.
type Message struct {
	Text string
}

// Renderer turns an ordered list of records into one or more messages.
type Renderer interface {
	Render(records []models.PageRecord) []Message
}

func trimRight(s string) string {
	return strings.TrimRightFunc(s, unicode.IsSpace)
}
