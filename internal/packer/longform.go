package packer

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/wolfeidau/pagedigest/internal/models"
)

// DiscordMaxLength is the content limit of one Discord webhook message.
const DiscordMaxLength = 2000

// LongForm renders a full digest with one block per record. Text over
// MaxLength characters is split between record blocks.
type LongForm struct {
	// MaxLength caps each message in characters. Default: DiscordMaxLength
	MaxLength int
}

var _ Renderer = LongForm{}

func (l LongForm) maxLength() int {
	if l.MaxLength <= 0 {
		return DiscordMaxLength
	}
	return l.MaxLength
}

// Render returns EmptyMessage for no records, otherwise a header and every
// record block in input order.
func (l LongForm) Render(records []models.PageRecord) []Message {
	if len(records) == 0 {
		return []Message{{Text: EmptyMessage}}
	}

	header := fmt.Sprintf("📝 **Page updates** (%d)\n\n", len(records))

	blocks := make([]string, 0, len(records))
	for _, rec := range records {
		blocks = append(blocks, longFormBlock(rec))
	}

	full := header + strings.Join(blocks, "")
	limit := l.maxLength()
	if utf8.RuneCountInString(trimRight(full)) <= limit {
		return []Message{{Text: trimRight(full)}}
	}

	return splitBlocks(header, blocks, limit)
}

func longFormBlock(rec models.PageRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s**\n", rec.Name)
	fmt.Fprintf(&b, "📌 Project: %s\n", rec.ProjectName)
	fmt.Fprintf(&b, "👤 Authors: %s\n", strings.Join(rec.Authors, ", "))
	fmt.Fprintf(&b, "🔗 %s\n", rec.Link)
	fmt.Fprintf(&b, "🕒 %s\n\n", models.FormatTimestamp(rec.UpdatedAt))
	return b.String()
}

// splitBlocks packs blocks into messages of at most limit characters. The
// header opens the first message; a block that alone exceeds limit is cut on
// rune boundaries.
func splitBlocks(header string, blocks []string, limit int) []Message {
	var (
		messages []Message
		current  = header
	)

	flush := func() {
		if text := trimRight(current); text != "" {
			messages = append(messages, Message{Text: text})
		}
		current = ""
	}

	for _, block := range blocks {
		if utf8.RuneCountInString(trimRight(current+block)) <= limit {
			current += block
			continue
		}

		flush()

		if utf8.RuneCountInString(trimRight(block)) <= limit {
			current = block
			continue
		}

		for _, piece := range cutRunes(trimRight(block), limit) {
			messages = append(messages, Message{Text: piece})
		}
	}

	flush()

	return messages
}

func cutRunes(s string, limit int) []string {
	var pieces []string
	runes := []rune(s)
	for len(runes) > limit {
		pieces = append(pieces, string(runes[:limit]))
		runes = runes[limit:]
	}
	if len(runes) > 0 {
		pieces = append(pieces, string(runes))
	}
	return pieces
}
