package packer

import (
	"fmt"
	"strings"

	"github.com/wolfeidau/pagedigest/internal/models"
)

// LengthConstrained renders a digest that fits a weighted length budget,
// summarising whatever does not fit as "+R more".
type LengthConstrained struct {
	// Budget is the weighted length limit per post. Default: MaxWeightedLength
	//
	// A post always carries its header and "+R more" trailer, so a Budget below
	// their combined weight is raised to that floor for the post being packed.
	Budget int

	// MaxPosts is how many posts a digest may span as a thread. Default: 1
	MaxPosts int
}

var _ Renderer = LengthConstrained{}

func (c LengthConstrained) budget() int {
	if c.Budget <= 0 {
		return MaxWeightedLength
	}
	return c.Budget
}

func (c LengthConstrained) maxPosts() int {
	if c.MaxPosts <= 0 {
		return 1
	}
	return c.MaxPosts
}

// Render packs records greedily in input order. With MaxPosts > 1 the records
// left over from one post are packed into the next, up to MaxPosts posts.
func (c LengthConstrained) Render(records []models.PageRecord) []Message {
	if len(records) == 0 {
		return []Message{{Text: EmptyMessage}}
	}

	var messages []Message
	rest := records
	for len(rest) > 0 && len(messages) < c.maxPosts() {
		text, committed := c.Pack(rest)
		messages = append(messages, Message{Text: text})
		if committed == 0 {
			break
		}
		rest = rest[committed:]
	}

	return messages
}

// Pack renders a single post and reports how many records it committed.
//
// Entries are appended while the message stays within budget. On the first
// entry that does not fit, the trailer "+R more" is appended, where R counts
// every record not committed. If the trailer itself does not fit, the most
// recently committed entry is removed and R recomputed until the trailer fits.
// With no entries left the post is header plus trailer, which fits because the
// budget is never below that floor.
func (c LengthConstrained) Pack(records []models.PageRecord) (string, int) {
	header := fmt.Sprintf("📝 Page updates (%d)\n\n", len(records))
	budget := max(c.budget(), WeightedLength(trimRight(header)+trailer(len(records))))

	entries := make([]string, 0, len(records))
	message := header

	for _, rec := range records {
		entry := constrainedEntry(rec)
		if WeightedLength(message+entry) <= budget {
			message += entry
			entries = append(entries, entry)
			continue
		}

		for {
			committed := len(entries)
			candidate := trimRight(header+strings.Join(entries, "")) + trailer(len(records)-committed)
			if WeightedLength(candidate) <= budget {
				return candidate, committed
			}
			entries = entries[:committed-1]
		}
	}

	return trimRight(message), len(records)
}

func trailer(remaining int) string {
	return fmt.Sprintf("\n\n+%d more", remaining)
}

func constrainedEntry(rec models.PageRecord) string {
	shown := rec.Authors
	if len(shown) > 2 {
		shown = shown[:2]
	}

	by := strings.Join(shown, ", ")
	if extra := len(rec.Authors) - len(shown); extra > 0 {
		by += fmt.Sprintf(" +%d more", extra)
	}

	return fmt.Sprintf("%s\nby %s\n%s\n\n", rec.Name, by, rec.Link)
}
