package packer

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/pagedigest/internal/models"
)

func numberedRecords(n int) []models.PageRecord {
	records := make([]models.PageRecord, 0, n)
	for i := range n {
		records = append(records, testRecord(fmt.Sprintf("Page-%02d", i), "alice", "bob"))
	}
	return records
}

func committedEntries(text string) int {
	return strings.Count(text, "\nby ")
}

func TestLengthConstrained_Empty(t *testing.T) {
	messages := LengthConstrained{}.Render(nil)
	require.Equal(t, []Message{{Text: EmptyMessage}}, messages)
}

func TestLengthConstrained_FitsWithoutTrailer(t *testing.T) {
	records := []models.PageRecord{
		testRecord("Alpha", "alice", "bob", "carol"),
		testRecord("Beta"),
	}

	messages := LengthConstrained{}.Render(records)
	require.Len(t, messages, 1)
	require.Equal(t, "📝 Page updates (2)\n\n"+
		"Alpha\nby alice, bob +1 more\nhttps://scrapbox.io/proj/Alpha\n\n"+
		"Beta\nby \nhttps://scrapbox.io/proj/Beta", messages[0].Text)
	require.LessOrEqual(t, WeightedLength(messages[0].Text), MaxWeightedLength)
}

func TestLengthConstrained_AuthorSummary(t *testing.T) {
	entry := constrainedEntry(testRecord("Page", "a", "b", "c", "d"))
	require.Equal(t, "Page\nby a, b +2 more\nhttps://scrapbox.io/proj/Page\n\n", entry)

	entry = constrainedEntry(testRecord("Page", "a"))
	require.Equal(t, "Page\nby a\nhttps://scrapbox.io/proj/Page\n\n", entry)
}

func TestLengthConstrained_FiftyRecords(t *testing.T) {
	records := numberedRecords(50)

	text, committed := LengthConstrained{}.Pack(records)

	require.LessOrEqual(t, WeightedLength(text), MaxWeightedLength)
	require.Greater(t, committed, 0)
	require.Less(t, committed, 50)
	require.Equal(t, committed, committedEntries(text))
	require.True(t, strings.HasSuffix(text, fmt.Sprintf("\n\n+%d more", 50-committed)))

	for i, rec := range records {
		if i < committed {
			require.Contains(t, text, rec.Name+"\n")
		} else {
			require.NotContains(t, text, rec.Name+"\n")
		}
	}
}

func TestLengthConstrained_SplicesWhenTrailerDoesNotFit(t *testing.T) {
	records := []models.PageRecord{
		testRecord("First", "alice"),
		testRecord("Second", "bob"),
	}

	// Room for the first entry exactly, so the trailer cannot follow it.
	header := "📝 Page updates (2)\n\n"
	budget := WeightedLength(header + constrainedEntry(records[0]))

	text, committed := LengthConstrained{Budget: budget}.Pack(records)
	require.Zero(t, committed)
	require.Equal(t, "📝 Page updates (2)\n\n+2 more", text)
	require.LessOrEqual(t, WeightedLength(text), budget)
}

func TestLengthConstrained_KeepsEntryWhenTrailerFits(t *testing.T) {
	records := []models.PageRecord{
		testRecord("First", "alice"),
		testRecord("Second", "bob"),
	}

	header := "📝 Page updates (2)\n\n"
	budget := WeightedLength(trimRight(header+constrainedEntry(records[0])) + trailer(1))

	text, committed := LengthConstrained{Budget: budget}.Pack(records)
	require.Equal(t, 1, committed)
	require.True(t, strings.HasSuffix(text, "\n\n+1 more"))
	require.Equal(t, budget, WeightedLength(text))
}

func TestLengthConstrained_OversizedEntry(t *testing.T) {
	records := []models.PageRecord{
		testRecord(strings.Repeat("x", 400), "alice"),
	}

	text, committed := LengthConstrained{}.Pack(records)
	require.Zero(t, committed)
	require.Equal(t, "📝 Page updates (1)\n\n+1 more", text)
}

func TestLengthConstrained_NeverExceedsBudget(t *testing.T) {
	for n := 1; n <= 60; n += 7 {
		records := numberedRecords(n)
		for i := range records[:n/2] {
			records[i].Authors = append(records[i].Authors, "日本語の著者")
		}

		for _, msg := range (LengthConstrained{MaxPosts: 3}).Render(records) {
			require.LessOrEqual(t, WeightedLength(msg.Text), MaxWeightedLength, "n=%d", n)
		}
	}
}

func TestLengthConstrained_BudgetFloor(t *testing.T) {
	records := numberedRecords(3)
	floor := WeightedLength("📝 Page updates (3)\n\n+3 more")

	for _, budget := range []int{1, 10, floor} {
		text, committed := LengthConstrained{Budget: budget}.Pack(records)
		require.Zero(t, committed, "budget=%d", budget)
		require.Equal(t, "📝 Page updates (3)\n\n+3 more", text)
		require.LessOrEqual(t, WeightedLength(text), max(budget, floor))
	}
}

func TestLengthConstrained_Thread(t *testing.T) {
	records := numberedRecords(50)

	messages := LengthConstrained{MaxPosts: 3}.Render(records)
	require.Len(t, messages, 3)

	total := 0
	for _, msg := range messages {
		require.LessOrEqual(t, WeightedLength(msg.Text), MaxWeightedLength)
		total += committedEntries(msg.Text)
	}

	last := messages[len(messages)-1].Text
	require.True(t, strings.HasSuffix(last, fmt.Sprintf("+%d more", 50-total)))
}

func TestLengthConstrained_ThreadCoversEverything(t *testing.T) {
	records := numberedRecords(50)

	messages := LengthConstrained{MaxPosts: 50}.Render(records)

	total := 0
	for _, msg := range messages {
		total += committedEntries(msg.Text)
	}
	require.Equal(t, 50, total)
	require.Contains(t, messages[len(messages)-1].Text, "Page-49\n")
	require.NotContains(t, messages[len(messages)-1].Text, "+0 more")
}

func TestLengthConstrained_ThreadStopsWithoutProgress(t *testing.T) {
	records := []models.PageRecord{
		testRecord(strings.Repeat("x", 400), "alice"),
		testRecord("Small", "bob"),
	}

	messages := LengthConstrained{MaxPosts: 5}.Render(records)
	require.Len(t, messages, 1)
	require.Equal(t, "📝 Page updates (2)\n\n+2 more", messages[0].Text)
}
