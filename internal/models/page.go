package models

import (
	"net/url"
	"strings"
	"time"
)

// PageRecord is the retained state of one wiki page within a tenant.
// Its identity is (TenantID, ProjectName, Name).
type PageRecord struct {
	TenantID    string
	ProjectName string
	Name        string
	Link        string
	Authors     []string // duplicate-free, most recent writers first
	UpdatedAt   time.Time
}

// Update is one incoming page change, before it is merged into the store.
type Update struct {
	Name    string   `json:"name" yaml:"name"`
	Link    string   `json:"link" yaml:"link"`
	Authors []string `json:"authors" yaml:"authors"`
}

// MergeAuthors returns incoming followed by existing with duplicates removed.
// The first occurrence of each name wins; comparison is case-sensitive.
func MergeAuthors(incoming, existing []string) []string {
	merged := make([]string, 0, len(incoming)+len(existing))
	seen := make(map[string]struct{}, len(incoming)+len(existing))

	for _, list := range [][]string{incoming, existing} {
		for _, author := range list {
			if _, ok := seen[author]; ok {
				continue
			}
			seen[author] = struct{}{}
			merged = append(merged, author)
		}
	}

	return merged
}

// ProjectFromLink returns the first path segment of a page URL, which is the
// wiki project name, e.g. https://scrapbox.io/myproject/Page -> "myproject".
func ProjectFromLink(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}

	// The segment is kept in its escaped form so it matches the link.
	path := strings.TrimPrefix(u.EscapedPath(), "/")
	segment, _, _ := strings.Cut(path, "/")

	return segment
}
