// Package paginate computes fixed-size page views over a search result
// list. It is pure: no I/O, no state, deterministic output.
package paginate

import (
	"fmt"
	"html"
	"strings"

	"codeberg.org/arekan/animeshot/internal/search"
)

// DefaultPageSize is the number of matches shown per page.
const DefaultPageSize = 3

// untitled is rendered for matches whose provider title is absent.
const untitled = "Untitled"

// Attachment is one thumbnail to send alongside the page text.
type Attachment struct {
	Thumbnail string
	Caption   string
}

// PageView is the fully computed rendering of one result page. It is
// derived fresh on every request and never cached.
type PageView struct {
	Page        int
	TotalPages  int
	Body        string
	Attachments []Attachment
}

// ComputePage renders the requested page of matches. Out-of-range page
// numbers clamp to the nearest valid page; totalPages is never below 1.
// Matches without a thumbnail contribute a text line but no attachment.
func ComputePage(matches []search.Match, page, pageSize int) PageView {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}

	totalPages := (len(matches) + pageSize - 1) / pageSize
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	if end > len(matches) {
		end = len(matches)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🔍 Search results (page %d/%d):\n\n", page, totalPages)

	view := PageView{Page: page, TotalPages: totalPages}
	for i, m := range matches[start:end] {
		// Global 1-based index, continuous across pages.
		index := start + i + 1

		original := strings.TrimSpace(m.Title)
		clean := m.CleanTitle()
		if original == "" {
			original = untitled
			clean = untitled
		}

		fmt.Fprintf(&b, "<b>Result #%d</b>\n", index)
		fmt.Fprintf(&b, "Original: <code>%s</code>\n", html.EscapeString(original))
		fmt.Fprintf(&b, "Clean: <code>%s</code>\n", html.EscapeString(clean))
		fmt.Fprintf(&b, "🔗 <a href=\"%s\">Source</a>\n\n", m.URL)

		if m.Thumbnail != "" {
			view.Attachments = append(view.Attachments, Attachment{
				Thumbnail: m.Thumbnail,
				Caption:   fmt.Sprintf("Result #%d | Page %d/%d", index, page, totalPages),
			})
		}
	}

	b.WriteString("\n<blockquote><b>Tap a title to copy it.\nUse /anime to look up a title.</b></blockquote>")
	view.Body = b.String()
	return view
}
