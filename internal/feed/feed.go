// Package feed filters and orders already-fetched posts for the explore page.
// Everything here is pure: inputs are never modified.
package feed

import (
	"slices"
	"strings"
	"time"

	"github.com/modernplatform/modern-platform/internal/models"
)

// DateWindow restricts posts to a trailing window ending now.
type DateWindow string

const (
	AnyTime   DateWindow = ""
	Today     DateWindow = "today"
	PastWeek  DateWindow = "week"
	PastMonth DateWindow = "month"
	PastYear  DateWindow = "year"
)

// SortOrder orders posts by creation time.
type SortOrder string

const (
	Recent SortOrder = "recent"
	Oldest SortOrder = "oldest"
)

// Query is the explore page's filter state.
type Query struct {
	Search string
	Date   DateWindow
	Sort   SortOrder
}

// ParseDate maps a query string value to a window; unknown values mean AnyTime.
func ParseDate(s string) DateWindow {
	switch w := DateWindow(strings.ToLower(strings.TrimSpace(s))); w {
	case Today, PastWeek, PastMonth, PastYear:
		return w
	}
	return AnyTime
}

// ParseSort maps a query string value to an order; empty means Recent and
// unknown values are kept so Apply leaves the order untouched.
func ParseSort(s string) SortOrder {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Recent
	}
	return SortOrder(s)
}

// Apply runs search, then the date window, then sorting.
func Apply(posts []models.PostWithAuthor, q Query, now time.Time) []models.PostWithAuthor {
	out := make([]models.PostWithAuthor, 0, len(posts))
	term := strings.ToLower(q.Search)
	for _, p := range posts {
		if term != "" && !matches(p, term) {
			continue
		}
		if !within(p.CreatedAt, q.Date, now) {
			continue
		}
		out = append(out, p)
	}
	switch q.Sort {
	case Recent:
		slices.SortStableFunc(out, func(a, b models.PostWithAuthor) int { return b.CreatedAt.Compare(a.CreatedAt) })
	case Oldest:
		slices.SortStableFunc(out, func(a, b models.PostWithAuthor) int { return a.CreatedAt.Compare(b.CreatedAt) })
	}
	return out
}

func matches(p models.PostWithAuthor, term string) bool {
	return strings.Contains(strings.ToLower(p.Title), term) ||
		strings.Contains(strings.ToLower(p.Content), term)
}

// within compares Today by calendar date in now's location; the other
// windows have an inclusive lower bound.
func within(created time.Time, w DateWindow, now time.Time) bool {
	switch w {
	case Today:
		cy, cm, cd := created.In(now.Location()).Date()
		ny, nm, nd := now.Date()
		return cy == ny && cm == nm && cd == nd
	case PastWeek:
		return !created.Before(now.AddDate(0, 0, -7))
	case PastMonth:
		return !created.Before(now.AddDate(0, -1, 0))
	case PastYear:
		return !created.Before(now.AddDate(-1, 0, 0))
	default:
		return true
	}
}
