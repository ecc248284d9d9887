package feed

import (
	"testing"
	"time"

	"github.com/modernplatform/modern-platform/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func post(id, title, content string, created time.Time) models.PostWithAuthor {
	return models.PostWithAuthor{Post: models.Post{ID: id, Title: title, Content: content, CreatedAt: created}}
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func ids(posts []models.PostWithAuthor) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.ID
	}
	return out
}

func TestSearchScenario(t *testing.T) {
	posts := []models.PostWithAuthor{
		post("1", "New Design", "", day("2024-01-10")),
		post("2", "Cooking", "", day("2024-01-11")),
	}
	got := Apply(posts, Query{Search: "design", Sort: Recent}, day("2024-02-01"))
	require.Len(t, got, 1)
	assert.Equal(t, "New Design", got[0].Title)
}

func TestSearchMatchesTitleOrContentCaseInsensitive(t *testing.T) {
	now := day("2024-03-01")
	posts := []models.PostWithAuthor{
		post("a", "Go tips", "", now),
		post("b", "misc", "all about GOLANG", now),
		post("c", "Rust", "ownership", now),
	}
	got := Apply(posts, Query{Search: "go"}, now)
	assert.Equal(t, []string{"a", "b"}, ids(got))
}

func TestDateWindows(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	posts := []models.PostWithAuthor{
		post("today-early", "", "", time.Date(2024, 3, 15, 0, 5, 0, 0, time.UTC)),
		post("yesterday", "", "", time.Date(2024, 3, 14, 23, 0, 0, 0, time.UTC)),
		post("week-edge", "", "", now.AddDate(0, 0, -7)),
		post("eight-days", "", "", now.AddDate(0, 0, -8)),
		post("month-edge", "", "", now.AddDate(0, -1, 0)),
		post("two-months", "", "", now.AddDate(0, -2, 0)),
		post("year-edge", "", "", now.AddDate(-1, 0, 0)),
		post("ancient", "", "", now.AddDate(-3, 0, 0)),
	}

	assert.Equal(t, []string{"today-early"}, ids(Apply(posts, Query{Date: Today}, now)))
	assert.Equal(t, []string{"today-early", "yesterday", "week-edge"}, ids(Apply(posts, Query{Date: PastWeek}, now)))
	assert.Equal(t, []string{"today-early", "yesterday", "week-edge", "eight-days", "month-edge"}, ids(Apply(posts, Query{Date: PastMonth}, now)))
	assert.Len(t, Apply(posts, Query{Date: PastYear}, now), 7)
	assert.Len(t, Apply(posts, Query{Date: ParseDate("fortnight")}, now), 8)
}

func TestTodayUsesCalendarDateInNowsLocation(t *testing.T) {
	loc := time.FixedZone("UTC+4", 4*3600)
	now := time.Date(2024, 3, 15, 1, 0, 0, 0, loc) // 2024-03-14 21:00 UTC
	posts := []models.PostWithAuthor{
		post("same-local-day", "", "", time.Date(2024, 3, 14, 20, 30, 0, 0, time.UTC)),
		post("previous-local-day", "", "", time.Date(2024, 3, 14, 19, 0, 0, 0, time.UTC)),
	}
	assert.Equal(t, []string{"same-local-day"}, ids(Apply(posts, Query{Date: Today}, now)))
}

func TestSortOrders(t *testing.T) {
	now := day("2024-05-01")
	posts := []models.PostWithAuthor{
		post("mid", "", "", day("2024-02-01")),
		post("new", "", "", day("2024-03-01")),
		post("old", "", "", day("2024-01-01")),
		post("mid2", "", "", day("2024-02-01")),
	}
	assert.Equal(t, []string{"new", "mid", "mid2", "old"}, ids(Apply(posts, Query{Sort: Recent}, now)))
	assert.Equal(t, []string{"old", "mid", "mid2", "new"}, ids(Apply(posts, Query{Sort: Oldest}, now)))
	assert.Equal(t, []string{"mid", "new", "old", "mid2"}, ids(Apply(posts, Query{Sort: "random"}, now)))
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	now := day("2024-05-01")
	posts := []models.PostWithAuthor{
		post("old", "", "", day("2024-01-01")),
		post("new", "", "", day("2024-03-01")),
	}
	_ = Apply(posts, Query{Sort: Recent}, now)
	assert.Equal(t, []string{"old", "new"}, ids(posts))
}

func TestParse(t *testing.T) {
	assert.Equal(t, PastWeek, ParseDate(" Week "))
	assert.Equal(t, AnyTime, ParseDate(""))
	assert.Equal(t, Recent, ParseSort(""))
	assert.Equal(t, Oldest, ParseSort("OLDEST"))
}
