package status

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/tphakala/strainbot/internal/datastore"
	"github.com/tphakala/strainbot/internal/ident"
)

// Section keys, also used as the last topic segment when published
const (
	SectionRecentRatings     = "recent_ratings"
	SectionRecentSubmissions = "recent_submissions"
)

// TopSection returns the section key of a category leaderboard
func TopSection(category string) string { return "top_" + category }

var categoryNames = map[string]string{
	ident.CategoryFlower: "Flower",
	ident.CategoryHash:   "Hash",
	ident.CategoryRosin:  "Rosin",
}

var categoryEmojis = map[string]string{
	ident.CategoryFlower: "🌿",
	ident.CategoryHash:   "🍯",
	ident.CategoryRosin:  "🧈",
}

func categoryName(c string) string {
	if n, ok := categoryNames[c]; ok {
		return n
	}
	return "Product"
}

func categoryEmoji(c string) string {
	if e, ok := categoryEmojis[c]; ok {
		return e
	}
	return categoryEmojis[ident.CategoryFlower]
}

// Section is one rendered block of the status board
type Section struct {
	Key       string    `json:"key"`
	Title     string    `json:"title"`
	Entries   []string  `json:"entries"`
	Empty     string    `json:"empty,omitempty"`
	Footer    string    `json:"footer"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Text renders the section as plain text
func (s Section) Text() string {
	var b strings.Builder
	b.WriteString(s.Title)
	b.WriteString("\n\n")
	if len(s.Entries) == 0 {
		b.WriteString(s.Empty)
	} else {
		b.WriteString(strings.Join(s.Entries, "\n\n"))
	}
	b.WriteString("\n\n")
	b.WriteString(s.Footer)
	return b.String()
}

// stars returns one star per rating point, rounded half away from zero
func stars(v float64) string {
	n := int(math.Round(v))
	if n <= 0 {
		return ""
	}
	return strings.Repeat("⭐", n)
}

// datePart cuts a "YYYY-MM-DD hh:mm:ss" timestamp to its date
func datePart(ts string) string {
	if len(ts) >= 10 {
		return ts[:10]
	}
	if ts == "" {
		return "Unknown"
	}
	return ts
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

func renderTop(category string, items []datastore.Item, limit int, now time.Time) Section {
	entries := make([]string, 0, len(items))
	for i, it := range items {
		entries = append(entries, fmt.Sprintf("%d. %s - %.2f/10 %s\n     %s • %d ratings • %s\n     Harvest: %s • Package: %s",
			i+1, it.Name, it.AverageRating, stars(it.AverageRating),
			it.ID, it.TotalRatings, it.Producer,
			orNA(it.HarvestDate), orNA(it.PackageDate)))
	}
	return Section{
		Key:       TopSection(category),
		Title:     fmt.Sprintf("🏆 Top %d %s Products", limit, categoryName(category)),
		Entries:   entries,
		Empty:     fmt.Sprintf("No rated %s products yet. Be the first to rate!", category),
		Footer:    "Updates automatically when new ratings are added",
		UpdatedAt: now,
	}
}

func renderRatings(ratings []datastore.RatingView, limit int, now time.Time) Section {
	entries := make([]string, 0, len(ratings))
	for _, r := range ratings {
		entries = append(entries, fmt.Sprintf("%s %s - %d/10 %s\n     By: %s • %s • %s\n     Harvest: %s • Package: %s",
			categoryEmoji(r.Category), r.ItemName, r.Value, stars(float64(r.Value)),
			r.Display, datePart(r.RatedAt), r.Producer,
			orNA(r.HarvestDate), orNA(r.PackageDate)))
	}
	return Section{
		Key:       SectionRecentRatings,
		Title:     "⭐ Recent Ratings",
		Entries:   entries,
		Empty:     "No ratings yet. Rate a product to get started!",
		Footer:    fmt.Sprintf("Shows the last %d ratings • Updates automatically", limit),
		UpdatedAt: now,
	}
}

func renderSubmissions(subs []datastore.SubmissionRecord, limit int, now time.Time) Section {
	entries := make([]string, 0, len(subs))
	for _, s := range subs {
		entries = append(entries, fmt.Sprintf("%s %s\n     By: %s • %s • %s\n     ID: %s",
			categoryEmoji(s.Category), s.Name,
			s.DisplayName(), datePart(s.DateAdded), s.Producer,
			orNA(s.ItemID)))
	}
	return Section{
		Key:       SectionRecentSubmissions,
		Title:     "📋 Recent Submissions",
		Entries:   entries,
		Empty:     "No submissions yet. Submit a product to get started!",
		Footer:    fmt.Sprintf("Shows the last %d submissions • Updates automatically", limit),
		UpdatedAt: now,
	}
}
