// Package datastore is the record store for strains, ratings, submissions and
// producers. Every backend call runs on a single worker goroutine so that
// read-modify-write sequences such as rating aggregation never interleave.
package datastore

import (
	"github.com/tphakala/strainbot/internal/ident"
)

// Status is the moderation state of an item
type Status string

const (
	StatusPending  Status = "Pending"
	StatusApproved Status = "Approved"
)

// Item is one row of the Strains table
type Item struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Status        Status  `json:"status"`
	AverageRating float64 `json:"average_rating"`
	TotalRatings  int     `json:"total_ratings"`
	DateAdded     string  `json:"date_added"`
	HarvestDate   string  `json:"harvest_date"`
	PackageDate   string  `json:"package_date"`
	Category      string  `json:"category"`
	Producer      string  `json:"producer"`

	row int // sheet row, 1-based
}

// Approved reports whether the item can be rated
func (it Item) Approved() bool { return it.Status == StatusApproved }

// Rated reports whether the item has at least one rating
func (it Item) Rated() bool { return it.TotalRatings > 0 }

// Rating is one row of the Ratings table
type Rating struct {
	ID       int    `json:"id"`
	ItemID   string `json:"item_id"`
	UserID   int64  `json:"user_id"`
	Value    int    `json:"value"`
	RatedAt  string `json:"rated_at"`
	Username string `json:"username,omitempty"`
}

// DisplayName is the stored username or a synthesized label
func (r Rating) DisplayName() string { return ident.DisplayName(r.Username, r.UserID) }

// Submission is the input to Submit
type Submission struct {
	Name        string
	HarvestDate string // DD-MM-YYYY
	PackageDate string // DD-MM-YYYY
	Category    string
	Producer    string
	UserID      int64
	Username    string
}

// SubmissionRecord is one row of the Submissions audit log
type SubmissionRecord struct {
	ID          int    `json:"id"`
	ItemID      string `json:"item_id"`
	Name        string `json:"name"`
	UserID      int64  `json:"user_id"`
	HarvestDate string `json:"harvest_date"`
	PackageDate string `json:"package_date"`
	DateAdded   string `json:"date_added"`
	Category    string `json:"category"`
	Producer    string `json:"producer"`
	Username    string `json:"username,omitempty"`
}

// DisplayName is the stored username or a synthesized label
func (s SubmissionRecord) DisplayName() string { return ident.DisplayName(s.Username, s.UserID) }

// RatingInput is the input to Rate
type RatingInput struct {
	Identifier string // id or exact name
	UserID     int64
	Value      int
	Username   string
	Category   string // optional filter
}

// RatingView is a rating joined with the item it belongs to
type RatingView struct {
	Rating
	ItemName    string `json:"item_name"`
	Status      Status `json:"status"`
	HarvestDate string `json:"harvest_date"`
	PackageDate string `json:"package_date"`
	Category    string `json:"category"`
	Producer    string `json:"producer"`
	Display     string `json:"display_name"`
}

// Producer is one row of the Producers table
type Producer struct {
	Name      string `json:"name"`
	DateAdded string `json:"date_added"`
}
