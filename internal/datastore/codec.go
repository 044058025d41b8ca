package datastore

import (
	"math"
	"strconv"
	"strings"

	"github.com/tphakala/strainbot/internal/ident"
	"github.com/tphakala/strainbot/internal/logger"
)

// Table names
const (
	TableStrains     = "Strains"
	TableRatings     = "Ratings"
	TableSubmissions = "Submissions"
	TableProducers   = "Producers"
)

// Headers, in column order
var (
	StrainsHeader = []string{
		"Unique_ID", "Strain_Name", "Status", "Average_Rating", "Total_Ratings",
		"Date_Added", "Harvest_Date", "Package_Date", "Category", "Producer",
	}
	RatingsHeader = []string{
		"Rating_ID", "Unique_ID", "User_ID", "Rating", "Date_Rated", "Username",
	}
	SubmissionsHeader = []string{
		"Submission_ID", "Unique_ID", "Strain_Name", "User_ID",
		"Harvest_Date", "Package_Date", "Date_Added", "Category", "Producer", "Username",
	}
	ProducersHeader = []string{"Producer_Name", "Date_Added"}
)

// Strains columns, 1-based
const (
	colName    = 2
	colStatus  = 3
	colAverage = 4 // Average_Rating, followed by Total_Ratings
)

// DefaultProducers seeds an empty registry
var DefaultProducers = []string{
	"Hollandse Hoogtes",
	"Q-Farms",
	"Fyta",
	"Aardachtig",
	"Canadelaar",
	"Holigram",
}

// cell returns row[i] trimmed, or "" when the row is short
func cell(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return 0
	}
	return f
}

func parseInt(s string) int {
	return int(math.Round(parseFloat(s)))
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// roundRating rounds a mean to two decimals
func roundRating(mean float64) float64 {
	return math.Round(mean*100) / 100
}

// decodeItem maps a Strains row to an Item. Rows written before the Category
// and Producer columns existed decode with flower and Unknown.
func decodeItem(row []string, rowNum int) Item {
	it := Item{
		ID:            cell(row, 0),
		Name:          cell(row, 1),
		Status:        Status(cell(row, 2)),
		AverageRating: parseFloat(cell(row, 3)),
		TotalRatings:  parseInt(cell(row, 4)),
		DateAdded:     cell(row, 5),
		HarvestDate:   cell(row, 6),
		PackageDate:   cell(row, 7),
		Category:      strings.ToLower(cell(row, 8)),
		Producer:      cell(row, 9),
		row:           rowNum,
	}
	if it.Status == "" {
		it.Status = StatusPending
	}
	if it.Category == "" {
		it.Category = ident.CategoryFlower
	}
	if it.Producer == "" {
		it.Producer = ident.UnknownProducer
	}
	return it
}

func encodeItem(it Item) []string {
	return []string{
		it.ID,
		it.Name,
		string(it.Status),
		formatFloat(it.AverageRating),
		strconv.Itoa(it.TotalRatings),
		it.DateAdded,
		it.HarvestDate,
		it.PackageDate,
		it.Category,
		it.Producer,
	}
}

func decodeRating(row []string) Rating {
	rawUser := cell(row, 2)
	r := Rating{
		ID:       parseInt(cell(row, 0)),
		ItemID:   cell(row, 1),
		Value:    parseInt(cell(row, 3)),
		RatedAt:  cell(row, 4),
		Username: cell(row, 5),
	}
	if rawUser != "" {
		r.UserID = ident.DecodeUserID(rawUser)
	} else {
		getLogger().Warn("rating row without user id", logger.Int("rating_id", r.ID))
	}
	return r
}

func encodeRating(r Rating) []string {
	return []string{
		strconv.Itoa(r.ID),
		r.ItemID,
		ident.EncodeUserID(r.UserID),
		strconv.Itoa(r.Value),
		r.RatedAt,
		r.Username,
	}
}

func decodeSubmission(row []string) SubmissionRecord {
	s := SubmissionRecord{
		ID:          parseInt(cell(row, 0)),
		ItemID:      cell(row, 1),
		Name:        cell(row, 2),
		UserID:      ident.DecodeUserID(cell(row, 3)),
		HarvestDate: cell(row, 4),
		PackageDate: cell(row, 5),
		DateAdded:   cell(row, 6),
		Category:    strings.ToLower(cell(row, 7)),
		Producer:    cell(row, 8),
		Username:    cell(row, 9),
	}
	if s.Category == "" {
		s.Category = ident.CategoryFlower
	}
	if s.Producer == "" {
		s.Producer = ident.UnknownProducer
	}
	return s
}

func encodeSubmission(s SubmissionRecord) []string {
	return []string{
		strconv.Itoa(s.ID),
		s.ItemID,
		s.Name,
		ident.EncodeUserID(s.UserID),
		s.HarvestDate,
		s.PackageDate,
		s.DateAdded,
		s.Category,
		s.Producer,
		s.Username,
	}
}

// dataRows drops the header row
func dataRows(rows [][]string) [][]string {
	if len(rows) <= 1 {
		return nil
	}
	return rows[1:]
}

func decodeItems(rows [][]string) []Item {
	data := dataRows(rows)
	items := make([]Item, 0, len(data))
	for i, row := range data {
		if cell(row, 0) == "" && cell(row, 1) == "" {
			continue // blank row
		}
		items = append(items, decodeItem(row, i+2))
	}
	return items
}

func decodeRatings(rows [][]string) []Rating {
	data := dataRows(rows)
	ratings := make([]Rating, 0, len(data))
	for _, row := range data {
		if cell(row, 1) == "" {
			continue
		}
		ratings = append(ratings, decodeRating(row))
	}
	return ratings
}
