package datastore

import (
	"cmp"
	"context"
	"slices"
	"strconv"
	"strings"

	"github.com/tphakala/strainbot/internal/ident"
	"github.com/tphakala/strainbot/internal/logger"
)

// DefaultItemRatingsLimit is used by ItemRatings when limit <= 0
const DefaultItemRatingsLimit = 5

// Rate records a rating for an approved item, found by exact id or exact
// name, and writes the new average and total back to the item. Ratings use
// the row count as id, which holds as long as rating rows are never deleted.
func (s *Store) Rate(ctx context.Context, in RatingInput) (Item, error) {
	if !ident.ValidRating(in.Value) {
		return Item{}, invalidInput("rating", strconv.Itoa(in.Value))
	}
	identifier := strings.TrimSpace(in.Identifier)
	username := ident.SanitizeUsername(in.Username)

	var rated Item
	err := s.do(ctx, "rate", func(ctx context.Context) error {
		items, err := s.readItems(ctx)
		if err != nil {
			return err
		}
		it, ok := resolveExact(filterCategory(items, in.Category), identifier)
		if !ok {
			return notFound("item", identifier)
		}
		if !it.Approved() {
			return conflict(ErrNotApproved, it.ID)
		}

		ratingRows, err := s.readRows(ctx, TableRatings)
		if err != nil {
			return err
		}
		var values []int
		for _, row := range dataRows(ratingRows) {
			if cell(row, 1) != it.ID {
				continue
			}
			if ident.SameUserID(cell(row, 2), in.UserID) {
				return conflict(ErrAlreadyRated, it.ID)
			}
			values = append(values, parseInt(cell(row, 3)))
		}

		rating := Rating{
			ID:       len(dataRows(ratingRows)) + 1,
			ItemID:   it.ID,
			UserID:   in.UserID,
			Value:    in.Value,
			RatedAt:  s.now().Format(ident.TimestampLayout),
			Username: username,
		}
		if err := s.appendRow(ctx, TableRatings, encodeRating(rating)); err != nil {
			return err
		}

		values = append(values, in.Value)
		sum := 0
		for _, v := range values {
			sum += v
		}
		it.TotalRatings = len(values)
		it.AverageRating = roundRating(float64(sum) / float64(len(values)))

		if err := s.updateCells(ctx, TableStrains, it.row, colAverage, []string{
			formatFloat(it.AverageRating),
			formatFloat(float64(it.TotalRatings)),
		}); err != nil {
			return err
		}
		rated = it
		return nil
	})
	if err != nil {
		return Item{}, err
	}

	s.invalidate()
	getLogger().Info("item rated",
		logger.String("id", rated.ID),
		logger.Int64("user_id", in.UserID),
		logger.Int("value", in.Value),
		logger.Float64("average", rated.AverageRating),
		logger.Int("total", rated.TotalRatings))
	return rated, nil
}

// byNewest orders ratings by descending timestamp; equal timestamps keep
// table order
func byNewest(ratings []Rating) {
	slices.SortStableFunc(ratings, func(a, b Rating) int { return cmp.Compare(b.RatedAt, a.RatedAt) })
}

func truncate[T any](s []T, limit int) []T {
	if limit >= 0 && len(s) > limit {
		return s[:limit]
	}
	return s
}

func joinRatings(ratings []Rating, items []Item, approvedOnly bool) []RatingView {
	lookup := make(map[string]Item, len(items))
	for _, it := range items {
		lookup[it.ID] = it
	}
	views := make([]RatingView, 0, len(ratings))
	for _, r := range ratings {
		it, ok := lookup[r.ItemID]
		if approvedOnly && (!ok || !it.Approved()) {
			continue
		}
		v := RatingView{
			Rating:      r,
			ItemName:    "Unknown",
			HarvestDate: "N/A",
			PackageDate: "N/A",
			Category:    ident.CategoryFlower,
			Producer:    ident.UnknownProducer,
			Display:     r.DisplayName(),
		}
		if ok {
			v.ItemName = it.Name
			v.Status = it.Status
			v.HarvestDate = it.HarvestDate
			v.PackageDate = it.PackageDate
			v.Category = it.Category
			v.Producer = it.Producer
		}
		views = append(views, v)
	}
	return views
}

func (s *Store) ratingViews(ctx context.Context, name string, limit int, approvedOnly bool) ([]RatingView, error) {
	var out []RatingView
	err := s.do(ctx, name, func(ctx context.Context) error {
		rows, err := s.readRows(ctx, TableRatings)
		if err != nil {
			return err
		}
		items, err := s.readItems(ctx)
		if err != nil {
			return err
		}
		ratings := decodeRatings(rows)
		byNewest(ratings)
		out = truncate(joinRatings(ratings, items, approvedOnly), limit)
		return nil
	})
	return out, err
}

// RecentRatings returns the newest ratings of approved items. Filtering
// happens before truncation so the feed is always full when enough ratings
// exist.
func (s *Store) RecentRatings(ctx context.Context, limit int) ([]RatingView, error) {
	return s.ratingViews(ctx, "recent_ratings", limit, true)
}

// LastRatings returns the newest ratings regardless of item status
func (s *Store) LastRatings(ctx context.Context, limit int) ([]RatingView, error) {
	return s.ratingViews(ctx, "last_ratings", limit, false)
}

// LastSubmissions returns the newest submission log rows
func (s *Store) LastSubmissions(ctx context.Context, limit int) ([]SubmissionRecord, error) {
	var out []SubmissionRecord
	err := s.do(ctx, "last_submissions", func(ctx context.Context) error {
		rows, err := s.readRows(ctx, TableSubmissions)
		if err != nil {
			return err
		}
		data := dataRows(rows)
		records := make([]SubmissionRecord, 0, len(data))
		for _, row := range data {
			if cell(row, 1) == "" {
				continue
			}
			records = append(records, decodeSubmission(row))
		}
		slices.SortStableFunc(records, func(a, b SubmissionRecord) int { return cmp.Compare(b.DateAdded, a.DateAdded) })
		out = truncate(records, limit)
		return nil
	})
	return out, err
}

// ItemRatings returns the newest ratings of one item
func (s *Store) ItemRatings(ctx context.Context, itemID string, limit int) ([]Rating, error) {
	if limit <= 0 {
		limit = DefaultItemRatingsLimit
	}
	var out []Rating
	err := s.do(ctx, "item_ratings", func(ctx context.Context) error {
		rows, err := s.readRows(ctx, TableRatings)
		if err != nil {
			return err
		}
		var ratings []Rating
		for _, r := range decodeRatings(rows) {
			if strings.EqualFold(r.ItemID, itemID) {
				ratings = append(ratings, r)
			}
		}
		byNewest(ratings)
		out = truncate(ratings, limit)
		return nil
	})
	return out, err
}
