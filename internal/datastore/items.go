package datastore

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/tphakala/strainbot/internal/cache"
	"github.com/tphakala/strainbot/internal/ident"
	"github.com/tphakala/strainbot/internal/logger"
)

func categoryKey(category string) string {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		return "all"
	}
	return category
}

// GetByIdentifier resolves identifier to one item: exact id, exact name,
// wildcard name match (* and ?) or substring name match, in that order.
// The category filter, when set, is applied first.
func (s *Store) GetByIdentifier(ctx context.Context, identifier, category string) (Item, error) {
	key := fmt.Sprintf("%ssearch_%s_%s", prefixItem, strings.ToLower(identifier), categoryKey(category))
	return cache.GetOrLoad(s.cache, key, searchTTL, func() (Item, error) {
		var found Item
		err := s.do(ctx, "get_by_identifier", func(ctx context.Context) error {
			items, err := s.readItems(ctx)
			if err != nil {
				return err
			}
			it, ok := resolve(filterCategory(items, category), identifier)
			if !ok {
				return notFound("item", identifier)
			}
			found = it
			return nil
		})
		return found, err
	})
}

// Search returns up to MaxSearchResults items whose name or id matches query
func (s *Store) Search(ctx context.Context, query, category string) ([]Item, error) {
	var out []Item
	err := s.do(ctx, "search", func(ctx context.Context) error {
		items, err := s.readItems(ctx)
		if err != nil {
			return err
		}
		out = search(filterCategory(items, category), query)
		return nil
	})
	return out, err
}

// FindDuplicate returns the id of an item with the same normalized name,
// dates and category, and the same producer when producer is not empty.
// It returns "" when there is none.
func (s *Store) FindDuplicate(ctx context.Context, name, harvest, pkg, category, producer string) (string, error) {
	var id string
	err := s.do(ctx, "find_duplicate", func(ctx context.Context) error {
		items, err := s.readItems(ctx)
		if err != nil {
			return err
		}
		id = findDuplicate(items, name, harvest, pkg, category, producer)
		return nil
	})
	return id, err
}

func findDuplicate(items []Item, name, harvest, pkg, category, producer string) string {
	normalized := ident.NormalizeName(name)
	category = strings.ToLower(category)
	harvest, pkg = canonicalDate(harvest), canonicalDate(pkg)
	for _, it := range items {
		if ident.NormalizeName(it.Name) == normalized &&
			canonicalDate(it.HarvestDate) == harvest &&
			canonicalDate(it.PackageDate) == pkg &&
			it.Category == category &&
			(producer == "" || it.Producer == producer) {
			return it.ID
		}
	}
	return ""
}

// canonicalDate zero pads a stored display date; values that do not parse
// are compared as they are
func canonicalDate(s string) string {
	if d, ok := ident.NormalizeDate(s); ok {
		return d
	}
	return strings.TrimSpace(s)
}

// Submit stores a new pending item and its audit log row and returns the new
// id. The duplicate check runs in the same job as the writes, so of two
// equivalent concurrent submissions only the first is stored; the other gets
// a *DuplicateError naming the stored id.
func (s *Store) Submit(ctx context.Context, sub Submission) (string, error) {
	harvest, ok := ident.NormalizeDate(sub.HarvestDate)
	if !ok {
		return "", invalidInput("harvest_date", sub.HarvestDate)
	}
	pkg, ok := ident.NormalizeDate(sub.PackageDate)
	if !ok {
		return "", invalidInput("package_date", sub.PackageDate)
	}
	category, ok := ident.NormalizeCategory(sub.Category)
	if !ok {
		return "", invalidInput("category", sub.Category)
	}
	name := strings.TrimSpace(sub.Name)
	if name == "" {
		return "", invalidInput("name", sub.Name)
	}

	id := ident.NewItemID()
	producer := ident.SanitizeProducer(sub.Producer)
	username := ident.SanitizeUsername(sub.Username)

	err := s.do(ctx, "submit", func(ctx context.Context) error {
		items, err := s.readItems(ctx)
		if err != nil {
			return err
		}
		if existing := findDuplicate(items, name, harvest, pkg, category, producer); existing != "" {
			return duplicate(existing)
		}

		now := s.now()
		item := Item{
			ID:          id,
			Name:        name,
			Status:      StatusPending,
			DateAdded:   now.Format(ident.SortableDateLayout),
			HarvestDate: harvest,
			PackageDate: pkg,
			Category:    category,
			Producer:    producer,
		}
		if err := s.appendRow(ctx, TableStrains, encodeItem(item)); err != nil {
			return err
		}

		logRows, err := s.readRows(ctx, TableSubmissions)
		if err != nil {
			return err
		}
		record := SubmissionRecord{
			ID:          len(logRows),
			ItemID:      id,
			Name:        name,
			UserID:      sub.UserID,
			HarvestDate: harvest,
			PackageDate: pkg,
			DateAdded:   now.Format(ident.TimestampLayout),
			Category:    category,
			Producer:    producer,
			Username:    username,
		}
		return s.appendRow(ctx, TableSubmissions, encodeSubmission(record))
	})
	if err != nil {
		return "", err
	}

	getLogger().Info("item submitted",
		logger.String("id", id),
		logger.String("name", name),
		logger.String("category", category),
		logger.String("producer", producer),
		logger.Int64("user_id", sub.UserID))
	return id, nil
}

// Approve flips a pending item, found by exact id or exact name, to Approved
func (s *Store) Approve(ctx context.Context, identifier string) (Item, error) {
	identifier = strings.TrimSpace(identifier)
	var approved Item
	err := s.do(ctx, "approve", func(ctx context.Context) error {
		items, err := s.readItems(ctx)
		if err != nil {
			return err
		}
		seenApproved := false
		for _, it := range items {
			if !strings.EqualFold(it.ID, identifier) && !strings.EqualFold(it.Name, identifier) {
				continue
			}
			if it.Status != StatusPending {
				seenApproved = true
				continue
			}
			if err := s.updateCells(ctx, TableStrains, it.row, colStatus, []string{string(StatusApproved)}); err != nil {
				return err
			}
			it.Status = StatusApproved
			approved = it
			return nil
		}
		if seenApproved {
			return conflict(ErrAlreadyApproved, identifier)
		}
		return notFound("pending item", identifier)
	})
	if err != nil {
		return Item{}, err
	}

	s.invalidate()
	getLogger().Info("item approved", logger.String("id", approved.ID), logger.String("name", approved.Name))
	return approved, nil
}

// Rename overwrites the name of the item with the given id. Submission log
// and rating rows keep the old name.
func (s *Store) Rename(ctx context.Context, id, newName string) (Item, error) {
	id = strings.TrimSpace(id)
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return Item{}, invalidInput("name", newName)
	}

	var renamed Item
	err := s.do(ctx, "rename", func(ctx context.Context) error {
		items, err := s.readItems(ctx)
		if err != nil {
			return err
		}
		idx := slices.IndexFunc(items, func(it Item) bool { return strings.EqualFold(it.ID, id) })
		if idx < 0 {
			return notFound("item", id)
		}
		it := items[idx]
		if err := s.updateCells(ctx, TableStrains, it.row, colName, []string{newName}); err != nil {
			return err
		}
		getLogger().Info("item renamed",
			logger.String("id", it.ID),
			logger.String("old_name", it.Name),
			logger.String("new_name", newName))
		it.Name = newName
		renamed = it
		return nil
	})
	if err != nil {
		return Item{}, err
	}
	s.invalidate()
	return renamed, nil
}

// TopRated returns approved, rated items of category by descending average
func (s *Store) TopRated(ctx context.Context, category string, limit int) ([]Item, error) {
	category = strings.ToLower(strings.TrimSpace(category))
	key := fmt.Sprintf("%s_%s_%d", prefixTop, category, limit)
	items, err := cache.GetOrLoad(s.cache, key, leaderboardTTL, func() ([]Item, error) {
		var out []Item
		err := s.do(ctx, "top_rated", func(ctx context.Context) error {
			items, err := s.readItems(ctx)
			if err != nil {
				return err
			}
			out = topRated(items, category, limit)
			return nil
		})
		return out, err
	})
	return slices.Clone(items), err
}

func topRated(items []Item, category string, limit int) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if it.Approved() && it.Rated() && it.Category == category {
			out = append(out, it)
		}
	}
	slices.SortStableFunc(out, func(a, b Item) int { return cmp.Compare(b.AverageRating, a.AverageRating) })
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ListApproved returns approved items, optionally of one category, by
// descending average with unrated items after every rated one
func (s *Store) ListApproved(ctx context.Context, category string) ([]Item, error) {
	key := fmt.Sprintf("%s_%s", prefixAllApproved, categoryKey(category))
	items, err := cache.GetOrLoad(s.cache, key, leaderboardTTL, func() ([]Item, error) {
		var out []Item
		err := s.do(ctx, "list_approved", func(ctx context.Context) error {
			items, err := s.readItems(ctx)
			if err != nil {
				return err
			}
			out = sortApproved(filterCategory(items, category))
			return nil
		})
		return out, err
	})
	return slices.Clone(items), err
}

func sortApproved(items []Item) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if it.Approved() {
			out = append(out, it)
		}
	}
	rank := func(it Item) float64 {
		if !it.Rated() {
			return -1
		}
		return it.AverageRating
	}
	slices.SortStableFunc(out, func(a, b Item) int { return cmp.Compare(rank(b), rank(a)) })
	return out
}

// ListPending returns pending items in table order
func (s *Store) ListPending(ctx context.Context) ([]Item, error) {
	var out []Item
	err := s.do(ctx, "list_pending", func(ctx context.Context) error {
		items, err := s.readItems(ctx)
		if err != nil {
			return err
		}
		for _, it := range items {
			if it.Status == StatusPending {
				out = append(out, it)
			}
		}
		return nil
	})
	return out, err
}

// PendingCount returns the number of pending items
func (s *Store) PendingCount(ctx context.Context) (int, error) {
	pending, err := s.ListPending(ctx)
	return len(pending), err
}
