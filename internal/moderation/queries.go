package moderation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tphakala/strainbot/internal/datastore"
)

// read runs a read-only command with stats and error mapping
func read[T any](ctx context.Context, s *Service, command string, actor Actor, what string, fn func(ctx context.Context) (T, error)) (out T, err error) {
	start := time.Now()
	ctx, log, _ := s.begin(ctx)
	defer func() { s.stats.record(log, command, actor, start, err) }()

	out, ferr := fn(ctx)
	if ferr != nil {
		var zero T
		return zero, fromStore(ferr, what)
	}
	return out, nil
}

// optionalCategory validates c when it is set
func optionalCategory(c string) (string, error) {
	if strings.TrimSpace(c) == "" {
		return "", nil
	}
	return validateCategory(c)
}

// GetByID resolves one product by id, exact name, wildcard or partial name
func (s *Service) GetByID(ctx context.Context, actor Actor, identifier, category string) (datastore.Item, error) {
	category, err := optionalCategory(category)
	if err != nil {
		return datastore.Item{}, err
	}
	identifier = strings.TrimSpace(identifier)
	return read(ctx, s, "show", actor, fmt.Sprintf("Product '%s'", identifier), func(ctx context.Context) (datastore.Item, error) {
		return s.store.GetByIdentifier(ctx, identifier, category)
	})
}

// Search lists up to ten products whose name or id matches query
func (s *Service) Search(ctx context.Context, actor Actor, query, category string) ([]datastore.Item, error) {
	category, err := optionalCategory(category)
	if err != nil {
		return nil, err
	}
	return read(ctx, s, "search", actor, "Products", func(ctx context.Context) ([]datastore.Item, error) {
		return s.store.Search(ctx, query, category)
	})
}

// ListApproved lists approved products, best rated first
func (s *Service) ListApproved(ctx context.Context, actor Actor, category string) ([]datastore.Item, error) {
	category, err := optionalCategory(category)
	if err != nil {
		return nil, err
	}
	return read(ctx, s, "list", actor, "Products", func(ctx context.Context) ([]datastore.Item, error) {
		return s.store.ListApproved(ctx, category)
	})
}

// ListPending lists products awaiting approval. Moderators only.
func (s *Service) ListPending(ctx context.Context, actor Actor) ([]datastore.Item, error) {
	if err := s.requireModerator(actor, "view pending products"); err != nil {
		s.stats.record(getLogger(), "pending", actor, time.Now(), err)
		return nil, err
	}
	items, err := read(ctx, s, "pending", actor, "Pending products", s.store.ListPending)
	if err == nil && s.metrics != nil {
		s.metrics.SetPending(len(items))
	}
	return items, err
}

// PendingCount returns how many products await approval
func (s *Service) PendingCount(ctx context.Context) (int, error) {
	return read(ctx, s, "pending_count", Actor{}, "Pending products", s.store.PendingCount)
}

// TopRated returns the best rated approved products of a category
func (s *Service) TopRated(ctx context.Context, category string, limit int) ([]datastore.Item, error) {
	category, err := validateCategory(category)
	if err != nil {
		return nil, err
	}
	return read(ctx, s, "top", Actor{}, "Products", func(ctx context.Context) ([]datastore.Item, error) {
		return s.store.TopRated(ctx, category, limit)
	})
}

// RecentRatings returns the newest ratings of approved products
func (s *Service) RecentRatings(ctx context.Context, limit int) ([]datastore.RatingView, error) {
	return read(ctx, s, "recent_ratings", Actor{}, "Ratings", func(ctx context.Context) ([]datastore.RatingView, error) {
		return s.store.RecentRatings(ctx, limit)
	})
}

// LastRatings returns the newest ratings of any product
func (s *Service) LastRatings(ctx context.Context, limit int) ([]datastore.RatingView, error) {
	return read(ctx, s, "last_ratings", Actor{}, "Ratings", func(ctx context.Context) ([]datastore.RatingView, error) {
		return s.store.LastRatings(ctx, limit)
	})
}

// LastSubmissions returns the newest submission log entries
func (s *Service) LastSubmissions(ctx context.Context, limit int) ([]datastore.SubmissionRecord, error) {
	return read(ctx, s, "recent_submissions", Actor{}, "Submissions", func(ctx context.Context) ([]datastore.SubmissionRecord, error) {
		return s.store.LastSubmissions(ctx, limit)
	})
}

// ItemRatings returns the newest ratings of one product
func (s *Service) ItemRatings(ctx context.Context, itemID string, limit int) ([]datastore.Rating, error) {
	return read(ctx, s, "item_ratings", Actor{}, fmt.Sprintf("Product '%s'", itemID), func(ctx context.Context) ([]datastore.Rating, error) {
		return s.store.ItemRatings(ctx, itemID, limit)
	})
}

// ListProducers returns the producer registry. Open to everyone.
func (s *Service) ListProducers(ctx context.Context) ([]string, error) {
	return read(ctx, s, "list_producers", Actor{}, "Producers", s.store.ListProducers)
}
