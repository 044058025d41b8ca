package moderation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tphakala/strainbot/internal/datastore"
	"github.com/tphakala/strainbot/internal/errors"
	"github.com/tphakala/strainbot/internal/events"
	"github.com/tphakala/strainbot/internal/ident"
	"github.com/tphakala/strainbot/internal/logger"
)

// SubmitRequest carries a new product submission. Dates are DD-MM-YYYY.
type SubmitRequest struct {
	Name        string
	HarvestDate string
	PackageDate string
	Category    string
	Producer    string
}

// SubmitResult describes a stored submission
type SubmitResult struct {
	ID       string
	Name     string
	Category string
	Producer string
	Pending  int // pending items after this submission, 0 when unknown
}

// RateRequest carries a rating. Category optionally narrows the lookup.
type RateRequest struct {
	Identifier string
	Value      int
	Category   string
}

const (
	invalidNameMessage     = "Invalid product name. Please use 2-50 characters with letters, numbers, spaces, and basic punctuation only."
	invalidDateMessage     = "Invalid %s date %q. Please use DD-MM-YYYY."
	invalidCategoryMessage = "Invalid category %q. Choose one of flower, hash or rosin."
)

func validateCategory(c string) (string, error) {
	category, ok := ident.NormalizeCategory(c)
	if !ok {
		return "", reject(ReasonInvalidCategory, invalidCategoryMessage, c)
	}
	return category, nil
}

// Submit validates and stores a new pending product, then alerts
// moderators when the cooldown allows it
func (s *Service) Submit(ctx context.Context, actor Actor, req SubmitRequest) (res SubmitResult, err error) {
	start := time.Now()
	ctx, log, traceID := s.begin(ctx)
	defer func() { s.stats.record(log, "submit", actor, start, err) }()

	if err := s.checkQuota(actor, "submitting"); err != nil {
		return SubmitResult{}, err
	}

	name, verr := ident.ValidateName(req.Name)
	if verr != nil {
		return SubmitResult{}, &Rejection{Reason: ReasonInvalidName, Message: invalidNameMessage, Err: verr}
	}
	harvest, ok := ident.NormalizeDate(req.HarvestDate)
	if !ok {
		return SubmitResult{}, reject(ReasonInvalidDate, invalidDateMessage, "harvest", req.HarvestDate)
	}
	pkg, ok := ident.NormalizeDate(req.PackageDate)
	if !ok {
		return SubmitResult{}, reject(ReasonInvalidDate, invalidDateMessage, "package", req.PackageDate)
	}
	category, err := validateCategory(req.Category)
	if err != nil {
		return SubmitResult{}, err
	}
	producer := ident.SanitizeProducer(req.Producer)

	// the store checks for duplicates in the same job that appends the row
	id, serr := s.store.Submit(ctx, datastore.Submission{
		Name:        name,
		HarvestDate: harvest,
		PackageDate: pkg,
		Category:    category,
		Producer:    producer,
		UserID:      actor.UserID,
		Username:    actor.Username,
	})
	if serr != nil {
		var dup *datastore.DuplicateError
		if errors.As(serr, &dup) {
			r := reject(ReasonDuplicate,
				"%q from %s with these dates is already in the list (ID: %s).", name, producer, dup.ExistingID)
			r.ExistingID = dup.ExistingID
			r.Err = serr
			return SubmitResult{}, r
		}
		return SubmitResult{}, fromStore(serr, name)
	}

	res = SubmitResult{ID: id, Name: name, Category: category, Producer: producer}

	ev := s.event(events.TypeSubmitted, traceID, actor)
	ev.ItemID, ev.Name, ev.Category, ev.Producer = id, name, category, producer
	s.emit(ev)
	s.status.Trigger()

	pending, perr := s.store.PendingCount(ctx)
	if perr != nil {
		log.Warn("could not count pending items for moderator alert", logger.Error(perr))
		return res, nil
	}
	res.Pending = pending
	if s.metrics != nil {
		s.metrics.SetPending(pending)
	}
	s.alerts.maybeAlert(pending)
	return res, nil
}

// Rate records actor's rating of an approved product
func (s *Service) Rate(ctx context.Context, actor Actor, req RateRequest) (item datastore.Item, err error) {
	start := time.Now()
	ctx, log, traceID := s.begin(ctx)
	defer func() { s.stats.record(log, "rate", actor, start, err) }()

	if err := s.checkQuota(actor, "rating"); err != nil {
		return datastore.Item{}, err
	}
	if !ident.ValidRating(req.Value) {
		return datastore.Item{}, reject(ReasonInvalidRating, "Rating must be a whole number from %d to %d.", ident.MinRating, ident.MaxRating)
	}
	identifier := strings.TrimSpace(req.Identifier)
	if identifier == "" {
		return datastore.Item{}, reject(ReasonNotFound, "Please name the product to rate.")
	}
	var category string
	if strings.TrimSpace(req.Category) != "" {
		if category, err = validateCategory(req.Category); err != nil {
			return datastore.Item{}, err
		}
	}

	item, rerr := s.store.Rate(ctx, datastore.RatingInput{
		Identifier: identifier,
		UserID:     actor.UserID,
		Value:      req.Value,
		Username:   actor.Username,
		Category:   category,
	})
	if rerr != nil {
		what := fmt.Sprintf("Product '%s'", identifier)
		if category != "" {
			what += " in " + category
		}
		return datastore.Item{}, fromStore(rerr, what)
	}

	ev := s.event(events.TypeRated, traceID, actor)
	ev.ItemID, ev.Name, ev.Category, ev.Producer = item.ID, item.Name, item.Category, item.Producer
	ev.Value, ev.Average, ev.Total = req.Value, item.AverageRating, item.TotalRatings
	s.emit(ev)
	s.status.Trigger()
	return item, nil
}

// Approve makes a pending product ratable. Moderators only.
func (s *Service) Approve(ctx context.Context, actor Actor, identifier string) (item datastore.Item, err error) {
	start := time.Now()
	ctx, log, traceID := s.begin(ctx)
	defer func() { s.stats.record(log, "approve", actor, start, err) }()

	if err := s.requireModerator(actor, "approve products"); err != nil {
		return datastore.Item{}, err
	}
	identifier = strings.TrimSpace(identifier)

	item, aerr := s.store.Approve(ctx, identifier)
	if aerr != nil {
		return datastore.Item{}, fromStore(aerr, fmt.Sprintf("Product '%s'", identifier))
	}

	ev := s.event(events.TypeApproved, traceID, actor)
	ev.ItemID, ev.Name, ev.Category, ev.Producer = item.ID, item.Name, item.Category, item.Producer
	s.emit(ev)
	s.status.Trigger()
	return item, nil
}

// Rename changes a product's name. Moderators only.
func (s *Service) Rename(ctx context.Context, actor Actor, id, newName string) (item datastore.Item, err error) {
	start := time.Now()
	ctx, log, traceID := s.begin(ctx)
	defer func() { s.stats.record(log, "rename", actor, start, err) }()

	if err := s.requireModerator(actor, "rename products"); err != nil {
		return datastore.Item{}, err
	}
	name, verr := ident.ValidateName(newName)
	if verr != nil {
		return datastore.Item{}, &Rejection{Reason: ReasonInvalidName, Message: invalidNameMessage, Err: verr}
	}

	id = strings.ToUpper(strings.TrimSpace(id))
	item, rerr := s.store.Rename(ctx, id, name)
	if rerr != nil {
		return datastore.Item{}, fromStore(rerr, fmt.Sprintf("Product with ID '%s'", id))
	}

	ev := s.event(events.TypeRenamed, traceID, actor)
	ev.ItemID, ev.Name, ev.Category = item.ID, item.Name, item.Category
	s.emit(ev)
	s.status.Trigger()
	return item, nil
}

// AddProducer registers a producer. Moderators only.
func (s *Service) AddProducer(ctx context.Context, actor Actor, name string) (added string, err error) {
	start := time.Now()
	ctx, log, traceID := s.begin(ctx)
	defer func() { s.stats.record(log, "add_producer", actor, start, err) }()

	if err := s.requireModerator(actor, "manage producers"); err != nil {
		return "", err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", reject(ReasonInvalidName, "Producer name cannot be empty.")
	}

	added, aerr := s.store.AddProducer(ctx, name)
	if aerr != nil {
		return "", fromStore(aerr, fmt.Sprintf("Producer '%s'", name))
	}

	ev := s.event(events.TypeProducerAdded, traceID, actor)
	ev.Producer = added
	s.emit(ev)
	return added, nil
}

// RemoveProducer unregisters a producer. Products keep their producer name.
// Moderators only.
func (s *Service) RemoveProducer(ctx context.Context, actor Actor, name string) (err error) {
	start := time.Now()
	ctx, log, traceID := s.begin(ctx)
	defer func() { s.stats.record(log, "remove_producer", actor, start, err) }()

	if err := s.requireModerator(actor, "manage producers"); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if rerr := s.store.RemoveProducer(ctx, name); rerr != nil {
		r := fromStore(rerr, fmt.Sprintf("Producer '%s'", name))
		if r.Reason == ReasonNotFound {
			r.Message = fmt.Sprintf("Producer '%s' not found in the current list.", name)
		}
		return r
	}

	ev := s.event(events.TypeProducerRemoved, traceID, actor)
	ev.Producer = name
	s.emit(ev)
	return nil
}
