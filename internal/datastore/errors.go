package datastore

import (
	"fmt"
	"time"

	"github.com/tphakala/strainbot/internal/errors"
	"github.com/tphakala/strainbot/internal/logger"
	"github.com/tphakala/strainbot/internal/observability/metrics"
)

// Sentinel errors returned by Store operations. Backend failures are always
// reported as ErrStoreUnavailable; the underlying error is only logged.
var (
	ErrNotFound         = errors.NewStd("item not found")
	ErrNotApproved      = errors.NewStd("item not approved")
	ErrAlreadyApproved  = errors.NewStd("item already approved")
	ErrAlreadyRated     = errors.NewStd("item already rated by user")
	ErrAlreadyExists    = errors.NewStd("already exists")
	ErrDuplicate        = errors.NewStd("duplicate item")
	ErrInvalidInput     = errors.NewStd("invalid input")
	ErrStoreUnavailable = errors.NewStd("datastore unavailable")
	ErrClosed           = errors.NewStd("datastore closed")
)

func notFound(what, key string) error {
	return errors.New(ErrNotFound).
		Component("datastore").
		Category(errors.CategoryNotFound).
		Context("kind", what).
		Context("key", key).
		Build()
}

func conflict(sentinel error, key string) error {
	return errors.New(sentinel).
		Component("datastore").
		Category(errors.CategoryConflict).
		Context("key", key).
		Build()
}

// DuplicateError is returned by Submit when an equivalent item is already
// stored. It matches ErrDuplicate.
type DuplicateError struct {
	ExistingID string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate of item %s", e.ExistingID)
}

func (e *DuplicateError) Unwrap() error { return ErrDuplicate }

func duplicate(existingID string) error {
	return errors.New(&DuplicateError{ExistingID: existingID}).
		Component("datastore").
		Category(errors.CategoryConflict).
		Context("existing_id", existingID).
		Build()
}

func invalidInput(field, value string) error {
	return errors.New(fmt.Errorf("%w: %s", ErrInvalidInput, field)).
		Component("datastore").
		Category(errors.CategoryValidation).
		Context("field", field).
		Context("value", value).
		Build()
}

// backendError logs err with full detail and replaces it with
// ErrStoreUnavailable
func (s *Store) backendError(err error, op, table string, elapsed time.Duration) error {
	opName := op
	if table != "" {
		opName = op + ":" + table
	}
	errType := "backend"
	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		errType = string(ee.Category)
	}
	s.recorder.RecordError(opName, errType)

	getLogger().Error("backend call failed",
		logger.String("operation", op),
		logger.String("table", table),
		logger.Duration("elapsed", elapsed),
		logger.Error(err))

	return errors.New(ErrStoreUnavailable).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", op).
		Context("table", table).
		Build()
}

// noopRecorder is used when no metrics are configured
type noopRecorder struct{}

func (noopRecorder) RecordOperation(string, string) {}
func (noopRecorder) RecordDuration(string, float64) {}
func (noopRecorder) RecordError(string, string)     {}

var _ metrics.Recorder = noopRecorder{}
