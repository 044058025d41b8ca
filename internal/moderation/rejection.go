package moderation

import (
	"fmt"

	"github.com/tphakala/strainbot/internal/datastore"
	"github.com/tphakala/strainbot/internal/errors"
)

// Reason classifies a rejected command
type Reason string

const (
	ReasonTooManyRequests Reason = "too_many_requests"
	ReasonInvalidName     Reason = "invalid_name"
	ReasonInvalidDate     Reason = "invalid_date"
	ReasonInvalidCategory Reason = "invalid_category"
	ReasonInvalidRating   Reason = "invalid_rating"
	ReasonDuplicate       Reason = "duplicate"
	ReasonNotFound        Reason = "not_found"
	ReasonNotApproved     Reason = "not_approved"
	ReasonAlreadyRated    Reason = "already_rated"
	ReasonAlreadyApproved Reason = "already_approved"
	ReasonAlreadyExists   Reason = "already_exists"
	ReasonForbidden       Reason = "forbidden"
	ReasonStorage         Reason = "storage"
)

// storageMessage is shown for every backing store failure
const storageMessage = "Something went wrong talking to the datastore, please try again."

// Rejection is returned by every Service command that did not succeed.
// Message is meant for the user who issued the command.
type Rejection struct {
	Reason     Reason
	Message    string
	ExistingID string // set for duplicate
	Err        error  // underlying cause, never shown to users
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: %s", r.Reason, r.Message)
}

func (r *Rejection) Unwrap() error { return r.Err }

// Is matches another *Rejection with the same Reason, so callers can write
// errors.Is(err, &moderation.Rejection{Reason: moderation.ReasonDuplicate})
func (r *Rejection) Is(target error) bool {
	t, ok := target.(*Rejection)
	return ok && t.Reason == r.Reason
}

// ReasonOf returns the rejection reason carried by err, or "" when err is
// not a rejection
func ReasonOf(err error) Reason {
	var r *Rejection
	if errors.As(err, &r) {
		return r.Reason
	}
	return ""
}

func reject(reason Reason, format string, args ...any) *Rejection {
	return &Rejection{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// fromStore maps record store errors to rejections. what names the thing
// the user asked for and is quoted in not-found messages.
func fromStore(err error, what string) *Rejection {
	var r *Rejection
	switch {
	case errors.As(err, &r):
		return r
	case errors.Is(err, datastore.ErrNotFound):
		r = reject(ReasonNotFound, "%s not found.", what)
	case errors.Is(err, datastore.ErrNotApproved):
		r = reject(ReasonNotApproved, "%s is not approved yet and cannot be rated.", what)
	case errors.Is(err, datastore.ErrAlreadyRated):
		r = reject(ReasonAlreadyRated, "You have already rated %s.", what)
	case errors.Is(err, datastore.ErrAlreadyApproved):
		r = reject(ReasonAlreadyApproved, "%s is already approved.", what)
	case errors.Is(err, datastore.ErrAlreadyExists):
		r = reject(ReasonAlreadyExists, "%s already exists.", what)
	case errors.Is(err, datastore.ErrInvalidInput):
		r = reject(ReasonInvalidName, "%s is not valid.", what)
	default:
		r = reject(ReasonStorage, storageMessage)
	}
	r.Err = err
	return r
}
