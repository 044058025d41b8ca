// Package ident holds the identifier, name, date and category rules shared by
// the record store and the moderation service.
package ident

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tphakala/strainbot/internal/errors"
	"github.com/tphakala/strainbot/internal/logger"
)

// Layouts used in the tables
const (
	DisplayDateLayout  = "02-01-2006"
	inputDateLayout    = "2-1-2006" // also accepts unpadded day and month
	SortableDateLayout = "2006-01-02"
	TimestampLayout    = "2006-01-02 15:04:05"
)

// Limits on free-form fields
const (
	MinNameLength     = 2
	MaxNameLength     = 50
	MaxUsernameLength = 50
	MaxProducerLength = 50
	MinRating         = 1
	MaxRating         = 10
)

// UnknownProducer is used when no producer is given
const UnknownProducer = "Unknown"

// Category values
const (
	CategoryFlower = "flower"
	CategoryHash   = "hash"
	CategoryRosin  = "rosin"
)

// Categories lists the valid categories in display order
var Categories = []string{CategoryFlower, CategoryHash, CategoryRosin}

var (
	ErrInvalidName     = errors.NewStd("invalid name")
	ErrInvalidDate     = errors.NewStd("invalid date")
	ErrInvalidCategory = errors.NewStd("invalid category")
)

var (
	nonAlnum    = regexp.MustCompile(`[^a-z0-9]`)
	whitespace  = regexp.MustCompile(`\s+`)
	namePattern = regexp.MustCompile(`^[a-zA-Z0-9\s\-#'".]+$`)
)

func getLogger() logger.Logger {
	return logger.Global().Module("ident")
}

// NewItemID returns 8 uppercase hex characters from 4 random bytes
func NewItemID() string {
	var b [4]byte
	// crypto/rand.Read never returns an error on supported platforms
	_, _ = rand.Read(b[:])
	return strings.ToUpper(hex.EncodeToString(b[:]))
}

// NormalizeName lowercases name and drops everything but letters and digits.
// Two names with the same normalized form are considered the same item name.
func NormalizeName(name string) string {
	return nonAlnum.ReplaceAllString(strings.ToLower(name), "")
}

// ValidateName trims and collapses whitespace, checks length and the allowed
// character set, and returns the title-cased name.
func ValidateName(name string) (string, error) {
	cleaned := whitespace.ReplaceAllString(strings.TrimSpace(name), " ")

	n := utf8.RuneCountInString(cleaned)
	if n < MinNameLength || n > MaxNameLength {
		return "", errors.New(fmt.Errorf("%w: must be %d-%d characters, got %d", ErrInvalidName, MinNameLength, MaxNameLength, n)).
			Component("ident").
			Category(errors.CategoryValidation).
			Build()
	}
	if !namePattern.MatchString(cleaned) {
		return "", errors.New(ErrInvalidName).
			Component("ident").
			Category(errors.CategoryValidation).
			Context("name", cleaned).
			Build()
	}
	// a Caser keeps state and must not be shared between goroutines
	return cases.Title(language.English).String(cleaned), nil
}

// NormalizeDate parses a D-M-YYYY or DD-MM-YYYY calendar date and returns
// it zero padded as DD-MM-YYYY
func NormalizeDate(s string) (string, bool) {
	t, err := time.Parse(inputDateLayout, strings.TrimSpace(s))
	if err != nil {
		return "", false
	}
	return t.Format(DisplayDateLayout), true
}

// ValidDate reports whether s is a D-M-YYYY or DD-MM-YYYY calendar date
func ValidDate(s string) bool {
	_, ok := NormalizeDate(s)
	return ok
}

// ToSortable converts DD-MM-YYYY to YYYY-MM-DD
func ToSortable(display string) (string, error) {
	t, err := time.Parse(inputDateLayout, strings.TrimSpace(display))
	if err != nil {
		return "", errors.New(ErrInvalidDate).
			Component("ident").
			Category(errors.CategoryValidation).
			Context("date", display).
			Build()
	}
	return t.Format(SortableDateLayout), nil
}

// ToDisplay converts YYYY-MM-DD to DD-MM-YYYY. Values already in display
// form are returned unchanged.
func ToDisplay(sortable string) (string, error) {
	if t, err := time.Parse(SortableDateLayout, sortable); err == nil {
		return t.Format(DisplayDateLayout), nil
	}
	if display, ok := NormalizeDate(sortable); ok {
		return display, nil
	}
	return "", errors.New(ErrInvalidDate).
		Component("ident").
		Category(errors.CategoryValidation).
		Context("date", sortable).
		Build()
}

// SanitizeUsername trims name, swaps ASCII apostrophes for typographic ones so
// the sheet does not treat them as a text prefix, and caps the length.
func SanitizeUsername(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), "'", "’")
	return truncate(name, MaxUsernameLength)
}

// SanitizeProducer trims and caps a producer name, defaulting to Unknown
func SanitizeProducer(name string) string {
	name = truncate(strings.TrimSpace(name), MaxProducerLength)
	if name == "" {
		return UnknownProducer
	}
	return name
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:max]))
}

// EncodeUserID stores ids as text so large ids are not rendered in scientific
// notation.
func EncodeUserID(id int64) string {
	return "'" + strconv.FormatInt(id, 10)
}

// DecodeUserID accepts both encoded and plain ids. Unparseable values are
// logged and decode to 0.
func DecodeUserID(raw string) int64 {
	s := strings.TrimPrefix(strings.TrimSpace(raw), "'")
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		getLogger().Warn("could not decode user id", logger.String("raw", raw))
		return 0
	}
	return id
}

// SameUserID reports whether a stored cell refers to id, in either form
func SameUserID(cell string, id int64) bool {
	plain := strconv.FormatInt(id, 10)
	cell = strings.TrimSpace(cell)
	return cell == plain || cell == EncodeUserID(id)
}

// DisplayName is the stored username or User-<id> when none was recorded
func DisplayName(username string, id int64) string {
	if strings.TrimSpace(username) != "" {
		return username
	}
	return "User-" + strconv.FormatInt(id, 10)
}

// NormalizeCategory lowercases c and reports whether it is a known category
func NormalizeCategory(c string) (string, bool) {
	c = strings.ToLower(strings.TrimSpace(c))
	return c, slices.Contains(Categories, c)
}

// ValidCategory reports whether c is a known category, case-insensitively
func ValidCategory(c string) bool {
	_, ok := NormalizeCategory(c)
	return ok
}

// ValidRating reports whether v is within 1..10
func ValidRating(v int) bool {
	return v >= MinRating && v <= MaxRating
}
