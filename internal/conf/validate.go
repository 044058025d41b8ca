package conf

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/tphakala/strainbot/internal/errors"
	"github.com/tphakala/strainbot/internal/logger"
)

// ValidationError collects every problem found in the settings
type ValidationError struct {
	Errors []string
}

func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation errors: %v", ve.Errors)
}

// ValidateSettings checks settings and normalizes a few values in place.
// Missing datastore configuration is fatal.
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := validateStoreSettings(settings); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}
	if err := validateModerationSettings(&settings.Moderation); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}
	if settings.HTTP.Enabled && (settings.HTTP.Port < 1 || settings.HTTP.Port > 65535) {
		ve.Errors = append(ve.Errors, fmt.Sprintf("http port %d out of range", settings.HTTP.Port))
	}
	if err := logger.ValidLevel(settings.Logging.DefaultLevel); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}
	if settings.MQTT.Enabled() && settings.MQTT.TopicPrefix == "" {
		ve.Errors = append(ve.Errors, "mqtt topic prefix must not be empty")
	}
	if settings.Status.TopLimit <= 0 || settings.Status.RecentLimit <= 0 {
		ve.Errors = append(ve.Errors, "status limits must be greater than zero")
	}

	if len(ve.Errors) > 0 {
		return errors.New(ve).
			Component("configuration").
			Category(errors.CategoryConfiguration).
			Context("error_count", len(ve.Errors)).
			Build()
	}
	return nil
}

func validateStoreSettings(settings *Settings) error {
	store := &settings.Store
	store.Backend = strings.ToLower(store.Backend)

	switch store.Backend {
	case BackendGoogle:
		if settings.Sheets.SpreadsheetID == "" {
			return fmt.Errorf("SPREADSHEET_ID must be set for the google backend")
		}
		if settings.Sheets.CredentialsPath == "" {
			return fmt.Errorf("GOOGLE_SHEETS_CREDENTIALS_PATH must be set for the google backend")
		}
		if _, err := os.Stat(settings.Sheets.CredentialsPath); err != nil {
			return fmt.Errorf("credentials file %s: %w", settings.Sheets.CredentialsPath, err)
		}
	case BackendMySQL:
		if store.MySQL.DSN == "" {
			return fmt.Errorf("MYSQL_DSN must be set for the mysql backend")
		}
	case BackendSQLite:
		if store.SQLite.Path == "" {
			return fmt.Errorf("sqlite path must not be empty")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown store backend %q", store.Backend)
	}

	if store.RateLimit <= 0 || store.RateWindow <= 0 {
		return fmt.Errorf("store rate limit and window must be greater than zero")
	}
	if store.QueueSize <= 0 {
		store.QueueSize = 1
	}
	return nil
}

func validateModerationSettings(m *ModerationSettings) error {
	if m.PerUserLimit <= 0 || m.CommunityLimit <= 0 || m.RateWindow <= 0 {
		return fmt.Errorf("user and community rate limits must be greater than zero")
	}
	if _, err := m.ModeratorRoleIDs(); err != nil {
		return err
	}
	for id := range m.RolePositions {
		if _, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64); err != nil {
			return fmt.Errorf("role position key %q is not a role id", id)
		}
	}
	return nil
}

// ModeratorRoleIDs merges RoleID and RoleIDs into a deduplicated id list
func (m ModerationSettings) ModeratorRoleIDs() ([]int64, error) {
	raw := append([]string{m.RoleID}, m.RoleIDs...)
	return parseRoleIDs(raw)
}

// RolePositionMap converts RolePositions keys to role ids
func (m ModerationSettings) RolePositionMap() map[int64]int {
	out := make(map[int64]int, len(m.RolePositions))
	for key, pos := range m.RolePositions {
		if id, err := strconv.ParseInt(strings.TrimSpace(key), 10, 64); err == nil {
			out[id] = pos
		}
	}
	return out
}

// parseRoleIDs parses ids, skipping blanks and duplicates
func parseRoleIDs(raw []string) ([]int64, error) {
	var ids []int64
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid moderator role id %q", s)
		}
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
