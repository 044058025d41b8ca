// Package secrets resolves credentials that are given either inline, as
// ${VAR} references or as files mounted by Docker or Kubernetes.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tphakala/strainbot/internal/errors"
	"github.com/tphakala/strainbot/internal/logger"
)

// secret files hold tokens and passwords, nothing larger
const maxSecretFileSize = 64 * 1024

func getLogger() logger.Logger {
	return logger.Global().Module("secrets")
}

// ExpandString replaces ${VAR} and ${VAR:-default} references with values
// from the environment. A reference without default to an unset variable
// is an error.
func ExpandString(s string) (string, error) {
	if s == "" {
		return "", nil
	}

	var missing []string
	expanded := os.Expand(s, func(key string) string {
		name, fallback, hasFallback := strings.Cut(key, ":-")
		if v := os.Getenv(name); v != "" {
			return v
		}
		if hasFallback {
			return fallback
		}
		missing = append(missing, name)
		return ""
	})

	if len(missing) > 0 {
		return "", errors.Newf("missing environment variable(s): %s", strings.Join(missing, ", ")).
			Component("secrets").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return expanded, nil
}

// ReadFile reads a secret file and strips trailing newlines. Files readable
// by group or others are accepted with a warning.
func ReadFile(path string) (string, error) {
	clean := filepath.Clean(path)

	info, err := os.Stat(clean)
	if err != nil {
		return "", fileError(clean, err)
	}
	if !info.Mode().IsRegular() {
		return "", fileError(clean, fmt.Errorf("not a regular file"))
	}
	if info.Size() > maxSecretFileSize {
		return "", fileError(clean, fmt.Errorf("file larger than %d bytes", maxSecretFileSize))
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		getLogger().Warn("secret file is readable by other users",
			logger.String("path", clean),
			logger.String("mode", fmt.Sprintf("%04o", perm)))
	}

	data, err := os.ReadFile(clean)
	if err != nil {
		return "", fileError(clean, err)
	}
	secret := strings.TrimRight(string(data), "\r\n")
	if secret == "" {
		return "", fileError(clean, fmt.Errorf("file is empty"))
	}
	return secret, nil
}

func fileError(path string, err error) error {
	return errors.New(fmt.Errorf("secret file %s: %w", path, err)).
		Component("secrets").
		Category(errors.CategoryConfiguration).
		Context("path", path).
		Build()
}

// Resolve returns the contents of filePath when it is set, otherwise value
// with environment references expanded
func Resolve(filePath, value string) (string, error) {
	if filePath != "" {
		return ReadFile(filePath)
	}
	return ExpandString(value)
}
