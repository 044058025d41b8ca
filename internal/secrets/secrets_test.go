package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandString(t *testing.T) {
	t.Setenv("STRAINBOT_TEST_TOKEN", "s3cret")
	t.Setenv("STRAINBOT_TEST_EMPTY", "")

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"empty", "", "", false},
		{"literal", "plain-password", "plain-password", false},
		{"reference", "${STRAINBOT_TEST_TOKEN}", "s3cret", false},
		{"embedded", "discord://${STRAINBOT_TEST_TOKEN}@123", "discord://s3cret@123", false},
		{"default used", "${STRAINBOT_TEST_EMPTY:-fallback}", "fallback", false},
		{"empty default", "${STRAINBOT_TEST_UNSET_X:-}", "", false},
		{"missing", "${STRAINBOT_TEST_UNSET_X}", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandString(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "STRAINBOT_TEST_UNSET_X")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func writeSecret(t *testing.T, content string, mode os.FileMode) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "secret")
	require.NoError(t, os.WriteFile(path, []byte(content), mode))
	return path
}

func TestReadFile(t *testing.T) {
	t.Parallel()

	got, err := ReadFile(writeSecret(t, "hunter2\n", 0o600))
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got)

	// permissive files still work
	got, err = ReadFile(writeSecret(t, " spaced \r\n", 0o644))
	require.NoError(t, err)
	assert.Equal(t, " spaced ", got)
}

func TestReadFileErrors(t *testing.T) {
	t.Parallel()

	_, err := ReadFile(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)

	_, err = ReadFile(t.TempDir())
	require.Error(t, err)

	_, err = ReadFile(writeSecret(t, "\n", 0o600))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")

	big := make([]byte, maxSecretFileSize+1)
	for i := range big {
		big[i] = 'a'
	}
	_, err = ReadFile(writeSecret(t, string(big), 0o600))
	require.Error(t, err)
}

func TestResolvePrefersFile(t *testing.T) {
	t.Setenv("STRAINBOT_TEST_TOKEN", "from-env")

	got, err := Resolve(writeSecret(t, "from-file", 0o600), "${STRAINBOT_TEST_TOKEN}")
	require.NoError(t, err)
	assert.Equal(t, "from-file", got)

	got, err = Resolve("", "${STRAINBOT_TEST_TOKEN}")
	require.NoError(t, err)
	assert.Equal(t, "from-env", got)
}
