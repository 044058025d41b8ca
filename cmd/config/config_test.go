package config

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/strainbot/internal/conf"
)

func secretSettings() *conf.Settings {
	s := &conf.Settings{}
	s.Store.Backend = conf.BackendMySQL
	s.Store.MySQL.DSN = "bot:hunter2@tcp(db:3306)/strains"
	s.MQTT.Broker = "tcp://broker:1883"
	s.MQTT.Password = "hunter2"
	s.Telemetry.SentryDSN = "https://abc123@o1.ingest.sentry.io/42"
	s.Notify.URLs = []string{"discord://tok3n@12345"}
	return s
}

func TestRedact(t *testing.T) {
	t.Parallel()

	s := secretSettings()
	r := Redact(*s)

	assert.Equal(t, redacted, r.MQTT.Password)
	assert.Equal(t, redacted, r.Store.MySQL.DSN)
	assert.Equal(t, "https://[REDACTED]@o1.ingest.sentry.io/[REDACTED]", r.Telemetry.SentryDSN)
	assert.Equal(t, []string{"discord://[REDACTED]"}, r.Notify.URLs)

	// the original is untouched
	assert.Equal(t, "hunter2", s.MQTT.Password)
	assert.Equal(t, "discord://tok3n@12345", s.Notify.URLs[0])
}

func TestDumpRedactsByDefault(t *testing.T) {
	t.Parallel()

	cmd := Command(secretSettings())
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"dump"})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "backend: mysql")
	assert.NotContains(t, out.String(), "hunter2")
	assert.NotContains(t, out.String(), "tok3n")
}

func TestDumpShowSecrets(t *testing.T) {
	t.Parallel()

	cmd := Command(secretSettings())
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"dump", "--show-secrets"})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "hunter2")
}
