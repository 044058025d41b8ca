package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/strainbot/internal/buildinfo"
	"github.com/tphakala/strainbot/internal/conf"
	"github.com/tphakala/strainbot/internal/moderation"
	"github.com/tphakala/strainbot/internal/sheetdb"
)

func testSettings() *conf.Settings {
	s := &conf.Settings{}
	s.Store.Backend = conf.BackendMemory
	s.Moderation.RoleID = "900"
	s.Moderation.PerUserLimit = 5
	s.Moderation.RateWindow = 60
	s.Status.TopLimit = 10
	s.Status.RecentLimit = 10
	s.Status.RefreshInterval = time.Hour
	return s
}

func TestOpenBackend(t *testing.T) {
	t.Parallel()

	s := testSettings()
	b, err := OpenBackend(context.Background(), s)
	require.NoError(t, err)
	assert.IsType(t, &sheetdb.Memory{}, b)

	s.Store.Backend = "excel"
	_, err = OpenBackend(context.Background(), s)
	assert.Error(t, err)
}

func TestNewWiresComponents(t *testing.T) {
	ctx := context.Background()
	backend := sheetdb.NewMemory()

	a, err := New(ctx, testSettings(), buildinfo.NewContext("test", ""), backend)
	require.NoError(t, err)
	defer func() { assert.NoError(t, a.Close()) }()

	tables, err := backend.Tables(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Strains", "Ratings", "Submissions", "Producers"}, tables)
	assert.Nil(t, a.MQTT, "no broker configured")

	mod := moderation.Actor{UserID: 7, RoleIDs: []string{"900"}}
	res, err := a.Moderation.Submit(ctx, moderation.Actor{UserID: 1}, moderation.SubmitRequest{
		Name: "Blue Dream", HarvestDate: "01-12-2024", PackageDate: "15-12-2024", Category: "flower",
	})
	require.NoError(t, err)
	_, err = a.Moderation.Approve(ctx, mod, res.ID)
	require.NoError(t, err)

	require.NoError(t, a.Board.Refresh(ctx))
	assert.NotEmpty(t, a.Board.Snapshot())
}

func TestRunStopsOnCancel(t *testing.T) {
	s := testSettings()
	s.Status.Enabled = true
	a, err := New(context.Background(), s, buildinfo.NewContext("test", ""), sheetdb.NewMemory())
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool { return len(a.Board.Snapshot()) > 0 }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
