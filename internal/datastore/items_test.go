package datastore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/strainbot/internal/errors"
	"github.com/tphakala/strainbot/internal/sheetdb"
)

func submit(t *testing.T, s *Store, name, category, producer string, user int64) string {
	t.Helper()
	id, err := s.Submit(context.Background(), Submission{
		Name:        name,
		HarvestDate: "01-12-2024",
		PackageDate: "15-12-2024",
		Category:    category,
		Producer:    producer,
		UserID:      user,
		Username:    "tester",
	})
	require.NoError(t, err)
	return id
}

func TestSubmitApproveRateFlow(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	id := submit(t, s, "Blue Dream", "flower", "Q-Farms", 1)
	assert.Len(t, id, 8)

	dup, err := s.FindDuplicate(ctx, "blue-dream", "01-12-2024", "15-12-2024", "flower", "Q-Farms")
	require.NoError(t, err)
	assert.Equal(t, id, dup)

	_, err = s.Rate(ctx, RatingInput{Identifier: id, UserID: 1, Value: 8})
	assert.ErrorIs(t, err, ErrNotApproved)

	approved, err := s.Approve(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, approved.Status)

	_, err = s.Approve(ctx, "blue dream")
	assert.ErrorIs(t, err, ErrAlreadyApproved)

	it, err := s.Rate(ctx, RatingInput{Identifier: id, UserID: 1, Value: 8, Username: "alice"})
	require.NoError(t, err)
	assert.InDelta(t, 8.0, it.AverageRating, 0.001)
	assert.Equal(t, 1, it.TotalRatings)

	it, err = s.Rate(ctx, RatingInput{Identifier: "Blue Dream", UserID: 2, Value: 6})
	require.NoError(t, err)
	assert.InDelta(t, 7.0, it.AverageRating, 0.001)
	assert.Equal(t, 2, it.TotalRatings)

	_, err = s.Rate(ctx, RatingInput{Identifier: id, UserID: 1, Value: 3})
	assert.ErrorIs(t, err, ErrAlreadyRated)
	assert.True(t, errors.IsCategory(err, errors.CategoryConflict))

	stored, err := s.GetByIdentifier(ctx, id, "")
	require.NoError(t, err)
	assert.InDelta(t, 7.0, stored.AverageRating, 0.001)
	assert.Equal(t, 2, stored.TotalRatings)

	ratings, err := s.ItemRatings(ctx, id, 0)
	require.NoError(t, err)
	require.Len(t, ratings, 2)
	assert.Equal(t, int64(1), ratings[0].UserID)
	assert.Equal(t, "alice", ratings[0].Username)
	assert.Equal(t, "User-2", ratings[1].DisplayName())
}

func TestSubmitValidation(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	cases := []struct {
		name string
		sub  Submission
	}{
		{"bad harvest date", Submission{Name: "X Kush", HarvestDate: "2024-12-01", PackageDate: "15-12-2024", Category: "flower"}},
		{"impossible package date", Submission{Name: "X Kush", HarvestDate: "01-12-2024", PackageDate: "31-02-2024", Category: "flower"}},
		{"unknown category", Submission{Name: "X Kush", HarvestDate: "01-12-2024", PackageDate: "15-12-2024", Category: "edible"}},
		{"empty name", Submission{Name: "  ", HarvestDate: "01-12-2024", PackageDate: "15-12-2024", Category: "hash"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Submit(ctx, tc.sub)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}

	pending, err := s.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSubmitRejectsDuplicate(t *testing.T) {
	s, mem := newTestStore(t)
	ctx := context.Background()

	id := submit(t, s, "Blue Dream", "flower", "Q-Farms", 1)

	cases := []struct {
		name string
		sub  Submission
		dup  bool
	}{
		{"same tuple", Submission{Name: "Blue Dream", HarvestDate: "01-12-2024", PackageDate: "15-12-2024", Category: "flower", Producer: "Q-Farms"}, true},
		{"normalized name", Submission{Name: "blue-dream", HarvestDate: "01-12-2024", PackageDate: "15-12-2024", Category: "FLOWER", Producer: "Q-Farms"}, true},
		{"unpadded dates", Submission{Name: "Blue Dream", HarvestDate: "1-12-2024", PackageDate: "15-12-2024", Category: "flower", Producer: "Q-Farms"}, true},
		{"other producer", Submission{Name: "Blue Dream", HarvestDate: "01-12-2024", PackageDate: "15-12-2024", Category: "flower", Producer: "Fyta"}, false},
		{"other harvest", Submission{Name: "Blue Dream", HarvestDate: "02-12-2024", PackageDate: "15-12-2024", Category: "flower", Producer: "Q-Farms"}, false},
		{"other category", Submission{Name: "Blue Dream", HarvestDate: "01-12-2024", PackageDate: "15-12-2024", Category: "hash", Producer: "Q-Farms"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := s.Submit(ctx, tc.sub)
			if !tc.dup {
				require.NoError(t, err)
				assert.NotEqual(t, id, got)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrDuplicate)
			assert.True(t, errors.IsCategory(err, errors.CategoryConflict))
			var de *DuplicateError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, id, de.ExistingID)
		})
	}

	rows, err := mem.ReadRows(ctx, TableSubmissions)
	require.NoError(t, err)
	assert.Len(t, rows, 5, "header plus the four accepted submissions")
}

func TestSubmitStoresPaddedDates(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	id, err := s.Submit(ctx, Submission{
		Name: "Gorilla Glue", HarvestDate: "1-12-2024", PackageDate: "5-1-2025", Category: "flower",
	})
	require.NoError(t, err)

	it, err := s.GetByIdentifier(ctx, id, "")
	require.NoError(t, err)
	assert.Equal(t, "01-12-2024", it.HarvestDate)
	assert.Equal(t, "05-01-2025", it.PackageDate)

	records, err := s.LastSubmissions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "01-12-2024", records[0].HarvestDate)

	dup, err := s.FindDuplicate(ctx, "Gorilla Glue", "01-12-2024", "05-01-2025", "flower", "")
	require.NoError(t, err)
	assert.Equal(t, id, dup)
}

func TestConcurrentDuplicateSubmissions(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	const workers = 6
	var wg sync.WaitGroup
	ids := make([]string, workers)
	errs := make([]error, workers)
	for i := range workers {
		wg.Go(func() {
			ids[i], errs[i] = s.Submit(ctx, Submission{
				Name: "Blue Dream", HarvestDate: "01-12-2024", PackageDate: "15-12-2024",
				Category: "flower", Producer: "Q-Farms", UserID: int64(i + 1),
			})
		})
	}
	wg.Wait()

	var stored string
	for i, err := range errs {
		if err == nil {
			assert.Empty(t, stored, "only one submission may be stored")
			stored = ids[i]
		}
	}
	require.NotEmpty(t, stored)
	for _, err := range errs {
		if err == nil {
			continue
		}
		var de *DuplicateError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, stored, de.ExistingID)
	}

	pending, err := s.ListPending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
	records, err := s.LastSubmissions(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestRemoveProducerKeepsItems(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	id := submit(t, s, "Amnesia Haze", "flower", "Fyta", 1)
	_, err := s.Approve(ctx, id)
	require.NoError(t, err)
	before, err := s.GetByIdentifier(ctx, id, "")
	require.NoError(t, err)

	require.NoError(t, s.RemoveProducer(ctx, "Fyta"))

	names, err := s.ListProducers(ctx)
	require.NoError(t, err)
	assert.NotContains(t, names, "Fyta")

	after, err := s.GetByIdentifier(ctx, id, "")
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, "Fyta", after.Producer)

	approved, err := s.ListApproved(ctx, "")
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, "Fyta", approved[0].Producer)
}

func TestSearchWildcards(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	blue := submit(t, s, "Blue Dream", "flower", "", 1)
	berry := submit(t, s, "Blueberry", "flower", "", 1)
	bluez := submit(t, s, "Bluez", "hash", "", 1)
	submit(t, s, "Sour Diesel", "flower", "", 1)

	cases := []struct {
		query    string
		category string
		want     []string
	}{
		{query: "Blue*", want: []string{blue, berry, bluez}},
		{query: "Blue*", category: "flower", want: []string{blue, berry}},
		{query: "Blue?", want: []string{bluez}},
		{query: "?????", want: []string{bluez}},
		{query: "*Diesel", category: "hash", want: nil},
	}
	for _, tc := range cases {
		t.Run(tc.query+"/"+tc.category, func(t *testing.T) {
			got, err := s.Search(ctx, tc.query, tc.category)
			require.NoError(t, err)
			ids := make([]string, 0, len(got))
			for _, it := range got {
				ids = append(ids, it.ID)
				assert.NotEqual(t, "Sour Diesel", it.Name)
			}
			assert.ElementsMatch(t, tc.want, ids)
		})
	}
}

func TestSubmitWritesLogRow(t *testing.T) {
	s, mem := newTestStore(t)
	ctx := context.Background()

	first := submit(t, s, "Amnesia", "Hash", "", 7)
	second := submit(t, s, "Gelato", "rosin", "Fyta", 8)

	records, err := s.LastSubmissions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.ElementsMatch(t, []string{first, second}, []string{records[0].ItemID, records[1].ItemID})

	rows, err := mem.ReadRows(ctx, TableSubmissions)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "2", rows[2][0])
	assert.Equal(t, "'7", rows[1][3])
	assert.Equal(t, "hash", rows[1][7])
	assert.Equal(t, "Unknown", rows[1][8])
	assert.Equal(t, "2024-12-20 18:30:00", rows[1][6])
}

func TestApproveUnknown(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Approve(context.Background(), "DEADBEEF")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, errors.IsNotFound(err))
}

func TestRateValidation(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for _, v := range []int{0, 11, -1} {
		_, err := s.Rate(ctx, RatingInput{Identifier: "anything", UserID: 1, Value: v})
		assert.ErrorIs(t, err, ErrInvalidInput, "value %d", v)
	}

	_, err := s.Rate(ctx, RatingInput{Identifier: "missing", UserID: 1, Value: 5})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRateCategoryFilter(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	id := submit(t, s, "Moroccan", "hash", "", 1)
	_, err := s.Approve(ctx, id)
	require.NoError(t, err)

	_, err = s.Rate(ctx, RatingInput{Identifier: "Moroccan", UserID: 1, Value: 5, Category: "flower"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Rate(ctx, RatingInput{Identifier: "Moroccan", UserID: 1, Value: 5, Category: "HASH"})
	assert.NoError(t, err)
}

func TestRename(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	id := submit(t, s, "Bleu Dreem", "flower", "", 1)
	_, err := s.Approve(ctx, id)
	require.NoError(t, err)

	// prime the cache with the old name
	_, err = s.GetByIdentifier(ctx, "Bleu Dreem", "")
	require.NoError(t, err)

	renamed, err := s.Rename(ctx, id, "Blue Dream")
	require.NoError(t, err)
	assert.Equal(t, "Blue Dream", renamed.Name)

	_, err = s.GetByIdentifier(ctx, "Bleu Dreem", "")
	assert.ErrorIs(t, err, ErrNotFound, "rename must invalidate cached lookups")

	got, err := s.GetByIdentifier(ctx, "blue dream", "")
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)

	_, err = s.Rename(ctx, "00000000", "Whatever")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Rename(ctx, id, " ")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestGetByIdentifierMatching(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	blue := submit(t, s, "Blue Dream", "flower", "", 1)
	bluey := submit(t, s, "Blueberry", "flower", "", 1)
	submit(t, s, "Lemon Haze", "hash", "", 1)

	cases := []struct {
		query    string
		category string
		want     string
		missing  bool
	}{
		{query: blue, want: blue},
		{query: "blueberry", want: bluey},
		{query: "Blue*", want: blue},
		{query: "blue?erry", want: bluey},
		{query: "Blue?", missing: true},
		{query: "dream", want: blue},
		{query: "Lemon*", category: "flower", missing: true},
		{query: "x.y", missing: true},
	}
	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			it, err := s.GetByIdentifier(ctx, tc.query, tc.category)
			if tc.missing {
				assert.ErrorIs(t, err, ErrNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, it.ID)
		})
	}
}

func TestSearchCap(t *testing.T) {
	s, _ := newTestStore(t)
	for i := range 12 {
		submit(t, s, "Kush "+string(rune('A'+i)), "flower", "", 1)
	}
	got, err := s.Search(context.Background(), "kush", "")
	require.NoError(t, err)
	assert.Len(t, got, MaxSearchResults)

	got, err = s.Search(context.Background(), "Kush ?", "flower")
	require.NoError(t, err)
	assert.Len(t, got, MaxSearchResults)

	got, err = s.Search(context.Background(), "  ", "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestListApprovedAndTopRated(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	ids := map[string]string{}
	for _, name := range []string{"Alpha", "Bravo", "Charlie", "Delta"} {
		ids[name] = submit(t, s, name, "flower", "", 1)
		_, err := s.Approve(ctx, ids[name])
		require.NoError(t, err)
	}
	submit(t, s, "Echo", "flower", "", 1) // stays pending

	rate := func(name string, user int64, v int) {
		_, err := s.Rate(ctx, RatingInput{Identifier: ids[name], UserID: user, Value: v})
		require.NoError(t, err)
	}
	rate("Bravo", 1, 6)
	rate("Charlie", 1, 9)
	rate("Delta", 1, 6)

	approved, err := s.ListApproved(ctx, "")
	require.NoError(t, err)
	names := make([]string, 0, len(approved))
	for _, it := range approved {
		names = append(names, it.Name)
	}
	// ties keep table order, unrated last
	assert.Equal(t, []string{"Charlie", "Bravo", "Delta", "Alpha"}, names)

	top, err := s.TopRated(ctx, "Flower", 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "Charlie", top[0].Name)
	assert.Equal(t, "Bravo", top[1].Name)

	// a new rating must be visible in the leaderboard straight away
	rate("Alpha", 1, 10)
	top, err = s.TopRated(ctx, "flower", 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "Alpha", top[0].Name)

	hash, err := s.TopRated(ctx, "hash", 5)
	require.NoError(t, err)
	assert.Empty(t, hash)

	count, err := s.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRecentRatingsSkipsUnapproved(t *testing.T) {
	mem := newSeededMemory(t)
	s := New(mem, Options{})
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	recent, err := s.RecentRatings(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2, "filtering happens before truncation")
	assert.Equal(t, "Gelato", recent[0].ItemName)
	assert.Equal(t, "Amnesia", recent[1].ItemName)

	last, err := s.LastRatings(ctx, 5)
	require.NoError(t, err)
	require.Len(t, last, 4)
	assert.Equal(t, "Hidden", last[0].ItemName)
	assert.Equal(t, "Unknown", last[3].ItemName)
	assert.Equal(t, "N/A", last[3].HarvestDate)
	assert.Equal(t, "User-99", last[3].Display)
}

// newSeededMemory builds tables the way older deployments left them: plain
// user ids and rows without optional trailing cells
func newSeededMemory(t *testing.T) *sheetdb.Memory {
	t.Helper()
	ctx := context.Background()
	m := sheetdb.NewMemory()
	require.NoError(t, m.CreateTable(ctx, TableStrains, StrainsHeader))
	require.NoError(t, m.CreateTable(ctx, TableRatings, RatingsHeader))
	rows := [][]string{
		{"AAAA0001", "Amnesia", "Approved", "7", "1", "2024-01-01", "01-01-2024", "02-01-2024"},
		{"AAAA0002", "Gelato", "Approved", "9", "1", "2024-01-01", "01-01-2024", "02-01-2024", "rosin", "Fyta"},
		{"AAAA0003", "Hidden", "Pending", "", "", "2024-01-01", "01-01-2024", "02-01-2024"},
	}
	for _, r := range rows {
		require.NoError(t, m.AppendRow(ctx, TableStrains, r))
	}
	ratings := [][]string{
		{"1", "GONE0000", "99", "4", "2024-01-01 10:00:00"},
		{"2", "AAAA0001", "'5", "7", "2024-01-02 10:00:00", "bob"},
		{"3", "AAAA0002", "6", "9", "2024-01-03 10:00:00"},
		{"4", "AAAA0003", "7", "2", "2024-01-04 10:00:00"},
	}
	for _, r := range ratings {
		require.NoError(t, m.AppendRow(ctx, TableRatings, r))
	}
	return m
}

func TestProducers(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	names, err := s.ListProducers(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultProducers, names)

	added, err := s.AddProducer(ctx, "  Green House  ")
	require.NoError(t, err)
	assert.Equal(t, "Green House", added)

	_, err = s.AddProducer(ctx, "green house")
	assert.ErrorIs(t, err, ErrAlreadyExists)
	_, err = s.AddProducer(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	require.NoError(t, s.RemoveProducer(ctx, "FYTA"))
	assert.ErrorIs(t, s.RemoveProducer(ctx, "Fyta"), ErrNotFound)
	assert.ErrorIs(t, s.RemoveProducer(ctx, "Producer_Name"), ErrNotFound, "header row is never removed")

	names, err = s.ListProducers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hollandse Hoogtes", "Q-Farms", "Aardachtig", "Canadelaar", "Holigram", "Green House"}, names)

	// removing everything falls back to the defaults
	for _, n := range names {
		require.NoError(t, s.RemoveProducer(ctx, n))
	}
	names, err = s.ListProducers(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultProducers, names)
}

func TestCacheHitsAvoidBackend(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	id := submit(t, s, "Zkittlez", "flower", "", 1)

	_, err := s.GetByIdentifier(ctx, id, "")
	require.NoError(t, err)
	before := s.Cache().Stats()

	_, err = s.GetByIdentifier(ctx, id, "")
	require.NoError(t, err)
	after := s.Cache().Stats()
	assert.Equal(t, before.Hits+1, after.Hits)
}

func TestSubmitUsesClock(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	id := submit(t, s, "Clocked", "flower", "", 1)
	it, err := s.GetByIdentifier(ctx, id, "")
	require.NoError(t, err)
	assert.Equal(t, fixedNow.Format(time.DateOnly), it.DateAdded)
}
