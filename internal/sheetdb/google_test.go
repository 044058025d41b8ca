package sheetdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	fakeSpreadsheetID = "sheet-1"
	sheetsBase        = `^https://sheets\.googleapis\.com/v4/spreadsheets/sheet-1`
)

// fakeSpreadsheet emulates the subset of the Sheets API used by Google
type fakeSpreadsheet struct {
	mu       sync.Mutex
	order    []string
	ids      map[string]int64
	data     map[string][][]string
	nextID   int64
	requests map[string]int
}

func newFakeSpreadsheet() *fakeSpreadsheet {
	return &fakeSpreadsheet{
		ids:      make(map[string]int64),
		data:     make(map[string][][]string),
		requests: make(map[string]int),
	}
}

var cellRef = regexp.MustCompile(`^([A-Z]+)(\d+)`)

// parseRange splits "'Title'!B3:C3" into title, row and column
func parseRange(rng string) (title string, row, col int) {
	ref := ""
	if i := strings.LastIndex(rng, "!"); i >= 0 {
		title, ref = rng[:i], rng[i+1:]
	} else {
		title = rng
	}
	title = strings.ReplaceAll(strings.Trim(title, "'"), "''", "'")
	if m := cellRef.FindStringSubmatch(ref); m != nil {
		for _, c := range m[1] {
			col = col*26 + int(c-'A'+1)
		}
		row, _ = strconv.Atoi(m[2])
	}
	return title, row, col
}

func rangeFromPath(path string) string {
	i := strings.Index(path, "/values/")
	rng := path[i+len("/values/"):]
	rng = strings.TrimSuffix(rng, ":append")
	return strings.TrimSuffix(rng, ":clear")
}

func badRange(rng string) (*http.Response, error) {
	return httpmock.NewJsonResponse(http.StatusBadRequest, map[string]any{
		"error": map[string]any{
			"code":    400,
			"message": "Unable to parse range: " + rng,
			"status":  "INVALID_ARGUMENT",
		},
	})
}

func decodeValues(req *http.Request) ([][]string, error) {
	var vr sheets.ValueRange
	if err := json.NewDecoder(req.Body).Decode(&vr); err != nil {
		return nil, err
	}
	if len(vr.Values) == 0 {
		return nil, fmt.Errorf("no rows in request")
	}
	rows := make([][]string, len(vr.Values))
	for i, raw := range vr.Values {
		row := make([]string, len(raw))
		for j, v := range raw {
			// USER_ENTERED strips the text prefix
			row[j] = strings.TrimPrefix(fmt.Sprint(v), "'")
		}
		rows[i] = row
	}
	return rows, nil
}

func (f *fakeSpreadsheet) register(mt *httpmock.MockTransport) {
	mt.RegisterResponder(http.MethodGet, "=~"+sheetsBase+`/values/`, func(req *http.Request) (*http.Response, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.requests["get_values"]++
		rng := rangeFromPath(req.URL.Path)
		title, _, _ := parseRange(rng)
		rows, ok := f.data[title]
		if !ok {
			return badRange(rng)
		}
		values := make([][]any, len(rows))
		for i, r := range rows {
			values[i] = make([]any, len(r))
			for j, c := range r {
				values[i][j] = c
			}
		}
		return httpmock.NewJsonResponse(http.StatusOK, map[string]any{
			"range":          rng,
			"majorDimension": "ROWS",
			"values":         values,
		})
	})

	mt.RegisterResponder(http.MethodPost, "=~"+sheetsBase+`/values/.*:append`, func(req *http.Request) (*http.Response, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.requests["append"]++
		if req.URL.Query().Get("valueInputOption") != "USER_ENTERED" || req.URL.Query().Get("insertDataOption") != "INSERT_ROWS" {
			return httpmock.NewStringResponse(http.StatusBadRequest, "bad options"), nil
		}
		rng := rangeFromPath(req.URL.Path)
		title, _, _ := parseRange(rng)
		if _, ok := f.data[title]; !ok {
			return badRange(rng)
		}
		rows, err := decodeValues(req)
		if err != nil {
			return nil, err
		}
		f.data[title] = append(f.data[title], rows...)
		return httpmock.NewJsonResponse(http.StatusOK, map[string]any{"spreadsheetId": fakeSpreadsheetID})
	})

	mt.RegisterResponder(http.MethodPut, "=~"+sheetsBase+`/values/`, func(req *http.Request) (*http.Response, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.requests["update"]++
		rng := rangeFromPath(req.URL.Path)
		title, row, col := parseRange(rng)
		rows, ok := f.data[title]
		if !ok {
			return badRange(rng)
		}
		values, err := decodeValues(req)
		if err != nil {
			return nil, err
		}
		for len(rows) < row-1+len(values) {
			rows = append(rows, []string{})
		}
		for i, v := range values {
			rows[row-1+i] = setCells(rows[row-1+i], col, v)
		}
		f.data[title] = rows
		return httpmock.NewJsonResponse(http.StatusOK, map[string]any{"spreadsheetId": fakeSpreadsheetID, "updatedRows": len(values)})
	})

	mt.RegisterResponder(http.MethodPost, "=~"+sheetsBase+`/values/.*:clear`, func(req *http.Request) (*http.Response, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.requests["clear"]++
		rng := rangeFromPath(req.URL.Path)
		title, _, _ := parseRange(rng)
		if _, ok := f.data[title]; !ok {
			return badRange(rng)
		}
		f.data[title] = [][]string{}
		return httpmock.NewJsonResponse(http.StatusOK, map[string]any{"spreadsheetId": fakeSpreadsheetID, "clearedRange": rng})
	})

	mt.RegisterResponder(http.MethodPost, "=~"+sheetsBase+`:batchUpdate`, func(req *http.Request) (*http.Response, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.requests["batch_update"]++
		var body sheets.BatchUpdateSpreadsheetRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			return nil, err
		}
		replies := make([]map[string]any, 0, len(body.Requests))
		for _, r := range body.Requests {
			switch {
			case r.AddSheet != nil:
				title := r.AddSheet.Properties.Title
				id := f.nextID
				f.nextID++
				f.ids[title] = id
				f.order = append(f.order, title)
				f.data[title] = [][]string{}
				replies = append(replies, map[string]any{
					"addSheet": map[string]any{"properties": map[string]any{"sheetId": id, "title": title}},
				})
			case r.DeleteDimension != nil:
				dr := r.DeleteDimension.Range
				for title, id := range f.ids {
					if id == dr.SheetId {
						f.data[title] = slices.Delete(f.data[title], int(dr.StartIndex), int(dr.EndIndex))
					}
				}
				replies = append(replies, map[string]any{})
			}
		}
		return httpmock.NewJsonResponse(http.StatusOK, map[string]any{"spreadsheetId": fakeSpreadsheetID, "replies": replies})
	})

	mt.RegisterResponder(http.MethodGet, "=~"+sheetsBase+`\?`, func(_ *http.Request) (*http.Response, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.requests["get_spreadsheet"]++
		list := make([]map[string]any, 0, len(f.order))
		for _, title := range f.order {
			list = append(list, map[string]any{"properties": map[string]any{"sheetId": f.ids[title], "title": title}})
		}
		return httpmock.NewJsonResponse(http.StatusOK, map[string]any{"spreadsheetId": fakeSpreadsheetID, "sheets": list})
	})
}

func newFakeGoogle(t *testing.T) (*Google, *fakeSpreadsheet) {
	t.Helper()
	mt := httpmock.NewMockTransport()
	fake := newFakeSpreadsheet()
	fake.register(mt)

	g, err := NewGoogle(context.Background(), fakeSpreadsheetID,
		option.WithHTTPClient(&http.Client{Transport: mt}),
		option.WithEndpoint("https://sheets.googleapis.com/"))
	require.NoError(t, err)
	return g, fake
}

func TestGoogleBackend(t *testing.T) {
	t.Parallel()
	g, fake := newFakeGoogle(t)

	runBackendSuite(t, g)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, 3, fake.requests["batch_update"], "two sheets added and one row deleted")
	assert.Equal(t, 1, fake.requests["clear"])
	assert.Positive(t, fake.requests["append"])
	assert.Equal(t, []string{"1", "ABCD1234", "42", "8"}, fake.data["Ratings"][1],
		"user entered text prefix is not stored")
}

func TestGoogleReplaceRowsKeepsWorksheet(t *testing.T) {
	t.Parallel()
	g, fake := newFakeGoogle(t)
	ctx := context.Background()

	require.NoError(t, g.CreateTable(ctx, "Producers", []string{"Fyta"}))
	require.NoError(t, g.AppendRow(ctx, "Producers", []string{"Holigram", "2024-01-01"}))
	require.NoError(t, g.AppendRow(ctx, "Producers", []string{"Q-Farms", "2024-01-02"}))

	fake.mu.Lock()
	batches := fake.requests["batch_update"]
	sheetID := fake.ids["Producers"]
	fake.mu.Unlock()

	rows := [][]string{
		{"Producer_Name", "Date_Added"},
		{"Fyta", "2024-12-20"},
		{"Holigram", "2024-01-01"},
	}
	require.NoError(t, g.ReplaceRows(ctx, "Producers", rows))

	got, err := g.ReadRows(ctx, "Producers")
	require.NoError(t, err)
	assert.Equal(t, rows, got, "rows beyond the new contents are cleared")

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, batches, fake.requests["batch_update"], "no worksheet is added or removed")
	assert.Equal(t, sheetID, fake.ids["Producers"])
	assert.Equal(t, []string{"Producers"}, fake.order)
	assert.Equal(t, 1, fake.requests["clear"])
}

func TestGoogleBackendErrors(t *testing.T) {
	t.Parallel()
	g, _ := newFakeGoogle(t)
	ctx := context.Background()

	err := g.DeleteRow(ctx, "Missing", 2)
	assert.ErrorIs(t, err, ErrTableNotFound)

	err = g.UpdateCells(ctx, "Missing", 1, 1, []string{"x"})
	assert.ErrorIs(t, err, ErrTableNotFound)

	err = g.UpdateCells(ctx, "Strains", 0, 1, []string{"x"})
	assert.ErrorIs(t, err, ErrRowOutOfRange)

	err = g.ReplaceRows(ctx, "Missing", [][]string{{"x"}})
	assert.ErrorIs(t, err, ErrTableNotFound)
}

func TestColumnName(t *testing.T) {
	t.Parallel()
	for col, want := range map[int]string{1: "A", 3: "C", 26: "Z", 27: "AA", 52: "AZ", 53: "BA"} {
		assert.Equal(t, want, columnName(col), col)
	}
}

func TestQuoteTable(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "'Strains'", quoteTable("Strains"))
	assert.Equal(t, "'Bob''s'", quoteTable("Bob's"))
}
