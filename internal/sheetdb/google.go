package sheetdb

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/tphakala/strainbot/internal/errors"
	"github.com/tphakala/strainbot/internal/logger"
)

const (
	valueInputUserEntered = "USER_ENTERED"
	insertRows            = "INSERT_ROWS"
)

// Google stores tables as worksheets of one spreadsheet
type Google struct {
	svc           *sheets.Service
	spreadsheetID string

	mu       sync.Mutex
	sheetIDs map[string]int64 // worksheet title to sheet id
}

// CredentialsOption reads a service account key file and returns a client
// option scoped to spreadsheet access
func CredentialsOption(ctx context.Context, path string) (option.ClientOption, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from config
	if err != nil {
		return nil, errors.New(err).
			Component("sheetdb").
			Category(errors.CategoryConfiguration).
			Context("credentials_path", path).
			Build()
	}
	creds, err := google.CredentialsFromJSON(ctx, data, sheets.SpreadsheetsScope) //nolint:staticcheck // service account file is operator supplied
	if err != nil {
		return nil, errors.New(err).
			Component("sheetdb").
			Category(errors.CategoryConfiguration).
			Context("credentials_path", path).
			Build()
	}
	return option.WithCredentials(creds), nil
}

// NewGoogle connects to spreadsheetID using opts
func NewGoogle(ctx context.Context, spreadsheetID string, opts ...option.ClientOption) (*Google, error) {
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.New(err).
			Component("sheetdb").
			Category(errors.CategoryNetwork).
			Context("operation", "create_sheets_service").
			Build()
	}
	return &Google{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetIDs:      make(map[string]int64),
	}, nil
}

// quoteTable returns the A1 notation for a whole worksheet
func quoteTable(table string) string {
	return "'" + strings.ReplaceAll(table, "'", "''") + "'"
}

// columnName converts a 1-based column index to letters (1 -> A, 27 -> AA)
func columnName(col int) string {
	var b []byte
	for col > 0 {
		col--
		b = append([]byte{byte('A' + col%26)}, b...)
		col /= 26
	}
	return string(b)
}

func (g *Google) wrap(err error, op, table string) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusBadRequest && strings.Contains(gerr.Message, "Unable to parse range") {
		return tableNotFound(table)
	}
	return errors.New(err).
		Component("sheetdb").
		Category(errors.CategoryNetwork).
		Context("operation", op).
		Context("table", table).
		Build()
}

// loadSheets refreshes the title to id map
func (g *Google) loadSheets(ctx context.Context) ([]string, error) {
	ss, err := g.svc.Spreadsheets.Get(g.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return nil, g.wrap(err, "get_spreadsheet", "")
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	titles := make([]string, 0, len(ss.Sheets))
	for _, sh := range ss.Sheets {
		if sh.Properties == nil {
			continue
		}
		titles = append(titles, sh.Properties.Title)
		g.sheetIDs[sh.Properties.Title] = sh.Properties.SheetId
	}
	return titles, nil
}

func (g *Google) sheetID(ctx context.Context, table string) (int64, error) {
	g.mu.Lock()
	id, ok := g.sheetIDs[table]
	g.mu.Unlock()
	if ok {
		return id, nil
	}
	if _, err := g.loadSheets(ctx); err != nil {
		return 0, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if id, ok := g.sheetIDs[table]; ok {
		return id, nil
	}
	return 0, tableNotFound(table)
}

func (g *Google) Tables(ctx context.Context) ([]string, error) {
	return g.loadSheets(ctx)
}

func (g *Google) CreateTable(ctx context.Context, name string, header []string) error {
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{
					Title: name,
					GridProperties: &sheets.GridProperties{
						RowCount:    1000,
						ColumnCount: int64(max(len(header), 1)),
					},
				},
			},
		}},
	}
	resp, err := g.svc.Spreadsheets.BatchUpdate(g.spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		return g.wrap(err, "add_sheet", name)
	}
	if len(resp.Replies) > 0 && resp.Replies[0].AddSheet != nil && resp.Replies[0].AddSheet.Properties != nil {
		g.mu.Lock()
		g.sheetIDs[name] = resp.Replies[0].AddSheet.Properties.SheetId
		g.mu.Unlock()
	}
	getLogger().Info("created worksheet", logger.String("table", name))
	return g.UpdateCells(ctx, name, 1, 1, header)
}

func (g *Google) ReadRows(ctx context.Context, table string) ([][]string, error) {
	start := time.Now()
	vr, err := g.svc.Spreadsheets.Values.Get(g.spreadsheetID, quoteTable(table)).Context(ctx).Do()
	if err != nil {
		return nil, g.wrap(err, "read_rows", table)
	}
	rows := make([][]string, len(vr.Values))
	for i, raw := range vr.Values {
		row := make([]string, len(raw))
		for j, cell := range raw {
			row[j] = cellString(cell)
		}
		rows[i] = row
	}
	getLogger().Trace("read worksheet",
		logger.String("table", table),
		logger.Int("rows", len(rows)),
		logger.Duration("elapsed", time.Since(start)))
	return rows, nil
}

func cellString(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	default:
		return fmt.Sprint(c)
	}
}

func toValues(cells []string) []any {
	out := make([]any, len(cells))
	for i, c := range cells {
		out[i] = c
	}
	return out
}

func (g *Google) AppendRow(ctx context.Context, table string, row []string) error {
	vr := &sheets.ValueRange{Values: [][]any{toValues(row)}}
	_, err := g.svc.Spreadsheets.Values.Append(g.spreadsheetID, quoteTable(table)+"!A1", vr).
		ValueInputOption(valueInputUserEntered).
		InsertDataOption(insertRows).
		Context(ctx).
		Do()
	if err != nil {
		return g.wrap(err, "append_row", table)
	}
	return nil
}

func (g *Google) UpdateCells(ctx context.Context, table string, row, col int, values []string) error {
	if row < 1 || col < 1 {
		return rowOutOfRange(table, row)
	}
	rng := fmt.Sprintf("%s!%s%d:%s%d", quoteTable(table),
		columnName(col), row, columnName(col+max(len(values), 1)-1), row)
	vr := &sheets.ValueRange{Values: [][]any{toValues(values)}}
	_, err := g.svc.Spreadsheets.Values.Update(g.spreadsheetID, rng, vr).
		ValueInputOption(valueInputUserEntered).
		Context(ctx).
		Do()
	if err != nil {
		return g.wrap(err, "update_cells", table)
	}
	return nil
}

func (g *Google) DeleteRow(ctx context.Context, table string, row int) error {
	if row < 1 {
		return rowOutOfRange(table, row)
	}
	sheetID, err := g.sheetID(ctx, table)
	if err != nil {
		return err
	}
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			DeleteDimension: &sheets.DeleteDimensionRequest{
				Range: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(row - 1),
					EndIndex:   int64(row),
					// zero values are meaningful here
					ForceSendFields: []string{"SheetId", "StartIndex"},
				},
			},
		}},
	}
	if _, err := g.svc.Spreadsheets.BatchUpdate(g.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return g.wrap(err, "delete_row", table)
	}
	return nil
}

// ReplaceRows clears the worksheet values and writes rows from A1. The
// worksheet itself, its id and formatting are kept.
func (g *Google) ReplaceRows(ctx context.Context, table string, rows [][]string) error {
	_, err := g.svc.Spreadsheets.Values.Clear(g.spreadsheetID, quoteTable(table), &sheets.ClearValuesRequest{}).
		Context(ctx).
		Do()
	if err != nil {
		return g.wrap(err, "clear_values", table)
	}
	if len(rows) == 0 {
		return nil
	}
	values := make([][]any, len(rows))
	for i, r := range rows {
		values[i] = toValues(r)
	}
	vr := &sheets.ValueRange{Values: values}
	_, err = g.svc.Spreadsheets.Values.Update(g.spreadsheetID, quoteTable(table)+"!A1", vr).
		ValueInputOption(valueInputUserEntered).
		Context(ctx).
		Do()
	if err != nil {
		return g.wrap(err, "replace_rows", table)
	}
	getLogger().Info("rewrote worksheet", logger.String("table", table), logger.Int("rows", len(rows)))
	return nil
}

func (g *Google) Ping(ctx context.Context) error {
	if _, err := g.svc.Spreadsheets.Get(g.spreadsheetID).Fields("spreadsheetId").Context(ctx).Do(); err != nil {
		return g.wrap(err, "ping", "")
	}
	return nil
}

// Close is a no-op; the HTTP client is owned by the service
func (g *Google) Close() error { return nil }

var _ Backend = (*Google)(nil)
