package sheetdb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	mysqldrv "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tphakala/strainbot/internal/errors"
	"github.com/tphakala/strainbot/internal/logger"
)

// slowQueryThreshold is the duration after which queries are logged as slow
const slowQueryThreshold = 200 * time.Millisecond

// sheetRow is one row of one logical table
type sheetRow struct {
	ID       uint   `gorm:"primaryKey"`
	Sheet    string `gorm:"size:64;not null;index:idx_sheet_rows_sheet_position,priority:1"`
	Position int    `gorm:"not null;index:idx_sheet_rows_sheet_position,priority:2"`
	Cells    string `gorm:"type:text;not null"`
}

func (sheetRow) TableName() string { return "sheet_rows" }

// SQL keeps every table in one gorm-managed table of JSON encoded rows
type SQL struct {
	db      *gorm.DB
	dialect string
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger: logger.NewGormLogger(getLogger().Module("gorm"), slowQueryThreshold),
	}
}

// OpenSQLite opens or creates a sqlite database at path
func OpenSQLite(path string) (*SQL, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, errors.New(err).
				Component("sheetdb").
				Category(errors.CategoryFileIO).
				Context("path", path).
				Build()
		}
	}
	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), gormConfig())
	if err != nil {
		return nil, errors.New(err).
			Component("sheetdb").
			Category(errors.CategoryDatabase).
			Context("dialect", "sqlite").
			Build()
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	// sqlite allows a single writer
	sqlDB.SetMaxOpenConns(1)
	return newSQL(db, "sqlite")
}

// OpenMySQL connects to the database named in dsn
func OpenMySQL(dsn string) (*SQL, error) {
	dsn, err := normalizeMySQLDSN(dsn)
	if err != nil {
		return nil, errors.New(err).
			Component("sheetdb").
			Category(errors.CategoryConfiguration).
			Context("dialect", "mysql").
			Build()
	}
	db, err := gorm.Open(mysql.Open(dsn), gormConfig())
	if err != nil {
		return nil, errors.New(err).
			Component("sheetdb").
			Category(errors.CategoryDatabase).
			Context("dialect", "mysql").
			Build()
	}
	return newSQL(db, "mysql")
}

// normalizeMySQLDSN defaults the charset to utf8mb4 and enables parseTime
func normalizeMySQLDSN(dsn string) (string, error) {
	cfg, err := mysqldrv.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid mysql dsn: %w", err)
	}
	if cfg.Params == nil {
		cfg.Params = map[string]string{}
	}
	if _, ok := cfg.Params["charset"]; !ok {
		cfg.Params["charset"] = "utf8mb4"
	}
	cfg.ParseTime = true
	getLogger().Debug("mysql target",
		logger.String("addr", cfg.Addr),
		logger.String("database", cfg.DBName))
	return cfg.FormatDSN(), nil
}

func newSQL(db *gorm.DB, dialect string) (*SQL, error) {
	if err := db.AutoMigrate(&sheetRow{}); err != nil {
		return nil, errors.New(err).
			Component("sheetdb").
			Category(errors.CategoryDatabase).
			Context("operation", "auto_migrate").
			Context("dialect", dialect).
			Build()
	}
	getLogger().Info("sql backend ready", logger.String("dialect", dialect))
	return &SQL{db: db, dialect: dialect}, nil
}

func (s *SQL) dbErr(err error, op, table string) error {
	return errors.New(err).
		Component("sheetdb").
		Category(errors.CategoryDatabase).
		Context("operation", op).
		Context("table", table).
		Context("dialect", s.dialect).
		Build()
}

func encodeCells(cells []string) (string, error) {
	if cells == nil {
		cells = []string{}
	}
	b, err := json.Marshal(cells)
	return string(b), err
}

func decodeCells(raw string) ([]string, error) {
	var cells []string
	err := json.Unmarshal([]byte(raw), &cells)
	return cells, err
}

func (s *SQL) Tables(ctx context.Context) ([]string, error) {
	var names []string
	err := s.db.WithContext(ctx).Model(&sheetRow{}).
		Where("position = ?", 1).
		Order("id").
		Pluck("sheet", &names).Error
	if err != nil {
		return nil, s.dbErr(err, "tables", "")
	}
	return names, nil
}

func (s *SQL) CreateTable(ctx context.Context, name string, header []string) error {
	cells, err := encodeCells(header)
	if err != nil {
		return s.dbErr(err, "create_table", name)
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("sheet = ?", name).Delete(&sheetRow{}).Error; err != nil {
			return err
		}
		return tx.Create(&sheetRow{Sheet: name, Position: 1, Cells: cells}).Error
	})
	if err != nil {
		return s.dbErr(err, "create_table", name)
	}
	return nil
}

// forUpdate locks the selected rows on mysql; sqlite serializes writers itself
func (s *SQL) forUpdate(tx *gorm.DB) *gorm.DB {
	if s.dialect == "mysql" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

func (s *SQL) exists(tx *gorm.DB, table string) (bool, error) {
	var n int64
	err := tx.Model(&sheetRow{}).Where("sheet = ? AND position = ?", table, 1).Count(&n).Error
	return n > 0, err
}

func (s *SQL) ReadRows(ctx context.Context, table string) ([][]string, error) {
	var records []sheetRow
	err := s.db.WithContext(ctx).
		Where("sheet = ?", table).
		Order("position").
		Find(&records).Error
	if err != nil {
		return nil, s.dbErr(err, "read_rows", table)
	}
	if len(records) == 0 {
		return nil, tableNotFound(table)
	}
	rows := make([][]string, len(records))
	for i, r := range records {
		cells, err := decodeCells(r.Cells)
		if err != nil {
			return nil, s.dbErr(err, "decode_row", table)
		}
		rows[i] = cells
	}
	return rows, nil
}

func (s *SQL) AppendRow(ctx context.Context, table string, row []string) error {
	cells, err := encodeCells(row)
	if err != nil {
		return s.dbErr(err, "append_row", table)
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var last sheetRow
		res := s.forUpdate(tx).
			Where("sheet = ?", table).
			Order("position DESC").
			Limit(1).
			Find(&last)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return tableNotFound(table)
		}
		return tx.Create(&sheetRow{Sheet: table, Position: last.Position + 1, Cells: cells}).Error
	})
	if errors.Is(err, ErrTableNotFound) {
		return err
	}
	if err != nil {
		return s.dbErr(err, "append_row", table)
	}
	return nil
}

func (s *SQL) UpdateCells(ctx context.Context, table string, row, col int, values []string) error {
	if row < 1 || col < 1 {
		return rowOutOfRange(table, row)
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec sheetRow
		res := tx.Where("sheet = ? AND position = ?", table, row).Limit(1).Find(&rec)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			ok, err := s.exists(tx, table)
			if err != nil {
				return err
			}
			if !ok {
				return tableNotFound(table)
			}
			return rowOutOfRange(table, row)
		}
		cells, err := decodeCells(rec.Cells)
		if err != nil {
			return err
		}
		encoded, err := encodeCells(setCells(cells, col, values))
		if err != nil {
			return err
		}
		return tx.Model(&rec).Update("cells", encoded).Error
	})
	if errors.Is(err, ErrTableNotFound) || errors.Is(err, ErrRowOutOfRange) {
		return err
	}
	if err != nil {
		return s.dbErr(err, "update_cells", table)
	}
	return nil
}

func (s *SQL) DeleteRow(ctx context.Context, table string, row int) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("sheet = ? AND position = ?", table, row).Delete(&sheetRow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			ok, err := s.exists(tx, table)
			if err != nil {
				return err
			}
			if !ok {
				return tableNotFound(table)
			}
			return rowOutOfRange(table, row)
		}
		return tx.Model(&sheetRow{}).
			Where("sheet = ? AND position > ?", table, row).
			Update("position", gorm.Expr("position - 1")).Error
	})
	if errors.Is(err, ErrTableNotFound) || errors.Is(err, ErrRowOutOfRange) {
		return err
	}
	if err != nil {
		return s.dbErr(err, "delete_row", table)
	}
	return nil
}

func (s *SQL) ReplaceRows(ctx context.Context, table string, rows [][]string) error {
	records := make([]sheetRow, len(rows))
	for i, r := range rows {
		cells, err := encodeCells(r)
		if err != nil {
			return s.dbErr(err, "replace_rows", table)
		}
		records[i] = sheetRow{Sheet: table, Position: i + 1, Cells: cells}
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.exists(s.forUpdate(tx), table)
		if err != nil {
			return err
		}
		if !ok {
			return tableNotFound(table)
		}
		if err := tx.Where("sheet = ?", table).Delete(&sheetRow{}).Error; err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		return tx.Create(&records).Error
	})
	if errors.Is(err, ErrTableNotFound) {
		return err
	}
	if err != nil {
		return s.dbErr(err, "replace_rows", table)
	}
	return nil
}

func (s *SQL) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return s.dbErr(err, "ping", "")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return s.dbErr(err, "ping", "")
	}
	return nil
}

func (s *SQL) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ Backend = (*SQL)(nil)
