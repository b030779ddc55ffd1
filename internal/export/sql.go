package export

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"

	"hcai-scorer/internal/dataset"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	_ "github.com/microsoft/go-mssqldb"
	"github.com/rs/zerolog/log"
)

// Supported database drivers.
const (
	DriverSQLite    = "sqlite3"
	DriverMySQL     = "mysql"
	DriverSQLServer = "sqlserver"
)

type dialect struct {
	quote       func(string) string
	placeholder func(int) string
	intType     string
	floatType   string
	textType    string
	createTable func(qualified, plain, schema, columns string) string
}

var dialects = map[string]dialect{
	DriverSQLite: {
		quote:       func(s string) string { return `"` + strings.ReplaceAll(s, `"`, `""`) + `"` },
		placeholder: func(int) string { return "?" },
		intType:     "INTEGER",
		floatType:   "REAL",
		textType:    "TEXT",
		createTable: func(qualified, _, _, columns string) string {
			return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", qualified, columns)
		},
	},
	DriverMySQL: {
		quote:       func(s string) string { return "`" + strings.ReplaceAll(s, "`", "``") + "`" },
		placeholder: func(int) string { return "?" },
		intType:     "BIGINT",
		floatType:   "DOUBLE",
		textType:    "TEXT",
		createTable: func(qualified, _, _, columns string) string {
			return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", qualified, columns)
		},
	},
	DriverSQLServer: {
		quote:       func(s string) string { return "[" + strings.ReplaceAll(s, "]", "]]") + "]" },
		placeholder: func(i int) string { return fmt.Sprintf("@p%d", i) },
		intType:     "BIGINT",
		floatType:   "FLOAT",
		textType:    "NVARCHAR(MAX)",
		createTable: func(qualified, plain, schema, columns string) string {
			name := plain
			if schema != "" {
				name = schema + "." + plain
			}
			return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL CREATE TABLE %s (%s)",
				strings.ReplaceAll(name, "'", "''"), qualified, columns)
		},
	},
}

// SQLSink appends rows to a database table, creating the table when it does
// not exist yet.
type SQLSink struct {
	driver  string
	dialect dialect
	db      *sql.DB
	table   string
	schema  string
	ownsDB  bool
}

// NewSQLSink opens a connection with driver and dsn.
func NewSQLSink(driver, dsn, table, schema string) (*SQLSink, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s, err := NewSQLSinkWithDB(db, driver, table, schema)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.ownsDB = true
	return s, nil
}

// NewSQLSinkWithDB uses an existing connection pool; Close leaves it open.
func NewSQLSinkWithDB(db *sql.DB, driver, table, schema string) (*SQLSink, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if table == "" {
		return nil, fmt.Errorf("table name is required")
	}
	return &SQLSink{driver: driver, dialect: d, db: db, table: table, schema: schema}, nil
}

func (s *SQLSink) Name() string { return s.driver }

func (s *SQLSink) qualifiedTable() string {
	if s.schema == "" || s.driver == DriverSQLite {
		return s.dialect.quote(s.table)
	}
	return s.dialect.quote(s.schema) + "." + s.dialect.quote(s.table)
}

// Write appends every row of f inside one transaction.
func (s *SQLSink) Write(ctx context.Context, f *dataset.Frame) error {
	names := f.Names()
	if len(names) == 0 {
		return fmt.Errorf("nothing to export: frame has no columns")
	}

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}

	defs := make([]string, len(names))
	quoted := make([]string, len(names))
	marks := make([]string, len(names))
	kinds := make([]columnKind, len(names))
	for i, n := range names {
		typ := s.dialect.textType
		switch {
		case f.IsInt(n):
			kinds[i], typ = intColumn, s.dialect.intType
		case f.IsFloat(n):
			kinds[i], typ = floatColumn, s.dialect.floatType
		}
		quoted[i] = s.dialect.quote(n)
		defs[i] = quoted[i] + " " + typ
		marks[i] = s.dialect.placeholder(i + 1)
	}

	create := s.dialect.createTable(s.qualifiedTable(), s.table, s.schema, strings.Join(defs, ", "))
	if _, err := s.db.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("creating table %s: %w", s.table, err)
	}

	columns, err := columnValues(f, names, kinds)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.qualifiedTable(), strings.Join(quoted, ", "), strings.Join(marks, ", "))
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(names))
	for row := 0; row < f.Nrow(); row++ {
		for j := range names {
			args[j] = columns[j][row]
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert row %d: %w", row, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	log.Debug().Str("driver", s.driver).Str("table", s.table).Int("rows", f.Nrow()).Msg("Rows appended")
	return nil
}

func (s *SQLSink) Close() error {
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

type columnKind int

const (
	textColumn columnKind = iota
	intColumn
	floatColumn
)

// columnValues converts each column to driver values; missing cells become NULL.
func columnValues(f *dataset.Frame, names []string, kinds []columnKind) ([][]any, error) {
	out := make([][]any, len(names))
	for j, n := range names {
		col := make([]any, f.Nrow())
		if kinds[j] != textColumn {
			values, err := f.Float(n)
			if err != nil {
				return nil, err
			}
			for i, v := range values {
				switch {
				case math.IsNaN(v):
				case kinds[j] == intColumn:
					col[i] = int64(v)
				default:
					col[i] = v
				}
			}
		} else {
			values, err := f.Strings(n)
			if err != nil {
				return nil, err
			}
			for i, v := range values {
				if v != "" {
					col[i] = v
				}
			}
		}
		out[j] = col
	}
	return out, nil
}
