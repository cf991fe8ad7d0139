package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// sqliteDialect SQLite 元数据查询
type sqliteDialect struct{}

// NewSQLiteLoader 以只读方式打开 SQLite 文件
func NewSQLiteLoader(ctx context.Context, path string, opts Options, logger *zap.Logger) (*DBLoader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db, err := openDB(ctx, "sqlite", path+"?mode=ro")
	if err != nil {
		return nil, err
	}
	return newDBLoader(db, sqliteDialect{}, path, opts, logger), nil
}

func (sqliteDialect) name() string { return "sqlite" }

func (sqliteDialect) tables(ctx context.Context, db *sql.DB) ([]Table, error) {
	query := `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`
	names, err := scanStrings(ctx, db, query)
	if err != nil {
		return nil, err
	}
	tables := make([]Table, len(names))
	for i, n := range names {
		tables[i] = Table{Name: n}
	}
	return tables, nil
}

func (sqliteDialect) primaryKey(ctx context.Context, db *sql.DB, t Table) ([]string, error) {
	query := `SELECT name FROM pragma_table_info(?) WHERE pk > 0 ORDER BY pk`
	return scanStrings(ctx, db, query, t.Name)
}

func (d sqliteDialect) foreignKeys(ctx context.Context, db *sql.DB, tables []Table) ([]ForeignKey, error) {
	query := `SELECT id, "table", "from", "to" FROM pragma_foreign_key_list(?) ORDER BY id, seq`

	var fks []ForeignKey
	for _, t := range tables {
		rows, err := db.QueryContext(ctx, query, t.Name)
		if err != nil {
			return nil, err
		}
		var pending []ForeignKey
		for rows.Next() {
			var (
				id int
				fk ForeignKey
				to sql.NullString
			)
			if err := rows.Scan(&id, &fk.ToTable, &fk.FromColumn, &to); err != nil {
				rows.Close()
				return nil, err
			}
			fk.Name = fmt.Sprintf("%s_fk_%d", t.Name, id)
			fk.FromTable = t.Name
			fk.ToColumn = to.String
			pending = append(pending, fk)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}

		// REFERENCES parent 未写列名时指向父表主键
		if err := d.fillImplicitTargets(ctx, db, pending); err != nil {
			return nil, err
		}
		fks = append(fks, pending...)
	}
	return fks, nil
}

func (d sqliteDialect) fillImplicitTargets(ctx context.Context, db *sql.DB, fks []ForeignKey) error {
	pos := 0
	for i := range fks {
		if i > 0 && fks[i].Name != fks[i-1].Name {
			pos = 0
		}
		if fks[i].ToColumn == "" {
			pk, err := d.primaryKey(ctx, db, Table{Name: fks[i].ToTable})
			if err != nil {
				return err
			}
			if pos < len(pk) {
				fks[i].ToColumn = pk[pos]
			}
		}
		pos++
	}
	return nil
}

func (sqliteDialect) selectRows(t Table, limit int) string {
	query := "SELECT * FROM " + quoteIdent(t.Name, `"`, `"`)
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	return query
}
