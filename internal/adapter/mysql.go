package adapter

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

// mysqlDialect MySQL 元数据查询
type mysqlDialect struct {
	schema string
}

// NewMySQLLoader 创建 MySQL 加载器，schema 为空时取 DSN 中的库名
func NewMySQLLoader(ctx context.Context, dsn, schema string, opts Options, logger *zap.Logger) (*DBLoader, error) {
	if schema == "" {
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse mysql dsn: %w", err)
		}
		schema = cfg.DBName
	}
	db, err := openDB(ctx, "mysql", dsn)
	if err != nil {
		return nil, err
	}
	return newDBLoader(db, mysqlDialect{schema: schema}, "mysql:"+schema, opts, logger), nil
}

func (mysqlDialect) name() string { return "mysql" }

func (d mysqlDialect) tables(ctx context.Context, db *sql.DB) ([]Table, error) {
	query := `
		SELECT TABLE_NAME
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME
	`
	names, err := scanStrings(ctx, db, query, d.schema)
	if err != nil {
		return nil, err
	}
	tables := make([]Table, len(names))
	for i, n := range names {
		tables[i] = Table{Schema: d.schema, Name: n}
	}
	return tables, nil
}

func (d mysqlDialect) primaryKey(ctx context.Context, db *sql.DB, t Table) ([]string, error) {
	query := `
		SELECT COLUMN_NAME
		FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ? AND CONSTRAINT_NAME = 'PRIMARY'
		ORDER BY ORDINAL_POSITION
	`
	return scanStrings(ctx, db, query, d.schema, t.Name)
}

func (d mysqlDialect) foreignKeys(ctx context.Context, db *sql.DB, _ []Table) ([]ForeignKey, error) {
	query := `
		SELECT
			kcu.CONSTRAINT_NAME,
			kcu.TABLE_NAME,
			kcu.COLUMN_NAME,
			kcu.REFERENCED_TABLE_NAME,
			kcu.REFERENCED_COLUMN_NAME
		FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
		WHERE kcu.TABLE_SCHEMA = ?
			AND kcu.REFERENCED_TABLE_NAME IS NOT NULL
		ORDER BY kcu.TABLE_NAME, kcu.CONSTRAINT_NAME, kcu.ORDINAL_POSITION
	`
	return scanForeignKeys(ctx, db, query, d.schema)
}

func (d mysqlDialect) selectRows(t Table, limit int) string {
	query := fmt.Sprintf("SELECT * FROM %s.%s", quoteIdent(d.schema, "`", "`"), quoteIdent(t.Name, "`", "`"))
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	return query
}
