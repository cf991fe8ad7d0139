package adapter

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

// postgresDialect PostgreSQL 元数据查询
type postgresDialect struct {
	schema string
}

// NewPostgresLoader 创建 PostgreSQL 加载器，schema 默认 public
func NewPostgresLoader(ctx context.Context, dsn, schema string, opts Options, logger *zap.Logger) (*DBLoader, error) {
	if schema == "" {
		schema = "public"
	}
	db, err := openDB(ctx, "pgx", dsn)
	if err != nil {
		return nil, err
	}
	return newDBLoader(db, postgresDialect{schema: schema}, "postgres:"+schema, opts, logger), nil
}

func (postgresDialect) name() string { return "postgres" }

func (d postgresDialect) tables(ctx context.Context, db *sql.DB) ([]Table, error) {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name
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

func (d postgresDialect) primaryKey(ctx context.Context, db *sql.DB, t Table) ([]string, error) {
	query := `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON kcu.constraint_name = tc.constraint_name
			AND kcu.constraint_schema = tc.constraint_schema
		WHERE tc.constraint_type = 'PRIMARY KEY'
			AND tc.table_schema = $1 AND tc.table_name = $2
		ORDER BY kcu.ordinal_position
	`
	return scanStrings(ctx, db, query, d.schema, t.Name)
}

func (d postgresDialect) foreignKeys(ctx context.Context, db *sql.DB, _ []Table) ([]ForeignKey, error) {
	query := `
		SELECT
			kcu.constraint_name,
			kcu.table_name,
			kcu.column_name,
			ref.table_name,
			ref.column_name
		FROM information_schema.referential_constraints rc
		JOIN information_schema.key_column_usage kcu
			ON kcu.constraint_name = rc.constraint_name
			AND kcu.constraint_schema = rc.constraint_schema
		JOIN information_schema.key_column_usage ref
			ON ref.constraint_name = rc.unique_constraint_name
			AND ref.constraint_schema = rc.unique_constraint_schema
			AND ref.ordinal_position = kcu.position_in_unique_constraint
		WHERE rc.constraint_schema = $1
		ORDER BY kcu.table_name, kcu.constraint_name, kcu.ordinal_position
	`
	return scanForeignKeys(ctx, db, query, d.schema)
}

func (d postgresDialect) selectRows(t Table, limit int) string {
	query := fmt.Sprintf("SELECT * FROM %s.%s", quoteIdent(d.schema, `"`, `"`), quoteIdent(t.Name, `"`, `"`))
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	return query
}
