package adapter

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/denisenkom/go-mssqldb"
	"go.uber.org/zap"
)

// sqlserverDialect SQL Server 元数据查询
type sqlserverDialect struct{}

// NewSQLServerLoader 创建 SQL Server 加载器
func NewSQLServerLoader(ctx context.Context, dsn string, opts Options, logger *zap.Logger) (*DBLoader, error) {
	db, err := openDB(ctx, "sqlserver", dsn)
	if err != nil {
		return nil, err
	}
	return newDBLoader(db, sqlserverDialect{}, "sqlserver", opts, logger), nil
}

func (sqlserverDialect) name() string { return "sqlserver" }

func (sqlserverDialect) tables(ctx context.Context, db *sql.DB) ([]Table, error) {
	query := `
		SELECT TABLE_SCHEMA, TABLE_NAME
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_SCHEMA, TABLE_NAME
	`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []Table
	for rows.Next() {
		var t Table
		if err := rows.Scan(&t.Schema, &t.Name); err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

func (sqlserverDialect) primaryKey(ctx context.Context, db *sql.DB, t Table) ([]string, error) {
	query := `
		SELECT c.name
		FROM sys.indexes i
		JOIN sys.index_columns ic ON i.object_id = ic.object_id AND i.index_id = ic.index_id
		JOIN sys.columns c ON ic.object_id = c.object_id AND ic.column_id = c.column_id
		JOIN sys.tables t ON i.object_id = t.object_id
		WHERE t.name = @p1 AND SCHEMA_NAME(t.schema_id) = @p2 AND i.is_primary_key = 1
		ORDER BY ic.key_ordinal
	`
	return scanStrings(ctx, db, query, t.Name, t.Schema)
}

func (sqlserverDialect) foreignKeys(ctx context.Context, db *sql.DB, _ []Table) ([]ForeignKey, error) {
	query := `
		SELECT
			fk.name as constraint_name,
			OBJECT_NAME(fk.parent_object_id) as from_table,
			COL_NAME(fkc.parent_object_id, fkc.parent_column_id) as from_column,
			OBJECT_NAME(fk.referenced_object_id) as to_table,
			COL_NAME(fkc.referenced_object_id, fkc.referenced_column_id) as to_column
		FROM sys.foreign_keys fk
		JOIN sys.foreign_key_columns fkc ON fk.object_id = fkc.constraint_object_id
		ORDER BY from_table, constraint_name, fkc.constraint_column_id
	`
	return scanForeignKeys(ctx, db, query)
}

func (sqlserverDialect) selectRows(t Table, limit int) string {
	top := ""
	if limit > 0 {
		top = fmt.Sprintf("TOP (%d) ", limit)
	}
	return fmt.Sprintf("SELECT %s* FROM %s.%s", top, quoteIdent(t.Schema, "[", "]"), quoteIdent(t.Name, "[", "]"))
}
