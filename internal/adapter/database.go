package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"dataset-analyzer/internal/dataset"
)

// dialect 各数据库在元数据查询上的差异
type dialect interface {
	name() string
	tables(ctx context.Context, db *sql.DB) ([]Table, error)
	primaryKey(ctx context.Context, db *sql.DB, t Table) ([]string, error)
	foreignKeys(ctx context.Context, db *sql.DB, tables []Table) ([]ForeignKey, error)
	selectRows(t Table, limit int) string
}

// DBLoader 通过 database/sql 读取数据库表
type DBLoader struct {
	db      *sql.DB
	dialect dialect
	source  string
	opts    Options
	logger  *zap.Logger
}

func newDBLoader(db *sql.DB, d dialect, source string, opts Options, logger *zap.Logger) *DBLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DBLoader{
		db:      db,
		dialect: d,
		source:  source,
		opts:    opts,
		logger:  logger.Named("loader").With(zap.String("dialect", d.name())),
	}
}

// openDB 打开连接并检查可用性，失败时关闭连接
func openDB(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return db, nil
}

// Load 读取所有基础表，附带声明的主键与外键
func (l *DBLoader) Load(ctx context.Context) ([]*dataset.Dataset, error) {
	tables, err := l.dialect.tables(ctx, l.db)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	l.logger.Info("Tables found", zap.Int("count", len(tables)))

	refs := map[string][]dataset.DeclaredRef{}
	fks, err := l.dialect.foreignKeys(ctx, l.db, tables)
	if err != nil {
		// 没有外键元数据时仍可推断关系
		l.logger.Warn("Foreign keys unavailable", zap.Error(err))
	} else {
		refs = groupForeignKeys(fks)
	}

	var out []*dataset.Dataset
	for _, t := range tables {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ds, err := l.readTable(ctx, t)
		if err != nil {
			l.logger.Warn("Table skipped", zap.String("table", t.Name), zap.Error(err))
			continue
		}
		pk, err := l.dialect.primaryKey(ctx, l.db, t)
		if err != nil {
			l.logger.Warn("Primary key unavailable", zap.String("table", t.Name), zap.Error(err))
		}
		ds.DeclaredKey = pk
		ds.DeclaredRefs = refs[t.Name]
		out = append(out, ds)
		l.logger.Debug("Table loaded",
			zap.String("table", t.Name),
			zap.Int("rows", ds.RowCount()),
			zap.Strings("declared_key", pk),
		)
	}
	return out, nil
}

func (l *DBLoader) readTable(ctx context.Context, t Table) (*dataset.Dataset, error) {
	rows, err := l.db.QueryContext(ctx, l.dialect.selectRows(t, l.opts.RowLimit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	raw := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range raw {
		ptrs[i] = &raw[i]
	}

	var data [][]dataset.Value
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make([]dataset.Value, len(columns))
		for i, v := range raw {
			row[i] = valueOf(v)
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ds := dataset.New(t.Name, columns, data)
	ds.Source = l.source
	return ds, nil
}

// Close 关闭连接
func (l *DBLoader) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}

// valueOf 驱动返回值转为数据集值
func valueOf(v any) dataset.Value {
	switch x := v.(type) {
	case nil:
		return dataset.Null()
	case int64:
		return dataset.Number(float64(x))
	case int32:
		return dataset.Number(float64(x))
	case int:
		return dataset.Number(float64(x))
	case float64:
		return dataset.Number(x)
	case float32:
		return dataset.Number(float64(x))
	case bool:
		return dataset.Bool(x)
	case time.Time:
		return dataset.Time(x)
	case []byte:
		return dataset.Text(string(x))
	case string:
		return dataset.Text(x)
	case fmt.Stringer:
		return dataset.Text(x.String())
	}
	return dataset.Text(fmt.Sprint(v))
}

// groupForeignKeys 按约束名合并组合外键，保持出现顺序
func groupForeignKeys(fks []ForeignKey) map[string][]dataset.DeclaredRef {
	out := make(map[string][]dataset.DeclaredRef)
	index := make(map[string]int)
	for i, fk := range fks {
		name := fk.Name
		if name == "" {
			name = "#" + strconv.Itoa(i)
		}
		key := fk.FromTable + "\x00" + name
		if pos, ok := index[key]; ok {
			ref := &out[fk.FromTable][pos]
			ref.Columns = append(ref.Columns, fk.FromColumn)
			ref.TargetColumns = append(ref.TargetColumns, fk.ToColumn)
			continue
		}
		index[key] = len(out[fk.FromTable])
		out[fk.FromTable] = append(out[fk.FromTable], dataset.DeclaredRef{
			Columns:       []string{fk.FromColumn},
			TargetDataset: fk.ToTable,
			TargetColumns: []string{fk.ToColumn},
		})
	}
	return out
}

// scanStrings 读取单列字符串结果
func scanStrings(ctx context.Context, db *sql.DB, query string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// scanForeignKeys 读取 (约束名, 源表, 源列, 目标表, 目标列) 结果
func scanForeignKeys(ctx context.Context, db *sql.DB, query string, args ...any) ([]ForeignKey, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fks []ForeignKey
	for rows.Next() {
		var fk ForeignKey
		if err := rows.Scan(&fk.Name, &fk.FromTable, &fk.FromColumn, &fk.ToTable, &fk.ToColumn); err != nil {
			return nil, err
		}
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}

// quoteIdent 按给定引号转义标识符
func quoteIdent(name, left, right string) string {
	return left + strings.ReplaceAll(name, right, right+right) + right
}
