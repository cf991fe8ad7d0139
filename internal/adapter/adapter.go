package adapter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"dataset-analyzer/internal/dataset"
)

// ErrUnsupportedSource 未知的数据来源类型
var ErrUnsupportedSource = errors.New("unsupported source")

// Loader 数据集加载器接口：把一个来源物化为只读数据集
type Loader interface {
	// Load 读取全部数据集
	Load(ctx context.Context) ([]*dataset.Dataset, error)

	// Close 释放连接
	Close() error
}

// Source 数据来源
type Source struct {
	Kind   string `json:"source" yaml:"source"` // dir | sqlite | mysql | sqlserver | postgres
	Path   string `json:"path,omitempty" yaml:"path"`
	DSN    string `json:"dsn,omitempty" yaml:"dsn"`
	Schema string `json:"schema,omitempty" yaml:"schema"`
}

// Options 加载选项
type Options struct {
	NullTokens []string // 视为空值的文本
	Delimiter  rune     // CSV 分隔符，0 表示自动探测
	RowLimit   int      // 每张表最多读取的行数，0 表示全部
}

// DefaultOptions 默认加载选项
func DefaultOptions() Options {
	return Options{
		NullTokens: []string{"", "NULL", "null", "NaN", "nan", "N/A", "NA"},
	}
}

// isNull 文本是否为空值标记
func (o Options) isNull(s string) bool {
	s = strings.TrimSpace(s)
	for _, tok := range o.NullTokens {
		if s == tok {
			return true
		}
	}
	return false
}

// cell 文本单元格转为值
func (o Options) cell(s string) dataset.Value {
	if o.isNull(s) {
		return dataset.Null()
	}
	return dataset.Text(s)
}

// Table 表信息
type Table struct {
	Schema string
	Name   string
}

// ForeignKey 外键（组合外键的各列共享同一个 Name）
type ForeignKey struct {
	Name       string
	FromTable  string
	FromColumn string
	ToTable    string
	ToColumn   string
}

// Open 按来源类型创建加载器
func Open(ctx context.Context, src Source, opts Options, logger *zap.Logger) (Loader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		db  *DBLoader
		err error
	)
	switch src.Kind {
	case "", "dir":
		return NewDirectoryLoader(src.Path, opts, logger), nil
	case "sqlite":
		db, err = NewSQLiteLoader(ctx, src.Path, opts, logger)
	case "mysql":
		db, err = NewMySQLLoader(ctx, src.DSN, src.Schema, opts, logger)
	case "sqlserver":
		db, err = NewSQLServerLoader(ctx, src.DSN, opts, logger)
	case "postgres":
		db, err = NewPostgresLoader(ctx, src.DSN, src.Schema, opts, logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSource, src.Kind)
	}
	if err != nil {
		return nil, err
	}
	return db, nil
}

// uniqueName 重名时追加序号
func uniqueName(name string, seen map[string]bool) string {
	if !seen[name] {
		seen[name] = true
		return name
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d", name, i)
		if !seen[candidate] {
			seen[candidate] = true
			return candidate
		}
	}
}
