package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"dataset-analyzer/internal/dataset"
)

// SQLDumpLoader 把 SQL 转储回放到内存 SQLite 后按表读取
type SQLDumpLoader struct {
	path   string
	opts   Options
	logger *zap.Logger
}

// NewSQLDumpLoader 创建转储加载器
func NewSQLDumpLoader(path string, opts Options, logger *zap.Logger) *SQLDumpLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLDumpLoader{path: path, opts: opts, logger: logger.Named("sqldump")}
}

// Load 回放转储并读取全部表，声明的主键与外键来自 DDL
func (l *SQLDumpLoader) Load(ctx context.Context) ([]*dataset.Dataset, error) {
	raw, err := os.ReadFile(l.path)
	if err != nil {
		return nil, err
	}
	text, _, err := decodeText(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", l.path, err)
	}

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, err
	}
	// 每个连接都是独立的内存库
	db.SetMaxOpenConns(1)

	loader := newDBLoader(db, sqliteDialect{}, l.path, l.opts, l.logger)
	defer loader.Close()

	var executed, failed int
	for _, stmt := range splitStatements(text) {
		stmt = normalizeStatement(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			failed++
			l.logger.Debug("Statement failed", zap.String("statement", abbreviate(stmt, 120)), zap.Error(err))
			continue
		}
		executed++
	}
	if failed > 0 {
		l.logger.Warn("Dump replayed with errors",
			zap.String("file", l.path),
			zap.Int("executed", executed),
			zap.Int("failed", failed),
		)
	}
	if executed == 0 {
		return nil, fmt.Errorf("%s: no executable statements", l.path)
	}
	return loader.Load(ctx)
}

// Close 无需释放
func (l *SQLDumpLoader) Close() error { return nil }

// splitStatements 在引号与注释之外按分号切分
func splitStatements(text string) []string {
	var (
		out   []string
		buf   strings.Builder
		quote byte
	)
	flush := func() {
		if s := strings.TrimSpace(buf.String()); s != "" {
			out = append(out, s)
		}
		buf.Reset()
	}

	for i := 0; i < len(text); i++ {
		c := text[i]
		if quote != 0 {
			buf.WriteByte(c)
			switch {
			case c == '\\' && quote != '`' && i+1 < len(text):
				i++
				buf.WriteByte(text[i])
			case c == quote:
				quote = 0
			}
			continue
		}
		switch {
		case c == '\'' || c == '"' || c == '`':
			quote = c
			buf.WriteByte(c)
		case c == '-' && strings.HasPrefix(text[i:], "--"):
			for i < len(text) && text[i] != '\n' {
				i++
			}
			buf.WriteByte('\n')
		case c == '#':
			for i < len(text) && text[i] != '\n' {
				i++
			}
			buf.WriteByte('\n')
		case c == '/' && strings.HasPrefix(text[i:], "/*"):
			end := strings.Index(text[i+2:], "*/")
			if end < 0 {
				i = len(text)
			} else {
				i += end + 3
			}
			buf.WriteByte(' ')
		case c == ';':
			flush()
		default:
			buf.WriteByte(c)
		}
	}
	flush()
	return out
}

var (
	skippedStatement = regexp.MustCompile(`(?i)^(SET|LOCK|UNLOCK|USE|START\s+TRANSACTION|COMMIT|BEGIN|ALTER\s+TABLE\s+\S+\s+(DISABLE|ENABLE)\s+KEYS|DELIMITER|GO)\b`)
	createTable      = regexp.MustCompile(`(?i)^CREATE\s+TABLE`)
	indexLine        = regexp.MustCompile(`(?im)^\s*(UNIQUE\s+|FULLTEXT\s+|SPATIAL\s+)?(KEY|INDEX)\s+[^\n]*\n?`)
	tableOptions     = regexp.MustCompile(`(?is)\)\s*(ENGINE|DEFAULT\s+CHARSET|AUTO_INCREMENT\s*=|CHARSET|COLLATE\s*=|ROW_FORMAT|COMMENT\s*=)[^)]*$`)
	enumType         = regexp.MustCompile(`(?i)\b(enum|set)\s*\([^)]*\)`)
	columnNoise      = regexp.MustCompile(`(?i)\s+(UNSIGNED|ZEROFILL|AUTO_INCREMENT|CHARACTER\s+SET\s+\w+|COLLATE\s+\w+|COMMENT\s+'(?:[^'\\]|\\.|'')*'|ON\s+UPDATE\s+CURRENT_TIMESTAMP(\(\))?)`)
	trailingComma    = regexp.MustCompile(`,\s*\)\s*$`)
)

// normalizeStatement 去掉 SQLite 不认识的 MySQL 语法，无需执行的语句返回空串
func normalizeStatement(stmt string) string {
	stmt = strings.TrimSpace(stmt)
	if stmt == "" || skippedStatement.MatchString(stmt) {
		return ""
	}
	stmt = strings.ReplaceAll(stmt, "`", `"`)
	stmt = strings.ReplaceAll(stmt, `\'`, `''`)
	if createTable.MatchString(stmt) {
		stmt = tableOptions.ReplaceAllString(stmt, ")")
		stmt = indexLine.ReplaceAllString(stmt, "")
		stmt = enumType.ReplaceAllString(stmt, "TEXT")
		stmt = columnNoise.ReplaceAllString(stmt, "")
		stmt = trailingComma.ReplaceAllString(stmt, "\n)")
	}
	return stmt
}

func abbreviate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
