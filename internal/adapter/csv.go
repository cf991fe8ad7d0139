package adapter

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"

	"dataset-analyzer/internal/dataset"
)

// delimiterCandidates 自动探测时考虑的分隔符
var delimiterCandidates = []rune{',', ';', '\t', '|'}

// CSVLoader 单个 CSV 文件加载器
type CSVLoader struct {
	path   string
	name   string
	opts   Options
	logger *zap.Logger
}

// NewCSVLoader 创建 CSV 加载器，数据集名为不带扩展名的文件名
func NewCSVLoader(path string, opts Options, logger *zap.Logger) *CSVLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CSVLoader{
		path:   path,
		name:   strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		opts:   opts,
		logger: logger.Named("csv"),
	}
}

// Load 读取文件
func (l *CSVLoader) Load(ctx context.Context) ([]*dataset.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(l.path)
	if err != nil {
		return nil, err
	}
	text, encoding, err := decodeText(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", l.path, err)
	}
	ds, err := parseCSV(l.name, text, l.opts)
	if err != nil {
		return nil, err
	}
	ds.Source = l.path
	l.logger.Debug("CSV loaded",
		zap.String("file", l.path),
		zap.String("encoding", encoding),
		zap.Int("rows", ds.RowCount()),
		zap.Int("columns", len(ds.Columns)),
	)
	return []*dataset.Dataset{ds}, nil
}

// Close 无需释放
func (l *CSVLoader) Close() error { return nil }

// decodeText 依次按 utf-8、latin-1、cp1252 解码；0x80-0x9F 区间只有 cp1252 有可打印字符
func decodeText(raw []byte) (string, string, error) {
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	if utf8.Valid(raw) {
		return string(raw), "utf-8", nil
	}
	enc, name := charmap.ISO8859_1, "latin-1"
	for _, b := range raw {
		if b >= 0x80 && b <= 0x9f {
			enc, name = charmap.Windows1252, "cp1252"
			break
		}
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", "", err
	}
	return string(out), name, nil
}

// sniffDelimiter 统计首行引号外各候选分隔符的出现次数
func sniffDelimiter(text string) rune {
	line := text
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		line = text[:i]
	}
	counts := make(map[rune]int)
	quoted := false
	for _, r := range line {
		if r == '"' {
			quoted = !quoted
			continue
		}
		if !quoted {
			counts[r]++
		}
	}
	best := ','
	for _, c := range delimiterCandidates {
		if counts[c] > counts[best] {
			best = c
		}
	}
	return best
}

// parseCSV 解析文本；行长不一致时保留原样，由数据集校验报告
func parseCSV(name, text string, opts Options) (*dataset.Dataset, error) {
	comma := opts.Delimiter
	if comma == 0 {
		comma = sniffDelimiter(text)
	}
	cr := csv.NewReader(strings.NewReader(text))
	cr.Comma = comma
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, &dataset.InputError{Dataset: name, Err: dataset.ErrNoColumns}
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	columns := normalizeHeader(header)

	var rows [][]dataset.Value
	for {
		if opts.RowLimit > 0 && len(rows) >= opts.RowLimit {
			break
		}
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(rows)+2, err)
		}
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" && len(columns) > 1 {
			continue
		}
		row := make([]dataset.Value, len(record))
		for i, v := range record {
			row[i] = opts.cell(v)
		}
		rows = append(rows, row)
	}
	return dataset.New(name, columns, rows), nil
}

// normalizeHeader 去除空白，补齐空列名并区分重名列
func normalizeHeader(header []string) []string {
	seen := make(map[string]bool, len(header))
	out := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		out[i] = uniqueName(h, seen)
	}
	return out
}
