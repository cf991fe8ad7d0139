package adapter

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"dataset-analyzer/internal/dataset"
)

// ExcelLoader 工作簿加载器，每个工作表一个数据集
type ExcelLoader struct {
	path   string
	base   string
	opts   Options
	logger *zap.Logger
}

// NewExcelLoader 创建 Excel 加载器，数据集名为 文件名.工作表名
func NewExcelLoader(path string, opts Options, logger *zap.Logger) *ExcelLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExcelLoader{
		path:   path,
		base:   strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		opts:   opts,
		logger: logger.Named("excel"),
	}
}

// Load 读取全部工作表，首行为表头
func (l *ExcelLoader) Load(ctx context.Context) ([]*dataset.Dataset, error) {
	f, err := excelize.OpenFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	var out []*dataset.Dataset
	for _, sheet := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			l.logger.Warn("Sheet skipped", zap.String("sheet", sheet), zap.Error(err))
			continue
		}
		if len(rows) == 0 {
			l.logger.Debug("Empty sheet", zap.String("sheet", sheet))
			continue
		}
		ds := l.sheetDataset(sheet, rows)
		ds.Source = l.path
		out = append(out, ds)
	}
	return out, nil
}

// sheetDataset excelize 会省略行尾空单元格，这里按表头补齐
func (l *ExcelLoader) sheetDataset(sheet string, rows [][]string) *dataset.Dataset {
	columns := normalizeHeader(rows[0])
	body := rows[1:]
	if l.opts.RowLimit > 0 && len(body) > l.opts.RowLimit {
		body = body[:l.opts.RowLimit]
	}

	data := make([][]dataset.Value, 0, len(body))
	for _, r := range body {
		width := len(columns)
		if len(r) > width {
			width = len(r)
		}
		row := make([]dataset.Value, width)
		for i := range row {
			if i < len(r) {
				row[i] = l.opts.cell(r[i])
			}
		}
		data = append(data, row)
	}
	return dataset.New(l.base+"."+sheet, columns, data)
}

// Close 无需释放
func (l *ExcelLoader) Close() error { return nil }
