package analyzer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dataset-analyzer/internal/dataset"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// col 生成 n 行的列值
func col(n int, f func(i int) dataset.Value) []dataset.Value {
	out := make([]dataset.Value, n)
	for i := range out {
		out[i] = f(i)
	}
	return out
}

func nums(n int, f func(i int) float64) []dataset.Value {
	return col(n, func(i int) dataset.Value { return dataset.Number(f(i)) })
}

func texts(values ...string) []dataset.Value {
	out := make([]dataset.Value, len(values))
	for i, v := range values {
		if v == "" {
			out[i] = dataset.Null()
			continue
		}
		out[i] = dataset.Text(v)
	}
	return out
}

func days(n int, f func(i int) int) []dataset.Value {
	return col(n, func(i int) dataset.Value { return dataset.Time(day0.AddDate(0, 0, f(i))) })
}

// newDataset 按列组装数据集
func newDataset(t *testing.T, name string, names []string, columns ...[]dataset.Value) *dataset.Dataset {
	t.Helper()
	require.Len(t, columns, len(names))
	rows := 0
	if len(columns) > 0 {
		rows = len(columns[0])
	}
	data := make([][]dataset.Value, rows)
	for r := range data {
		data[r] = make([]dataset.Value, len(columns))
		for c := range columns {
			require.Len(t, columns[c], rows, "column %s", names[c])
			data[r][c] = columns[c][r]
		}
	}
	ds := dataset.New(name, names, data)
	require.NoError(t, ds.Validate())
	return ds
}

// buildTable 画像 + 主键，后续阶段的输入
func buildTable(cfg Config, ds *dataset.Dataset) *table {
	tb := NewProfiler(cfg, nil).build(ds)
	NewKeyDetector(cfg, nil).detect(tb)
	return tb
}
