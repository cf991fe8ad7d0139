package dataset

import (
	"errors"
	"fmt"
)

var (
	ErrNoColumns       = errors.New("dataset has no columns")
	ErrRaggedRow       = errors.New("row length does not match column count")
	ErrDuplicateColumn = errors.New("duplicate column name")
	ErrEmptyName       = errors.New("dataset name is empty")
)

// InputError 加载器产出的数据集不合法，只影响该数据集
type InputError struct {
	Dataset string
	Err     error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("dataset %q: %v", e.Dataset, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

// DeclaredRef 数据源中声明的外键约束
type DeclaredRef struct {
	Columns       []string `json:"columns"`
	TargetDataset string   `json:"target_dataset"`
	TargetColumns []string `json:"target_columns"`
}

// Dataset 已物化的表格数据，创建后只读
type Dataset struct {
	Name    string
	Source  string
	Columns []string
	Rows    [][]Value

	// DeclaredKey 数据源声明的主键（可为空）
	DeclaredKey []string
	// DeclaredRefs 数据源声明的外键（可为空）
	DeclaredRefs []DeclaredRef
}

// New 创建数据集
func New(name string, columns []string, rows [][]Value) *Dataset {
	return &Dataset{Name: name, Columns: columns, Rows: rows}
}

// Validate 检查列与行的一致性
func (d *Dataset) Validate() error {
	if d.Name == "" {
		return &InputError{Dataset: d.Name, Err: ErrEmptyName}
	}
	if len(d.Columns) == 0 {
		return &InputError{Dataset: d.Name, Err: ErrNoColumns}
	}
	seen := make(map[string]bool, len(d.Columns))
	for _, c := range d.Columns {
		if seen[c] {
			return &InputError{Dataset: d.Name, Err: fmt.Errorf("%w: %s", ErrDuplicateColumn, c)}
		}
		seen[c] = true
	}
	for i, r := range d.Rows {
		if len(r) != len(d.Columns) {
			return &InputError{Dataset: d.Name, Err: fmt.Errorf("%w: row %d has %d values, want %d", ErrRaggedRow, i+1, len(r), len(d.Columns))}
		}
	}
	for _, c := range d.DeclaredKey {
		if !seen[c] {
			return &InputError{Dataset: d.Name, Err: fmt.Errorf("declared key column %q not found", c)}
		}
	}
	return nil
}

// RowCount 行数
func (d *Dataset) RowCount() int { return len(d.Rows) }

// ColumnIndex 列位置，不存在返回 -1
func (d *Dataset) ColumnIndex(name string) int {
	for i, c := range d.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// HasColumn 是否包含列
func (d *Dataset) HasColumn(name string) bool { return d.ColumnIndex(name) >= 0 }

// Column 返回某列的全部值（拷贝）
func (d *Dataset) Column(i int) []Value {
	out := make([]Value, len(d.Rows))
	for r, row := range d.Rows {
		out[r] = row[i]
	}
	return out
}
