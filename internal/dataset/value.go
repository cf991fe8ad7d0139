package dataset

import (
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// Kind 单元格值类型
type Kind int

const (
	KindNull Kind = iota
	KindNumber
	KindText
	KindBool
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindBool:
		return "boolean"
	case KindTime:
		return "datetime"
	default:
		return "null"
	}
}

// Value 单元格值（null/数字/文本/布尔/时间 之一）
type Value struct {
	Kind Kind
	Num  float64
	Str  string
	Bool bool
	Time time.Time
}

// Null 空值
func Null() Value { return Value{} }

// Number 数字值，NaN 视为空
func Number(f float64) Value {
	if math.IsNaN(f) {
		return Null()
	}
	return Value{Kind: KindNumber, Num: f}
}

// Text 文本值
func Text(s string) Value { return Value{Kind: KindText, Str: s} }

// Bool 布尔值
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// Time 时间值
func Time(t time.Time) Value { return Value{Kind: KindTime, Time: t} }

// IsNull 是否为空
func (v Value) IsNull() bool { return v.Kind == KindNull }

// Key 返回用于去重、分组与包含度计算的规范字符串。
// 同一个逻辑值无论来自哪个数据源都得到相同的 Key。
func (v Value) Key() string {
	switch v.Kind {
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindText:
		return v.Str
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindTime:
		t := v.Time.UTC()
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
			return t.Format("2006-01-02")
		}
		return t.Format(time.RFC3339Nano)
	default:
		return ""
	}
}

// String 人类可读表示
func (v Value) String() string {
	if v.Kind == KindNull {
		return "NULL"
	}
	return v.Key()
}

// Compare 比较同类型的两个值，返回 -1/0/1；类型不同时按 Kind 排序
func (v Value) Compare(o Value) int {
	if v.Kind != o.Kind {
		return cmpInt(int(v.Kind), int(o.Kind))
	}
	switch v.Kind {
	case KindNumber:
		return cmpFloat(v.Num, o.Num)
	case KindText:
		return cmpString(v.Str, o.Str)
	case KindBool:
		if v.Bool == o.Bool {
			return 0
		}
		if !v.Bool {
			return -1
		}
		return 1
	case KindTime:
		return v.Time.Compare(o.Time)
	}
	return 0
}

// MarshalJSON 以原生 JSON 类型输出
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNumber:
		if math.IsInf(v.Num, 0) {
			return json.Marshal(v.Key())
		}
		return json.Marshal(v.Num)
	case KindText:
		return json.Marshal(v.Str)
	case KindBool:
		return json.Marshal(v.Bool)
	case KindTime:
		return json.Marshal(v.Key())
	default:
		return []byte("null"), nil
	}
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
