package analyzer

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataset-analyzer/internal/dataset"
	"dataset-analyzer/internal/graph"
)

func lineItems(t *testing.T, rows int, broken ...int) *dataset.Dataset {
	price := func(i int) float64 { return 5.5 + float64(i%5) }
	quantity := func(i int) float64 { return float64(i%3 + 1) }
	bad := make(map[int]bool)
	for _, b := range broken {
		bad[b] = true
	}
	return newDataset(t, "line_items",
		[]string{"price", "quantity", "total"},
		nums(rows, price),
		nums(rows, quantity),
		nums(rows, func(i int) float64 {
			v := price(i) * quantity(i)
			if bad[i] {
				v++
			}
			return v
		}),
	)
}

func TestDerivedProduct(t *testing.T) {
	cfg := DefaultConfig()
	out := NewDerivedFieldDetector(cfg, nil).detect(buildTable(cfg, lineItems(t, 50, 49)))

	require.Len(t, out, 1, "inverse forms of the same relation are reported once")
	d := out[0]
	assert.Equal(t, "total", d.Target)
	assert.Equal(t, graph.OpProduct, d.Operation)
	assert.Equal(t, []string{"price", "quantity"}, d.Operands)
	assert.InDelta(t, 0.98, d.MatchRatio, 1e-9)
	assert.Equal(t, 50, d.Rows)
}

func TestDerivedBelowThreshold(t *testing.T) {
	cfg := DefaultConfig()
	// 20 行中 5 行不成立
	out := NewDerivedFieldDetector(cfg, nil).detect(buildTable(cfg, lineItems(t, 20, 0, 1, 2, 3, 4)))
	assert.Empty(t, out)
}

func TestDerivedConcatenation(t *testing.T) {
	first := make([]string, 12)
	last := make([]string, 12)
	full := make([]string, 12)
	for i := range first {
		first[i] = fmt.Sprintf("Ana%c", 'a'+i)
		last[i] = fmt.Sprintf("Silva%c", 'a'+i)
		full[i] = first[i] + " " + last[i]
	}
	ds := newDataset(t, "people",
		[]string{"first_name", "last_name", "full_name"},
		texts(first...), texts(last...), texts(full...),
	)
	cfg := DefaultConfig()
	out := NewDerivedFieldDetector(cfg, nil).detect(buildTable(cfg, ds))

	require.Len(t, out, 1)
	assert.Equal(t, "full_name", out[0].Target)
	assert.Equal(t, graph.OpConcatenation, out[0].Operation)
	assert.Equal(t, []string{"first_name", "last_name"}, out[0].Operands)
	assert.Equal(t, " ", out[0].Separator)
}

func TestDerivedDateDifference(t *testing.T) {
	ds := newDataset(t, "loans",
		[]string{"due_date", "issue_date", "term_days"},
		days(15, func(i int) int { return i + 30 + i%3 }),
		days(15, func(i int) int { return i }),
		nums(15, func(i int) float64 { return float64(30 + i%3) }),
	)
	cfg := DefaultConfig()
	out := NewDerivedFieldDetector(cfg, nil).detect(buildTable(cfg, ds))

	require.Len(t, out, 1)
	assert.Equal(t, "term_days", out[0].Target)
	assert.Equal(t, graph.OpDateDifference, out[0].Operation)
	assert.Equal(t, []string{"due_date", "issue_date"}, out[0].Operands)
}

func TestDerivedHypothesisBudget(t *testing.T) {
	const width, rows = 60, 20
	names := make([]string, width)
	columns := make([][]dataset.Value, width)
	for c := range columns {
		names[c] = fmt.Sprintf("m%02d", c)
		columns[c] = nums(rows, func(i int) float64 { return float64((i+1)*(c+1)*(c+1) + (c*i*i)%13) })
	}
	cfg := DefaultConfig()
	cfg.DerivedMaxOperands = 4
	tb := buildTable(cfg, newDataset(t, "wide", names, columns...))

	start := time.Now()
	NewDerivedFieldDetector(cfg, nil).detect(tb)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestDerivedTruncatedKeepsBest(t *testing.T) {
	names := []string{"a", "b"}
	columns := [][]dataset.Value{
		nums(20, func(i int) float64 { return float64(i + 1) }),
		nums(20, func(i int) float64 { return float64(2*i + 5) }),
	}
	for c := 0; c < 8; c++ {
		names = append(names, fmt.Sprintf("noise%d", c))
		columns = append(columns, nums(20, func(i int) float64 { return float64((i*i*(c+3)+c)%89) + 0.5 }))
	}
	names = append(names, "total")
	columns = append(columns, nums(20, func(i int) float64 { return float64(3*i + 6) }))

	cfg := DefaultConfig()
	cfg.DerivedMaxHypotheses = 3
	out := NewDerivedFieldDetector(cfg, nil).detect(buildTable(cfg, newDataset(t, "mixed", names, columns...)))

	var total *graph.DerivedFieldCandidate
	for i := range out {
		if out[i].Target == "total" {
			total = &out[i]
		}
	}
	require.NotNil(t, total)
	assert.Equal(t, graph.OpSum, total.Operation)
	assert.Equal(t, []string{"a", "b"}, total.Operands)
	assert.True(t, total.Truncated)
}

func TestApproxEqual(t *testing.T) {
	assert.True(t, approxEqual(0.1+0.2, 0.3, 1e-6))
	assert.True(t, approxEqual(1_000_000.0005, 1_000_000, 1e-6))
	assert.False(t, approxEqual(10.1, 10, 1e-6))
}
