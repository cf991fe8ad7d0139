package analyzer

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataset-analyzer/internal/dataset"
)

func addresses(t *testing.T) *dataset.Dataset {
	cities := []string{"Lisbon", "Porto", "Madrid", "Seville", "Lyon", "Paris"}
	states := map[string]string{"Lisbon": "PT", "Porto": "PT", "Madrid": "ES", "Seville": "ES", "Lyon": "FR", "Paris": "FR"}
	return newDataset(t, "addresses",
		[]string{"address_id", "city", "state", "amount"},
		nums(30, func(i int) float64 { return float64(i + 1) }),
		col(30, func(i int) dataset.Value { return dataset.Text(cities[i%6]) }),
		col(30, func(i int) dataset.Value { return dataset.Text(states[cities[i%6]]) }),
		nums(30, func(i int) float64 { return float64(i*7 + 3) }),
	)
}

func TestFunctionalDependency(t *testing.T) {
	cfg := DefaultConfig()
	res := NewDependencyMiner(cfg, nil).mine(buildTable(cfg, addresses(t)))

	require.Len(t, res.rules, 1)
	r := res.rules[0]
	assert.Equal(t, []string{"city"}, r.Determinant)
	assert.Equal(t, "state", r.Dependent)
	assert.Equal(t, 1.0, r.Confidence)
	assert.Equal(t, 6, r.Groups)
	assert.False(t, r.Truncated)
	assert.Equal(t, 3, res.search.Evaluated)
	assert.False(t, res.search.Truncated)
}

func TestFunctionalDependencyBudget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRuleCombinations = 1
	res := NewDependencyMiner(cfg, nil).mine(buildTable(cfg, addresses(t)))

	assert.True(t, res.search.Truncated)
	assert.Equal(t, 1, res.search.Evaluated)
	require.Len(t, res.rules, 1)
	assert.True(t, res.rules[0].Truncated)
}

func TestConditionalRule(t *testing.T) {
	status := make([]string, 30)
	shipped := make([]dataset.Value, 30)
	for i := range status {
		if i%2 == 0 {
			status[i] = "shipped"
			shipped[i] = dataset.Time(day0.AddDate(0, 0, i))
		} else {
			status[i] = "pending"
			shipped[i] = dataset.Null()
		}
	}
	ds := newDataset(t, "orders",
		[]string{"order_id", "status", "ship_date"},
		col(30, func(i int) dataset.Value { return dataset.Text(fmt.Sprintf("O-%03d", i)) }),
		texts(status...),
		shipped,
	)
	cfg := DefaultConfig()
	res := NewDependencyMiner(cfg, nil).mine(buildTable(cfg, ds))

	require.Len(t, res.conditional, 1)
	r := res.conditional[0]
	assert.Equal(t, "status", r.Condition)
	assert.Equal(t, "shipped", r.ConditionValue)
	assert.Equal(t, "ship_date", r.Target)
	assert.Equal(t, 15, r.Support)
	assert.Zero(t, r.ViolationRatio)
}

func TestForEachCombination(t *testing.T) {
	var got [][]int
	complete := forEachCombination(4, 2, func(idx []int) bool {
		got = append(got, append([]int(nil), idx...))
		return true
	})
	assert.True(t, complete)
	assert.Equal(t, [][]int{{0, 1}, {0, 2}, {0, 3}, {1, 2}, {1, 3}, {2, 3}}, got)

	n := 0
	complete = forEachCombination(5, 3, func([]int) bool {
		n++
		return n < 2
	})
	assert.False(t, complete)
	assert.Equal(t, 2, n)
}

func TestDependencyMinerIgnoresPartialKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxKeySize = 2
	tb := buildTable(cfg, threeWayKey(t))
	require.Len(t, tb.keys, 1)
	require.True(t, tb.keys[0].Partial)

	// 3 个单列 + 3 个两列组合，部分键对应的组合同样参与评估
	res := NewDependencyMiner(cfg, nil).mine(tb)
	assert.Equal(t, 6, res.search.Evaluated)
}
