package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1, cfg.ImplicitMinDistinct)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"ratio above one", func(c *Config) { c.ExplicitThreshold = 1.5 }, "explicit_threshold"},
		{"negative ratio", func(c *Config) { c.NameSimilarity = -0.1 }, "name_similarity"},
		{"zero cap", func(c *Config) { c.MaxKeySize = 0 }, "max_key_size"},
		{"implicit min distinct", func(c *Config) { c.ImplicitMinDistinct = 0 }, "implicit_min_distinct"},
		{"too many operands", func(c *Config) { c.DerivedMaxOperands = 5 }, "derived_max_operands"},
		{"negative sample threshold", func(c *Config) { c.SampleThreshold = -1 }, "sample_threshold"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestValidateReportsFieldsInOrder(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BusinessMaxNull = 2
	cfg.TypeAgreement = 2
	cfg.WorkflowMinStates = 0
	cfg.Workers = 0

	// 多个字段不合法时总是报告同一个
	for i := 0; i < 20; i++ {
		assert.ErrorContains(t, cfg.Validate(), "type_agreement=2")
	}
	cfg.TypeAgreement = 0.95
	cfg.BusinessMaxNull = 0.1
	for i := 0; i < 20; i++ {
		assert.ErrorContains(t, cfg.Validate(), "workers=0")
	}
}
