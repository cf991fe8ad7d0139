package dataset

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		ds      *Dataset
		wantErr error
	}{
		{
			name: "valid",
			ds:   New("orders", []string{"id", "total"}, [][]Value{{Number(1), Number(2.5)}}),
		},
		{
			name: "empty dataset is valid",
			ds:   New("empty", []string{"id"}, nil),
		},
		{
			name:    "no columns",
			ds:      New("bad", nil, nil),
			wantErr: ErrNoColumns,
		},
		{
			name:    "ragged row",
			ds:      New("bad", []string{"a", "b"}, [][]Value{{Number(1)}}),
			wantErr: ErrRaggedRow,
		},
		{
			name:    "duplicate column",
			ds:      New("bad", []string{"a", "a"}, nil),
			wantErr: ErrDuplicateColumn,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ds.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr))
			var inErr *InputError
			require.True(t, errors.As(err, &inErr))
			assert.Equal(t, tt.ds.Name, inErr.Dataset)
		})
	}
}

func TestValueKey(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "42", Number(42).Key())
	assert.Equal(t, "4.25", Number(4.25).Key())
	assert.Equal(t, "2024-03-01", Time(day).Key())
	assert.Equal(t, "true", Bool(true).Key())
	assert.Equal(t, "", Null().Key())
	assert.True(t, Number(math.NaN()).IsNull())
}

func TestValueCompare(t *testing.T) {
	assert.Equal(t, -1, Number(1).Compare(Number(2)))
	assert.Equal(t, 0, Text("a").Compare(Text("a")))
	assert.Equal(t, 1, Time(time.Unix(10, 0)).Compare(Time(time.Unix(5, 0))))
}
