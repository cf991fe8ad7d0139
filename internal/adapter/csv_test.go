package adapter

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataset-analyzer/internal/dataset"
)

func writeFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestDecodeText(t *testing.T) {
	tests := []struct {
		name     string
		raw      []byte
		want     string
		encoding string
	}{
		{"utf-8 with bom", []byte("\xef\xbb\xbfcidade\nSão Paulo"), "cidade\nSão Paulo", "utf-8"},
		{"latin-1", []byte("cidade\nS\xe3o Paulo"), "cidade\nSão Paulo", "latin-1"},
		{"cp1252 quotes", []byte("\x93ok\x94 \xe9"), "“ok” é", "cp1252"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, enc, err := decodeText(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.encoding, enc)
		})
	}
}

func TestSniffDelimiter(t *testing.T) {
	assert.Equal(t, ';', sniffDelimiter("id;name;city\n1;a;b"))
	assert.Equal(t, '\t', sniffDelimiter("id\tname\n1\ta"))
	assert.Equal(t, '|', sniffDelimiter("id|name"))
	assert.Equal(t, ';', sniffDelimiter(`"a,b,c";d`+"\n"))
	assert.Equal(t, ',', sniffDelimiter("single"))
}

func TestCSVLoader(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "orders.csv", []byte("order_id;status;note\n1;open;NULL\n2;closed;\n3;open;\"a;b\"\n"))

	got, err := NewCSVLoader(path, DefaultOptions(), nil).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)

	ds := got[0]
	assert.Equal(t, "orders", ds.Name)
	assert.Equal(t, path, ds.Source)
	assert.Equal(t, []string{"order_id", "status", "note"}, ds.Columns)
	require.Len(t, ds.Rows, 3)
	assert.Equal(t, dataset.Text("1"), ds.Rows[0][0])
	assert.True(t, ds.Rows[0][2].IsNull())
	assert.True(t, ds.Rows[1][2].IsNull())
	assert.Equal(t, dataset.Text("a;b"), ds.Rows[2][2])
	assert.NoError(t, ds.Validate())
}

func TestCSVLoaderRowLimit(t *testing.T) {
	path := writeFile(t, t.TempDir(), "n.csv", []byte("n\n1\n2\n3\n4\n"))
	opts := DefaultOptions()
	opts.RowLimit = 2

	got, err := NewCSVLoader(path, opts, nil).Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, got[0].Rows, 2)
}

func TestCSVLoaderRaggedRows(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.csv", []byte("a,b\n1,2\n1,2,3\n"))

	got, err := NewCSVLoader(path, DefaultOptions(), nil).Load(context.Background())
	require.NoError(t, err)

	var inputErr *dataset.InputError
	err = got[0].Validate()
	require.ErrorAs(t, err, &inputErr)
	assert.ErrorIs(t, err, dataset.ErrRaggedRow)
	assert.Equal(t, "bad", inputErr.Dataset)
}

func TestCSVLoaderEmptyFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "empty.csv", nil)

	_, err := NewCSVLoader(path, DefaultOptions(), nil).Load(context.Background())
	assert.ErrorIs(t, err, dataset.ErrNoColumns)
}

func TestNormalizeHeader(t *testing.T) {
	assert.Equal(t,
		[]string{"id", "column_2", "id_2", "name"},
		normalizeHeader([]string{" id ", "", "id", "\uFEFFname"}),
	)
}
