package catalog_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/katalog/internal/catalog"
	"github.com/Veraticus/katalog/internal/common"
)

func TestDecode_JSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{name: "array", input: `[{"code":"801171321","name":"Bednění základů","unit":"m2","price":412.5}]`, want: 1},
		{name: "wrapped", input: `{"items":[{"code":"1","name":"Zemní práce"},{"code":"2","name":"Základy"}]}`, want: 2},
		{name: "empty array", input: `[]`, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := catalog.Decode(strings.NewReader(tt.input), catalog.FormatJSON)
			require.NoError(t, err)
			assert.Len(t, records, tt.want)
		})
	}

	_, err := catalog.Decode(strings.NewReader(`{"items":`), catalog.FormatJSON)
	assert.Error(t, err)
}

func TestDecode_CSV(t *testing.T) {
	input := "\ufeffkód;název;mj;cena\n" +
		"801171321;Bednění základů;m2;1 234,50\n" +
		"274313811;\"Základové pasy; beton\";m3;\n" +
		"2;Základy;;;Základové pasy a patky;\n"

	records, err := catalog.Decode(strings.NewReader(input), catalog.FormatCSV)
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "801171321", records[0].Code)
	require.NotNil(t, records[0].Price)
	assert.InDelta(t, 1234.5, *records[0].Price, 1e-9)

	assert.Equal(t, "Základové pasy; beton", records[1].Name)
	assert.Nil(t, records[1].Price)

	assert.Equal(t, "Základové pasy a patky", records[2].Description)
}

func TestDecode_CSVCommaSeparated(t *testing.T) {
	records, err := catalog.Decode(strings.NewReader("code,name,unit,price\n131201101,Hloubení jam,m3,210.5\n"), catalog.FormatCSV)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Hloubení jam", records[0].Name)
	assert.InDelta(t, 210.5, *records[0].Price, 1e-9)
}

func TestDecode_YAML(t *testing.T) {
	input := `
- code: "2"
  name: Základy
- code: "27"
  name: Základy
  parent_code: "2"
`
	records, err := catalog.Decode(strings.NewReader(input), catalog.FormatYAML)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "2", records[1].ParentCode)
}

func TestFormatFromPath(t *testing.T) {
	tests := map[string]catalog.Format{
		"catalog.json": catalog.FormatJSON,
		"urs.CSV":      catalog.FormatCSV,
		"tskp.yml":     catalog.FormatYAML,
	}
	for path, want := range tests {
		got, err := catalog.FormatFromPath(path)
		require.NoError(t, err)
		assert.Equal(t, want, got, path)
	}

	_, err := catalog.FormatFromPath("catalog.xlsx")
	assert.ErrorIs(t, err, common.ErrUnknownFormat)
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"code":"801171321","name":"Bednění základů"}]`), 0o600))

	records, err := catalog.FileSource{Path: path}.Records(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Bednění základů", records[0].Name)
}
