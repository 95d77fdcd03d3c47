package fetcher

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func createTestXLSX(t *testing.T, sheets map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				row.AddCell().SetString(cellData)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "test.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadXLSX(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {
			{"business name", "phone", "tib"},
			{"Acme Co", "(555) 123-4567", "5"},
			{"Beta LLC", "", "2 years"},
		},
	})

	headers, rows, err := ReadXLSX(path, XLSXOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"business name", "phone", "tib"}, headers)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Acme Co", "(555) 123-4567", "5"}, rows[0])
	assert.Equal(t, []string{"Beta LLC", "", "2 years"}, rows[1])
}

func TestReadXLSXShortRowsPadded(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {
			{"a", "b", "c"},
			{"1"},
		},
	})

	headers, rows, err := ReadXLSX(path, XLSXOptions{})
	require.NoError(t, err)
	require.Len(t, headers, 3)
	assert.Equal(t, []string{"1", "", ""}, rows[0])
}

func TestReadXLSXSheetSelection(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Data": {
			{"x"},
			{"1"},
		},
	})

	_, rows, err := ReadXLSX(path, XLSXOptions{SheetName: "Data"})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	_, _, err = ReadXLSX(path, XLSXOptions{SheetName: "Missing"})
	assert.Error(t, err)

	_, _, err = ReadXLSX(path, XLSXOptions{SheetIndex: 5})
	assert.Error(t, err)
}
