package fetcher

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSV(t *testing.T) {
	t.Parallel()

	t.Run("header and rows", func(t *testing.T) {
		t.Parallel()
		in := "name,phone,city\nAcme,555,Seattle\nBeta,,Tacoma\n"
		headers, rows, err := ReadCSV(strings.NewReader(in), CSVOptions{})
		require.NoError(t, err)
		assert.Equal(t, []string{"name", "phone", "city"}, headers)
		require.Len(t, rows, 2)
		assert.Equal(t, []string{"Acme", "555", "Seattle"}, rows[0])
	})

	t.Run("blank cells stay empty strings", func(t *testing.T) {
		t.Parallel()
		in := "a,b\n1,\n,2\n"
		_, rows, err := ReadCSV(strings.NewReader(in), CSVOptions{})
		require.NoError(t, err)
		assert.Equal(t, []string{"1", ""}, rows[0])
		assert.Equal(t, []string{"", "2"}, rows[1])
	})

	t.Run("short rows padded to header width", func(t *testing.T) {
		t.Parallel()
		in := "a,b,c\n1\n"
		_, rows, err := ReadCSV(strings.NewReader(in), CSVOptions{})
		require.NoError(t, err)
		assert.Equal(t, []string{"1", "", ""}, rows[0])
	})

	t.Run("custom delimiter", func(t *testing.T) {
		t.Parallel()
		in := "a;b\n1;2\n"
		headers, rows, err := ReadCSV(strings.NewReader(in), CSVOptions{Delimiter: ';'})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, headers)
		assert.Equal(t, []string{"1", "2"}, rows[0])
	})

	t.Run("tab delimiter sniffed", func(t *testing.T) {
		t.Parallel()
		in := "business name\tphone\nAcme Co\t5551234567\n"
		headers, rows, err := ReadCSV(strings.NewReader(in), CSVOptions{})
		require.NoError(t, err)
		assert.Equal(t, []string{"business name", "phone"}, headers)
		assert.Equal(t, []string{"Acme Co", "5551234567"}, rows[0])
	})

	t.Run("semicolon delimiter sniffed", func(t *testing.T) {
		t.Parallel()
		in := "a;b;c\n1;2;3\n"
		headers, rows, err := ReadCSV(strings.NewReader(in), CSVOptions{})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, headers)
		assert.Equal(t, []string{"1", "2", "3"}, rows[0])
	})

	t.Run("explicit delimiter beats sniffing", func(t *testing.T) {
		t.Parallel()
		in := "a;b\t1\n2;3\t4\n"
		headers, _, err := ReadCSV(strings.NewReader(in), CSVOptions{Delimiter: ';'})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b\t1"}, headers)
	})

	t.Run("windows-1252 charset", func(t *testing.T) {
		t.Parallel()
		// 0xE9 is é in windows-1252.
		in := "name\nCaf\xe9\n"
		_, rows, err := ReadCSV(strings.NewReader(in), CSVOptions{Encoding: "windows-1252"})
		require.NoError(t, err)
		assert.Equal(t, "Café", rows[0][0])
	})

	t.Run("unknown charset rejected", func(t *testing.T) {
		t.Parallel()
		_, _, err := ReadCSV(strings.NewReader("a\n1\n"), CSVOptions{Encoding: "not-a-charset"})
		assert.Error(t, err)
	})

	t.Run("empty input rejected", func(t *testing.T) {
		t.Parallel()
		_, _, err := ReadCSV(strings.NewReader(""), CSVOptions{})
		assert.Error(t, err)
	})
}
