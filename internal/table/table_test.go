package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_Append(t *testing.T) {
	tbl := New("Currency", "Rate")

	require.NoError(t, tbl.Append("EUR", "0.92"))
	assert.Equal(t, 1, tbl.Len())

	err := tbl.Append("GBP")
	assert.EqualError(t, err, "row has 1 values, table has 2 columns")
	assert.Equal(t, 1, tbl.Len(), "rejected row must not be added")
}

func TestTable_Empty(t *testing.T) {
	var nilTable *Table
	assert.True(t, nilTable.Empty())
	assert.True(t, New("a").Empty())

	tbl := New("a")
	require.NoError(t, tbl.Append("1"))
	assert.False(t, tbl.Empty())
}

func TestTable_CSV(t *testing.T) {
	tbl := New("Rank", "Name", "Price")
	require.NoError(t, tbl.Append("1", "Bitcoin", "$67,000.12"))
	require.NoError(t, tbl.Append("2", "Ethereum", "$3,200.00"))

	data, err := tbl.CSV()
	require.NoError(t, err)

	want := "Rank,Name,Price\n1,Bitcoin,\"$67,000.12\"\n2,Ethereum,\"$3,200.00\"\n"
	assert.Equal(t, want, string(data))
}

func TestTable_CSV_RaggedRow(t *testing.T) {
	tbl := &Table{Columns: []string{"a", "b"}, Rows: [][]string{{"1"}}}

	_, err := tbl.CSV()
	assert.EqualError(t, err, "row 0 has 1 values, want 2")
}

func TestTable_CSV_Nil(t *testing.T) {
	var tbl *Table
	_, err := tbl.CSV()
	assert.Error(t, err)
}
