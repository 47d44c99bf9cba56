package surveyfake

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var (
	from = time.Date(2023, 10, 1, 0, 0, 0, 0, time.UTC)
	to   = time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
)

func TestGeneratorIsReproducible(t *testing.T) {
	a := New(42, 4).Responses(20, from, to)
	b := New(42, 4).Responses(20, from, to)
	assert.Equal(t, a, b)
}

func TestResponses(t *testing.T) {
	g := New(7, 3)
	require.Len(t, g.Trainers(), 3)

	for _, r := range g.Responses(200, from, to) {
		assert.Contains(t, g.Trainers(), r.Trainer)
		for _, v := range []int{r.Rating, r.Knowledge, r.Adaptability, r.Feedback, r.Guidance} {
			assert.True(t, v >= 1 && v <= 5, "score %d out of range", v)
		}
		assert.False(t, r.Date.Before(from))
		assert.False(t, r.Date.After(to))
	}
}

func TestDelegateCSV(t *testing.T) {
	responses := New(1, 2).Responses(5, from, to)
	rows, err := csv.NewReader(bytes.NewReader(DelegateCSV(responses))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 6)
	assert.Equal(t, DelegateColumns, rows[0])
	assert.Equal(t, Records(responses), rows[1:])

	empty, err := csv.NewReader(bytes.NewReader(DelegateCSV(nil))).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{DelegateColumns}, empty, "header only")
}

func TestDelegateWorkbook(t *testing.T) {
	responses := New(3, 2).Responses(5, from, to)
	data, err := DelegateWorkbook(responses, "Q1", "Q2")
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Q1", "Q2"}, f.GetSheetList())

	q1, err := f.GetRows("Q1")
	require.NoError(t, err)
	q2, err := f.GetRows("Q2")
	require.NoError(t, err)
	assert.Len(t, q1, 4)
	assert.Len(t, q2, 3)
}

func TestPartnerAndMaster(t *testing.T) {
	g := New(9, 1)
	partner, err := csv.NewReader(bytes.NewReader(g.PartnerCSV(3))).ReadAll()
	require.NoError(t, err)
	assert.Len(t, partner, 4)
	assert.Equal(t, PartnerColumns, partner[0])

	master, err := csv.NewReader(bytes.NewReader(g.MasterCSV(60, from, to))).ReadAll()
	require.NoError(t, err)
	assert.Len(t, master, 61)
	assert.Equal(t, MasterColumns, master[0])
	for _, row := range master[1:] {
		d, err := time.Parse("02/01/2006", row[0])
		require.NoError(t, err)
		assert.False(t, d.Before(from.AddDate(0, 0, -1)))
		assert.False(t, d.After(to.AddDate(0, 0, 1)))
	}
	_, err = time.Parse("02/01/2006", partner[1][3])
	assert.NoError(t, err)
}
