package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWorkbook_WritesHeaderAndRows(t *testing.T) {
	f, err := Workbook([]Sheet{{
		Title:  "Students",
		Header: []string{"Index No", "Name", "Grade"},
		Rows: [][]string{
			{"S-001", "Amani Juma", "Form I"},
			{"S-002", "Neema Said", "Form III"},
		},
	}})
	require.NoError(t, err)

	data, err := Bytes(f)
	require.NoError(t, err)

	back, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	rows, err := back.GetRows("Students")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Index No", "Name", "Grade"}, rows[0])
	assert.Equal(t, "Form III", rows[2][2])
}

func TestWorkbook_RequiresSheet(t *testing.T) {
	_, err := Workbook(nil)
	assert.Error(t, err)
}
