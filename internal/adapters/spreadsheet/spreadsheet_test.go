package spreadsheet_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"crm/internal/adapters/spreadsheet"
)

func TestWriteXLSX_ReadRowsRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	err := spreadsheet.WriteXLSX(&buf,
		spreadsheet.Sheet{
			Name:    "Leads",
			Columns: []string{"Name", "Email", "Phone"},
			Rows: [][]string{
				{"Ana Silva", "ana@example.com", "+1 555 0100"},
				{"Ben Ode", "", "5550101"},
			},
		},
		spreadsheet.Sheet{Name: "Summary", Columns: []string{"Status", "Count"}, Rows: [][]string{{"NEW", "2"}}},
	)
	require.NoError(t, err)

	rows, err := spreadsheet.ReadRows(bytes.NewReader(buf.Bytes()), "leads.XLSX", 1<<20)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Name", "Email", "Phone"}, rows[0])
	assert.Equal(t, "Ana Silva", rows[1][0])
	assert.Equal(t, "5550101", rows[2][2])

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Leads", "Summary"}, f.GetSheetList())
}

func TestReadRows_CSV(t *testing.T) {
	body := "\xef\xbb\xbfName, Email ,Phone\nAna,ana@example.com,555 0100\n,,\nBen,\"ben@example.com\"\n"
	rows, err := spreadsheet.ReadRows(strings.NewReader(body), "upload.csv", 1<<20)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Name", rows[0][0])
	assert.True(t, spreadsheet.IsBlank(rows[2]))
	assert.Len(t, rows[3], 2)
}

func TestReadRows_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		filename string
		max      int64
		wantErr  error
	}{
		{name: "unsupported", body: "x", filename: "leads.pdf", max: 100, wantErr: spreadsheet.ErrUnsupportedFormat},
		{name: "too large", body: strings.Repeat("a,b\n", 50), filename: "leads.csv", max: 10, wantErr: spreadsheet.ErrTooLarge},
		{name: "empty csv", body: "", filename: "leads.csv", max: 100, wantErr: spreadsheet.ErrEmptySheet},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := spreadsheet.ReadRows(strings.NewReader(tt.body), tt.filename, tt.max)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := spreadsheet.ReadRows(strings.NewReader("not a zip"), "leads.xlsx", 100)
	assert.Error(t, err)
}

func TestHeaderIndex(t *testing.T) {
	idx := spreadsheet.HeaderIndex([]string{" Name ", "E-mail", "Assigned To", "assigned_to", "", "PHONE"})
	assert.Equal(t, 0, idx["name"])
	assert.Equal(t, 2, idx["assignedto"])
	assert.Equal(t, 5, idx["phone"])
	assert.Equal(t, 1, idx["e-mail"])
	_, ok := idx[""]
	assert.False(t, ok)
}

func TestCell(t *testing.T) {
	row := []string{" a ", "b"}
	assert.Equal(t, "a", spreadsheet.Cell(row, 0))
	assert.Equal(t, "", spreadsheet.Cell(row, 5))
	assert.Equal(t, "", spreadsheet.Cell(row, -1))
}
