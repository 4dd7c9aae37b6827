package importer

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func drain(t *testing.T, src Source) []Row {
	t.Helper()
	var rows []Row
	for {
		row, err := src.Next()
		if err == io.EOF {
			return rows
		}
		require.NoError(t, err)
		rows = append(rows, row)
	}
}

func TestCSVSource(t *testing.T) {
	data := "\ufeffName,Email,Ticket Type,Is Paid\n" +
		"Ada,ada@x.com,Premium,yes\n" +
		"Bob,bob@x.com\n" +
		",,,\n"
	src, err := Open("participants.CSV", strings.NewReader(data))
	require.NoError(t, err)
	defer src.Close()

	rows := drain(t, src)
	require.Len(t, rows, 3)
	assert.Equal(t, 2, rows[0].Number)
	assert.Equal(t, "Premium", rows[0].Get(ColTicketType))
	assert.Equal(t, "yes", rows[0].Get(ColIsPaid))
	assert.Equal(t, "ada@x.com", rows[0].Get(ColEmail))
	assert.Equal(t, 3, rows[1].Number)
	assert.Equal(t, "", rows[1].Get(ColTicketType))
	assert.Equal(t, 4, rows[2].Number)
	assert.Equal(t, "", rows[2].Get(ColName))
}

func TestCSVSource_NumbersRowsByFileLine(t *testing.T) {
	data := "name,email,address\n" +
		"Ann,ann@example.com\n" +
		"\n" +
		"Bob,not-an-email\n" +
		"Cy,cy@example.com,\"12 Long Road\nSecond Floor\"\n" +
		"Di,di@example.com\n"
	src, err := NewCSVSource(strings.NewReader(data))
	require.NoError(t, err)

	rows := drain(t, src)
	require.Len(t, rows, 4)
	assert.Equal(t, []int{2, 4, 5, 7}, []int{rows[0].Number, rows[1].Number, rows[2].Number, rows[3].Number})
	assert.Equal(t, "Bob", rows[1].Get(ColName))
	assert.Equal(t, "12 Long Road\nSecond Floor", rows[2].Get(ColAddress))
}

func TestCSVSource_StrayQuotesAreKept(t *testing.T) {
	data := "name,email\n" +
		"Bad \"quote\" row,bad@example.com\n" +
		"Eve,eve@example.com\n"
	src, err := NewCSVSource(strings.NewReader(data))
	require.NoError(t, err)

	rows := drain(t, src)
	require.Len(t, rows, 2)
	assert.Equal(t, `Bad "quote" row`, rows[0].Get(ColName))
	assert.Empty(t, rows[0].ReadErr)
	assert.Equal(t, 3, rows[1].Number)
}

func TestCSVSource_EmptyFile(t *testing.T) {
	_, err := NewCSVSource(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrMissingHeader)
}

func TestOpen_UnsupportedExtension(t *testing.T) {
	_, err := Open("participants.pdf", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestXLSXSource(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"Name", "Email", "Phone", "Is Paid"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"Ada", "ada@x.com", "0901", "TRUE"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]any{"Bob", "bob@x.com"}))
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	require.NoError(t, f.Close())

	src, err := Open("participants.xlsx", &buf)
	require.NoError(t, err)
	defer src.Close()

	rows := drain(t, src)
	require.Len(t, rows, 2)
	assert.Equal(t, 2, rows[0].Number)
	assert.Equal(t, "Ada", rows[0].Get(ColName))
	assert.Equal(t, "0901", rows[0].Get(ColPhone))
	assert.True(t, ParsePaid(rows[0].Get(ColIsPaid)))
	assert.Equal(t, 3, rows[1].Number)
	assert.Equal(t, "", rows[1].Get(ColPhone))
}
