package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat is returned for uploads that are neither CSV nor XLSX
var ErrUnsupportedFormat = errors.New("unsupported file format: expected .csv or .xlsx")

// ErrMissingHeader is returned when the file has no header row
var ErrMissingHeader = errors.New("file has no header row")

// ErrUnreadable wraps read failures the source cannot recover from
var ErrUnreadable = errors.New("file could not be read")

// Source yields data rows in file order and io.EOF after the last one
type Source interface {
	Next() (Row, error)
	Close() error
}

// Open picks a Source from the file name extension
func Open(filename string, r io.Reader) (Source, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt":
		return NewCSVSource(r)
	case ".xlsx":
		return NewXLSXSource(r)
	default:
		return nil, ErrUnsupportedFormat
	}
}

// headerMapper turns positional cells into a Row keyed by normalized header
type headerMapper struct {
	headers []string
	line    int
}

func newHeaderMapper(cells []string) (*headerMapper, error) {
	headers := make([]string, len(cells))
	nonEmpty := false
	for i, c := range cells {
		headers[i] = NormalizeHeader(c)
		if headers[i] != "" {
			nonEmpty = true
		}
	}
	if !nonEmpty {
		return nil, ErrMissingHeader
	}
	return &headerMapper{headers: headers, line: 1}, nil
}

// row numbers rows consecutively after the header
func (m *headerMapper) row(cells []string) Row {
	return m.rowAt(m.line+1, cells)
}

// rowAt maps a row whose position in the file is known
func (m *headerMapper) rowAt(line int, cells []string) Row {
	m.line = line
	values := make(map[string]string, len(m.headers))
	for i, h := range m.headers {
		if h == "" || i >= len(cells) {
			continue
		}
		// first column wins when a heading repeats
		if _, dup := values[h]; !dup {
			values[h] = cells[i]
		}
	}
	return Row{Number: m.line, Values: values}
}

type csvSource struct {
	r      *csv.Reader
	mapper *headerMapper
}

// NewCSVSource reads the header immediately; rows are read lazily
func NewCSVSource(r io.Reader) (Source, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrMissingHeader
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	mapper, err := newHeaderMapper(header)
	if err != nil {
		return nil, err
	}
	return &csvSource{r: cr, mapper: mapper}, nil
}

func (s *csvSource) Next() (Row, error) {
	cells, err := s.r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Row{}, io.EOF
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			s.mapper.line = perr.StartLine
			return Row{Number: perr.StartLine, ReadErr: fmt.Sprintf("The row could not be read: %v.", perr.Err)}, nil
		}
		return Row{}, fmt.Errorf("%w: csv line %d: %v", ErrUnreadable, s.mapper.line+1, err)
	}
	// file line, not record count: blank lines are skipped and quoted cells may span lines
	line, _ := s.r.FieldPos(0)
	return s.mapper.rowAt(line, cells), nil
}

func (s *csvSource) Close() error { return nil }

type xlsxSource struct {
	file   *excelize.File
	rows   *excelize.Rows
	mapper *headerMapper
}

// NewXLSXSource streams the first worksheet
func NewXLSXSource(r io.Reader) (Source, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		_ = f.Close()
		return nil, ErrMissingHeader
	}
	rows, err := f.Rows(sheets[0])
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("read xlsx sheet %q: %w", sheets[0], err)
	}

	if !rows.Next() {
		_ = rows.Close()
		_ = f.Close()
		return nil, ErrMissingHeader
	}
	header, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		_ = f.Close()
		return nil, fmt.Errorf("read xlsx header: %w", err)
	}
	mapper, err := newHeaderMapper(header)
	if err != nil {
		_ = rows.Close()
		_ = f.Close()
		return nil, err
	}

	return &xlsxSource{file: f, rows: rows, mapper: mapper}, nil
}

func (s *xlsxSource) Next() (Row, error) {
	if !s.rows.Next() {
		if err := s.rows.Error(); err != nil {
			return Row{}, fmt.Errorf("%w: xlsx: %v", ErrUnreadable, err)
		}
		return Row{}, io.EOF
	}
	cells, err := s.rows.Columns()
	if err != nil {
		return Row{}, fmt.Errorf("%w: xlsx row %d: %v", ErrUnreadable, s.mapper.line+1, err)
	}
	return s.mapper.row(cells), nil
}

func (s *xlsxSource) Close() error {
	rowsErr := s.rows.Close()
	if err := s.file.Close(); err != nil {
		return err
	}
	return rowsErr
}

// SliceSource serves pre-built rows; used by callers that already hold the data
type SliceSource struct {
	rows []Row
	pos  int
}

// NewSliceSource numbers rows from 2 like a spreadsheet with a header
func NewSliceSource(values []map[string]string) *SliceSource {
	rows := make([]Row, len(values))
	for i, v := range values {
		rows[i] = Row{Number: i + 2, Values: v}
	}
	return &SliceSource{rows: rows}
}

func (s *SliceSource) Next() (Row, error) {
	if s.pos >= len(s.rows) {
		return Row{}, io.EOF
	}
	r := s.rows[s.pos]
	s.pos++
	return r, nil
}

func (s *SliceSource) Close() error { return nil }
