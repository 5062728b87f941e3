package bom

import (
	"bytes"
	"encoding/csv"
	"io"
	"unicode/utf8"

	"github.com/ashtavinayaka/tankflow/internal/tank/apperror"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// OpenCSV reads a CSV export of the BOM sheet. Files saved by Excel on
// Windows are often cp1252, so non-UTF-8 input is decoded as Windows-1252.
func OpenCSV(r io.Reader, opts Options) (*Rows, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, apperror.Parse(err, "unable to read csv")
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	var reader io.Reader = bytes.NewReader(data)
	if !utf8.Valid(data) {
		reader = transform.NewReader(reader, charmap.Windows1252.NewDecoder())
	}

	cr := csv.NewReader(reader)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	return newRows(&csvSource{r: cr}, opts)
}

type csvSource struct {
	r *csv.Reader
}

func (s *csvSource) next() ([]string, bool, error) {
	record, err := s.r.Read()
	if err == io.EOF {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return record, true, nil
}

func (s *csvSource) close() error {
	return nil
}
