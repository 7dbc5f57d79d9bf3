// Package csvcontent reads, compares and regenerates headerless CSV content.
package csvcontent

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

// ErrNoContent is returned when content holds no CSV record to work with.
var ErrNoContent = errors.New("csvcontent: no CSV record could be read")

// Record is one CSV record together with the 1-based source line it started on.
type Record struct {
	Fields []string
	Line   int
}

// Get returns the field at index, or "" when the record is shorter.
func (r Record) Get(index int) string {
	if index < 0 || index >= len(r.Fields) {
		return ""
	}
	return r.Fields[index]
}

// Reader yields the records of headerless CSV content. Records may have
// differing field counts.
type Reader struct {
	csv *csv.Reader
}

// NewReader reads records from content.
func NewReader(content []byte) *Reader {
	r := csv.NewReader(bytes.NewReader(content))
	r.FieldsPerRecord = -1
	return &Reader{csv: r}
}

// Read returns the next record, or io.EOF when the content is exhausted.
func (r *Reader) Read() (Record, error) {
	fields, err := r.csv.Read()
	if err != nil {
		return Record{}, err
	}
	line, _ := r.csv.FieldPos(0)
	return Record{Fields: fields, Line: line}, nil
}

// First reads the first record of content. An empty or unreadable content
// is reported as ErrNoContent.
func First(content []byte) (Record, error) {
	record, err := NewReader(content).Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, ErrNoContent
		}
		return Record{}, fmt.Errorf("%w: %v", ErrNoContent, err)
	}
	return record, nil
}

// Write encodes records as CSV, one line per record. A record holding a
// single empty field is written as "" so that it reads back as a record
// instead of a skipped blank line.
func Write(records ...[]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, record := range records {
		if len(record) == 1 && record[0] == "" {
			w.Flush()
			buf.WriteString("\"\"\n")
			continue
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
