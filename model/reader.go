package model

import (
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// FieldReader is just a simple reader for whitespace-delimited text formats.
// Anything from a '#' to the end of its line is a comment.
type FieldReader struct {
	Pos    int
	Fields []string
}

// NewFieldReader constructs a new field reader around the given data
func NewFieldReader(data string) *FieldReader {
	lines := strings.Split(data, "\n")
	for i, ln := range lines {
		if idx := strings.IndexByte(ln, '#'); idx >= 0 {
			lines[i] = ln[:idx]
		}
	}
	return &FieldReader{0, strings.Fields(strings.Join(lines, "\n"))}
}

// Read returns the next field/token
func (fr *FieldReader) Read() (string, error) {
	if fr.Pos >= len(fr.Fields) {
		return "", io.EOF
	}
	p := fr.Pos
	fr.Pos++
	return fr.Fields[p], nil
}

// Remaining is the number of unread fields
func (fr *FieldReader) Remaining() int {
	return len(fr.Fields) - fr.Pos
}

// ReadCount reads the next token as a non-negative int
func (fr *FieldReader) ReadCount() (int, error) {
	s, err := fr.Read()
	if err != nil {
		return 0, err
	}

	i, err := strconv.ParseInt(s, 10, 0)
	if err != nil {
		return 0, errors.Wrapf(err, "Field %d is not an integer", fr.Pos)
	}
	if i < 0 {
		return 0, errors.Errorf("Field %d is negative: %d", fr.Pos, i)
	}
	return int(i), nil
}

// ReadFloat reads the next token as a float
func (fr *FieldReader) ReadFloat() (float64, error) {
	s, err := fr.Read()
	if err != nil {
		return 0, err
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "Field %d is not a number", fr.Pos)
	}
	return f, nil
}
