package dataprocessing

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	apperrors "csvmapper/internal/errors"
	"csvmapper/pkg/contracts/domain"
)

// ErrEmptyFile is returned for uploads with no header row
var ErrEmptyFile = errors.New("no columns to parse from file")

// Encoding pairs a label with a text decoder
type Encoding struct {
	Name    string
	Decoder encoding.Encoding
}

var knownEncodings = map[string]encoding.Encoding{
	"utf-8":        unicode.UTF8,
	"utf8":         unicode.UTF8,
	"windows-1252": charmap.Windows1252,
	"cp1252":       charmap.Windows1252,
	"latin-1":      charmap.ISO8859_1,
	"latin1":       charmap.ISO8859_1,
	"iso-8859-1":   charmap.ISO8859_1,
	"iso-8859-15":  charmap.ISO8859_15,
}

// DefaultEncodings is the attempt order used when none is configured
var DefaultEncodings = []string{"utf-8", "windows-1252", "iso-8859-1"}

// LookupEncodings resolves encoding names, rejecting unknown ones.
func LookupEncodings(names []string) ([]Encoding, error) {
	if len(names) == 0 {
		names = DefaultEncodings
	}
	out := make([]Encoding, 0, len(names))
	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		enc, ok := knownEncodings[key]
		if !ok {
			return nil, fmt.Errorf("unsupported encoding %q", name)
		}
		out = append(out, Encoding{Name: key, Decoder: enc})
	}
	return out, nil
}

// CSVDecoder turns uploaded bytes into a table, trying each encoding in turn.
type CSVDecoder struct {
	encodings []Encoding
	logger    *slog.Logger
}

// NewCSVDecoder creates a decoder over the given attempt order
func NewCSVDecoder(encodings []Encoding, logger *slog.Logger) *CSVDecoder {
	if logger == nil {
		logger = slog.Default()
	}
	if len(encodings) == 0 {
		encodings, _ = LookupEncodings(nil)
	}
	return &CSVDecoder{
		encodings: encodings,
		logger:    logger.With(slog.String("component", "csv_decoder")),
	}
}

// Decode parses data as CSV. The first encoding whose decoded text parses
// cleanly wins; when every attempt fails a FILE_DECODE error wraps the last cause.
func (d *CSVDecoder) Decode(name string, data []byte) (*domain.Table, string, error) {
	var lastErr error
	for _, enc := range d.encodings {
		text, err := decodeText(enc, data)
		if err != nil {
			d.logger.Debug("encoding attempt failed",
				slog.String("file", name),
				slog.String("encoding", enc.Name),
				slog.String("error", err.Error()))
			lastErr = err
			continue
		}

		table, err := ParseCSV(name, text)
		if err != nil {
			if errors.Is(err, ErrEmptyFile) {
				return nil, "", apperrors.NewFileDecodeError(fmt.Sprintf("error reading %s", name), err)
			}
			d.logger.Debug("parse attempt failed",
				slog.String("file", name),
				slog.String("encoding", enc.Name),
				slog.String("error", err.Error()))
			lastErr = err
			continue
		}

		d.logger.Info("file decoded",
			slog.String("file", name),
			slog.String("encoding", enc.Name),
			slog.Int("columns", table.Width()),
			slog.Int("rows", table.Len()))
		return table, enc.Name, nil
	}

	if lastErr == nil {
		lastErr = errors.New("no encodings configured")
	}
	return nil, "", apperrors.NewFileDecodeError(fmt.Sprintf("error reading %s", name), lastErr).
		WithContext("attempted_encodings", d.names())
}

func (d *CSVDecoder) names() []string {
	names := make([]string, len(d.encodings))
	for i, enc := range d.encodings {
		names[i] = enc.Name
	}
	return names
}

func decodeText(enc Encoding, data []byte) (string, error) {
	if strings.HasPrefix(enc.Name, "utf") {
		data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%s: invalid byte sequence", enc.Name)
		}
		return string(data), nil
	}
	out, _, err := transform.Bytes(enc.Decoder.NewDecoder(), data)
	if err != nil {
		return "", fmt.Errorf("%s: %w", enc.Name, err)
	}
	return string(out), nil
}

// ParseCSV reads comma-separated text with a header row. Short rows are padded,
// rows wider than the header are rejected, and duplicate header names get
// ".1", ".2" suffixes so every column stays addressable.
func ParseCSV(name, text string) (*domain.Table, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	var rows [][]string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}
		rows = append(rows, record)
	}

	return domain.NewTable(name, DedupeHeader(header), rows)
}

// DedupeHeader renames repeated column names as name.1, name.2, ...
func DedupeHeader(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	counts := make(map[string]int, len(header))
	for i, h := range header {
		candidate := h
		for seen[candidate] {
			counts[h]++
			candidate = fmt.Sprintf("%s.%d", h, counts[h])
		}
		seen[candidate] = true
		out[i] = candidate
	}
	return out
}
