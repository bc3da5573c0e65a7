package grid

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
)

// lineBreaks removes CR/LF embedded in quoted cells.
var lineBreaks = strings.NewReplacer("\r\n", "", "\r", "", "\n", "")

func readDelimitedFile(ctx context.Context, path string, opts Options) (*Result, error) {
	f, err := openFileForRead(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	return ReadDelimited(ctx, f, opts)
}

// maxRecordLines bounds how many physical lines one quoted record may span.
const maxRecordLines = 64

// ReadDelimited decodes r with the configured legacy encoding and parses it as delimited text.
// Records are parsed one at a time from physical lines, so a malformed record (an unterminated
// quote, a bare quote) skips only the line it starts on and is counted in Skipped.
// I/O failures abort the read.
func ReadDelimited(ctx context.Context, r io.Reader, opts Options) (*Result, error) {
	enc, err := lookupEncoding(opts.Encoding)
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(enc.NewDecoder().Reader(r))
	if err != nil {
		return nil, eris.Wrap(err, "csv: read input")
	}
	lines := splitLines(string(data))

	log := zap.L().With(zap.String("component", "grid.csv"))
	res := &Result{}
	for i := 0; i < len(lines); {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "csv: context cancelled")
		}

		record, next, err := parseRecord(lines, i, opts.Delimiter)
		if err != nil {
			log.Warn("skipping malformed row",
				zap.Int("line", i+1),
				zap.Error(err),
			)
			res.Skipped++
			i++
			continue
		}
		i = next
		if record == nil {
			continue
		}

		for j, cell := range record {
			record[j] = lineBreaks.Replace(cell)
		}
		res.Grid = append(res.Grid, record)
	}

	return res, nil
}

// splitLines splits text on LF, dropping a trailing CR from each line and the empty
// remainder after a final line break.
func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// parseRecord parses the record starting at lines[start]. A record spans further lines only
// while a quoted cell is open. It returns the index of the first line after the record and a
// nil record for blank lines.
func parseRecord(lines []string, start int, delim rune) ([]string, int, error) {
	end := start
	open := strings.Count(lines[start], `"`)%2 == 1
	for open {
		end++
		if end == len(lines) || end-start >= maxRecordLines {
			return nil, start + 1, eris.New("csv: unterminated quoted field")
		}
		if strings.Count(lines[end], `"`)%2 == 1 {
			open = false
		}
	}

	text := strings.Join(lines[start:end+1], "\n")
	reader := csv.NewReader(strings.NewReader(text))
	if delim != 0 {
		reader.Comma = delim
	}
	reader.FieldsPerRecord = -1 // allow variable fields

	record, err := reader.Read()
	if err == io.EOF {
		return nil, end + 1, nil
	}
	if err != nil {
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			return nil, start + 1, perr
		}
		return nil, start + 1, eris.Wrap(err, "csv: parse row")
	}
	return record, end + 1, nil
}

// lookupEncoding resolves an encoding label such as "ISO-8859-1" or "windows-1252".
func lookupEncoding(name string) (encoding.Encoding, error) {
	if name == "" {
		name = DefaultEncoding
	}
	// htmlindex folds latin1 into windows-1252; keep the strict table when latin1 is asked for.
	switch strings.ToLower(name) {
	case "iso-8859-1", "iso8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, eris.Wrapf(err, "csv: unsupported encoding %q", name)
	}
	return enc, nil
}
