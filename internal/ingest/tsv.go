package ingest

import (
	"bufio"
	"context"
	"io"
	"strings"

	vserrors "github.com/teerjk/VarSifter-sub000/internal/errors"
	"github.com/teerjk/VarSifter-sub000/internal/storage"
	"github.com/teerjk/VarSifter-sub000/pkg/types"
)

// maxLineBytes bounds one input line; wide cohorts produce long rows.
const maxLineBytes = 64 << 20

type tsvSource struct {
	fs     storage.FileStorage
	path   string
	marker string
}

func (s *tsvSource) format() Format                            { return FormatTSV }
func (s *tsvSource) kindHint(string) (types.ColumnKind, bool)  { return 0, false }
func (s *tsvSource) fieldHint(string) (types.ColumnKind, bool) { return 0, false }

// scan walks the file once: comment lines, then the first other line as the
// header, then data rows. Blank lines are skipped.
func (s *tsvSource) scan(ctx context.Context, v visitor) error {
	r, err := openInput(ctx, s.fs, s.path)
	if err != nil {
		return err
	}
	defer r.Close()

	headerSeen := false
	err = eachLine(r, func(lineNo int, line string) error {
		if s.marker != "" && strings.HasPrefix(line, s.marker) {
			v.comment(line)
			return nil
		}
		if !headerSeen {
			headerSeen = true
			return v.header(strings.Split(line, "\t"))
		}
		if line == "" {
			return nil
		}
		return v.row(lineNo, strings.Split(line, "\t"))
	})
	if err != nil {
		return err
	}
	if !headerSeen {
		return vserrors.New(vserrors.ErrCategoryIngest, vserrors.CodeMissingHeader, "input has no header row")
	}
	return nil
}

func openInput(ctx context.Context, fs storage.FileStorage, path string) (io.ReadCloser, error) {
	r, err := fs.Open(ctx, path)
	if err != nil {
		return nil, vserrors.Wrap(vserrors.ErrCategoryIngest, vserrors.CodeReadFailed, "cannot open "+path, err)
	}
	return r, nil
}

// eachLine calls fn for every line with its 1-based number and without the
// line terminator.
func eachLine(r io.Reader, fn func(lineNo int, line string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		if err := fn(lineNo, strings.TrimRight(sc.Text(), "\r")); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return vserrors.Wrap(vserrors.ErrCategoryIngest, vserrors.CodeReadFailed, "read failed", err)
	}
	return nil
}

func readFirstLine(ctx context.Context, fs storage.FileStorage, path string) (string, error) {
	r, err := openInput(ctx, fs, path)
	if err != nil {
		return "", err
	}
	defer r.Close()

	var first string
	err = eachLine(r, func(_ int, line string) error {
		first = line
		return io.EOF
	})
	if err != nil && err != io.EOF {
		return "", err
	}
	return first, nil
}
