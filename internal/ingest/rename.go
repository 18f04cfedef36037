package ingest

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/teerjk/VarSifter-sub000/internal/store"
)

// applyRenames reads the optional "<path><suffix>" sidecar and retargets
// sample display names. Codes are untouched. Unknown samples and malformed
// lines are logged and skipped.
func (l *Loader) applyRenames(ctx context.Context, path string, schema *store.Schema) error {
	sidecar := path + l.cfg.Ingest.RenameSuffix
	exists, err := l.fs.Exists(ctx, sidecar)
	if err != nil || !exists {
		return nil
	}

	renames, err := l.ReadRenameTable(ctx, sidecar)
	if err != nil {
		return err
	}
	for _, r := range renames {
		if !schema.RenameSample(r.Sample, r.Display) {
			l.logger.Warn("rename table names an unknown sample",
				zap.String("file", sidecar), zap.String("sample", r.Sample))
		}
	}
	l.logger.Debug("applied sample renames", zap.String("file", sidecar), zap.Int("entries", len(renames)))
	return nil
}

// Rename is one key=value entry of a rename table.
type Rename struct {
	Sample  string
	Display string
}

// ReadRenameTable parses a key=value rename table. Blank lines and lines
// starting with '#' are ignored.
func (l *Loader) ReadRenameTable(ctx context.Context, path string) ([]Rename, error) {
	r, err := openInput(ctx, l.fs, path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var out []Rename
	err = eachLine(r, func(lineNo int, line string) error {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			return nil
		}
		key, value, ok := strings.Cut(line, "=")
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if !ok || key == "" || value == "" {
			l.logger.Warn("skipping malformed rename line",
				zap.String("file", path), zap.Int("line", lineNo))
			return nil
		}
		out = append(out, Rename{Sample: key, Display: value})
		return nil
	})
	return out, err
}
