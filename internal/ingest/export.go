package ingest

import (
	"bufio"
	"context"
	"io"
	"strings"

	vserrors "github.com/teerjk/VarSifter-sub000/internal/errors"
	"github.com/teerjk/VarSifter-sub000/internal/storage"
	"github.com/teerjk/VarSifter-sub000/internal/store"
)

// Export writes st in the primary format: comment lines, the header in the
// source column order, then every row decoded back to literal values. With
// viewOnly only the rows of the current output view are written. The path
// suffix selects compression. It returns the number of data rows written.
//
// Multi-valued cells are written with the first spelling seen for their
// token set, so a file holding both "INDEL/SNP" and "SNP/INDEL" exports
// every such cell as whichever came first.
func Export(ctx context.Context, fs storage.FileStorage, st *store.Store, path string, viewOnly bool) (int, error) {
	w, err := fs.Create(ctx, path)
	if err != nil {
		return 0, vserrors.Wrap(vserrors.ErrCategoryExport, vserrors.CodeWriteFailed, "cannot create "+path, err)
	}

	n, err := writeRows(ctx, w, st, viewOnly)
	if err != nil {
		w.Close()
		return 0, vserrors.Wrap(vserrors.ErrCategoryExport, vserrors.CodeWriteFailed, "export to "+path+" failed", err)
	}
	if err := w.Close(); err != nil {
		return 0, vserrors.Wrap(vserrors.ErrCategoryExport, vserrors.CodeWriteFailed, "export to "+path+" failed", err)
	}
	return n, nil
}

func writeRows(ctx context.Context, out io.Writer, st *store.Store, viewOnly bool) (int, error) {
	bw := bufio.NewWriter(out)
	schema := st.Schema()

	for _, c := range schema.Comments() {
		bw.WriteString(c)
		bw.WriteByte('\n')
	}
	bw.WriteString(strings.Join(schema.Header(), "\t"))
	bw.WriteByte('\n')

	var rows []int
	if viewOnly {
		rows = st.View().Rows()
	} else {
		rows = make([]int, st.NumRows())
		for i := range rows {
			rows[i] = i
		}
	}

	layout := schema.Layout()
	for n, row := range rows {
		if n%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
		for i, ref := range layout {
			if i > 0 {
				bw.WriteByte('\t')
			}
			if ref.IsSample() {
				bw.WriteString(st.DecodeSample(row, ref.Sample, ref.Field))
			} else {
				bw.WriteString(st.DecodeAnnotation(row, ref.Column))
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return 0, err
		}
	}
	if err := bw.Flush(); err != nil {
		return 0, err
	}
	return len(rows), nil
}
