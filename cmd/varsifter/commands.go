package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teerjk/VarSifter-sub000/internal/app"
	"github.com/teerjk/VarSifter-sub000/internal/filter"
	"github.com/teerjk/VarSifter-sub000/internal/pairing"
)

var (
	specFile    string
	outFile     string
	expression  string
	pairIDs     string
	pairRow     int
	pairSamples bool
)

var columnsCmd = &cobra.Command{
	Use:   "columns FILE",
	Short: "List annotation columns, samples and sample fields",
	Args:  cobra.ExactArgs(1),
	RunE:  runColumns,
}

var loadCmd = &cobra.Command{
	Use:   "load FILE",
	Short: "Load a file and print a summary",
	Args:  cobra.ExactArgs(1),
	RunE:  runLoad,
}

var filterCmd = &cobra.Command{
	Use:   "filter FILE",
	Short: "Apply a filter request file",
	Long: `Applies every active category of a filter request and reports how many
rows each category kept. Categories that cannot be evaluated (an invalid
custom expression, for example) are reported and skipped.

Example request (YAML):
  variant_types: [SNP, INDEL]
  exclude_dbsnp: true
  case_control:
    cases: [S1, S2]
    controls: [S3]
  expression: "isHet(gt('S1')) AND LeftFlank > 1000"`,
	Args: cobra.ExactArgs(1),
	RunE: runFilter,
}

var queryCmd = &cobra.Command{
	Use:   "query FILE",
	Short: "Evaluate a row predicate expression",
	Long: `Evaluates one expression against every row.

Identifiers name annotation columns. Helpers:
  col(i|'name')      annotation cell
  gt(s)              genotype of sample s (index or name)
  field(s, 'name')   any sample field
  isHet(g), isHom(g) genotype shape
  has(col, 'token')  token of a multi-valued column
Per-row genotype constants: homRef, homVar, het, hemRef, hemVar.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

var pairCmd = &cobra.Command{
	Use:   "pair FILE",
	Short: "Pair an anchor row with its linked partner rows",
	Args:  cobra.ExactArgs(1),
	RunE:  runPair,
}

var exportCmd = &cobra.Command{
	Use:   "export FILE",
	Short: "Re-export a file in the primary tab-delimited format",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func runColumns(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	s, err := openSession(ctx, args[0])
	if err != nil {
		return err
	}
	st := s.Store()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "INDEX\tCOLUMN\tKIND\tDISTINCT")
	for i, c := range st.Columns() {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", i, c.Name, c.Kind, st.ColumnDict(i).Len())
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "INDEX\tSAMPLE\tDISPLAY")
	for i, smp := range st.Samples() {
		fmt.Fprintf(w, "%d\t%s\t%s\n", i, smp.Name, smp.DisplayName)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "INDEX\tFIELD\tKIND")
	for i, f := range st.SampleFields() {
		name := f.Name
		if name == "" {
			name = "genotype"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", i, name, f.Kind)
	}
	return w.Flush()
}

func runLoad(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	s, err := openSession(ctx, args[0])
	if err != nil {
		return err
	}
	st := s.Store()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "store:   %s\n", st.ID())
	fmt.Fprintf(out, "format:  %s\n", st.Schema().Format())
	fmt.Fprintf(out, "rows:    %d\n", st.NumRows())
	fmt.Fprintf(out, "columns: %d\n", st.NumColumns())
	fmt.Fprintf(out, "samples: %d\n", len(st.Samples()))
	return nil
}

func runFilter(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	s, err := openSession(ctx, args[0])
	if err != nil {
		return err
	}
	res, err := s.FilterRequest(ctx, specFile)
	if err != nil {
		return err
	}
	printFilterResult(cmd.OutOrStdout(), s, res)
	return exportView(cmd, s)
}

func printFilterResult(out io.Writer, s *app.Session, res *filter.Result) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CATEGORY\tKEPT\tDURATION")
	for _, c := range res.Categories {
		fmt.Fprintf(w, "%s\t%d\t%s\n", c.Name, c.Kept, c.Duration)
	}
	w.Flush()
	for _, err := range res.Reported {
		fmt.Fprintf(out, "skipped: %v\n", err)
	}
	fmt.Fprintf(out, "kept %d of %d rows\n", res.Kept, s.Store().NumRows())
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	s, err := openSession(ctx, args[0])
	if err != nil {
		return err
	}
	m, err := s.Query(ctx, expression)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "kept %d of %d rows\n", m.Count(), s.Store().NumRows())
	return exportView(cmd, s)
}

func runPair(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	s, err := openSession(ctx, args[0])
	if err != nil {
		return err
	}
	var res *pairing.Result
	if pairRow >= 0 {
		res, err = s.PairRow(pairRow, pairSamples)
	} else {
		res, err = s.Pair(pairIDs, pairSamples)
	}
	if err != nil {
		return err
	}
	printPairs(cmd.OutOrStdout(), res)
	return nil
}

func printPairs(out io.Writer, res *pairing.Result) {
	fmt.Fprintln(out, strings.Join(res.Columns, "\t"))
	for _, r := range res.Records {
		fmt.Fprintln(out, strings.Join(r.Values, "\t"))
	}
	if len(res.SampleColumns) == 0 {
		return
	}
	for _, r := range res.Records {
		fmt.Fprintf(out, "\n%d / %d\n", r.AnchorID, r.PartnerID)
		fmt.Fprintln(out, strings.Join(res.SampleColumns, "\t"))
		for _, row := range r.Samples {
			fmt.Fprintln(out, strings.Join(row, "\t"))
		}
	}
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	s, err := openSession(ctx, args[0])
	if err != nil {
		return err
	}
	n, err := s.Export(ctx, outFile, false)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s\n", n, outFile)
	return nil
}

// exportView writes the rows in view when --out was given.
func exportView(cmd *cobra.Command, s *app.Session) error {
	if outFile == "" {
		return nil
	}
	ctx, cancel := signalContext()
	defer cancel()

	n, err := s.Export(ctx, outFile, true)
	if err != nil {
		return err
	}
	logger.Debug("view exported", zap.String("path", outFile), zap.Int("rows", n))
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s\n", n, outFile)
	return nil
}
