package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/spf13/cobra"

	"github.com/KeplerC/fog-rtx/internal/dataset"
	"github.com/KeplerC/fog-rtx/internal/domain"
	"github.com/KeplerC/fog-rtx/internal/rtx"
)

// openExisting opens a dataset store that a previous prepare created.
func openExisting(ctx context.Context, st *state, name string) (*dataset.Dataset, error) {
	file := filepath.Join(st.cfg.DatasetPath, name+".duckdb")
	if _, err := os.Stat(file); err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrNotFound("dataset %q has not been prepared under %s", name, st.cfg.DatasetPath)
		}
		return nil, err
	}
	return dataset.Open(ctx, name, st.cfg.DatasetPath, st.logger)
}

func newDatasetsCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "datasets",
		Short: "List the default RT-X datasets and whether they are prepared",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			type entry struct {
				Name     string `json:"name"`
				Prepared bool   `json:"prepared"`
			}
			entries := make([]entry, 0, len(rtx.DefaultDatasets))
			for _, name := range rtx.DefaultDatasets {
				_, err := os.Stat(filepath.Join(st.cfg.DatasetPath, name+".duckdb"))
				entries = append(entries, entry{Name: name, Prepared: err == nil})
			}
			if st.output == "json" {
				return printJSON(cmd.OutOrStdout(), entries)
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{e.Name, strconv.FormatBool(e.Prepared)})
			}
			return printTable(cmd.OutOrStdout(), []string{"NAME", "PREPARED"}, rows)
		},
	}
}

func newTablesCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "tables <dataset>",
		Short: "List the tables of a prepared dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := openExisting(cmd.Context(), st, args[0])
			if err != nil {
				return err
			}
			defer ds.Close() //nolint:errcheck

			type entry struct {
				Name    string `json:"name"`
				Columns int    `json:"columns"`
				Rows    int    `json:"rows"`
			}
			store := ds.Store()
			var entries []entry
			for _, name := range ds.Tables() {
				cols, err := store.Columns(name)
				if err != nil {
					return err
				}
				n, err := store.RowCount(name)
				if err != nil {
					return err
				}
				entries = append(entries, entry{Name: name, Columns: len(cols), Rows: n})
			}
			if st.output == "json" {
				return printJSON(cmd.OutOrStdout(), entries)
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{e.Name, strconv.Itoa(e.Columns), strconv.Itoa(e.Rows)})
			}
			return printTable(cmd.OutOrStdout(), []string{"TABLE", "COLUMNS", "ROWS"}, rows)
		},
	}
}

func newShowCmd(st *state) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "show <dataset> [table]",
		Short: "Print a table of a prepared dataset (the episode metadata by default)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := openExisting(cmd.Context(), st, args[0])
			if err != nil {
				return err
			}
			defer ds.Close() //nolint:errcheck

			name := ds.Name
			if len(args) == 2 {
				name = args[1]
			}
			rec, err := ds.Store().SelectTable(cmd.Context(), name)
			if err != nil {
				return err
			}
			defer rec.Release()
			return printRecord(cmd, st, rec, limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum rows to print (0 = all)")

	return cmd
}

func printRecord(cmd *cobra.Command, st *state, rec arrow.Record, limit int) error {
	n := int(rec.NumRows())
	if limit > 0 && limit < n {
		n = limit
	}
	schema := rec.Schema()

	if st.output == "json" {
		rows := make([]map[string]any, 0, n)
		for i := 0; i < n; i++ {
			row := make(map[string]any, schema.NumFields())
			for c, f := range schema.Fields() {
				row[f.Name] = rec.Column(c).GetOneForMarshal(i)
			}
			rows = append(rows, row)
		}
		return printJSON(cmd.OutOrStdout(), rows)
	}

	headers := make([]string, schema.NumFields())
	for c, f := range schema.Fields() {
		headers[c] = f.Name
	}
	rows := make([][]string, 0, n)
	for i := 0; i < n; i++ {
		row := make([]string, len(headers))
		for c := range headers {
			col := rec.Column(c)
			if col.IsNull(i) {
				row[c] = "NULL"
				continue
			}
			row[c] = col.ValueStr(i)
		}
		rows = append(rows, row)
	}
	if err := printTable(cmd.OutOrStdout(), headers, rows); err != nil {
		return err
	}
	if int64(n) < rec.NumRows() {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "(%d of %d rows)\n", n, rec.NumRows())
	}
	return nil
}

func newExportCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "export <dataset> <table> <file.parquet>",
		Short: "Write a dataset table to a Parquet file",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := openExisting(cmd.Context(), st, args[0])
			if err != nil {
				return err
			}
			defer ds.Close() //nolint:errcheck

			if err := ds.Store().ExportParquet(cmd.Context(), args[1], args[2]); err != nil {
				return err
			}
			if st.output == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]string{
					"status": "ok",
					"table":  args[1],
					"path":   args[2],
				})
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Exported %s to %s\n", args[1], args[2])
			return nil
		},
	}
}
