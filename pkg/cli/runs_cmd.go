package cli

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	internaldb "github.com/KeplerC/fog-rtx/internal/db"
	"github.com/KeplerC/fog-rtx/internal/db/repository"
	"github.com/KeplerC/fog-rtx/internal/domain"
)

func newRunsCmd(st *state) *cobra.Command {
	var filter domain.RunFilter

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded preparation runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(st.cfg.MetaDBPath); os.IsNotExist(err) {
				return domain.ErrNotFound("no run catalog at %s", st.cfg.MetaDBPath)
			}
			db, err := internaldb.OpenSQLite(cmd.Context(), st.cfg.MetaDBPath)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck

			runs, err := repository.NewPrepareRunRepo(db).List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if st.output == "json" {
				if runs == nil {
					runs = []domain.PrepareRun{}
				}
				return printJSON(cmd.OutOrStdout(), runs)
			}
			rows := make([][]string, 0, len(runs))
			for _, r := range runs {
				rows = append(rows, []string{
					r.ID,
					r.Dataset,
					r.Status,
					strconv.Itoa(r.Episodes),
					fmt.Sprintf("%.1f", r.MeanSteps),
					r.StartedAt.Local().Format(time.DateTime),
					r.Duration().Round(time.Millisecond).String(),
					r.Error,
				})
			}
			return printTable(cmd.OutOrStdout(),
				[]string{"ID", "DATASET", "STATUS", "EPISODES", "MEAN STEPS", "STARTED", "DURATION", "ERROR"}, rows)
		},
	}

	cmd.Flags().StringVar(&filter.Dataset, "dataset", "", "Only runs of this dataset")
	cmd.Flags().StringVar(&filter.Status, "status", "", "Only runs with this status (RUNNING, SUCCESS, FAILED)")
	cmd.Flags().IntVar(&filter.Limit, "limit", 20, "Maximum runs to list (0 = all)")

	return cmd
}
