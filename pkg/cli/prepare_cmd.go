package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/KeplerC/fog-rtx/internal/app"
	"github.com/KeplerC/fog-rtx/internal/config"
	internaldb "github.com/KeplerC/fog-rtx/internal/db"
	"github.com/KeplerC/fog-rtx/internal/db/repository"
)

func newPrepareCmd(st *state) *cobra.Command {
	var (
		src          string
		dsVersion    string
		split        string
		sampleSize   int
		shuffle      bool
		seed         uint64
		parallel     int
		metadataOnly bool
		rps          float64
		datasetsFile string
		schedule     string
		noRuns       bool
	)

	cmd := &cobra.Command{
		Use:   "prepare [dataset...]",
		Short: "Sample episodes and record dataset metadata",
		Long: "Samples episodes of each named RT-X dataset (all default datasets when none are given) " +
			"and records their metadata in <path>/<dataset>.duckdb.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := *st.cfg
			flags := cmd.Flags()
			if flags.Changed("source") {
				cfg.SourceURI = src
			}
			if flags.Changed("version") {
				cfg.DatasetVersion = dsVersion
			}
			if flags.Changed("split") {
				cfg.Split = split
			}
			if flags.Changed("sample-size") {
				cfg.SampleSize = sampleSize
			}
			if flags.Changed("shuffle") {
				cfg.Shuffle = shuffle
			}
			if flags.Changed("seed") {
				cfg.Seed = seed
			}
			if flags.Changed("parallel") {
				cfg.Parallelism = parallel
			}
			if flags.Changed("metadata-only") {
				cfg.MetadataOnly = metadataOnly
			}
			if flags.Changed("requests-per-second") {
				cfg.RequestsPerSec = rps
			}

			names := args
			if datasetsFile != "" {
				fromFile, err := loadDatasetList(datasetsFile)
				if err != nil {
					return err
				}
				names = append(names, fromFile...)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			deps := app.Deps{Cfg: &cfg, Logger: st.logger}
			if !noRuns {
				db, err := internaldb.OpenSQLite(ctx, cfg.MetaDBPath)
				if err != nil {
					return err
				}
				defer db.Close() //nolint:errcheck
				deps.Runs = repository.NewPrepareRunRepo(db)
			}
			organizer := app.NewOrganizer(deps)

			if schedule != "" {
				return runScheduled(ctx, st, organizer, schedule, names)
			}
			results, err := organizer.Run(ctx, names)
			if perr := printResults(cmd, st, results); perr != nil {
				return perr
			}
			return err
		},
	}

	cmd.Flags().StringVar(&src, "source", config.DefaultSourceURI, "Root URI of the RT-X datasets (gs://, s3://, az:// or a local path)")
	cmd.Flags().StringVar(&dsVersion, "version", config.DefaultDatasetVersion, "Dataset version directory")
	cmd.Flags().StringVar(&split, "split", config.DefaultSplit, "Split to sample episodes from")
	cmd.Flags().IntVar(&sampleSize, "sample-size", config.DefaultSampleSize, "Episodes to sample per dataset")
	cmd.Flags().BoolVar(&shuffle, "shuffle", true, "Sample episodes uniformly instead of taking the first ones")
	cmd.Flags().Uint64Var(&seed, "seed", config.DefaultSeed, "Seed for shuffled sampling")
	cmd.Flags().IntVar(&parallel, "parallel", 1, "Datasets prepared concurrently")
	cmd.Flags().BoolVar(&metadataOnly, "metadata-only", true, "Record feature types without step values")
	cmd.Flags().Float64Var(&rps, "requests-per-second", 0, "Limit source reads per second (0 = unlimited)")
	cmd.Flags().StringVar(&datasetsFile, "datasets-file", "", "YAML file listing dataset names")
	cmd.Flags().StringVar(&schedule, "schedule", "", "Cron schedule to repeat the preparation on (runs until interrupted)")
	cmd.Flags().BoolVar(&noRuns, "no-record", false, "Do not record runs in the run catalog")

	return cmd
}

func runScheduled(ctx context.Context, st *state, organizer *app.Organizer, schedule string, names []string) error {
	s := app.NewScheduler(organizer, st.logger)
	if err := s.Add(ctx, schedule, names); err != nil {
		return err
	}
	s.Start()
	<-ctx.Done()
	s.Stop()
	return nil
}

func printResults(cmd *cobra.Command, st *state, results []app.Result) error {
	out := cmd.OutOrStdout()
	if st.output == "json" {
		type jsonResult struct {
			Dataset     string            `json:"dataset"`
			RunID       string            `json:"run_id,omitempty"`
			Episodes    int               `json:"episodes"`
			Available   int64             `json:"available"`
			TotalSteps  int               `json:"total_steps"`
			MeanSteps   float64           `json:"mean_steps"`
			StdDevSteps float64           `json:"stddev_steps"`
			Features    map[string]string `json:"features,omitempty"`
			DurationMS  int64             `json:"duration_ms"`
			Error       string            `json:"error,omitempty"`
		}
		list := make([]jsonResult, 0, len(results))
		for _, r := range results {
			jr := jsonResult{
				Dataset:     r.Dataset,
				RunID:       r.RunID,
				Episodes:    r.Summary.Episodes,
				Available:   r.Summary.Available,
				TotalSteps:  r.Summary.TotalSteps,
				MeanSteps:   r.Summary.MeanSteps,
				StdDevSteps: r.Summary.StdDevSteps,
				Features:    r.Summary.Features,
				DurationMS:  r.Summary.Duration.Milliseconds(),
			}
			if r.Err != nil {
				jr.Error = r.Err.Error()
			}
			list = append(list, jr)
		}
		return printJSON(out, list)
	}

	rows := make([][]string, 0, len(results))
	for _, r := range results {
		status := "ok"
		if r.Err != nil {
			status = r.Err.Error()
		}
		rows = append(rows, []string{
			r.Dataset,
			strconv.Itoa(r.Summary.Episodes),
			strconv.Itoa(len(r.Summary.Features)),
			fmt.Sprintf("%.1f", r.Summary.MeanSteps),
			fmt.Sprintf("%.1f", r.Summary.StdDevSteps),
			r.Summary.Duration.Round(time.Millisecond).String(),
			status,
		})
	}
	return printTable(out, []string{"DATASET", "EPISODES", "FEATURES", "MEAN STEPS", "STDDEV", "DURATION", "STATUS"}, rows)
}
