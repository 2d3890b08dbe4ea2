package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ChristopherRabotin/lambert"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Trace a branch of solutions over a range of transfer times",
	Long: `Solves the Lambert equations over the transfer times of the scenario, either on
two linear grids from tguess (mode = "range") or by fixed steps from the middle
of the interval (mode = "auto"), and exports the branch.`,
	RunE: runSweep,
}

func init() {
	sweepCmd.Flags().String("scenario", "", "scenario TOML file")
	sweepCmd.Flags().String("metrics-file", "", "write the sweep metrics to this Prometheus textfile")
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	scn, logger, err := loadScenario(cmd)
	if err != nil {
		return err
	}
	if scn.R1 == nil {
		return errors.New("the scenario does not define a sweep")
	}
	g, err := lambert.NewGeometry(scn.Body.GM(), scn.R1, scn.R2)
	if err != nil {
		return err
	}
	reg := prometheus.NewRegistry()
	sw := scn.Solver.NewSweeper(logger, lambert.NewMetrics(reg))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	level.Info(logger).Log("geometry", g, "body", scn.Body.Name, "mode", scn.Mode)
	var branch lambert.Branch
	var sweepErr error
	if scn.Mode == "auto" {
		branch, sweepErr = sw.AutoSolve(ctx, g, lambert.AutoRequest{T0: scn.T0, TF: scn.TF, Step: scn.Step})
	} else {
		req := lambert.RangeRequest{T0: scn.T0, TF: scn.TF, TGuess: scn.TGuess, Points: scn.Points, Revs: scn.Revs, Guess: scn.Guess}
		if scn.Universal {
			guess, err := lambert.UniversalGuess(g, scn.TGuess, scn.Revs)
			if err != nil {
				level.Warn(logger).Log("msg", "no universal variable seed, using the neutral guess", "err", err)
			} else {
				req.Guess = &guess
			}
		}
		branch, sweepErr = sw.SolveRange(ctx, g, req)
	}
	if sweepErr != nil && len(branch) == 0 {
		return sweepErr
	}
	if sweepErr != nil {
		level.Warn(logger).Log("msg", "partial branch", "err", sweepErr)
	}

	fname, err := lambert.ExportBranch(scn.Export, g, branch)
	if err != nil {
		return err
	}
	fmt.Printf("%d samples (%d invalid) saved to %s\n", len(branch), len(branch.Gaps()), fname)
	if valid := branch.Valid(); len(valid) > 0 {
		fmt.Printf("first: %s\nlast:  %s\nmax |Δa| = %f\n", valid[0], valid[len(valid)-1], branch.MaxJump())
	}
	if path, _ := cmd.Flags().GetString("metrics-file"); path != "" {
		if err := prometheus.WriteToTextfile(path, reg); err != nil {
			return err
		}
	}
	return sweepErr
}
