package main

import (
	"errors"
	"fmt"

	"github.com/go-kit/log/level"
	"github.com/spf13/cobra"

	"github.com/ChristopherRabotin/lambert"
)

var surfaceCmd = &cobra.Command{
	Use:   "surface",
	Short: "Compute the Δv surface of an orbit raise combined with a plane change",
	RunE:  runSurface,
}

func init() {
	surfaceCmd.Flags().String("scenario", "", "scenario TOML file with a [surface] section")
	rootCmd.AddCommand(surfaceCmd)
}

func runSurface(cmd *cobra.Command, args []string) error {
	scn, logger, err := loadScenario(cmd)
	if err != nil {
		return err
	}
	if scn.Altitudes == nil {
		return errors.New("the scenario does not define a surface")
	}
	level.Info(logger).Log("body", scn.Body.Name, "altitude0", scn.Altitude0, "altitudes", len(scn.Altitudes), "inclinations", len(scn.Inclinations))
	z := lambert.CombinedΔvSurface(scn.Body, scn.Altitude0, scn.Altitudes, scn.Inclinations)
	fname, err := lambert.ExportSurface(scn.Export, scn.Altitudes, scn.Inclinations, z)
	if err != nil {
		return err
	}
	fmt.Printf("saved to %s\n", fname)
	return nil
}
