package main

import (
	"fmt"
	"os"
	"path/filepath"

	kitlog "github.com/go-kit/log"
	"github.com/spf13/cobra"

	"github.com/ChristopherRabotin/lambert"
)

var rootCmd = &cobra.Command{
	Use:   "lambert",
	Short: "lambert solves the geometric Lambert equations over ranges of transfer times",
	Long: `lambert traces branches of solutions (a, α, β) of the geometric Lambert equations
by continuation, recovers the transfer velocities, and exports the results as CSV,
JSON or contour files.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "directory of conf.toml (overrides $"+lambert.ConfigEnv+")")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error or none")
}

// loadConfig reads conf.toml and applies the persistent flags over it.
func loadConfig(cmd *cobra.Command) (lambert.Config, error) {
	dir, _ := cmd.Flags().GetString("config")
	if dir == "" {
		dir = os.Getenv(lambert.ConfigEnv)
	}
	conf, err := lambert.LoadConfigFrom(dir)
	if err != nil {
		return conf, err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		conf.LogLevel = lvl
	}
	return conf, nil
}

// loadScenario reads the scenario file from the --scenario flag.
func loadScenario(cmd *cobra.Command) (lambert.Scenario, kitlog.Logger, error) {
	conf, err := loadConfig(cmd)
	if err != nil {
		return lambert.Scenario{}, nil, err
	}
	path, _ := cmd.Flags().GetString("scenario")
	if path == "" {
		return lambert.Scenario{}, nil, fmt.Errorf("no scenario provided")
	}
	scn, err := lambert.LoadScenario(filepath.Dir(path), filepath.Base(path), conf)
	if err != nil {
		return scn, nil, err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		scn.LogLevel = lvl
	}
	logger := lambert.NewLogger(os.Stderr, scn.LogLevel)
	return scn, kitlog.With(logger, "scenario", filepath.Base(path)), nil
}
