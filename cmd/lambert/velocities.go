package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ChristopherRabotin/lambert"
)

var velocitiesCmd = &cobra.Command{
	Use:   "velocities",
	Short: "Recover the transfer velocities of a solution (a, α, β)",
	RunE:  runVelocities,
}

func init() {
	flags := velocitiesCmd.Flags()
	flags.Float64("mu", lambert.Earth.GM(), "gravitational parameter (km^3/s^2)")
	flags.Float64Slice("r1", nil, "initial position x,y,z (km)")
	flags.Float64Slice("r2", nil, "final position x,y,z (km)")
	flags.Float64("a", 0, "semi-major axis (km)")
	flags.Float64("alpha", 0, "α (rad)")
	flags.Float64("beta", 0, "β (rad)")
	flags.Int("revs", 0, "number of complete revolutions")
	flags.Bool("verify", false, "propagate the departure state and report the miss distance")
	rootCmd.AddCommand(velocitiesCmd)
}

func runVelocities(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	mu, _ := flags.GetFloat64("mu")
	r1, _ := flags.GetFloat64Slice("r1")
	r2, _ := flags.GetFloat64Slice("r2")
	a, _ := flags.GetFloat64("a")
	alpha, _ := flags.GetFloat64("alpha")
	beta, _ := flags.GetFloat64("beta")
	revs, _ := flags.GetInt("revs")

	g, err := lambert.NewGeometry(mu, r1, r2)
	if err != nil {
		return err
	}
	p := lambert.Params{A: a, Alpha: alpha, Beta: beta}
	v1, v2, err := g.Velocities(p)
	if err != nil {
		return err
	}
	dt := lambert.TimeOfFlight(p, g, revs)
	fmt.Printf("%s\n%s\ntof = %f s\nv1 = %v\nv2 = %v\n", g, p, dt, v1, v2)
	fmt.Println(lambert.NewTransferOrbit(mu, g.R1, v1))
	if verify, _ := flags.GetBool("verify"); verify {
		miss, err := g.VerifyArc(v1, dt, lambert.DefaultArcSteps)
		if err != nil {
			return err
		}
		fmt.Printf("miss distance = %f km\n", miss)
	}
	return nil
}
