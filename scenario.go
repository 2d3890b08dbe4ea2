package lambert

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
	"github.com/spf13/viper"
)

const dateTimeFormat = "2006-01-02 15:04:05"

// Scenario is a sweep, or a Δv surface, defined in a TOML file.
type Scenario struct {
	Config
	Export ExportConfig
	Body   CelestialObject

	// Sweep
	R1, R2    []float64
	Epoch     time.Time // departure epoch, zero if the bounds are in seconds
	Mode      string    // range or auto
	T0, TF    float64   // transfer time bounds in seconds
	TGuess    float64
	Points    int
	Step      float64
	Revs      int
	Guess     *Params
	Universal bool // seed the range sweep with the universal variable solution at TGuess

	// Surface
	Altitude0    float64
	Altitudes    []float64
	Inclinations []float64 // degrees
}

// LoadScenario reads the scenario `name`.toml from dir, over the base configuration.
func LoadScenario(dir, name string, base Config) (Scenario, error) {
	v := viper.New()
	v.AddConfigPath(dir)
	v.SetConfigName(strings.TrimSuffix(name, ".toml"))
	if err := v.ReadInConfig(); err != nil {
		return Scenario{}, fmt.Errorf("%s/%s.toml: %w", dir, name, err)
	}
	return ScenarioFrom(v, base)
}

// ScenarioFrom reads a scenario from an already loaded viper instance.
func ScenarioFrom(v *viper.Viper, base Config) (Scenario, error) {
	conf, err := configOver(base, v)
	if err != nil {
		return Scenario{}, err
	}
	scn := Scenario{Config: conf}
	scn.Export = ExportConfig{
		Filename:   v.GetString("general.fileprefix"),
		OutputDir:  conf.OutputDir,
		Format:     strings.ToLower(v.GetString("general.format")),
		Timestamp:  v.GetBool("general.timestamp"),
		Velocities: v.GetBool("general.velocities"),
	}
	if scn.Export.Filename == "" {
		scn.Export.Filename = "lambert"
	}
	if scn.Export.Format == "" {
		scn.Export.Format = "csv"
	}
	if err := scn.Export.Validate(); err != nil {
		return Scenario{}, err
	}
	if v.GetBool("general.verbose") {
		scn.LogLevel = "debug"
	}

	if scn.Body, err = readBody(v); err != nil {
		return Scenario{}, err
	}
	if v.IsSet("surface") {
		return scn, scn.readSurface(v)
	}
	return scn, scn.readSweep(v)
}

func readBody(v *viper.Viper) (CelestialObject, error) {
	name := v.GetString("body.name")
	if name == "" {
		name = "Earth"
	}
	body, err := CelestialObjectFromString(name)
	if v.IsSet("body.mu") {
		if err != nil {
			body = CelestialObject{Name: name}
		}
		body.μ = v.GetFloat64("body.mu")
		if v.IsSet("body.radius") {
			body.Radius = v.GetFloat64("body.radius")
		}
		return body, nil
	}
	return body, err
}

func (scn *Scenario) readSweep(v *viper.Viper) error {
	if v.IsSet("plane") {
		pt := PlaneTransfer{
			R1:            v.GetFloat64("plane.r1"),
			R2:            v.GetFloat64("plane.r2"),
			TransferAngle: v.GetFloat64("plane.transfer_angle"),
			Inclination:   v.GetFloat64("plane.inclination"),
			RAAN:          v.GetFloat64("plane.raan"),
			ArgLatitude:   v.GetFloat64("plane.arglat"),
		}
		if pt.TransferAngle <= 0 || pt.TransferAngle >= 180 {
			return fmt.Errorf("plane.transfer_angle=%f must be in ]0, 180[ degrees", pt.TransferAngle)
		}
		scn.R1, scn.R2 = pt.Positions()
	} else {
		scn.R1 = readVector(v, "departure.r")
		scn.R2 = readVector(v, "arrival.r")
		if scn.R1 == nil || scn.R2 == nil {
			return errors.New("departure.r and arrival.r must be 3x1 vectors")
		}
	}
	if v.IsSet("departure.epoch") {
		var err error
		if scn.Epoch, err = confReadJDEorTime(v, "departure.epoch"); err != nil {
			return err
		}
		from, err := confReadJDEorTime(v, "arrival.from")
		if err != nil {
			return err
		}
		until, err := confReadJDEorTime(v, "arrival.until")
		if err != nil {
			return err
		}
		scn.T0 = from.Sub(scn.Epoch).Seconds()
		scn.TF = until.Sub(scn.Epoch).Seconds()
	} else {
		scn.T0 = v.GetFloat64("sweep.t0")
		scn.TF = v.GetFloat64("sweep.tf")
	}

	scn.Mode = strings.ToLower(v.GetString("sweep.mode"))
	if scn.Mode == "" {
		scn.Mode = "range"
	}
	scn.Revs = v.GetInt("sweep.revs")
	switch scn.Mode {
	case "range":
		scn.Points = v.GetInt("sweep.points")
		scn.TGuess = scn.T0
		if v.IsSet("sweep.tguess") {
			scn.TGuess = v.GetFloat64("sweep.tguess")
		}
		if v.IsSet("sweep.guess") {
			if strings.ToLower(v.GetString("sweep.guess")) == "universal" {
				scn.Universal = true
			} else {
				g := floatSlice(v, "sweep.guess")
				if len(g) != 3 {
					return errors.New("sweep.guess must be `universal` or [a, alpha, beta]")
				}
				scn.Guess = &Params{A: g[0], Alpha: g[1], Beta: g[2]}
			}
		}
		return RangeRequest{T0: scn.T0, TF: scn.TF, TGuess: scn.TGuess, Points: scn.Points, Revs: scn.Revs}.Validate()
	case "auto":
		if scn.Revs != 0 {
			return errors.New("the auto sweep only solves the direct transfer")
		}
		scn.Step = v.GetFloat64("sweep.step")
		return AutoRequest{T0: scn.T0, TF: scn.TF, Step: scn.Step}.Validate()
	default:
		return fmt.Errorf("unknown sweep mode `%s`", scn.Mode)
	}
}

func (scn *Scenario) readSurface(v *viper.Viper) error {
	scn.Altitude0 = v.GetFloat64("surface.altitude0")
	var err error
	if scn.Altitudes, err = readSpan(v, "surface.altitudes"); err != nil {
		return err
	}
	if scn.Inclinations, err = readSpan(v, "surface.inclinations"); err != nil {
		return err
	}
	return nil
}

// readSpan reads an inclusive [from, until, step] span.
func readSpan(v *viper.Viper, key string) ([]float64, error) {
	span := floatSlice(v, key)
	if len(span) != 3 || !finite(span...) || span[2] <= 0 || span[1] < span[0] {
		return nil, fmt.Errorf("%s must be [from, until, step]", key)
	}
	n := int(math.Floor((span[1]-span[0])/span[2]+1e-9)) + 1
	if n > MaxSamples {
		return nil, fmt.Errorf("%s yields more than %d values", key, MaxSamples)
	}
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = span[0] + float64(i)*span[2]
	}
	return vals, nil
}

// floatSlice reads a TOML array of numbers, nil if the key is not such an array.
func floatSlice(v *viper.Viper, key string) []float64 {
	raw, ok := v.Get(key).([]interface{})
	if !ok {
		return nil
	}
	vals := make([]float64, len(raw))
	for i, item := range raw {
		switch num := item.(type) {
		case float64:
			vals[i] = num
		case int64:
			vals[i] = float64(num)
		case int:
			vals[i] = float64(num)
		default:
			return nil
		}
	}
	return vals
}

func readVector(v *viper.Viper, key string) []float64 {
	vec := floatSlice(v, key)
	if len(vec) != 3 {
		return nil
	}
	return vec
}

// confReadJDEorTime reads a date either as a Julian day or as a date time string.
func confReadJDEorTime(v *viper.Viper, key string) (time.Time, error) {
	if jde := v.GetFloat64(key); jde != 0 {
		return julian.JDToTime(jde), nil
	}
	dt, err := time.Parse(dateTimeFormat, v.GetString(key))
	if err != nil {
		return time.Time{}, fmt.Errorf("could not understand `%s`: %w", key, err)
	}
	return dt, nil
}
