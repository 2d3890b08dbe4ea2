package lambert

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ExportConfig configures the exporting of a branch or a surface.
type ExportConfig struct {
	Filename   string
	OutputDir  string
	Format     string // csv, json or dat
	Timestamp  bool
	Velocities bool // also export the recovered velocities (csv and json only)
}

// Validate checks the export format.
func (c ExportConfig) Validate() error {
	switch c.Format {
	case "csv", "json", "dat":
		return nil
	default:
		return fmt.Errorf("unknown export format `%s`", c.Format)
	}
}

// path returns the output file name of this export, with the kind as a prefix.
func (c ExportConfig) path(kind, ext string) string {
	name := fmt.Sprintf("%s-%s", kind, c.Filename)
	if c.Timestamp {
		t := time.Now()
		name += fmt.Sprintf("-%d-%02d-%02dT%02d.%02d.%02d", t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second())
	}
	dir := c.OutputDir
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, name+"."+ext)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteBranchCSV writes one record per sample. Invalid samples are kept with
// their error. Velocities are appended if withVel is set; they are left empty
// where they cannot be recovered.
func WriteBranchCSV(w io.Writer, g Geometry, b Branch, withVel bool) error {
	if _, err := fmt.Fprintf(w, "# Creation date (UTC): %s\n# %s\n", time.Now().UTC(), g); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	hdr := []string{"dt", "a", "alpha", "beta", "valid", "iterations", "residual"}
	if withVel {
		hdr = append(hdr, "v1x", "v1y", "v1z", "v2x", "v2y", "v2z")
	}
	hdr = append(hdr, "error")
	if err := cw.Write(hdr); err != nil {
		return err
	}
	for _, smp := range b {
		record := []string{formatFloat(smp.DT), formatFloat(smp.A), formatFloat(smp.Alpha), formatFloat(smp.Beta),
			strconv.FormatBool(smp.Valid), strconv.Itoa(smp.Iterations), formatFloat(smp.Residual)}
		if withVel {
			vels := make([]string, 6)
			if smp.Valid {
				if v1, v2, err := g.Velocities(smp.Params); err == nil {
					for i := 0; i < 3; i++ {
						vels[i] = formatFloat(v1[i])
						vels[i+3] = formatFloat(v2[i])
					}
				}
			}
			record = append(record, vels...)
		}
		errStr := ""
		if smp.Err != nil {
			errStr = smp.Err.Error()
		}
		record = append(record, errStr)
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// jsonSample is the JSON representation of a sample; non finite numbers are null.
type jsonSample struct {
	DT         float64   `json:"dt"`
	A          *float64  `json:"a"`
	Alpha      *float64  `json:"alpha"`
	Beta       *float64  `json:"beta"`
	Valid      bool      `json:"valid"`
	Iterations int       `json:"iterations"`
	Residual   *float64  `json:"residual"`
	V1         []float64 `json:"v1,omitempty"`
	V2         []float64 `json:"v2,omitempty"`
	Error      string    `json:"error,omitempty"`
}

type jsonBranch struct {
	R1      []float64    `json:"r1"`
	R2      []float64    `json:"r2"`
	Mu      float64      `json:"mu"`
	Chord   float64      `json:"chord"`
	S       float64      `json:"s"`
	Samples []jsonSample `json:"samples"`
}

func jsonFloat(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// WriteBranchJSON writes the geometry and all the samples as a single JSON document.
func WriteBranchJSON(w io.Writer, g Geometry, b Branch, withVel bool) error {
	doc := jsonBranch{R1: g.R1, R2: g.R2, Mu: g.Mu, Chord: g.c, S: g.s, Samples: make([]jsonSample, len(b))}
	for i, smp := range b {
		js := jsonSample{DT: smp.DT, A: jsonFloat(smp.A), Alpha: jsonFloat(smp.Alpha), Beta: jsonFloat(smp.Beta),
			Valid: smp.Valid, Iterations: smp.Iterations, Residual: jsonFloat(smp.Residual)}
		if smp.Err != nil {
			js.Error = smp.Err.Error()
		}
		if withVel && smp.Valid {
			if v1, v2, err := g.Velocities(smp.Params); err == nil {
				js.V1, js.V2 = v1, v2
			}
		}
		doc.Samples[i] = js
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// WriteBranchDat writes the valid samples as comma separated `dt,a,alpha,beta`
// lines for plotting, preceded by `%` comments.
func WriteBranchDat(w io.Writer, b Branch) error {
	if _, err := fmt.Fprintf(w, "%% dt, a, alpha, beta\n%% %d valid samples out of %d\n", len(b.Valid()), len(b)); err != nil {
		return err
	}
	for _, smp := range b.Valid() {
		if _, err := fmt.Fprintf(w, "%f,%f,%f,%f\n", smp.DT, smp.A, smp.Alpha, smp.Beta); err != nil {
			return err
		}
	}
	return nil
}

// WriteSurfaceDat writes a contour file: one line per row of z, preceded by
// the column and row abscissas as `%` comments.
func WriteSurfaceDat(w io.Writer, columns, rows []float64, z [][]float64) error {
	if len(z) != len(rows) {
		return fmt.Errorf("surface has %d rows, expected %d", len(z), len(rows))
	}
	join := func(vals []float64) string {
		strs := make([]string, len(vals))
		for i, v := range vals {
			strs[i] = fmt.Sprintf("%f", v)
		}
		return strings.Join(strs, ",")
	}
	if _, err := fmt.Fprintf(w, "%% columns: %s\n%% rows: %s\n", join(columns), join(rows)); err != nil {
		return err
	}
	for i, row := range z {
		if len(row) != len(columns) {
			return fmt.Errorf("surface row %d has %d columns, expected %d", i, len(row), len(columns))
		}
		if _, err := fmt.Fprintln(w, join(row)); err != nil {
			return err
		}
	}
	return nil
}

// ExportBranch writes the branch to a file in the configured format, and returns its name.
func ExportBranch(conf ExportConfig, g Geometry, b Branch) (string, error) {
	if err := conf.Validate(); err != nil {
		return "", err
	}
	name := conf.path("branch", conf.Format)
	f, err := os.Create(name)
	if err != nil {
		return "", err
	}
	defer f.Close()
	switch conf.Format {
	case "csv":
		err = WriteBranchCSV(f, g, b, conf.Velocities)
	case "json":
		err = WriteBranchJSON(f, g, b, conf.Velocities)
	default:
		err = WriteBranchDat(f, b)
	}
	if err != nil {
		return "", err
	}
	return name, f.Close()
}

// ExportSurface writes a contour file of the surface and returns its name.
func ExportSurface(conf ExportConfig, columns, rows []float64, z [][]float64) (string, error) {
	name := conf.path("contour", "dat")
	f, err := os.Create(name)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := WriteSurfaceDat(f, columns, rows, z); err != nil {
		return "", err
	}
	return name, f.Close()
}
