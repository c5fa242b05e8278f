package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/ChristopherRabotin/fdm"
	"github.com/ChristopherRabotin/fdm/numeric"
	"github.com/ChristopherRabotin/fdm/recorder"
	kitlog "github.com/go-kit/kit/log"
	"github.com/goforj/godump"
	"github.com/iancoleman/orderedmap"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

// fdmrun flies the runs of a scenario file in batch, writing a CSV trace per run and a
// JSON summary of all of them.

var (
	scenario string
	outDir   string
	logPath  string
	parallel int
	dump     bool
)

func init() {
	flag.StringVar(&scenario, "scenario", "", "scenario TOML file, $FDM_CONFIG when unset")
	flag.StringVar(&outDir, "out", ".", "output directory")
	flag.StringVar(&logPath, "log", "", "log file, stderr when unset")
	flag.IntVar(&parallel, "parallel", 4, "number of runs flown concurrently")
	flag.BoolVar(&dump, "dump", false, "dump the last output of every run")
}

func main() {
	flag.Parse()
	if err := viper.BindEnv("config", "FDM_CONFIG"); err != nil {
		log.Fatal(err)
	}
	if scenario == "" {
		scenario = viper.GetString("config")
	}
	if scenario == "" {
		log.Fatal("no scenario provided")
	}
	viper.SetConfigFile(scenario)
	viper.SetDefault("step", "10ms")
	viper.SetDefault("duration", "60s")
	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("%s: %s", scenario, err)
	}
	runs, err := readRuns()
	if err != nil {
		log.Fatal(err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		log.Fatal(err)
	}

	var logger kitlog.Logger
	if logPath != "" {
		var c io.Closer
		logger, c = fdm.NewFileLogger(logPath)
		defer c.Close()
	} else {
		logger = fdm.NewLogger(os.Stderr)
	}
	var loader fdm.Loader
	if viper.IsSet("aircraft_dir") {
		loader = fdm.DirLoader(viper.GetString("aircraft_dir"))
	}

	summaries := make([]*orderedmap.OrderedMap, len(runs))
	var eg errgroup.Group
	eg.SetLimit(parallel)
	for i, r := range runs {
		i, r := i, r
		eg.Go(func() error {
			s, err := fly(r, loader, kitlog.With(logger, "run", r.Name))
			summaries[i] = s
			if err != nil {
				return fmt.Errorf("run %s: %w", r.Name, err)
			}
			return nil
		})
	}
	err = eg.Wait()

	data, jerr := json.MarshalIndent(summaries, "", "  ")
	if jerr != nil {
		log.Fatal(jerr)
	}
	if werr := os.WriteFile(filepath.Join(outDir, "summary.json"), data, 0o644); werr != nil {
		log.Fatal(werr)
	}
	fmt.Println(string(data))
	if err != nil {
		log.Fatal(err)
	}
}

// traceRecorder streams the recorded frames to a CSV trace, and to a recording when set.
type traceRecorder struct {
	csv  *recorder.Stream
	file *recorder.File
}

func (t *traceRecorder) Record(f recorder.Frame) error {
	t.csv.Send(f)
	if t.file != nil {
		return t.file.Record(f)
	}
	return nil
}

func (t *traceRecorder) Replay() (recorder.Frame, error) {
	return recorder.Frame{}, io.EOF
}

// fly simulates r and returns its summary.
func fly(r run, loader fdm.Loader, logger kitlog.Logger) (*orderedmap.OrderedMap, error) {
	summary := orderedmap.New()
	summary.Set("name", r.Name)
	summary.Set("aircraft", r.Aircraft)

	trace, err := os.Create(filepath.Join(outDir, r.Name+".csv"))
	if err != nil {
		return summary, err
	}
	defer trace.Close()
	rec := &traceRecorder{csv: recorder.StreamCSV(trace, 256)}
	if r.Record {
		if rec.file, err = recorder.Create(filepath.Join(outDir, r.Name+".rec")); err != nil {
			return summary, err
		}
	}

	f := fdm.New(fdm.Options{Loader: loader, Logger: logger, Recorder: rec, Seed: r.Seed})
	dt := r.Step.Seconds()
	in := r.initial()
	start := time.Now()
	out, err := f.Step(in, dt)
	if err == nil {
		in = r.working(in, out.Controls, len(f.Aircraft().Propulsion.Engines()))
		steps := int(r.Duration / r.Step)
		for i := 0; i < steps; i++ {
			if out, err = f.Step(in, dt); err != nil || out.Phase != fdm.Working {
				break
			}
		}
	}
	if cerr := rec.csv.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if rec.file != nil {
		if cerr := rec.file.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}

	summary.Set("phase", out.Phase.String())
	summary.Set("crash", out.Crash.String())
	summary.Set("warnings", out.Warnings.String())
	summary.Set("time", out.Time)
	summary.Set("wall_time", time.Since(start).String())
	summary.Set("latitude", numeric.Rad2deg(out.Latitude))
	summary.Set("longitude", numeric.Rad2deg(out.Longitude))
	summary.Set("altitude_msl", out.AltitudeMSL)
	summary.Set("airspeed", out.Airspeed)
	summary.Set("heading", numeric.Rad2deg(out.Heading))
	summary.Set("range", out.Range)
	summary.Set("mass", out.Mass)
	if err != nil {
		summary.Set("error", err.Error())
	}
	if dump {
		godump.Dump(out)
	}
	return summary, err
}
