// The rszfile-rewrite command imports a scene, prefab or userdata file into
// a scene graph and writes the graph back out.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rszkit/rszfile"
	"github.com/rszkit/rszfile/container"
	"github.com/rszkit/rszfile/graph"
	"github.com/rszkit/rszfile/importer"
	"github.com/rszkit/rszfile/internal/config"
	"github.com/rszkit/rszfile/json"
	"github.com/rszkit/rszfile/schema"
)

const usage = `usage: rszfile-rewrite [FLAGS] INPUT OUTPUT

Imports a scene, prefab or userdata file from INPUT, and writes the resulting
graph to OUTPUT. An unedited file is written back with the same content.

INPUT is either a file on disk or an in-engine path, which is resolved against
the configured roots of the game. With -json, INPUT is a graph written by
rszfile-dump -format json.

If OUTPUT has no version suffix, the version of the graph is appended to it.
Warnings and errors are written to stderr.

Flags:
`

func main() {
	configPath := flag.String("config", "", "path to the configuration file")
	game := flag.String("game", string(schema.GameRE4), "game of the file")
	classes := flag.String("classes", "", "path to a class dump, used without -config")
	fromJSON := flag.Bool("json", false, "read INPUT as a JSON graph")
	instance := flag.Bool("instance-prefabs", false, "replace prefab instances with the content of their prefab")
	stats := flag.Bool("stats", false, "write import statistics to stderr")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	args := flag.Args()
	if len(args) < 2 {
		flag.Usage()
		os.Exit(2)
	}
	input, output := args[0], args[1]
	g := schema.Game(*game)

	cfg, err := config.Open(*configPath, g, *classes)
	if err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("config: %w", err))
		os.Exit(1)
	}
	log := cfg.Logger(os.Stderr)
	svc, err := cfg.Schema(log)
	if err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("schema: %w", err))
		os.Exit(1)
	}

	var root *rszfile.Root
	if *fromJSON {
		b, err := os.ReadFile(input)
		if err != nil {
			fmt.Fprintln(os.Stderr, fmt.Errorf("open input: %w", err))
			os.Exit(1)
		}
		if root, err = json.Decode(b); err != nil {
			fmt.Fprintln(os.Stderr, fmt.Errorf("decode error: %w", err))
			os.Exit(1)
		}
	} else {
		rel := input
		if fi, err := os.Stat(input); err == nil && fi.Mode().IsRegular() {
			// Search the directory of the input before the configured roots.
			if gc := cfg.Games[g]; gc != nil {
				gc.Roots = append([]string{filepath.Dir(input)}, gc.Roots...)
			}
			rel = filepath.Base(input)
		}

		registry := prometheus.NewRegistry()
		if err := importer.Register(registry); err != nil {
			fmt.Fprintln(os.Stderr, fmt.Errorf("metrics: %w", err))
		}
		q := importer.NewQueue(svc, cfg.Locator(log), cfg.Workers)
		q.Logger = log
		q.Options.InstancePrefabs = *instance
		root, err = q.Load(context.Background(), g, rel)
		q.Close()
		if *stats {
			writeStats(registry)
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, fmt.Errorf("import error: %w", err))
			os.Exit(1)
		}
	}

	f := graph.Flattener{Schema: svc, Logger: log}
	c, err := f.Flatten(root)
	if err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("flatten error: %w", err))
		os.Exit(1)
	}
	if _, version, ok := container.ParsePath(output); !ok || version == 0 {
		if !ok {
			output += "." + c.Kind.String()
		}
		output += "." + strconv.Itoa(c.Version)
	}
	files := container.Files{Game: root.Meta.Game, Schema: svc, Logger: log}
	if err := files.WriteFile(output, c); err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("write error: %w", err))
		os.Exit(1)
	}
}

func writeStats(registry *prometheus.Registry) {
	families, err := registry.Gather()
	if err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("metrics: %w", err))
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := ""
			for _, l := range m.GetLabel() {
				labels += fmt.Sprintf(" %s=%s", l.GetName(), l.GetValue())
			}
			switch {
			case m.GetCounter() != nil:
				fmt.Fprintf(os.Stderr, "%s%s %g\n", mf.GetName(), labels, m.GetCounter().GetValue())
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				fmt.Fprintf(os.Stderr, "%s%s count=%d sum=%g\n", mf.GetName(), labels, h.GetSampleCount(), h.GetSampleSum())
			}
		}
	}
}
