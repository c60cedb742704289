// The rszfile-dump command writes a readable form of a scene, prefab or
// userdata file.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/davecgh/go-spew/spew"
	"github.com/rszkit/rszfile/container"
	"github.com/rszkit/rszfile/graph"
	"github.com/rszkit/rszfile/internal/config"
	"github.com/rszkit/rszfile/json"
	"github.com/rszkit/rszfile/schema"
)

const usage = `usage: rszfile-dump [FLAGS] INPUT [OUTPUT]

Reads a scene, prefab or userdata file from INPUT, and writes to OUTPUT a
readable form of the file.

Formats:
	json  the scene graph as JSON, which rszfile-rewrite -json reads back
	text  the RSZ block: object table and instances
	spew  the decoded container structures

INPUT is the path of a file whose name ends with its kind and version, such as
"stage.scn.20". If OUTPUT is "-" or unspecified, then stdout is used. Warnings
and errors are written to stderr.

Flags:
`

func main() {
	var output io.Writer = os.Stdout

	configPath := flag.String("config", "", "path to the configuration file")
	game := flag.String("game", string(schema.GameRE4), "game of the file")
	classes := flag.String("classes", "", "path to a class dump, used without -config")
	format := flag.String("format", "json", "output format: json, text or spew")
	depth := flag.Int("depth", 0, "maximum depth of spew output; 0 is unlimited")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		os.Exit(2)
	}
	if len(args) >= 2 && args[1] != "-" {
		out, err := os.Create(args[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, fmt.Errorf("create output: %w", err))
			return
		}
		defer out.Close()
		defer func() {
			err := out.Sync()
			if err != nil {
				fmt.Fprintln(os.Stderr, fmt.Errorf("sync output: %w", err))
				return
			}
		}()
		output = out
	}

	cfg, err := config.Open(*configPath, schema.Game(*game), *classes)
	if err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("config: %w", err))
		return
	}
	log := cfg.Logger(os.Stderr)
	svc, err := cfg.Schema(log)
	if err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("schema: %w", err))
		return
	}

	files := container.Files{Game: schema.Game(*game), Schema: svc, Logger: log}
	c, err := files.ReadFile(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("decode error: %w", err))
		return
	}

	switch *format {
	case "text":
		err = c.Table.Dump(output)
	case "spew":
		sc := spew.NewDefaultConfig()
		sc.DisableCapacities = true
		sc.DisablePointerAddresses = true
		sc.Indent = "\t"
		sc.MaxDepth = *depth
		sc.Fdump(output, c)
	case "json":
		b := graph.Builder{Schema: svc, Locator: cfg.Locator(log), Logger: log}
		err = dumpJSON(output, b, schema.Game(*game), c)
	default:
		fmt.Fprintf(os.Stderr, "unknown format %q\n", *format)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("write error: %w", err))
	}
}

func dumpJSON(w io.Writer, b graph.Builder, game schema.Game, c *container.Container) error {
	root, err := b.Build(context.Background(), game, c)
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}
	data, err := json.EncodeIndent(root)
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}
