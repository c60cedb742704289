// The rszfile-stat command displays stats for a scene, prefab or userdata
// file.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/rszkit/rszfile"
	"github.com/rszkit/rszfile/container"
	"github.com/rszkit/rszfile/graph"
	"github.com/rszkit/rszfile/internal/config"
	"github.com/rszkit/rszfile/schema"
)

const usage = `usage: rszfile-stat [FLAGS] INPUT [OUTPUT]

Reads a scene, prefab or userdata file from INPUT, and writes to OUTPUT
statistics for the file as JSON.

INPUT is the path of a file whose name ends with its kind and version, such as
"stage.scn.20". If OUTPUT is "-" or unspecified, then stdout is used. Warnings
and errors are written to stderr.

The schema is read from the configuration file given by -config, or from the
class dump given by -classes.

Flags:
`

type StringLen struct {
	Class  string
	Field  string
	Length int
}

func (s StringLen) String() string {
	return fmt.Sprintf("%s.%s(%d)", s.Class, s.Field, s.Length)
}

type StringLenCount map[StringLen]int

func (p StringLenCount) MarshalJSON() ([]byte, error) {
	list := []StringLen{}
	for k := range p {
		list = append(list, k)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Length != list[j].Length {
			return list[i].Length > list[j].Length
		}
		return list[i].String() < list[j].String()
	})
	if len(list) > 20 {
		list = list[:20]
	}
	return json.Marshal(list)
}

// Format holds counts of the file's tables.
type Format struct {
	Kind           string
	Version        int
	RSZVersion     uint32
	GameObjects    int
	Folders        int
	Resources      int
	Prefabs        int
	UserData       int
	GameObjectRefs int
	Instances      int
	Objects        int
}

type Stats struct {
	Format Format

	GameObjectCount int
	FolderCount     int
	ComponentCount  int

	// Number of objects overall, nested objects included.
	ObjectCount int

	// Number of objects per class.
	ClassCount map[string]int

	// Number of fields per type.
	TypeCount map[string]int

	MissingResources []string `json:",omitempty"`

	LargestStrings StringLenCount `json:",omitempty"`
}

func (s *Stats) FillFormat(c *container.Container) {
	s.Format = Format{
		Kind:           c.Kind.String(),
		Version:        c.Version,
		GameObjects:    len(c.GameObjects),
		Folders:        len(c.Folders),
		Resources:      len(c.Resources),
		Prefabs:        len(c.Prefabs),
		UserData:       len(c.UserData),
		GameObjectRefs: len(c.GameObjectRefs),
	}
	if c.Table != nil {
		s.Format.RSZVersion = c.Table.Version
		s.Format.Instances = len(c.Table.Instances)
		s.Format.Objects = len(c.Table.Objects)
	}
}

func (s *Stats) Fill(root *rszfile.Root) {
	if root == nil {
		return
	}
	s.ClassCount = map[string]int{}
	s.TypeCount = map[string]int{}
	s.LargestStrings = StringLenCount{}

	seen := map[*rszfile.Object]bool{}
	visit := func(obj *rszfile.Object) {
		if obj == nil || seen[obj] {
			return
		}
		obj.Walk(func(o *rszfile.Object) {
			if seen[o] {
				return
			}
			seen[o] = true
			s.ObjectCount++
			s.ClassCount[o.ClassName]++
			for _, f := range o.Fields {
				if f.Value == nil {
					continue
				}
				s.TypeCount[f.Value.Type().String()]++
				var n int
				switch v := f.Value.(type) {
				case rszfile.ValueString:
					n = len(v)
				case rszfile.ValueResource:
					n = len(v)
				default:
					continue
				}
				s.LargestStrings[StringLen{Class: o.ClassName, Field: f.Name, Length: n}]++
			}
		})
	}

	visit(root.UserData)
	root.Walk(func(n rszfile.Node) bool {
		switch n := n.(type) {
		case *rszfile.Folder:
			s.FolderCount++
			visit(n.Data)
		case *rszfile.GameObject:
			s.GameObjectCount++
			visit(n.Data)
			for _, c := range n.Components() {
				s.ComponentCount++
				visit(c.Data)
			}
		}
		return true
	})
	for _, res := range root.Resources {
		if res.Missing {
			s.MissingResources = append(s.MissingResources, res.Path)
		}
	}
}

func main() {
	var output io.Writer = os.Stdout

	configPath := flag.String("config", "", "path to the configuration file")
	game := flag.String("game", string(schema.GameRE4), "game of the file")
	classes := flag.String("classes", "", "path to a class dump, used without -config")
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

	var stats Stats
	stats.FillFormat(c)
	b := graph.Builder{Schema: svc, Locator: cfg.Locator(log), Registry: graph.DefaultRegistry(), Logger: log}
	root, err := b.Build(context.Background(), schema.Game(*game), c)
	if err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("build error: %w", err))
	}
	stats.Fill(root)

	je := json.NewEncoder(output)
	je.SetEscapeHTML(false)
	je.SetIndent("", "\t")
	if err := je.Encode(stats); err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("write error: %w", err))
	}
}
