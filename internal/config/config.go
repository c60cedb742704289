// The config package reads the YAML configuration shared by the commands.
//
// Example:
//
//	cache_dir: /tmp/rszcache
//	log_level: debug
//	workers: 4
//	games:
//	  re4:
//	    roots: [/data/re4/natives/stm]
//	    schema:
//	      classes: /data/re4/rsz.json
//	      enums: /data/re4/enums.json
//	      gameobjectref_properties: /data/re4/refprops.json
//	      patch: /data/re4/patch.json
//	    profile:
//	      scene_version: 20
package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/rszkit/rszfile/errors"
	"github.com/rszkit/rszfile/internal/logger"
	"github.com/rszkit/rszfile/locator"
	"github.com/rszkit/rszfile/schema"
	"gopkg.in/yaml.v3"
)

// DefaultWorkers is the number of concurrent imports when none is
// configured.
const DefaultWorkers = 4

// Config is the configuration of the commands.
type Config struct {
	CacheDir string                `yaml:"cache_dir"`
	LogLevel string                `yaml:"log_level"`
	Workers  int                   `yaml:"workers"`
	Games    map[schema.Game]*Game `yaml:"games"`
}

// Game configures one game.
type Game struct {
	Roots  []string     `yaml:"roots"`
	Schema schema.Files `yaml:"schema"`
	// Profile overrides fields of the built-in profile of the game. Fields
	// that are absent keep their built-in value.
	Profile yaml.Node `yaml:"profile"`
}

// Load reads the configuration file at path. Relative paths in the file are
// resolved against the directory of the file.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	cfg, err := Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	cfg.resolve(filepath.Dir(path))
	return cfg, nil
}

// Decode reads a configuration from r.
func Decode(r io.Reader) (*Config, error) {
	var cfg Config
	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil && err != io.EOF {
		return nil, err
	}
	for game := range cfg.Games {
		if _, err := schema.LookupProfile(game); err != nil {
			return nil, err
		}
		if cfg.Games[game] == nil {
			cfg.Games[game] = &Game{}
		}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = filepath.Join(os.TempDir(), "rszfile")
	}
	return &cfg, nil
}

func (cfg *Config) resolve(dir string) {
	abs := func(p *string) {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
	abs(&cfg.CacheDir)
	for _, g := range cfg.Games {
		for i := range g.Roots {
			abs(&g.Roots[i])
		}
		abs(&g.Schema.Classes)
		abs(&g.Schema.Enums)
		abs(&g.Schema.RefProperties)
		abs(&g.Schema.Patch)
	}
}

// Profile returns the profile of a game: the built-in profile with the
// configured overrides applied.
func (cfg *Config) Profile(game schema.Game) (schema.Profile, error) {
	p, err := schema.LookupProfile(game)
	if err != nil {
		return p, err
	}
	if g := cfg.Games[game]; g != nil && g.Profile.Kind != 0 {
		if err := g.Profile.Decode(&p); err != nil {
			return p, errors.Wrapf(err, "profile of %s", game)
		}
		p.Game = game
	}
	return p, nil
}

// Level returns the configured log level.
func (cfg *Config) Level() slog.Level {
	return logger.ParseLevel(cfg.LogLevel)
}

// Logger returns a logger writing to w at the configured level.
func (cfg *Config) Logger(w io.Writer) logger.Logger {
	return logger.NewLogger(w, cfg.Level())
}

// Schema returns a schema cache reading the configured schema files, with
// the configured profiles.
func (cfg *Config) Schema(log logger.Logger) (*schema.Cache, error) {
	files := make(map[schema.Game]schema.Files, len(cfg.Games))
	for game, g := range cfg.Games {
		files[game] = g.Schema
	}
	c := schema.NewFileCache(files)
	c.Logger = log
	for game := range cfg.Games {
		p, err := cfg.Profile(game)
		if err != nil {
			return nil, err
		}
		c.SetProfile(p)
	}
	return c, nil
}

// Locator returns a locator searching the configured roots.
func (cfg *Config) Locator(log logger.Logger) *locator.FileLocator {
	roots := make(map[schema.Game][]string, len(cfg.Games))
	for game, g := range cfg.Games {
		roots[game] = g.Roots
	}
	loc := locator.New(roots, cfg.CacheDir)
	loc.Logger = log
	return loc
}

// ForClasses returns a configuration for a single game whose schema is the
// class dump at classes, searching roots for files.
func ForClasses(game schema.Game, classes string, roots ...string) (*Config, error) {
	cfg, err := Decode(strings.NewReader(""))
	if err != nil {
		return nil, err
	}
	if _, err := schema.LookupProfile(game); err != nil {
		return nil, err
	}
	cfg.Games = map[schema.Game]*Game{game: {Roots: roots, Schema: schema.Files{Classes: classes}}}
	return cfg, nil
}

// Open returns the configuration named by the common command flags: the
// configuration file at path if set, otherwise a single game configuration
// using the class dump at classes.
func Open(path string, game schema.Game, classes string) (*Config, error) {
	switch {
	case path != "":
		return Load(path)
	case classes != "":
		return ForClasses(game, classes)
	}
	return nil, errors.New("either a configuration file or a class dump is required")
}
