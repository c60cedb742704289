package schema

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rszkit/rszfile/errors"
	"github.com/rszkit/rszfile/internal/logger"
)

// Service supplies the schema of each game. Cache implements Service.
type Service interface {
	// GetClass returns the class of the given name, or nil if the class is
	// unknown or the schema of the game could not be loaded.
	GetClass(game Game, name string) *Class
	// GetClassByID returns the class with the given type id, or nil.
	GetClassByID(game Game, id uint32) *Class
	// GetGameObjectRefProperties returns the property id of each
	// GameObjectRef field of a class.
	GetGameObjectRefProperties(game Game, class string) map[string]int32
	// Database returns the current schema snapshot of a game.
	Database(game Game) (*Database, error)
	// Profile returns the format profile of a game.
	Profile(game Game) (Profile, error)
}

// Loader produces the schema of a game.
type Loader func(game Game) (*Database, error)

// FileLoader returns a Loader reading the schema files configured for each
// game.
func FileLoader(files map[Game]Files) Loader {
	return func(game Game) (*Database, error) {
		f, ok := files[game]
		if !ok {
			return nil, errors.Errorf("no schema configured for %s", game)
		}
		return LoadDatabase(game, f)
	}
}

type cacheEntry struct {
	once sync.Once
	db   atomic.Pointer[Database]
	err  error
}

// Cache lazily loads and holds the schema of each game. Each game is loaded
// on first access. Readers always observe a complete snapshot; patches
// publish a new snapshot instead of editing the current one.
type Cache struct {
	// Logger receives load failures. Defaults to discarding.
	Logger logger.Logger

	load      Loader
	patchPath func(Game) string
	profiles  map[Game]Profile
	entries   *xsync.MapOf[Game, *cacheEntry]

	// Serializes UpdatePatch and Reload.
	mu sync.Mutex
}

// NewCache returns a cache loading schemas with load.
func NewCache(load Loader) *Cache {
	return &Cache{
		load:     load,
		profiles: map[Game]Profile{},
		entries:  xsync.NewMapOf[Game, *cacheEntry](),
	}
}

// NewFileCache returns a cache reading the schema files of each game. Patch
// updates are persisted to the configured patch file of the game.
func NewFileCache(files map[Game]Files) *Cache {
	c := NewCache(FileLoader(files))
	c.patchPath = func(game Game) string { return files[game].Patch }
	return c
}

// NewStaticCache returns a cache serving already loaded databases.
func NewStaticCache(dbs ...*Database) *Cache {
	byGame := make(map[Game]*Database, len(dbs))
	for _, db := range dbs {
		byGame[db.Game] = db
	}
	return NewCache(func(game Game) (*Database, error) {
		if db, ok := byGame[game]; ok {
			return db, nil
		}
		return nil, errors.Errorf("no schema for %s", game)
	})
}

// SetProfile overrides the built-in profile of a game. It must be called
// before the cache is shared.
func (c *Cache) SetProfile(p Profile) {
	c.profiles[p.Game] = p
}

func (c *Cache) entry(game Game) *cacheEntry {
	e, _ := c.entries.LoadOrCompute(game, func() *cacheEntry {
		return new(cacheEntry)
	})
	e.once.Do(func() {
		db, err := c.load(game)
		if err != nil {
			e.err = errors.Schema("load schema", string(game), err)
			logger.OrDiscard(c.Logger).Error("schema unavailable", "game", game, "err", err)
			return
		}
		e.db.Store(db)
	})
	return e
}

// Database implements Service.
func (c *Cache) Database(game Game) (*Database, error) {
	e := c.entry(game)
	if db := e.db.Load(); db != nil {
		return db, nil
	}
	return nil, e.err
}

// GetClass implements Service.
func (c *Cache) GetClass(game Game, name string) *Class {
	db, _ := c.Database(game)
	return db.Class(name)
}

// GetClassByID implements Service.
func (c *Cache) GetClassByID(game Game, id uint32) *Class {
	db, _ := c.Database(game)
	return db.ClassByID(id)
}

// GetGameObjectRefProperties implements Service.
func (c *Cache) GetGameObjectRefProperties(game Game, class string) map[string]int32 {
	db, err := c.Database(game)
	if err != nil {
		return nil
	}
	return db.RefProperties[class]
}

// Profile implements Service.
func (c *Cache) Profile(game Game) (Profile, error) {
	if p, ok := c.profiles[game]; ok {
		return p, nil
	}
	return LookupProfile(game)
}

// Reload discards the schema of a game. The next access loads it again.
// Reload waits for a concurrent UpdatePatch of any game to finish.
func (c *Cache) Reload(game Game) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Delete(game)
}

// UpdatePatch applies patch to the schema of a game, persists the combined
// patch, and then publishes the patched schema. Readers holding the previous
// snapshot are unaffected. Nothing is published if persisting fails.
func (c *Cache) UpdatePatch(game Game, patch Patch) (*Database, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entry(game)
	cur := e.db.Load()
	if cur == nil {
		return nil, e.err
	}
	next := cur.Apply(patch)

	if c.patchPath != nil {
		if path := c.patchPath(game); path != "" {
			if err := writePatch(path, next.Patch); err != nil {
				return nil, errors.Write("update patch", path, err)
			}
		}
	}

	e.db.Store(next)
	return next, nil
}

// writePatch writes the patch to a temporary file beside path, then renames
// it over path.
func writePatch(path string, p Patch) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	if err := p.Encode(tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}
