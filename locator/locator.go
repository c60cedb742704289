// The locator package maps in-engine paths to files on disk.
//
// In-engine paths usually omit the numeric version suffix that files carry
// on disk ("stage.scn" is stored as "stage.scn.20"). The locator guesses the
// suffix by scanning for versioned siblings, and remembers the version found
// for each extension of a game.
package locator

import (
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rszkit/rszfile/internal/logger"
	"github.com/rszkit/rszfile/schema"
)

// Locator resolves in-engine paths.
type Locator interface {
	// ResolveSourceFilePath returns the file holding the given in-engine
	// path, or false if no such file exists.
	ResolveSourceFilePath(rel string, game schema.Game) (string, bool)
	// GetImportCachePath returns the path of the import cache file of an
	// in-engine path.
	GetImportCachePath(rel string, game schema.Game) string
}

// CacheExt is the extension of import cache files.
const CacheExt = ".rszc"

// resolvedSize bounds the number of memoized resolved paths.
const resolvedSize = 4096

type versionKey struct {
	game schema.Game
	ext  string
}

type pathKey struct {
	game schema.Game
	rel  string
}

// FileLocator resolves in-engine paths against directories of extracted
// game files.
type FileLocator struct {
	// Roots lists, per game, the directories searched in order.
	Roots map[schema.Game][]string
	// CacheDir is the directory holding import cache files.
	CacheDir string

	Logger logger.Logger

	versions *xsync.MapOf[versionKey, int]
	resolved *lru.Cache[pathKey, string]
}

// New returns a locator searching roots.
func New(roots map[schema.Game][]string, cacheDir string) *FileLocator {
	resolved, _ := lru.New[pathKey, string](resolvedSize)
	return &FileLocator{
		Roots:    roots,
		CacheDir: cacheDir,
		versions: xsync.NewMapOf[versionKey, int](),
		resolved: resolved,
	}
}

// Clean normalizes an in-engine path: forward slashes, no leading slash.
func Clean(rel string) string {
	rel = strings.ReplaceAll(rel, "\\", "/")
	rel = path.Clean("/" + rel)
	return strings.TrimPrefix(rel, "/")
}

// SplitVersion splits a numeric version suffix from a path. Version is -1 if
// the path has none.
func SplitVersion(rel string) (base string, version int) {
	ext := path.Ext(rel)
	if ext == "" {
		return rel, -1
	}
	n, err := strconv.Atoi(ext[1:])
	if err != nil || n < 0 {
		return rel, -1
	}
	return strings.TrimSuffix(rel, ext), n
}

// Version returns the version remembered for an extension, such as ".user".
func (l *FileLocator) Version(game schema.Game, ext string) (int, bool) {
	return l.versions.Load(versionKey{game: game, ext: strings.ToLower(ext)})
}

// ResolveSourceFilePath implements Locator. A path without a version suffix
// resolves to the remembered version of its extension, or else to the
// highest versioned sibling, whose version is then remembered.
func (l *FileLocator) ResolveSourceFilePath(rel string, game schema.Game) (string, bool) {
	rel = Clean(rel)
	if rel == "" {
		return "", false
	}
	key := pathKey{game: game, rel: rel}
	if p, ok := l.resolved.Get(key); ok {
		return p, true
	}
	for _, root := range l.Roots[game] {
		if p, ok := l.resolve(root, rel, game); ok {
			l.resolved.Add(key, p)
			return p, true
		}
	}
	logger.OrDiscard(l.Logger).Debug("unresolved path", "path", rel, "game", game)
	return "", false
}

func (l *FileLocator) resolve(root, rel string, game schema.Game) (string, bool) {
	full := filepath.Join(root, filepath.FromSlash(rel))
	if _, v := SplitVersion(rel); v >= 0 {
		return full, exists(full)
	}

	vkey := versionKey{game: game, ext: strings.ToLower(path.Ext(rel))}
	if v, ok := l.versions.Load(vkey); ok {
		p := full + "." + strconv.Itoa(v)
		if exists(p) {
			return p, true
		}
	}

	if v, ok := scanVersion(full); ok {
		l.versions.Store(vkey, v)
		return full + "." + strconv.Itoa(v), true
	}
	if exists(full) {
		return full, true
	}
	return "", false
}

// scanVersion returns the highest N for which a file named full+".N" exists.
func scanVersion(full string) (int, bool) {
	entries, err := os.ReadDir(filepath.Dir(full))
	if err != nil {
		return 0, false
	}
	prefix := strings.ToLower(filepath.Base(full)) + "."
	best := -1
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := strings.ToLower(e.Name())
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		n, err := strconv.Atoi(name[len(prefix):])
		if err != nil || n < 0 {
			continue
		}
		if n > best {
			best = n
		}
	}
	return best, best >= 0
}

func exists(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && !fi.IsDir()
}

// GetImportCachePath implements Locator. Cache files mirror the in-engine
// path below CacheDir, per game.
func (l *FileLocator) GetImportCachePath(rel string, game schema.Game) string {
	return filepath.Join(l.CacheDir, string(game), filepath.FromSlash(Clean(rel))) + CacheExt
}

// Reset forgets every remembered version and resolved path.
func (l *FileLocator) Reset() {
	l.versions.Clear()
	l.resolved.Purge()
}
