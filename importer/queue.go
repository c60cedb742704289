// The importer package schedules the import of container files into scene
// graphs.
//
// Requests for the same file are deduplicated into one shared Task. Each
// import keeps a compressed copy of its source in the import cache, stamped
// with the hash of the source and the schema fingerprint, so that repeated
// imports can tell whether a file changed and so that a graph can still be
// loaded once its source is gone.
package importer

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rszkit/rszfile"
	"github.com/rszkit/rszfile/container"
	"github.com/rszkit/rszfile/errors"
	"github.com/rszkit/rszfile/graph"
	"github.com/rszkit/rszfile/internal/logger"
	"github.com/rszkit/rszfile/locator"
	"github.com/rszkit/rszfile/schema"
)

// ErrCycle is returned when an import depends on itself, such as a prefab
// that contains an instance of itself.
var ErrCycle = errors.New("import cycle")

type taskKey struct {
	game schema.Game
	path string
}

type ctxKey struct{}

// Queue imports files. Queue implements graph.Loader, so that prefabs and
// linked scenes met while building a graph are imported through the same
// queue.
type Queue struct {
	Schema   schema.Service
	Locator  locator.Locator
	Registry *graph.Registry
	Logger   logger.Logger
	// Options configures the graph builder.
	Options graph.Options

	ctx    context.Context
	cancel context.CancelFunc
	sem    chan struct{}
	tasks  *xsync.MapOf[taskKey, *Task]

	// Guards Task.waiting.
	mu sync.Mutex
}

// NewQueue returns a queue decoding at most workers files at a time.
func NewQueue(svc schema.Service, loc locator.Locator, workers int) *Queue {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		Schema:   svc,
		Locator:  loc,
		Registry: graph.DefaultRegistry(),
		ctx:      ctx,
		cancel:   cancel,
		sem:      make(chan struct{}, workers),
		tasks:    xsync.NewMapOf[taskKey, *Task](),
	}
}

// Close stops the queue. Tasks that have not finished fail.
func (q *Queue) Close() {
	q.cancel()
}

// Import returns the task importing path, starting it if no task for the
// file exists.
func (q *Queue) Import(game schema.Game, path string) *Task {
	key := taskKey{game: game, path: locator.Clean(path)}
	t, loaded := q.tasks.LoadOrCompute(key, func() *Task {
		return newTask(game, key.path)
	})
	if loaded {
		DeduplicatedRequests.WithLabelValues(string(game)).Inc()
		return t
	}
	go q.run(t)
	return t
}

// Task returns the task of path, if any.
func (q *Queue) Task(game schema.Game, path string) (*Task, bool) {
	return q.tasks.Load(taskKey{game: game, path: locator.Clean(path)})
}

// Reset forgets every finished task, so that their files are imported again
// when next requested.
func (q *Queue) Reset() {
	q.tasks.Range(func(key taskKey, t *Task) bool {
		if t.State().Finished() {
			q.tasks.Delete(key)
		}
		return true
	})
}

// Load implements graph.Loader. It imports path and waits for the result.
// Loading a file whose import is waiting, directly or not, for the caller
// returns ErrCycle.
func (q *Queue) Load(ctx context.Context, game schema.Game, path string) (*rszfile.Root, error) {
	parent, _ := ctx.Value(ctxKey{}).(*Task)
	t := q.Import(game, path)
	if parent == nil {
		return t.Wait(ctx)
	}

	q.mu.Lock()
	for n := t; n != nil; n = n.waiting {
		if n == parent {
			q.mu.Unlock()
			return nil, errors.Reference("import", t.Path, ErrCycle)
		}
	}
	parent.waiting = t
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		parent.waiting = nil
		q.mu.Unlock()
	}()
	return t.Wait(ctx)
}

// ImportAll imports a batch of files and waits for them. Errors of each file
// are collected. If ctx is cancelled, waiting stops; imports that completed
// keep their cache files.
func (q *Queue) ImportAll(ctx context.Context, game schema.Game, paths []string) ([]*Task, error) {
	tasks := make([]*Task, len(paths))
	for i, p := range paths {
		tasks[i] = q.Import(game, p)
	}
	var errs errors.Errors
	for _, t := range tasks {
		if _, err := t.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return tasks, ctx.Err()
			}
			errs = errs.Append(err)
		}
	}
	return tasks, errs.Return()
}

func (q *Queue) run(t *Task) {
	log := logger.OrDiscard(q.Logger)
	t.setState(Triggered)
	start := time.Now()
	root, err := q.importFile(t)
	TaskDuration.WithLabelValues(string(t.Game)).Observe(time.Since(start).Seconds())
	if err != nil {
		TaskResults.WithLabelValues(string(t.Game), "failed").Inc()
		log.Error("import failed", "op", "import", "path", t.Path, "game", t.Game, "err", err)
	} else {
		TaskResults.WithLabelValues(string(t.Game), "done").Inc()
		log.Debug("imported", "path", t.Path, "game", t.Game, "source", t.source)
	}
	t.finish(root, err)
}

func (q *Queue) importFile(t *Task) (*rszfile.Root, error) {
	c, err := q.decode(t)
	if err != nil {
		return nil, err
	}
	b := graph.Builder{
		Schema:   q.Schema,
		Locator:  q.Locator,
		Registry: q.Registry,
		Loader:   q,
		Logger:   q.Logger,
		Options:  q.Options,
	}
	return b.Build(context.WithValue(q.ctx, ctxKey{}, t), t.Game, c)
}

// decode reads and decodes the source of t while holding a worker.
func (q *Queue) decode(t *Task) (*container.Container, error) {
	select {
	case q.sem <- struct{}{}:
	case <-q.ctx.Done():
		return nil, q.ctx.Err()
	}
	defer func() { <-q.sem }()
	t.setState(Importing)

	log := logger.OrDiscard(q.Logger)
	files := container.Files{Game: t.Game, Schema: q.Schema, Logger: q.Logger}
	db, err := q.Schema.Database(t.Game)
	if err != nil {
		return nil, err
	}
	cachePath := q.Locator.GetImportCachePath(t.Path, t.Game)

	source, ok := q.Locator.ResolveSourceFilePath(t.Path, t.Game)
	if !ok {
		b, err := os.ReadFile(cachePath)
		if err != nil {
			return nil, errors.Reference("import", t.Path, errors.New("source file not found"))
		}
		h, src, err := DecodeCache(b)
		if err != nil {
			return nil, errors.Wrapf(err, "import cache %s", cachePath)
		}
		if h.Schema != db.Fingerprint() {
			return nil, errors.Schema("import", "", errors.Errorf("%s: import cache was made with another schema", t.Path))
		}
		log.Warn("source missing, using import cache", "op", "import", "path", t.Path, "cache", cachePath)
		t.source, t.cached = cachePath, true
		return files.Decode(t.Path, src)
	}

	t.source = source
	src, err := files.ReadBytes(source)
	if err != nil {
		return nil, err
	}
	q.updateCache(t.Game, cachePath, src, db.Fingerprint())
	return files.Decode(source, src)
}

// updateCache writes the import cache file of src unless the existing one
// matches. Failures are logged.
func (q *Queue) updateCache(game schema.Game, path string, src []byte, fingerprint uint64) {
	log := logger.OrDiscard(q.Logger)
	if h, err := ReadCacheHeader(path); err == nil && h == Stamp(src, fingerprint) {
		CacheWrites.WithLabelValues(string(game), "unchanged").Inc()
		return
	}
	b, err := EncodeCache(src, fingerprint)
	if err == nil {
		if err = os.MkdirAll(filepath.Dir(path), 0o755); err == nil {
			err = container.WriteBytes(path, b)
		}
	}
	if err != nil {
		CacheWrites.WithLabelValues(string(game), "failed").Inc()
		log.Warn("import cache not written", "op", "import", "path", path, "err", err)
		return
	}
	CacheWrites.WithLabelValues(string(game), "written").Inc()
}

// WaitLoadable polls until path is a non-empty file, checking at most
// attempts times, interval apart. Returns a transient error if the file does
// not become loadable.
func WaitLoadable(ctx context.Context, path string, interval time.Duration, attempts int) error {
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-time.After(interval):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		var fi os.FileInfo
		if fi, err = os.Stat(path); err == nil {
			if fi.Mode().IsRegular() && fi.Size() > 0 {
				return nil
			}
			err = errors.New("file is empty")
		}
	}
	if err == nil {
		err = errors.New("no attempts")
	}
	return errors.Transient("wait", path, err)
}
