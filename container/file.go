package container

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rszkit/rszfile"
	"github.com/rszkit/rszfile/errors"
	"github.com/rszkit/rszfile/internal/logger"
	"github.com/rszkit/rszfile/schema"
)

// ParsePath returns the kind and version of a file from its extension, such
// as "stage.scn.20". Version is 0 if the path has no version suffix.
func ParsePath(path string) (kind rszfile.Kind, version int, ok bool) {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	if n, err := strconv.Atoi(strings.TrimPrefix(ext, ".")); err == nil && ext != "" {
		version = n
		base = strings.TrimSuffix(base, ext)
		ext = filepath.Ext(base)
	}
	kind, ok = rszfile.KindFromExt(strings.ToLower(strings.TrimPrefix(ext, ".")))
	return kind, version, ok
}

const (
	// readRetries is the number of times a transient read is retried.
	readRetries = 2
	// readBackoff is the delay before each retry.
	readBackoff = 50 * time.Millisecond
)

// Files reads and writes the container files of one game.
type Files struct {
	Game   schema.Game
	Schema schema.Service
	Logger logger.Logger
}

// ReadFile reads the container at path, deriving its kind and version from
// the extension. A read that fails transiently, such as a file that is still
// being written, is retried a bounded number of times.
func (f Files) ReadFile(path string) (*Container, error) {
	b, err := f.ReadBytes(path)
	if err != nil {
		return nil, err
	}
	return f.Decode(path, b)
}

// ReadBytes reads the content of path. The content is read again if the
// file changes while it is read, a bounded number of times.
func (f Files) ReadBytes(path string) (b []byte, err error) {
	log := logger.OrDiscard(f.Logger)
	for attempt := 0; ; attempt++ {
		b, err = readOnce(path)
		if err == nil {
			return b, nil
		}
		if !errors.IsTransient(err) || attempt >= readRetries {
			break
		}
		log.Warn("retrying read", "path", path, "attempt", attempt+1, "err", err)
		time.Sleep(readBackoff)
	}
	log.Error("read failed", "op", "read", "path", path, "err", err)
	return nil, err
}

// Decode decodes the content b of the file at path. The kind and version are
// derived from the extension of path.
func (f Files) Decode(path string, b []byte) (*Container, error) {
	kind, version, ok := ParsePath(path)
	if !ok {
		return nil, errors.Schema("read", "", errors.Errorf("%s: unknown file extension", path))
	}
	db, err := f.Schema.Database(f.Game)
	if err != nil {
		return nil, err
	}
	profile, err := f.Schema.Profile(f.Game)
	if err != nil {
		return nil, err
	}
	c, err := Decoder{Schema: db, Profile: profile}.Decode(kind, version, b)
	if err != nil {
		logger.OrDiscard(f.Logger).Error("decode failed", "op", "read", "path", path, "err", err)
		return nil, errors.E(errors.KindOf(err), "read", path, err)
	}
	return c, nil
}

func readOnce(path string) ([]byte, error) {
	before, err := os.Stat(path)
	if err != nil {
		return nil, classifyIO("read", path, err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, classifyIO("read", path, err)
	}
	after, err := os.Stat(path)
	if err != nil {
		return nil, classifyIO("read", path, err)
	}
	if before.Size() != after.Size() || int64(len(b)) != after.Size() || !before.ModTime().Equal(after.ModTime()) {
		return nil, errors.Transient("read", path, errors.New("file changed while reading"))
	}
	return b, nil
}

// classifyIO classifies a file system error. Busy or interrupted files are
// transient.
func classifyIO(op, path string, err error) error {
	switch {
	case errors.Is(err, syscall.EBUSY),
		errors.Is(err, syscall.EAGAIN),
		errors.Is(err, syscall.EINTR),
		errors.Is(err, syscall.ETXTBSY):
		return errors.Transient(op, path, err)
	}
	return errors.E(errors.KindUnknown, op, path, err)
}

// ReadFile reads the container at path for game.
func ReadFile(path string, svc schema.Service, game schema.Game) (*Container, error) {
	return Files{Game: game, Schema: svc}.ReadFile(path)
}

// WriteFile encodes c and writes it to path. If the write fails or produces
// an empty file, the file is removed.
func (f Files) WriteFile(path string, c *Container) (err error) {
	log := logger.OrDiscard(f.Logger)
	profile, err := f.Schema.Profile(f.Game)
	if err != nil {
		return err
	}
	b, err := Encoder{Profile: profile}.Encode(c)
	if err != nil {
		log.Error("encode failed", "op", "write", "path", path, "err", err)
		return err
	}
	if err := WriteBytes(path, b); err != nil {
		log.Error("write failed", "op", "write", "path", path, "err", err)
		return err
	}
	return nil
}

// WriteFile writes c to path for game.
func WriteFile(path string, c *Container, svc schema.Service, game schema.Game) error {
	return Files{Game: game, Schema: svc}.WriteFile(path, c)
}

// WriteBytes writes b to path. If the write fails or b is empty, the file is
// removed.
func WriteBytes(path string, b []byte) error {
	return writeFile(path, bytes.NewReader(b))
}

func writeFile(path string, r io.Reader) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return errors.Write("write", path, err)
	}
	var n int64
	defer func() {
		if err == nil && n == 0 {
			err = errors.Write("write", path, errors.New("no bytes written"))
		}
		if err != nil {
			os.Remove(path)
		}
	}()

	bw := bufio.NewWriter(file)
	if n, err = io.Copy(bw, r); err != nil {
		file.Close()
		return errors.Write("write", path, err)
	}
	if err = bw.Flush(); err != nil {
		file.Close()
		return errors.Write("write", path, err)
	}
	if err = file.Close(); err != nil {
		return errors.Write("write", path, err)
	}
	return nil
}
