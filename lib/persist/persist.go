package persist

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ValentinKolb/docdb/lib/db"
	"github.com/gofrs/flock"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("persist")

// ErrCorrupt is returned when a collection file exists but cannot be decoded.
// It is not retryable.
var ErrCorrupt = db.ErrCorrupt

// ErrLocked is returned by Open if another process holds the root directory
var ErrLocked = errors.New("data directory is locked by another process")

const (
	collectionsDir = "collections"
	lockFile       = "LOCK"
	fileExt        = ".bson"
)

// Store reads and writes collection files below a root directory
type Store struct {
	root        string
	compression Compression
	lock        *flock.Flock
}

// Open prepares the root directory and locks it for this process
func Open(root string, compression Compression) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(root, collectionsDir), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	lock := flock.New(filepath.Join(root, lockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock data directory: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, root)
	}

	Logger.Infof("opened data directory %s (compression=%s)", root, compression)
	return &Store{root: root, compression: compression, lock: lock}, nil
}

// Close releases the root directory lock
func (s *Store) Close() error {
	return s.lock.Unlock()
}

// Root returns the root directory
func (s *Store) Root() string {
	return s.root
}

// PathFor returns the file path of a collection
func PathFor(root, name string) string {
	return filepath.Join(root, collectionsDir, name+fileExt)
}

// Read returns the decoded collection stored under name.
// ok is false if no regular file exists for the collection.
func (s *Store) Read(name string) (c *db.Collection, ok bool, err error) {
	path := PathFor(s.root, name)

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, false, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", path, err)
	}

	raw, err := decodeFrame(data)
	if err != nil {
		return nil, false, fmt.Errorf("collection %s: %w", name, err)
	}
	c, err = db.DecodeCollection(raw)
	if err != nil {
		return nil, false, fmt.Errorf("collection %s: %w", name, err)
	}
	return c, true, nil
}

// Write encodes the whole collection and atomically replaces its file
func (s *Store) Write(name string, c *db.Collection) error {
	raw, err := db.EncodeCollection(c)
	if err != nil {
		return err
	}
	data, err := encodeFrame(s.compression, raw)
	if err != nil {
		return fmt.Errorf("compress collection %s: %w", name, err)
	}
	return writeFileAtomic(PathFor(s.root, name), data)
}

// writeFileAtomic writes data to a temporary file next to path, syncs it and
// renames it over path.
func writeFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", tmp.Name(), err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}

	// make the rename durable, not all platforms support syncing directories
	if d, dirErr := os.Open(dir); dirErr == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

// IsRetryable reports whether a failed persistence operation may succeed when retried
func IsRetryable(err error) bool {
	return err != nil && !errors.Is(err, ErrCorrupt)
}
