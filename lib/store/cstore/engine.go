package cstore

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/docdb/lib/db"
	"github.com/ValentinKolb/docdb/lib/persist"
	"github.com/ValentinKolb/docdb/lib/store"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("engine")

// Config configures an Engine. The values are fixed for the lifetime of the engine.
type Config struct {
	// DataDir is the persistence root
	DataDir string
	// CacheTime is the interval of the full sync
	CacheTime time.Duration
	// FlushTime is the interval of the sweep and the idle time after which a collection is evicted
	FlushTime time.Duration
	// Compression is used for written collection files
	Compression persist.Compression
}

func (c Config) validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data directory must not be empty")
	}
	if c.CacheTime <= 0 {
		return fmt.Errorf("cache time must be positive, got %s", c.CacheTime)
	}
	if c.FlushTime <= 0 {
		return fmt.Errorf("flush time must be positive, got %s", c.FlushTime)
	}
	return nil
}

// slot holds one resident collection
type slot struct {
	mu      sync.RWMutex
	docs    *db.Collection
	evicted bool // guarded by mu

	lastAccess atomic.Int64 // unix nanos
	flushAt    atomic.Int64 // unix nanos
	version    atomic.Uint64
}

// touch records an access. Must be called inside a table Compute for the slot's name.
func (s *slot) touch(now time.Time, flushTime time.Duration) {
	s.lastAccess.Store(now.UnixNano())
	s.flushAt.Store(now.Add(flushTime).UnixNano())
}

// Engine is the caching document store. Create it with NewEngine.
type Engine struct {
	cfg     Config
	disk    *persist.Store
	table   *xsync.MapOf[string, *slot]
	metrics *engineMetrics
	now     func() time.Time
}

// NewEngine opens the data directory and creates an engine without resident collections.
// The background loops are started with Run.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	disk, err := persist.Open(cfg.DataDir, cfg.Compression)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:   cfg,
		disk:  disk,
		table: xsync.NewMapOf[string, *slot](),
		now:   time.Now,
	}
	e.metrics = newEngineMetrics(func() float64 { return float64(e.table.Size()) })

	Logger.Infof("engine created (data-dir=%s, cache-time=%s, flush-time=%s)", cfg.DataDir, cfg.CacheTime, cfg.FlushTime)
	return e, nil
}

// Close releases the data directory. It does not sync, Run already does that on shutdown.
func (e *Engine) Close() error {
	return e.disk.Close()
}

// WritePrometheus writes the engine metrics in Prometheus text format
func (e *Engine) WritePrometheus(w io.Writer) {
	e.metrics.set.WritePrometheus(w)
}

// --------------------------------------------------------------------------
// Collection Store
// --------------------------------------------------------------------------

// resolve returns the slot of a collection, loading or creating it on first access
func (e *Engine) resolve(name string) (*slot, error) {
	now := e.now()
	var loadErr error

	s, _ := e.table.Compute(name, func(old *slot, loaded bool) (*slot, bool) {
		if loaded {
			old.touch(now, e.cfg.FlushTime)
			e.metrics.hits.Inc()
			Logger.Debugf("cache hit for collection %s", name)
			return old, false
		}

		e.metrics.misses.Inc()
		docs, err := e.load(name)
		if err != nil {
			loadErr = err
			return nil, true
		}
		s := &slot{docs: docs}
		s.touch(now, e.cfg.FlushTime)
		return s, false
	})
	if loadErr != nil {
		e.metrics.loadFailures.Inc()
		Logger.Errorf("failed to load collection %s: %v", name, loadErr)
		return nil, loadErr
	}
	return s, nil
}

// load reads a collection from disk or creates and persists an empty one
func (e *Engine) load(name string) (*db.Collection, error) {
	docs, ok, err := e.disk.Read(name)
	if err != nil {
		return nil, err
	}
	if ok {
		e.metrics.loads.Inc()
		Logger.Infof("loaded collection %s (%d documents)", name, docs.Len())
		return docs, nil
	}

	docs = db.NewCollection()
	if err := e.disk.Write(name, docs); err != nil {
		return nil, fmt.Errorf("create collection %s: %w", name, err)
	}
	e.metrics.creates.Inc()
	Logger.Infof("created collection %s", name)
	return docs, nil
}

// withCollection runs fn on the documents of a collection while holding the slot lock.
// fn reports how many documents it changed, the slot version only advances when
// fn succeeded and changed something. A load failure is reported with loadCode.
func (e *Engine) withCollection(name string, write bool, loadCode store.RetCode, fn func(docs *db.Collection) (changed int, err error)) error {
	for {
		s, err := e.resolve(name)
		if err != nil {
			return store.Errorf(loadCode, "the collection %s could not be loaded: %v", name, err)
		}

		if write {
			s.mu.Lock()
		} else {
			s.mu.RLock()
		}

		// the slot was written back and dropped while we waited for the lock
		if s.evicted {
			if write {
				s.mu.Unlock()
			} else {
				s.mu.RUnlock()
			}
			e.metrics.evictedRetries.Inc()
			continue
		}

		changed, err := fn(s.docs)
		if write {
			if err == nil && changed > 0 {
				s.version.Add(1)
			}
			s.mu.Unlock()
		} else {
			s.mu.RUnlock()
		}
		return err
	}
}
