package cstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/docdb/lib/db"
	"github.com/ValentinKolb/docdb/lib/persist"
	"github.com/ValentinKolb/docdb/lib/store"
	storetesting "github.com/ValentinKolb/docdb/lib/store/testing"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
)

// fakeClock is a manually advanced time source
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestEngine(t testing.TB, dir string) (*Engine, *fakeClock) {
	t.Helper()
	e, err := NewEngine(Config{
		DataDir:   dir,
		CacheTime: time.Minute,
		FlushTime: 5 * time.Minute,
	})
	if err != nil {
		t.Fatalf("create engine: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })

	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	e.now = clock.Now
	return e, clock
}

func encodeDoc(t testing.TB, doc bson.D) []byte {
	t.Helper()
	data, err := db.EncodeDocument(doc)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func readFile(t testing.TB, dir, name string) *db.Collection {
	t.Helper()
	data, err := os.ReadFile(persist.PathFor(dir, name))
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	c, err := db.DecodeCollection(data)
	if err != nil {
		t.Fatalf("decode %s: %v", name, err)
	}
	return c
}

func Test(t *testing.T) {
	storetesting.RunDocStoreTests(t, "Engine", func(t testing.TB) store.IDocStore {
		e, _ := newTestEngine(t, t.TempDir())
		return e
	})
}

func Benchmark(b *testing.B) {
	storetesting.RunDocStoreBenchmarks(b, "Engine", func(b testing.TB) store.IDocStore {
		e, _ := newTestEngine(b, b.TempDir())
		return e
	})
}

// --------------------------------------------------------------------------
// Collection Store
// --------------------------------------------------------------------------

func TestFirstAccessCreatesFile(t *testing.T) {
	dir := t.TempDir()
	e, _ := newTestEngine(t, dir)

	if _, err := e.Find("fresh", nil, 0); err != nil {
		t.Fatalf("find: %v", err)
	}
	if c := readFile(t, dir, "fresh"); c.Len() != 0 {
		t.Errorf("expected an empty collection file, got %d documents", c.Len())
	}
	if e.table.Size() != 1 {
		t.Errorf("expected 1 resident collection, got %d", e.table.Size())
	}
}

func TestEmptyInsertTouchesNothing(t *testing.T) {
	dir := t.TempDir()
	e, _ := newTestEngine(t, dir)

	_, err := e.Insert("never", [][]byte{}, false)
	if !store.IsCode(err, store.RetCInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	if _, statErr := os.Stat(persist.PathFor(dir, "never")); !os.IsNotExist(statErr) {
		t.Errorf("rejected insert created a collection file: %v", statErr)
	}
	if e.table.Size() != 0 {
		t.Errorf("rejected insert made a collection resident")
	}
}

func TestCorruptCollection(t *testing.T) {
	dir := t.TempDir()
	e, _ := newTestEngine(t, dir)

	garbage := []byte("this is not a collection")
	if err := os.WriteFile(persist.PathFor(dir, "broken"), garbage, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := e.Find("broken", nil, 0)
	if !store.IsCode(err, store.RetCInternalError) {
		t.Errorf("find: expected internal error, got %v", err)
	}
	_, err = e.Insert("broken", [][]byte{encodeDoc(t, bson.D{{Key: "a", Value: int32(1)}})}, false)
	if !store.IsCode(err, store.RetCNotFound) {
		t.Errorf("insert: expected not found, got %v", err)
	}

	if e.table.Size() != 0 {
		t.Error("a corrupt collection must not become resident")
	}
	if err := e.SyncAll(); err != nil {
		t.Fatalf("sync: %v", err)
	}
	got, _ := os.ReadFile(persist.PathFor(dir, "broken"))
	if !bytes.Equal(got, garbage) {
		t.Error("the corrupt file was overwritten")
	}
}

func TestConcurrentFirstAccess(t *testing.T) {
	e, _ := newTestEngine(t, t.TempDir())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := e.Insert("race", [][]byte{encodeDoc(t, bson.D{{Key: "i", Value: int32(i)}})}, false); err != nil {
				t.Errorf("insert: %v", err)
			}
		}(i)
	}
	wg.Wait()

	docs, err := e.Find("race", nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 16 {
		t.Errorf("expected 16 documents, got %d", len(docs))
	}
	if e.metrics.creates.Get() != 1 {
		t.Errorf("expected the collection to be created once, got %d", e.metrics.creates.Get())
	}
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

func TestSweepEvictsIdleCollections(t *testing.T) {
	dir := t.TempDir()
	e, clock := newTestEngine(t, dir)

	raw := [][]byte{
		encodeDoc(t, bson.D{{Key: "x", Value: int32(1)}}),
		encodeDoc(t, bson.D{{Key: "x", Value: int32(2)}}),
	}
	if _, err := e.Insert("idle", raw, false); err != nil {
		t.Fatal(err)
	}
	before, err := e.Find("idle", nil, 0)
	if err != nil {
		t.Fatal(err)
	}

	// not yet due
	clock.Advance(4 * time.Minute)
	if err := e.Sweep(); err != nil {
		t.Fatal(err)
	}
	if _, ok := e.table.Load("idle"); !ok {
		t.Fatal("collection evicted before its flush time")
	}

	clock.Advance(time.Minute)
	if err := e.Sweep(); err != nil {
		t.Fatal(err)
	}
	if _, ok := e.table.Load("idle"); ok {
		t.Fatal("collection still resident after its flush time")
	}
	if c := readFile(t, dir, "idle"); c.Len() != 2 {
		t.Errorf("expected 2 persisted documents, got %d", c.Len())
	}

	// a fresh load yields identical documents
	after, err := e.Find("idle", nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(after) != len(before) {
		t.Fatalf("expected %d documents after reload, got %d", len(before), len(after))
	}
	for i := range before {
		if !bytes.Equal(before[i], after[i]) {
			t.Errorf("document %d changed across eviction", i)
		}
	}
	if e.metrics.loads.Get() != 1 {
		t.Errorf("expected exactly one disk load, got %d", e.metrics.loads.Get())
	}
}

func TestAccessPostponesEviction(t *testing.T) {
	e, clock := newTestEngine(t, t.TempDir())

	if _, err := e.Find("busy", nil, 0); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		clock.Advance(4 * time.Minute)
		if _, err := e.Find("busy", nil, 0); err != nil {
			t.Fatal(err)
		}
		if err := e.Sweep(); err != nil {
			t.Fatal(err)
		}
		if _, ok := e.table.Load("busy"); !ok {
			t.Fatal("collection evicted although it was accessed within the flush time")
		}
	}
}

func TestEvictedSlotIsRetried(t *testing.T) {
	dir := t.TempDir()
	e, _ := newTestEngine(t, dir)

	if _, err := e.Insert("retry", [][]byte{encodeDoc(t, bson.D{{Key: "n", Value: int32(1)}})}, false); err != nil {
		t.Fatal(err)
	}
	old, _ := e.table.Load("retry")

	// hold the slot so the insert below blocks on it
	old.mu.Lock()
	done := make(chan error, 1)
	go func() {
		_, err := e.Insert("retry", [][]byte{encodeDoc(t, bson.D{{Key: "n", Value: int32(2)}})}, false)
		done <- err
	}()
	time.Sleep(50 * time.Millisecond)

	// evict the slot the way the sweep does
	if err := e.disk.Write("retry", old.docs); err != nil {
		t.Fatal(err)
	}
	old.evicted = true
	e.table.Delete("retry")
	old.mu.Unlock()

	if err := <-done; err != nil {
		t.Fatalf("insert: %v", err)
	}

	docs, err := e.Find("retry", nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected both documents, got %d", len(docs))
	}
	if old.docs.Len() != 1 {
		t.Error("the insert wrote into the evicted slot")
	}
	if cur, _ := e.table.Load("retry"); cur == old {
		t.Error("the evicted slot is resident again")
	}
}

func TestSyncAllKeepsEntries(t *testing.T) {
	dir := t.TempDir()
	e, _ := newTestEngine(t, dir)

	for _, name := range []string{"a", "b"} {
		if _, err := e.Insert(name, [][]byte{encodeDoc(t, bson.D{{Key: "c", Value: name}})}, false); err != nil {
			t.Fatal(err)
		}
	}
	if err := e.SyncAll(); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"a", "b"} {
		if c := readFile(t, dir, name); c.Len() != 1 {
			t.Errorf("collection %s: expected 1 persisted document, got %d", name, c.Len())
		}
	}
	if e.table.Size() != 2 {
		t.Errorf("sync must not evict, %d collections resident", e.table.Size())
	}
}

func TestRunFinalSync(t *testing.T) {
	dir := t.TempDir()
	e, _ := newTestEngine(t, dir)
	e.cfg.CacheTime = time.Hour
	e.cfg.FlushTime = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	results, err := e.Insert("final", [][]byte{encodeDoc(t, bson.D{{Key: "k", Value: "v"}})}, false)
	if err != nil {
		t.Fatal(err)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after cancellation")
	}

	c := readFile(t, dir, "final")
	if _, ok := c.Get(uuid.MustParse(results[0].ID)); !ok {
		t.Error("the final sync did not persist the inserted document")
	}
}

func TestReopen(t *testing.T) {
	dir := t.TempDir()
	e, _ := newTestEngine(t, dir)

	results, err := e.Insert("persisted", [][]byte{encodeDoc(t, bson.D{{Key: "v", Value: int64(42)}})}, false)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.SyncAll(); err != nil {
		t.Fatal(err)
	}
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}

	again, _ := newTestEngine(t, dir)
	raw, found, err := again.Get("persisted", results[0].ID)
	if err != nil || !found {
		t.Fatalf("document lost across restart: found=%v err=%v", found, err)
	}
	doc, _ := db.DecodeDocument(raw)
	if v, _ := db.Lookup(doc, "v"); v != int64(42) {
		t.Errorf("expected v = 42, got %v", v)
	}
}

func TestNextBackoff(t *testing.T) {
	limit := 5 * time.Second
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}

	var got time.Duration
	for i, w := range want {
		got = nextBackoff(got, limit)
		if got != w {
			t.Errorf("step %d: expected %s, got %s", i, w, got)
		}
	}
	if d := nextBackoff(0, 100*time.Millisecond); d != 100*time.Millisecond {
		t.Errorf("backoff must be capped at the interval, got %s", d)
	}
}

func TestLoopSurvivesFailures(t *testing.T) {
	e, _ := newTestEngine(t, t.TempDir())

	var calls atomic.Int32
	recovered := make(chan struct{})
	cycle := func() error {
		switch calls.Add(1) {
		case 1:
			return errors.New("disk full")
		case 2:
			return fmt.Errorf("load collection: %w", persist.ErrCorrupt)
		case 3:
			close(recovered)
		}
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		e.loop(ctx, "test", 10*time.Millisecond, cycle)
		close(stopped)
	}()

	select {
	case <-recovered:
	case <-time.After(5 * time.Second):
		t.Fatalf("loop did not reach a successful cycle, %d calls", calls.Load())
	}

	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("loop did not stop after cancellation")
	}
}

func TestSweepWritesOutsideTable(t *testing.T) {
	dir := t.TempDir()
	e, clock := newTestEngine(t, dir)

	if _, err := e.Insert("busy", [][]byte{encodeDoc(t, bson.D{{Key: "n", Value: int32(1)}})}, false); err != nil {
		t.Fatal(err)
	}
	busy, _ := e.table.Load("busy")
	clock.Advance(5 * time.Minute)

	// a long reader keeps the sweep waiting for the slot
	busy.mu.RLock()
	swept := make(chan error, 1)
	go func() { swept <- e.Sweep() }()
	time.Sleep(50 * time.Millisecond)

	resolved := make(chan error, 2)
	go func() {
		_, err := e.resolve("busy")
		resolved <- err
	}()
	go func() {
		_, err := e.resolve("other")
		resolved <- err
	}()
	for i := 0; i < 2; i++ {
		select {
		case err := <-resolved:
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
		case <-time.After(2 * time.Second):
			busy.mu.RUnlock()
			t.Fatal("resolve blocked while the sweep waited for a slot")
		}
	}
	busy.mu.RUnlock()

	if err := <-swept; err != nil {
		t.Fatalf("sweep: %v", err)
	}
	// the access above postponed the eviction
	if cur, ok := e.table.Load("busy"); !ok || cur != busy {
		t.Error("collection evicted although it was accessed during the sweep")
	}
}

func TestVersionCountsChanges(t *testing.T) {
	e, _ := newTestEngine(t, t.TempDir())

	version := func() uint64 {
		t.Helper()
		s, ok := e.table.Load("v")
		if !ok {
			t.Fatal("collection not resident")
		}
		return s.version.Load()
	}

	if _, err := e.Insert("v", [][]byte{encodeDoc(t, bson.D{{Key: "n", Value: int32(1)}})}, false); err != nil {
		t.Fatal(err)
	}
	if v := version(); v != 1 {
		t.Fatalf("expected version 1 after insert, got %d", v)
	}

	noMatch := bson.D{{Key: "n", Value: int32(2)}}
	if _, err := e.Update("v", noMatch, bson.D{{Key: "x", Value: true}}, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Remove("v", noMatch, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Insert("v", [][]byte{{0x01, 0x02}}, false); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Find("v", nil, 0); err != nil {
		t.Fatal(err)
	}
	if v := version(); v != 1 {
		t.Errorf("operations without changes advanced the version to %d", v)
	}

	if _, err := e.Update("v", bson.D{{Key: "n", Value: int32(1)}}, bson.D{{Key: "x", Value: true}}, 0); err != nil {
		t.Fatal(err)
	}
	if v := version(); v != 2 {
		t.Errorf("expected version 2 after a matching update, got %d", v)
	}
}

func TestConfigValidation(t *testing.T) {
	cases := map[string]Config{
		"no dir":        {CacheTime: time.Minute, FlushTime: time.Minute},
		"no cache time": {DataDir: t.TempDir(), FlushTime: time.Minute},
		"no flush time": {DataDir: t.TempDir(), CacheTime: time.Minute},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := NewEngine(cfg); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestGetInfo(t *testing.T) {
	dir := t.TempDir()
	e, clock := newTestEngine(t, dir)

	for i := 0; i < 3; i++ {
		if _, err := e.Insert("stats", [][]byte{encodeDoc(t, bson.D{{Key: "i", Value: int32(i)}})}, false); err != nil {
			t.Fatal(err)
		}
	}
	info, err := e.GetInfo()
	if err != nil {
		t.Fatal(err)
	}
	if len(info.Collections) != 1 {
		t.Fatalf("expected 1 collection, got %d", len(info.Collections))
	}
	c := info.Collections[0]
	if c.Name != "stats" || c.Documents != 3 || c.Version != 3 {
		t.Errorf("unexpected collection info %+v", c)
	}
	if !c.FlushAt.Equal(clock.Now().Add(5 * time.Minute)) {
		t.Errorf("unexpected flush time %s", c.FlushAt)
	}
	if c.EstimatedSize <= 0 {
		t.Errorf("expected a positive size estimate, got %d", c.EstimatedSize)
	}
	if info.DataDir != dir {
		t.Errorf("unexpected data dir %s", info.DataDir)
	}
}

func TestWritePrometheus(t *testing.T) {
	e, _ := newTestEngine(t, t.TempDir())
	if _, err := e.Find("m", nil, 0); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	e.WritePrometheus(&buf)
	for _, name := range []string{"docdb_cache_misses_total 1", "docdb_collection_creates_total 1", "docdb_resident_collections 1"} {
		if !bytes.Contains(buf.Bytes(), []byte(name)) {
			t.Errorf("metrics output lacks %q:\n%s", name, buf.String())
		}
	}
}
