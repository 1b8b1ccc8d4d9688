package persist

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ValentinKolb/docdb/lib/db"
	"go.mongodb.org/mongo-driver/bson"
)

func newCollection(n int) *db.Collection {
	c := db.NewCollection()
	for i := 0; i < n; i++ {
		doc, id := db.EnsureID(bson.D{{Key: "n", Value: int32(i)}, {Key: "text", Value: "some repeated text some repeated text"}})
		c.Put(id, doc)
	}
	return c
}

func openStore(t *testing.T, root string, c Compression) *Store {
	t.Helper()
	s, err := Open(root, c)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRoundTrip(t *testing.T) {
	for _, c := range []Compression{NoCompression, SnappyCompression, ZstdCompression, LZ4Compression} {
		t.Run(c.String(), func(t *testing.T) {
			s := openStore(t, t.TempDir(), c)

			for _, n := range []int{0, 1, 50} {
				src := newCollection(n)
				if err := s.Write("users", src); err != nil {
					t.Fatalf("write: %v", err)
				}
				dst, ok, err := s.Read("users")
				if err != nil || !ok {
					t.Fatalf("read: ok=%v err=%v", ok, err)
				}
				if dst.Len() != n {
					t.Fatalf("expected %d documents, got %d", n, dst.Len())
				}
			}
		})
	}
}

func TestUncompressedIsPlainBSON(t *testing.T) {
	root := t.TempDir()
	s := openStore(t, root, NoCompression)
	if err := s.Write("plain", newCollection(3)); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(PathFor(root, "plain"))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if err := bson.Raw(data).Validate(); err != nil {
		t.Errorf("file is not plain bson: %v", err)
	}
}

func TestReadAcceptsBothForms(t *testing.T) {
	root := t.TempDir()
	s := openStore(t, root, ZstdCompression)
	if err := s.Write("mixed", newCollection(5)); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = s.Close()

	// a store configured without compression still reads the framed file
	plain := openStore(t, root, NoCompression)
	c, ok, err := plain.Read("mixed")
	if err != nil || !ok || c.Len() != 5 {
		t.Fatalf("expected 5 documents, got ok=%v err=%v", ok, err)
	}
}

func TestReadMissing(t *testing.T) {
	root := t.TempDir()
	s := openStore(t, root, NoCompression)

	if _, ok, err := s.Read("nothing"); ok || err != nil {
		t.Errorf("expected missing collection, got ok=%v err=%v", ok, err)
	}

	// a directory with the collection name is not a collection file
	if err := os.Mkdir(PathFor(root, "dir"), 0o755); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := s.Read("dir"); ok || err != nil {
		t.Errorf("expected directory to be ignored, got ok=%v err=%v", ok, err)
	}
}

func TestCorrupt(t *testing.T) {
	root := t.TempDir()
	s := openStore(t, root, SnappyCompression)

	cases := map[string][]byte{
		"garbage":  []byte("garbage"),
		"checksum": append([]byte("DDBZ\x01"), make([]byte, 12)...),
		"header":   []byte("DDBZ\x01"),
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			if err := os.WriteFile(PathFor(root, name), data, 0o644); err != nil {
				t.Fatal(err)
			}
			_, _, err := s.Read(name)
			if !errors.Is(err, ErrCorrupt) {
				t.Fatalf("expected ErrCorrupt, got %v", err)
			}
			if IsRetryable(err) {
				t.Error("corruption must not be retryable")
			}

			// the corrupt file must stay untouched
			got, _ := os.ReadFile(PathFor(root, name))
			if string(got) != string(data) {
				t.Error("corrupt file was modified")
			}
		})
	}
}

func TestLock(t *testing.T) {
	root := t.TempDir()
	s := openStore(t, root, NoCompression)

	if _, err := Open(root, NoCompression); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked for a second open, got %v", err)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	again, err := Open(root, NoCompression)
	if err != nil {
		t.Fatalf("reopen after close: %v", err)
	}
	_ = again.Close()
}

func TestNoTempFilesLeft(t *testing.T) {
	root := t.TempDir()
	s := openStore(t, root, LZ4Compression)
	for i := 0; i < 3; i++ {
		if err := s.Write("c", newCollection(i)); err != nil {
			t.Fatal(err)
		}
	}
	entries, err := os.ReadDir(filepath.Join(root, collectionsDir))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "c.bson" {
		t.Errorf("expected only c.bson, got %v", entries)
	}
}

func TestParseCompression(t *testing.T) {
	for _, name := range []string{"none", "snappy", "zstd", "lz4"} {
		c, err := ParseCompression(name)
		if err != nil || c.String() != name {
			t.Errorf("ParseCompression(%q) = %v, %v", name, c, err)
		}
	}
	if _, err := ParseCompression("brotli"); err == nil {
		t.Error("expected an error for an unknown compression")
	}
}
