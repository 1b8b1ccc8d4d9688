package cstore

import (
	"sort"
	"time"

	"github.com/ValentinKolb/docdb/lib/db"
	"github.com/ValentinKolb/docdb/lib/db/util"
	"github.com/ValentinKolb/docdb/lib/store"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
)

// infoSampleSize is the number of documents per collection used to estimate sizes
const infoSampleSize = 64

// GetInfo reports the resident collections. It does not count as an access.
func (e *Engine) GetInfo() (store.Info, error) {
	info := store.Info{
		DataDir:     e.cfg.DataDir,
		Compression: e.cfg.Compression.String(),
		CacheTime:   e.cfg.CacheTime,
		FlushTime:   e.cfg.FlushTime,
		Collections: []store.CollectionInfo{},
	}

	var counts []float64
	e.table.Range(func(name string, s *slot) bool {
		ci, ok := describe(name, s)
		if ok {
			info.Collections = append(info.Collections, ci)
			counts = append(counts, float64(ci.Documents))
		}
		return true
	})

	sort.Slice(info.Collections, func(i, j int) bool {
		return info.Collections[i].Name < info.Collections[j].Name
	})
	info.Distribution = util.NewDistributionStats(counts)
	return info, nil
}

func describe(name string, s *slot) (store.CollectionInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.evicted {
		return store.CollectionInfo{}, false
	}

	hist := util.NewSizeHistogram()
	s.docs.Ascend(func(_ uuid.UUID, doc bson.D) bool {
		if encoded, err := db.EncodeDocument(doc); err == nil {
			hist.AddSample(len(encoded))
		}
		return hist.GetCount() < infoSampleSize
	})

	n := s.docs.Len()
	return store.CollectionInfo{
		Name:          name,
		Documents:     n,
		Version:       s.version.Load(),
		LastAccess:    time.Unix(0, s.lastAccess.Load()),
		FlushAt:       time.Unix(0, s.flushAt.Load()),
		MedianDocSize: hist.MedianEstimate(),
		EstimatedSize: hist.AverageSize() * n,
	}, true
}
