package document

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/docdb/cmd/util"
	"github.com/ValentinKolb/docdb/lib/db"
	"github.com/ValentinKolb/docdb/rpc/common"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.mongodb.org/mongo-driver/bson"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for docdb servers",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfCollectionPrefix = "__perf"
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfDocSpread        = 100
	perfSkip             = make([]string, 0)

	perfQuantiles = []float64{0.5, 0.95, 0.99}
)

func init() {
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. insert,find)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the payload for the insert-large test should be (in KB)"))
	key = "documents"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different documents to use for the tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfDocSpread = max(viper.GetInt("documents"), 1)
	perfNumThreads = viper.GetInt("threads")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

// perfOp runs the i-th operation of a benchmark goroutine
type perfOp func(i int) error

// perfResult is the outcome of a single benchmark
type perfResult struct {
	bench   testing.BenchmarkResult
	latency gometrics.Timer
}

func runPerf(_ *cobra.Command, _ []string) error {
	fmt.Println("Performance testing tool for docdb servers")

	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	fmt.Println("starting tests...")

	registry := gometrics.NewRegistry()
	results := make(map[string]perfResult)
	order := []string{"insert", "insert-large", "get", "find", "update", "remove", "mixed"}

	for _, test := range order {
		result := runBenchmark(test, registry, perfTests[test])
		results[test] = result
		printResult(test, result)
	}

	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, order, results, util.GetClientConfig()); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// perfTests prepare a collection and return the operation to measure
var perfTests = map[string]func(collection string) perfOp{
	"insert": func(collection string) perfOp {
		return func(i int) error {
			_, err := rpcStore.Insert(collection, [][]byte{mustEncode(perfDocument(i, "test"))}, false)
			return err
		}
	},
	"insert-large": func(collection string) perfOp {
		payload := strings.Repeat("x", perfLargeValueSizeKB*1024)
		return func(i int) error {
			_, err := rpcStore.Insert(collection, [][]byte{mustEncode(perfDocument(i, payload))}, false)
			return err
		}
	},
	"get": func(collection string) perfOp {
		ids := seedCollection(collection)
		return func(i int) error {
			if len(ids) == 0 {
				return fmt.Errorf("no documents seeded")
			}
			_, _, err := rpcStore.Get(collection, ids[i%len(ids)])
			return err
		}
	},
	"find": func(collection string) perfOp {
		seedCollection(collection)
		return func(i int) error {
			_, err := rpcStore.Find(collection, bson.D{{Key: "n", Value: int32(i % perfDocSpread)}}, 1)
			return err
		}
	},
	"update": func(collection string) perfOp {
		seedCollection(collection)
		return func(i int) error {
			_, err := rpcStore.Update(
				collection,
				bson.D{{Key: "n", Value: int32(i % perfDocSpread)}},
				bson.D{{Key: "touched", Value: int32(i)}},
				1,
			)
			return err
		}
	},
	"remove": func(collection string) perfOp {
		seedCollection(collection)
		return func(i int) error {
			_, err := rpcStore.Remove(collection, bson.D{{Key: "n", Value: int32(i % perfDocSpread)}}, 1)
			return err
		}
	},
	"mixed": func(collection string) perfOp {
		ids := seedCollection(collection)
		return func(i int) error {
			filter := bson.D{{Key: "n", Value: int32(i % perfDocSpread)}}
			var err error
			switch i % 4 {
			case 0: // insert
				_, err = rpcStore.Insert(collection, [][]byte{mustEncode(perfDocument(i, "test"))}, false)
			case 1: // get
				if len(ids) > 0 {
					_, _, err = rpcStore.Get(collection, ids[i%len(ids)])
				}
			case 2: // find
				_, err = rpcStore.Find(collection, filter, 1)
			case 3: // remove
				_, err = rpcStore.Remove(collection, filter, 1)
			}
			return err
		}
	},
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// runBenchmark measures op in parallel. The latency timer belongs to the last
// (largest) run of the benchmark.
func runBenchmark(test string, registry gometrics.Registry, prepare func(collection string) perfOp) perfResult {
	if shouldSkip(test) {
		return perfResult{}
	}

	collection := fmt.Sprintf("%s-%s", perfCollectionPrefix, test)
	var timer gometrics.Timer

	bench := testing.Benchmark(func(b *testing.B) {
		op := prepare(collection)

		b.Cleanup(func() {
			if _, err := rpcStore.Remove(collection, bson.D{}, 0); err != nil {
				log.Printf("(%s) - error cleaning up collection: %v\n", test, err)
			}
		})

		timer = gometrics.NewTimer()
		b.SetParallelism(perfNumThreads)
		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				start := time.Now()
				if err := op(counter); err != nil {
					log.Printf("(%s) - error performing operation: %v\n", test, err)
				}
				timer.UpdateSince(start)
				counter++
			}
		})
	})

	registry.Unregister(test)
	if err := registry.Register(test, timer); err != nil {
		log.Printf("(%s) - error registering timer: %v\n", test, err)
	}

	return perfResult{bench: bench, latency: timer}
}

func shouldSkip(test string) bool {
	for _, skip := range perfSkip {
		if test == strings.TrimSpace(skip) {
			return true
		}
	}
	return false
}

// perfDocument builds the i-th test document. Documents share "n" modulo the
// document spread so filters always hit.
func perfDocument(i int, payload string) bson.D {
	return bson.D{
		{Key: "n", Value: int32(i % perfDocSpread)},
		{Key: "payload", Value: payload},
	}
}

// seedCollection inserts the document spread and returns the identities
func seedCollection(collection string) []string {
	documents := make([][]byte, perfDocSpread)
	for i := range documents {
		documents[i] = mustEncode(perfDocument(i, "test"))
	}
	results, err := rpcStore.Insert(collection, documents, false)
	if err != nil {
		log.Printf("(%s) - error seeding collection: %v\n", collection, err)
		return nil
	}
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	return ids
}

func mustEncode(doc bson.D) []byte {
	raw, err := db.EncodeDocument(doc)
	if err != nil {
		panic(err)
	}
	return raw
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result perfResult) {
	if result.bench.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := max(float64(result.bench.NsPerOp()), 1)
	opsPerSec := 1.0 / (nsPerOp / 1e9)
	ps := result.latency.Percentiles(perfQuantiles)

	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\tp50=%s p95=%s p99=%s\n",
		test, nsPerOp, time.Duration(nsPerOp), opsPerSec,
		time.Duration(ps[0]), time.Duration(ps[1]), time.Duration(ps[2]))
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, order []string, results map[string]perfResult, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "P50", "P95", "P99", "Skipped",
		"Endpoints", "TimeoutSec", "RetryCount", "ConnectionsPerEndpoint",
		"Serializer", "Transport",
		"Threads", "LargeValueSizeKB", "Documents",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for _, test := range order {
		result := results[test]
		var nsPerOp, opsPerSec float64
		ps := make([]float64, len(perfQuantiles))
		skipped := "true"

		if result.bench.NsPerOp() != 0 {
			skipped = "false"
			nsPerOp = max(float64(result.bench.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
			ps = result.latency.Percentiles(perfQuantiles)
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			time.Duration(ps[0]).String(),
			time.Duration(ps[1]).String(),
			time.Duration(ps[2]).String(),
			skipped,
			strings.Join(config.Transport.Endpoints, ";"),
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(config.Transport.RetryCount),
			strconv.Itoa(config.Transport.ConnectionsPerEndpoint),
			viper.GetString("serializer"),
			viper.GetString("transport"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfDocSpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
