package storage

import (
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/secstore/cmd/util"
	"github.com/ValentinKolb/secstore/rpc/common"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for secstore servers",
		Long:    "Runs put, get and list benchmarks against a storage domain. The keys written are prefixed with __perf and are not removed afterwards.",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix        = "__perf"
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfKeySpread        = 100
	perfSkip             = make([]string, 0)
)

// percentiles reported for every test
var perfPercentiles = []float64{0.5, 0.95, 0.99}

// perfResult combines the throughput of a benchmark with the latency
// distribution of the individual requests
type perfResult struct {
	bench   testing.BenchmarkResult
	latency gometrics.Timer
	errors  gometrics.Counter
}

func init() {
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. put,list)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the value for the put-large test should be (in KB, at most 512)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfKeySpread = viper.GetInt("keys")
	perfNumThreads = viper.GetInt("threads")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	// the response to a put carries the previous value, it must fit the 1 MiB ceiling
	if perfLargeValueSizeKB < 1 || perfLargeValueSizeKB > 512 {
		return fmt.Errorf("large-value-size must be between 1 and 512 KB")
	}
	if perfKeySpread < 1 {
		return fmt.Errorf("keys must be at least 1")
	}
	return nil
}

func runPerf(_ *cobra.Command, _ []string) error {
	config, err := util.GetClientConfig()
	if err != nil {
		return err
	}

	fmt.Println("Performance testing tool for secstore servers")
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(config.String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()
	fmt.Println("starting tests...")

	largeValue := make([]byte, perfLargeValueSizeKB*1024)
	euid := config.EUID

	tests := []struct {
		name    string
		prepare func(keys []string)
		op      func(key string) error
	}{
		{
			name: "put",
			op: func(key string) error {
				_, _, err := rpcStorage.Put(key, []byte("test"))
				return err
			},
		},
		{
			name: "put-large",
			op: func(key string) error {
				_, _, err := rpcStorage.Put(key, largeValue)
				return err
			},
		},
		{
			name:    "get",
			prepare: putAll,
			op: func(key string) error {
				_, _, err := rpcStorage.Get(key)
				return err
			},
		},
		{
			name: "get-missing",
			op: func(key string) error {
				_, _, err := rpcStorage.Get(key + "-missing")
				return err
			},
		},
		{
			name:    "list",
			prepare: putAll,
			op: func(key string) error {
				_, err := rpcStorage.List(&euid, perfKeyPrefix)
				return err
			},
		},
	}

	results := make(map[string]perfResult)
	var order []string
	for _, test := range tests {
		if shouldSkip(test.name) {
			printSkipped(test.name)
			continue
		}

		keys := getKeys(test.name)
		if test.prepare != nil {
			test.prepare(keys)
		}

		result := runTest(test.name, keys, test.op)
		results[test.name] = result
		order = append(order, test.name)
		printResult(test.name, result)
	}

	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, order, results, config); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// runTest benchmarks op in parallel and records the latency of every call
func runTest(name string, keys []string, op func(key string) error) perfResult {
	result := perfResult{
		latency: gometrics.NewTimer(),
		errors:  gometrics.NewCounter(),
	}

	result.bench = testing.Benchmark(func(b *testing.B) {
		b.SetParallelism(perfNumThreads)
		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				start := time.Now()
				if err := op(keys[counter%len(keys)]); err != nil {
					result.errors.Inc(1)
					log.Printf("(%s) - error: %v\n", name, err)
				}
				result.latency.UpdateSince(start)
				counter++
			}
		})
	})

	return result
}

func putAll(keys []string) {
	for _, k := range keys {
		if _, _, err := rpcStorage.Put(k, []byte("test")); err != nil {
			log.Printf("error preparing key %s: %v\n", k, err)
		}
	}
}

func shouldSkip(test string) bool {
	return slices.Contains(perfSkip, test)
}

// getKeys creates the test keys of a test
func getKeys(test string) []string {
	keys := make([]string, perfKeySpread)
	for i := range keys {
		keys[i] = fmt.Sprintf("%s-%s-%d", perfKeyPrefix, test, i)
	}
	return keys
}

func printSkipped(test string) {
	fmt.Printf("%-14sskipped\n", test)
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result perfResult) {
	nsPerOp := math.Max(float64(result.bench.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	snapshot := result.latency.Snapshot()
	ps := snapshot.Percentiles(perfPercentiles)

	fmt.Printf("%-14s%.0f ops/sec\tp50 %s\tp95 %s\tp99 %s\terrors %d\n",
		test, opsPerSec,
		time.Duration(ps[0]), time.Duration(ps[1]), time.Duration(ps[2]),
		result.errors.Count())
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
		"Test", "NsPerOp", "OpsPerSec", "Requests", "Errors", "P50Ns", "P95Ns", "P99Ns", "MaxNs",
		"Endpoints", "TimeoutSec", "RetryCount", "ConnectionsPerEndpoint",
		"Domain", "Serializer", "Transport",
		"Threads", "LargeValueSizeKB", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for _, test := range order {
		result := results[test]
		nsPerOp := math.Max(float64(result.bench.NsPerOp()), 1)
		snapshot := result.latency.Snapshot()
		ps := snapshot.Percentiles(perfPercentiles)

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			fmt.Sprintf("%.0f", 1.0/(nsPerOp/1e9)),
			strconv.FormatInt(snapshot.Count(), 10),
			strconv.FormatInt(result.errors.Count(), 10),
			fmt.Sprintf("%.0f", ps[0]),
			fmt.Sprintf("%.0f", ps[1]),
			fmt.Sprintf("%.0f", ps[2]),
			strconv.FormatInt(snapshot.Max(), 10),
			strings.Join(config.Transport.Endpoints, ";"),
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(config.Transport.RetryCount),
			strconv.Itoa(config.Transport.ConnectionsPerEndpoint),
			viper.GetString("domain"),
			viper.GetString("serializer"),
			viper.GetString("transport"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfKeySpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
