package main

import (
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jcalabro/shmbloom"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type benchConfig struct {
	maxExp       int
	denominators []uint
	private      bool
	dir          string
}

type benchResult struct {
	items          uint64
	add, hit, miss time.Duration
}

func newBenchCommand(a *app) *cobra.Command {
	cfg := benchConfig{}
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure insert and lookup latency over a range of filter sizes",
		Long: `Measure per-operation latency for filters holding 1000 * 10^(e/2) keys,
for e from 0 to --max-exp, at error rates 1/d for each --denominators d.
Each run fills the filter, looks up every inserted key, then looks up as many
keys that were never inserted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBench(cmd.OutOrStdout(), cfg, a.log)
		},
	}
	cmd.Flags().IntVar(&cfg.maxExp, "max-exp", 8, "Largest size exponent")
	cmd.Flags().UintSliceVar(&cfg.denominators, "denominators", []uint{10, 100}, "Error rate denominators")
	cmd.Flags().BoolVar(&cfg.private, "private", false, "Use heap backed filters instead of shared files")
	cmd.Flags().StringVar(&cfg.dir, "dir", os.TempDir(), "Directory for the shared filter files")
	return cmd
}

func runBench(w io.Writer, cfg benchConfig, log *zap.Logger) error {
	fmt.Fprintf(w, "%12s %6s %12s %12s %12s\n", "items", "1/p", "add ns/op", "hit ns/op", "miss ns/op")
	for _, d := range cfg.denominators {
		for e := 0; e <= cfg.maxExp; e++ {
			items := uint64(1000 * math.Pow(10, float64(e)/2))
			res, err := benchOne(cfg, items, 1/float64(d), log)
			if err != nil {
				return fmt.Errorf("bench %d items at 1/%d: %w", items, d, err)
			}
			fmt.Fprintf(w, "%12s %6d %12.1f %12.1f %12.1f\n",
				humanize.Comma(int64(res.items)), d,
				perOp(res.add, items), perOp(res.hit, items), perOp(res.miss, items))
		}
	}
	return nil
}

func benchOne(cfg benchConfig, items uint64, errorRate float64, log *zap.Logger) (res benchResult, err error) {
	f, err := openBenchFilter(cfg, items+1, errorRate, log)
	if err != nil {
		return res, err
	}
	defer func() { err = multierr.Append(err, f.Close()) }()

	res.items = items

	start := time.Now()
	for x := range items {
		f.InsertHash(x)
	}
	res.add = time.Since(start)

	start = time.Now()
	for x := range items {
		f.TestHash(x)
	}
	res.hit = time.Since(start)

	start = time.Now()
	for x := items; x < 2*items; x++ {
		f.TestHash(x)
	}
	res.miss = time.Since(start)

	return res, nil
}

func openBenchFilter(cfg benchConfig, capacity uint64, errorRate float64, log *zap.Logger) (_ *shmbloom.Filter, err error) {
	if cfg.private {
		return shmbloom.New(capacity, errorRate, shmbloom.WithLogger(log))
	}

	tmp, err := os.CreateTemp(cfg.dir, "shmbloom-bench-*")
	if err != nil {
		return nil, err
	}
	defer func() {
		err = multierr.Combine(err, tmp.Close(), os.Remove(tmp.Name()))
	}()
	return shmbloom.OpenShared(tmp, capacity, errorRate, shmbloom.WithLogger(log))
}

func perOp(d time.Duration, n uint64) float64 {
	if n == 0 {
		return 0
	}
	return float64(d.Nanoseconds()) / float64(n)
}
