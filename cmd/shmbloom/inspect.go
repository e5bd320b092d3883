package main

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/jcalabro/shmbloom"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

func newInspectCommand(a *app) *cobra.Command {
	var population bool
	cmd := &cobra.Command{
		Use:   "inspect FILE",
		Short: "Print the header and usage of a filter file",
		Long: `Print the parameters recorded in a filter file without mapping it.
With --population the bit array is read as well to report how full it is.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return inspect(cmd.OutOrStdout(), args[0], population)
		},
	}
	cmd.Flags().BoolVar(&population, "population", false, "Count set bits (reads the whole bit array)")
	return cmd
}

func inspect(w io.Writer, path string, population bool) (err error) {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, f.Close()) }()

	st, err := f.Stat()
	if err != nil {
		return err
	}
	h, err := shmbloom.ReadHeader(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	words := h.Words()
	var inserted uint64
	if h.Counter <= h.Capacity {
		inserted = h.Capacity - h.Counter
	}

	fmt.Fprintf(w, "file:         %s (%s)\n", path, humanize.IBytes(uint64(st.Size())))
	fmt.Fprintf(w, "capacity:     %s\n", commaUint(h.Capacity))
	fmt.Fprintf(w, "error rate:   %g\n", h.ErrorRate)
	fmt.Fprintf(w, "probes:       %d\n", h.Probes())
	fmt.Fprintf(w, "bits:         %s (%s words)\n", commaUint(words*shmbloom.WordBits), commaUint(words))
	fmt.Fprintf(w, "image size:   %s\n", humanize.IBytes(uint64(shmbloom.RegionSize(words))))
	fmt.Fprintf(w, "inserted:     %s\n", commaUint(inserted))
	fmt.Fprintf(w, "remaining:    %s\n", commaUint(h.Counter))

	if !population {
		return nil
	}

	if need := shmbloom.RegionSize(words); st.Size() < need {
		return fmt.Errorf("%s: %w: file truncated (got %d bytes, need %d)", path, shmbloom.ErrFormatMismatch, st.Size(), need)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	snap, err := shmbloom.ReadFrom(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	defer func() { err = multierr.Append(err, snap.Close()) }()

	fmt.Fprintf(w, "population:   %s\n", commaUint(snap.Population()))
	fmt.Fprintf(w, "fill ratio:   %.2f%%\n", snap.EstimatedFillRatio()*100)
	fmt.Fprintf(w, "est. fp rate: %.4f%%\n", snap.EstimatedFalsePositiveRate()*100)
	return nil
}

// commaUint formats v with thousands separators. Values past MaxInt64 only
// show up in corrupt headers and are printed plainly.
func commaUint(v uint64) string {
	if v > math.MaxInt64 {
		return strconv.FormatUint(v, 10)
	}
	return humanize.Comma(int64(v))
}
