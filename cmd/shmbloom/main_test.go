//go:build darwin || dragonfly || freebsd || linux || netbsd || openbsd

package main

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jcalabro/shmbloom"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func filterPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "cli.bloom")
}

func TestAddAndTest(t *testing.T) {
	path := filterPath(t)

	out, stderr, err := run(t, "", "--capacity", "1000", "--error-rate", "0.01", "add", path, "alpha", "beta")
	require.NoError(t, err)
	require.Equal(t, "added 2 keys (0 resets), 998 remaining\n", out)
	require.Contains(t, stderr, "Created shared bloom filter")

	out, _, err = run(t, "", "test", path, "alpha", "beta")
	require.NoError(t, err)
	require.Equal(t, "alpha\tpresent\nbeta\tpresent\n", out)
}

func TestAddFromStdin(t *testing.T) {
	path := filterPath(t)

	out, _, err := run(t, "one\ntwo\nthree\n", "--capacity", "10", "add", path)
	require.NoError(t, err)
	require.Equal(t, "added 3 keys (0 resets), 7 remaining\n", out)

	out, _, err = run(t, "three\none\n", "test", path)
	require.NoError(t, err)
	require.Equal(t, "three\tpresent\none\tpresent\n", out)
}

func TestCapacityFromEnvironment(t *testing.T) {
	t.Setenv("SHMBLOOM_CAPACITY", "42")
	t.Setenv("SHMBLOOM_ERROR_RATE", "0.25")
	path := filterPath(t)

	_, _, err := run(t, "", "add", path, "k")
	require.NoError(t, err)

	f, err := shmbloom.OpenFile(path, 1, 0.5)
	require.NoError(t, err)
	defer f.Close()
	require.Equal(t, uint64(42), f.Capacity())
	require.Equal(t, 0.25, f.ErrorRate())
	require.Equal(t, uint64(41), f.Remaining())
}

func TestFlagOverridesEnvironment(t *testing.T) {
	t.Setenv("SHMBLOOM_CAPACITY", "42")
	path := filterPath(t)

	out, _, err := run(t, "", "--capacity", "7", "add", path, "k")
	require.NoError(t, err)
	require.Equal(t, "added 1 keys (0 resets), 6 remaining\n", out)
}

func TestAddReportsResets(t *testing.T) {
	path := filterPath(t)

	out, stderr, err := run(t, "", "--log-level", "debug", "--capacity", "2", "add", path, "a", "b", "c")
	require.NoError(t, err)
	require.Equal(t, "added 3 keys (1 resets), 2 remaining\n", out)
	require.Contains(t, stderr, "Bloom filter saturated, clearing")
}

func TestClear(t *testing.T) {
	path := filterPath(t)
	_, _, err := run(t, "", "--capacity", "100", "add", path, "gone")
	require.NoError(t, err)

	out, _, err := run(t, "", "clear", path)
	require.NoError(t, err)
	require.Equal(t, "cleared "+path+", 100 remaining\n", out)

	out, _, err = run(t, "", "test", path, "gone")
	require.NoError(t, err)
	require.Equal(t, "gone\tabsent\n", out)
}

func TestMissingFile(t *testing.T) {
	path := filterPath(t)

	_, _, err := run(t, "", "test", path, "k")
	require.ErrorIs(t, err, os.ErrNotExist)

	_, _, err = run(t, "", "clear", path)
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = os.Stat(path)
	require.ErrorIs(t, err, os.ErrNotExist, "read-only commands must not create files")
}

func TestReadOnlyCommandsRejectEmptyFile(t *testing.T) {
	path := filterPath(t)
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	_, _, err := run(t, "", "test", path, "k")
	require.ErrorIs(t, err, shmbloom.ErrFormatMismatch)

	_, _, err = run(t, "", "clear", path)
	require.ErrorIs(t, err, shmbloom.ErrFormatMismatch)

	st, err := os.Stat(path)
	require.NoError(t, err)
	require.Zero(t, st.Size(), "an empty file must not be initialized")
}

func TestInspectHugeCounter(t *testing.T) {
	path := filterPath(t)
	buf := make([]byte, shmbloom.RegionSize(300))
	require.NoError(t, shmbloom.EncodeHeader(buf, shmbloom.Header{Capacity: 1000, ErrorRate: 0.01, Counter: math.MaxUint64}))
	require.NoError(t, os.WriteFile(path, buf, 0o644))

	out, _, err := run(t, "", "inspect", path)
	require.NoError(t, err)
	require.Contains(t, out, "remaining:    18446744073709551615\n")
	require.Contains(t, out, "inserted:     0\n")
}

func TestInspectPopulationTruncatedFile(t *testing.T) {
	path := filterPath(t)
	hdr := make([]byte, shmbloom.HeaderSize)
	require.NoError(t, shmbloom.EncodeHeader(hdr, shmbloom.Header{Capacity: 1 << 46, ErrorRate: 0.01, Counter: 1 << 46}))
	require.NoError(t, os.WriteFile(path, hdr, 0o644))

	out, _, err := run(t, "", "inspect", path)
	require.NoError(t, err)
	require.Contains(t, out, "capacity:     70,368,744,177,664\n")

	_, _, err = run(t, "", "inspect", "--population", path)
	require.ErrorIs(t, err, shmbloom.ErrFormatMismatch)
}

func TestInspect(t *testing.T) {
	path := filterPath(t)
	_, _, err := run(t, "", "--capacity", "1000", "--error-rate", "0.01", "add", path, "a", "b", "c")
	require.NoError(t, err)

	out, _, err := run(t, "", "inspect", path)
	require.NoError(t, err)
	require.Contains(t, out, "capacity:     1,000\n")
	require.Contains(t, out, "error rate:   0.01\n")
	require.Contains(t, out, "probes:       7\n")
	require.Contains(t, out, "bits:         19,200 (300 words)\n")
	require.Contains(t, out, "image size:   2.4 KiB\n")
	require.Contains(t, out, "inserted:     3\n")
	require.Contains(t, out, "remaining:    997\n")
	require.NotContains(t, out, "population")

	out, _, err = run(t, "", "inspect", "--population", path)
	require.NoError(t, err)
	require.Contains(t, out, "population:")
	require.Contains(t, out, "fill ratio:")
}

func TestInspectRejectsForeignFile(t *testing.T) {
	path := filterPath(t)
	require.NoError(t, os.WriteFile(path, []byte("not a bloom filter at all, definitely not"), 0o644))

	_, _, err := run(t, "", "inspect", path)
	require.ErrorIs(t, err, shmbloom.ErrFormatMismatch)

	_, _, err = run(t, "", "add", path, "k")
	require.ErrorIs(t, err, shmbloom.ErrFormatMismatch)
}

func TestInvalidErrorRate(t *testing.T) {
	_, _, err := run(t, "", "--error-rate", "1", "add", filterPath(t), "k")
	require.ErrorIs(t, err, shmbloom.ErrInvalidRate)
}

func TestInvalidLogLevel(t *testing.T) {
	_, _, err := run(t, "", "--log-level", "loud", "inspect", filterPath(t))
	require.ErrorContains(t, err, "invalid log level")
}

func TestBench(t *testing.T) {
	for _, mode := range []string{"shared", "private"} {
		t.Run(mode, func(t *testing.T) {
			args := []string{"bench", "--max-exp", "1", "--denominators", "10", "--dir", t.TempDir()}
			if mode == "private" {
				args = append(args, "--private")
			}
			out, _, err := run(t, "", args...)
			require.NoError(t, err)

			lines := strings.Split(strings.TrimSpace(out), "\n")
			require.Len(t, lines, 3)
			require.Contains(t, lines[0], "add ns/op")
			require.Equal(t, []string{"1,000", "10"}, strings.Fields(lines[1])[:2])
			require.Equal(t, []string{"3,162", "10"}, strings.Fields(lines[2])[:2])
		})
	}
}
