package main

import (
	"bufio"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func newAddCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add FILE [KEY...]",
		Short: "Insert keys into a filter file, creating it if needed",
		Long: `Insert keys into a filter file. Keys are taken from the arguments, or
one per line from stdin when none are given. A missing or empty file is
initialized with --capacity and --error-rate.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			f, err := a.openFilter(args[0])
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, f.Close()) }()

			var added, resets int
			err = eachKey(cmd.InOrStdin(), args[1:], func(key string) {
				if f.AddString(key) {
					resets++
				}
				added++
			})
			if err != nil {
				return err
			}

			a.log.Debug("Added keys", zap.Int("keys", added), zap.Int("resets", resets))
			fmt.Fprintf(cmd.OutOrStdout(), "added %d keys (%d resets), %d remaining\n", added, resets, f.Remaining())
			return nil
		},
	}
}

func newTestCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "test FILE [KEY...]",
		Short: "Report which keys may be present in a filter file",
		Long: `Report for each key whether it may be present in the filter. Keys are
taken from the arguments, or one per line from stdin when none are given.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			f, err := a.openExisting(args[0])
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, f.Close()) }()

			w := cmd.OutOrStdout()
			return eachKey(cmd.InOrStdin(), args[1:], func(key string) {
				state := "absent"
				if f.TestString(key) {
					state = "present"
				}
				fmt.Fprintf(w, "%s\t%s\n", key, state)
			})
		},
	}
}

func newClearCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear FILE",
		Short: "Remove all keys from a filter file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			f, err := a.openExisting(args[0])
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, f.Close()) }()

			f.Clear()
			a.log.Info("Cleared bloom filter", zap.String("path", args[0]))
			fmt.Fprintf(cmd.OutOrStdout(), "cleared %s, %d remaining\n", args[0], f.Remaining())
			return nil
		},
	}
}

// eachKey calls fn for every key in args, or for every line of r when args
// is empty.
func eachKey(r io.Reader, args []string, fn func(string)) error {
	if len(args) > 0 {
		for _, key := range args {
			fn(key)
		}
		return nil
	}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fn(sc.Text())
	}
	return sc.Err()
}
