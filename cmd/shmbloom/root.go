package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/jcalabro/shmbloom"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const envPrefix = "SHMBLOOM"

// app carries the configuration shared by every subcommand.
type app struct {
	v   *viper.Viper
	log *zap.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{v: viper.New(), log: zap.NewNop()}

	cmd := &cobra.Command{
		Use:          "shmbloom",
		Short:        "Inspect and update shared bloom filter files",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.Uint64("capacity", 1_000_000, "Inserts allowed before a newly created filter resets itself")
	flags.Float64("error-rate", 0.01, "Target false positive rate of a newly created filter")

	a.v.SetEnvPrefix(envPrefix)
	a.v.AutomaticEnv()
	// This normalizes "-" to an underscore in env names.
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	if err := bindFlags(a.v, flags); err != nil {
		panic(err)
	}

	cmd.AddCommand(
		newInspectCommand(a),
		newAddCommand(a),
		newTestCommand(a),
		newClearCommand(a),
		newBenchCommand(a),
	)
	return cmd
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) (err error) {
	fs.VisitAll(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		err = v.BindPFlag(f.Name, f)
	})
	return err
}

func (a *app) setup(cmd *cobra.Command) error {
	level, err := zapcore.ParseLevel(a.v.GetString("log-level"))
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	a.log = newLogger(cmd.ErrOrStderr(), level)
	return nil
}

// openFilter opens or creates the filter at path with the configured
// parameters.
func (a *app) openFilter(path string) (*shmbloom.Filter, error) {
	return shmbloom.OpenFile(path,
		a.v.GetUint64("capacity"),
		a.v.GetFloat64("error-rate"),
		shmbloom.WithLogger(a.log))
}

// openExisting is like openFilter but refuses to create or initialize a
// file: the path must already hold a filter image.
func (a *app) openExisting(path string) (*shmbloom.Filter, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if st.Size() == 0 {
		return nil, fmt.Errorf("%s: %w: file is empty", path, shmbloom.ErrFormatMismatch)
	}
	return a.openFilter(path)
}
