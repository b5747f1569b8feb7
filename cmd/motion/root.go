package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/banshee-data/antispoofing.motion/internal/config"
	"github.com/banshee-data/antispoofing.motion/internal/monitoring"
	"github.com/banshee-data/antispoofing.motion/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const envPrefix = "MOTION"

// app carries the state shared by every subcommand.
type app struct {
	v          *viper.Viper
	configFile string
	logger     *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "motion",
		Short: "Motion-based face anti-spoofing toolkit.",
		Long: `motion turns frame-difference signals into windowed quantities, trains
and applies a linear discriminant on them, and reports how the detector's
error rates evolve over time.

Every flag can also be set in a config file (./motion.yaml by default) or
through MOTION_* environment variables, e.g. MOTION_WINDOW_SIZE=20.`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initialize(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	rootCmd.SetVersionTemplate("motion {{.Version}}\n")

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&a.configFile, "config", "c", "", "config file (default is ./motion.yaml)")
	pf.String("log-level", "info", "log level: debug, info, warn or error")
	pf.String("log-format", "console", "console log format: console or json")
	pf.String("log-file", "", "also write JSON logs to this rotated file")

	rootCmd.AddCommand(
		newDiffClusterCmd(a),
		newLDATrainCmd(a),
		newScoreCmd(a),
		newImportCmd(a),
		newTimeAnalysisCmd(a),
		newMergeScoresCmd(a),
		newServeCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

// initialize reads the config file and environment, binds the running
// command's flags and installs the logger.
func (a *app) initialize(cmd *cobra.Command) error {
	v := a.v
	if a.configFile != "" {
		v.SetConfigFile(a.configFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("motion")
		v.SetConfigType("yaml")
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}

	logger, err := monitoring.Init(monitoring.LoggerConfig{
		Level:      v.GetString("log-level"),
		Format:     v.GetString("log-format"),
		File:       v.GetString("log-file"),
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 7,
		Compress:   true,
	}, zapcore.AddSync(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	a.logger = logger
	monitoring.Debugf("motion %s running %s", version.Version, cmd.CommandPath())
	return nil
}

// isSet reports whether key was given on the command line, in the
// environment or in the config file, for a flag cmd defines.
func (a *app) isSet(cmd *cobra.Command, key string) bool {
	return cmd.Flags().Lookup(key) != nil && a.v.IsSet(key)
}

// addSelectionFlags registers the protocol and support selectors.
func addSelectionFlags(cmd *cobra.Command) {
	defaults := config.EmptyAnalysisConfig()
	cmd.Flags().StringP("protocol", "p", defaults.GetProtocol(), "protocol selecting the files to operate on")
	cmd.Flags().StringP("support", "s", defaults.GetSupport(), "attack support: hand, fixed or hand+fixed")
}

// analysisConfig layers base, the optional --analysis-config file and the
// options given to cmd, in increasing precedence.
func (a *app) analysisConfig(cmd *cobra.Command, base *config.AnalysisConfig) (*config.AnalysisConfig, error) {
	if base == nil {
		base = config.EmptyAnalysisConfig()
	}
	cfg := base
	if a.isSet(cmd, "analysis-config") {
		file, err := config.LoadAnalysisConfig(a.v.GetString("analysis-config"))
		if err != nil {
			return nil, err
		}
		cfg = cfg.Merge(file)
	}

	o := config.EmptyAnalysisConfig()
	str := func(key string, dst **string) {
		if a.isSet(cmd, key) {
			s := a.v.GetString(key)
			*dst = &s
		}
	}
	num := func(key string, dst **int) {
		if a.isSet(cmd, key) {
			n := a.v.GetInt(key)
			*dst = &n
		}
	}
	str("protocol", &o.Protocol)
	str("support", &o.Support)
	str("criterion", &o.Criterion)
	if a.isSet(cmd, "min-hter") && a.v.GetBool("min-hter") {
		c := config.CriterionHTER
		o.Criterion = &c
	}
	if a.isSet(cmd, "running-average") {
		b := a.v.GetBool("running-average")
		o.RunningAverage = &b
	}
	num("window-size", &o.WindowSize)
	num("overlap", &o.Overlap)
	num("misclassified-at", &o.MisclassifiedAt)
	num("average", &o.Average)
	num("workers", &o.Workers)

	cfg = cfg.Merge(o)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid analysis options: %w", err)
	}
	return cfg, nil
}
