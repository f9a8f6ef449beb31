package main

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dosco/graphjin/neo4j/v3/core"
)

var (
	// These variables are set using -ldflags
	version string
	commit  string
	date    string
)

var (
	log        *zap.SugaredLogger
	conf       *core.Config
	cpath      string
	schemaFile string
)

// Cmd is the entry point for the CLI
func Cmd() {
	log = newLogger(false).Sugar()

	if err := rootCmd().Execute(); err != nil {
		log.Fatalf("%s", err)
	}
}

func rootCmd() *cobra.Command {
	cobra.EnableCommandSorting = false
	rootCmd := &cobra.Command{
		Use:           "graphjin-neo4j",
		Short:         BuildDetails(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cpath,
		"path", "./config", "path to config files")

	rootCmd.PersistentFlags().StringVar(&schemaFile,
		"schema", "", "schema file to use instead of the one set in the config")

	rootCmd.AddCommand(compileCmd())
	rootCmd.AddCommand(mergeCmd())
	rootCmd.AddCommand(schemaCmd())
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

// setup reads the config file for the current environment. A schema file
// passed on the command line is enough on its own.
func setup(cpath string) error {
	if conf != nil {
		return nil
	}

	if schemaFile != "" {
		sp, err := filepath.Abs(schemaFile)
		if err != nil {
			return errors.Wrap(err, "schema file")
		}
		conf = &core.Config{
			SchemaFile: filepath.Base(sp),
			ConfigPath: filepath.Dir(sp),
		}
		return nil
	}

	cp, err := filepath.Abs(cpath)
	if err != nil {
		return errors.Wrap(err, "config path")
	}

	cn := core.GetConfigName()

	if conf, err = core.ReadInConfig(path.Join(cp, cn)); err != nil {
		return errors.Wrapf(err, "reading config '%s'", cn)
	}

	if err := conf.Validate(); err != nil {
		return errors.Wrap(err, "invalid config")
	}

	log = newLoggerWithLevel(conf.ShouldUseJSONLogs(), os.Stdout, conf.LogLevel).Sugar()
	return nil
}

// newGraphJin builds a compiler, the schema watcher is not needed for a
// single command run
func newGraphJin() (*core.GraphJin, error) {
	if err := setup(cpath); err != nil {
		return nil, err
	}

	c := *conf
	c.Production = true

	gj, err := core.NewGraphJin(&c, core.OptionSetLogger(log.Desugar()))
	if err != nil {
		return nil, errors.Wrap(err, "initializing compiler")
	}
	return gj, nil
}

// newLogger creates a new logger
func newLogger(json bool) *zap.Logger {
	return newLoggerWithOutput(json, os.Stdout)
}

// newLoggerWithOutput creates a new logger with a custom output
func newLoggerWithOutput(json bool, output zapcore.WriteSyncer) *zap.Logger {
	return newLoggerWithLevel(json, output, "debug")
}

func newLoggerWithLevel(json bool, output zapcore.WriteSyncer, level string) *zap.Logger {
	econf := zapcore.EncoderConfig{
		MessageKey:     "msg",
		LevelKey:       "level",
		NameKey:        "logger",
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}

	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zap.DebugLevel
	}

	var core zapcore.Core

	if json {
		core = zapcore.NewCore(zapcore.NewJSONEncoder(econf), output, lvl)
	} else {
		econf.EncodeLevel = zapcore.CapitalColorLevelEncoder
		core = zapcore.NewCore(zapcore.NewConsoleEncoder(econf), output, lvl)
	}
	return zap.New(core)
}
