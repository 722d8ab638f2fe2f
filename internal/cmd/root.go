// Package cmd wires the renderer into a command line interface.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string
var logger *slog.Logger

var rootCmd = &cobra.Command{
	Use:   "osmraster",
	Short: "A MapCSS-styled raster tile renderer for OSM data",
	Long: `osmraster renders slippy-map PNG tiles from a pre-indexed OSM dataset
styled with a MapCSS stylesheet. It serves tiles over HTTP on demand or
renders tile ranges into an MBTiles database.`,
}

// Execute runs the root command.
func Execute() {
	if logger == nil {
		initLogging()
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initLogging)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")

	rootCmd.PersistentFlags().String("geodata-file", "", "Path to the packed geodata file")
	rootCmd.PersistentFlags().String("style-file", "", "Path to the compiled stylesheet (JSON rule list)")
	rootCmd.PersistentFlags().String("style-type", "josm", "Stylesheet dialect (josm, mapsme)")
	rootCmd.PersistentFlags().Float64("style-font-mul", 0, "Font size multiplier (0 = no scaling)")
	rootCmd.PersistentFlags().String("style-base-path", "", "Directory for icons and fonts (defaults to the stylesheet's directory)")
	rootCmd.PersistentFlags().String("style-font", "", "Path to a TrueType font for labels")

	mustBind := func(key, flag string) {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag: %v", err))
		}
	}

	mustBind("log-level", "log-level")
	mustBind("geodata.file", "geodata-file")
	mustBind("style.file", "style-file")
	mustBind("style.type", "style-type")
	mustBind("style.font-mul", "style-font-mul")
	mustBind("style.base-path", "style-base-path")
	mustBind("style.font", "style-font")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("OSMRASTER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func initLogging() {
	level := slog.LevelInfo
	switch strings.ToLower(viper.GetString("log-level")) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error", "err":
		level = slog.LevelError
	}

	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}
