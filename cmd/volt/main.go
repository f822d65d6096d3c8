package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/volt-test/volt/internal/log"
	"github.com/volt-test/volt/internal/model"
	"github.com/volt-test/volt/internal/process"
	"github.com/volt-test/volt/internal/service"
)

const configName = "volt.yaml"

var (
	userConfigPath string // /default/config/path/volt on given OS
	configPath     string // actual config file used (if loaded)
	config         model.Config
	closeLog       = func() error { return nil }

	flagConfigFilePath string // value of --config flag
	flagVerbose        bool   // value of --verbose flag
)

func init() {
	d, err := os.UserConfigDir()
	if err != nil {
		panic(err)
	}
	userConfigPath = filepath.Join(d, "volt")
}

func main() {
	// root flags
	rootCmd.PersistentFlags().StringVar(&flagConfigFilePath, "config", "", "Config file to load - default is "+configName+" in current directory or in "+userConfigPath)
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "verbose logging")

	// never print messages
	rootCmd.SilenceErrors = true

	// parse or create a config, setup logging
	rootCmd.PersistentPreRunE = initVolt

	runCmd.Flags().IntVar(&flagParallel, "parallel", 1, "number of engines running at once in manual mode, 0 means no limit")
	historyCmd.Flags().IntVar(&flagLimit, "limit", 20, "number of runs to show, 0 shows all")
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyRmCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)

	// engines are stopped on SIGINT and SIGTERM, the process exits with 128+signal
	registry := process.DefaultRegistry()
	if err := registry.Register(); err != nil {
		slog.Error("registering signal handler failed", "err", err)
		os.Exit(1)
	}

	err := rootCmd.Execute()
	registry.Unregister()
	_ = closeLog()
	if err != nil {
		slog.Error("volt failed", "err", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "volt",
	Short:        "Runs load tests with the volt-test engine",
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "version provide version of volt",
	Run: func(cmd *cobra.Command, args []string) {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			fmt.Println("volt: version info not available")
			return
		}

		if configPath != "" {
			fmt.Printf("config: %s\n", configPath)
		}
		fmt.Printf("volt:   %s\n", info.Main.Version)
		fmt.Printf("go:     %s\n", info.GoVersion)
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				fmt.Printf("commit: %s\n", s.Value)
			case "vcs.time":
				fmt.Printf("date:   %s\n", s.Value)
			case "vcs.modified":
				fmt.Printf("dirty:  %s\n", s.Value)
			}
		}
		if engine, err := process.Locate(viper.GetString("engine.binary")); err == nil {
			fmt.Printf("engine: %s\n", engine)
		}
		fmt.Println()
	},
}

func initVolt(cmd *cobra.Command, _ []string) error {
	if envConfig, ok := os.LookupEnv("VOLTCONFIG"); ok {
		configPath = envConfig
	} else if flagConfigFilePath != "" {
		configPath = flagConfigFilePath
	} else {
		for _, d := range []string{userConfigPath, "."} {
			path := filepath.Join(d, configName)
			if exists(path) {
				configPath = path
				break
			}
		}
	}

	// store default configuration
	if configPath == "" {
		config = model.DefaultConfig(context.Background())
		configPath = filepath.Join(userConfigPath, configName)
		if err := writeConfig(configPath, config); err != nil {
			return err
		}
	} else {
		f, err := os.Open(configPath)
		if err != nil {
			return fmt.Errorf("opening config file: %w", err)
		}
		defer func() {
			_ = f.Close()
		}()
		cfg, err := model.LoadConfig(f)
		if err != nil {
			for _, d := range model.CueErrDetails(err) {
				slog.Error("invalid configuration", d.Attr("detail"))
			}
			return fmt.Errorf("parsing config: %w", err)
		}
		config = *cfg
	}

	// engine section with VOLT_ENGINE_* overrides
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	service.SetDefaults(viper.GetViper(), "engine")

	// --verbose has a precedence over config file
	verbose := flagVerbose || (config.Service.Verbose != nil && *config.Service.Verbose)

	// initialize logging
	dest := model.LogStderr
	if config.Service.Log != nil {
		dest = *config.Service.Log
	}
	w, closer, err := log.Output(dest)
	if err != nil {
		return err
	}
	closeLog = closer
	slog.SetDefault(log.New(verbose, w))

	slog.Debug("volt run", "configPath", configPath)
	slog.Debug("volt run", "config", config)
	return nil
}

func writeConfig(path string, cfg model.Config) error {
	err := os.MkdirAll(filepath.Dir(path), 0o755)
	if err != nil {
		return fmt.Errorf("creating directory %s: %w", filepath.Dir(path), err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()
	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("storing configuration: %w", err)
	}
	return enc.Close()
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
