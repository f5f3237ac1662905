package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Micos01/dir-analysis/internal/config"
	"github.com/Micos01/dir-analysis/internal/logging"
	"github.com/Micos01/dir-analysis/internal/session"
	"github.com/Micos01/dir-analysis/internal/snapshot"
)

var version = "0.1.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "dirana",
	Short: "Index and explore large disk-usage reports",
	Long: `dirana parses a plain-text disk-usage report once into a SQLite index
and answers directory listings, top-file and search queries against it.
It provides a CLI, a TUI browser and an HTTP API.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

var (
	v          = viper.New()
	cfg        *config.Config
	log        = zerolog.Nop()
	configPath string
	dbPath     string
)

func init() {
	rootCmd.Version = version

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Config file (default: dirana.yaml in . or the user config dir)")
	pf.StringVarP(&dbPath, "db", "d", "", "Index file to read (default: latest.db in the data dir)")
	pf.String("data-dir", "./data", "Directory holding index files")
	pf.String("separator", `\`, "Path separator used by the report")
	pf.String("log-level", "info", "Log level: debug|info|warn|error")
	pf.String("log-format", "console", "Log format: console|json")

	bindFlag("data_dir", pf.Lookup("data-dir"))
	bindFlag("separator", pf.Lookup("separator"))
	bindFlag("log.level", pf.Lookup("log-level"))
	bindFlag("log.format", pf.Lookup("log-format"))

	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(topCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(saveListCmd)
}

// bindFlag ties a flag to a config key so an explicit flag wins over the
// environment and the config file.
func bindFlag(key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}

func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.Load(v, configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := logging.New(c.Logging(), os.Stderr)
	if err != nil {
		return err
	}
	cfg = c
	log = logger
	return nil
}

// newManager builds a store manager from the loaded configuration.
func newManager() *snapshot.Manager {
	mgr := snapshot.NewManager(cfg.DataDir, cfg.Retention)
	mgr.SetOptions(cfg.IngestOptions())
	mgr.SetLogger(log)
	return mgr
}

// openSession opens the index named by --db, or the latest one in the data
// dir.
func openSession(ctx context.Context) (*session.Session, error) {
	sess := session.New(newManager(), cfg.SeparatorByte(), log)
	var err error
	if dbPath != "" {
		_, err = sess.Open(ctx, dbPath)
	} else {
		_, err = sess.OpenLatest(ctx)
	}
	if err != nil {
		sess.Close()
		return nil, fmt.Errorf("no index available (run 'dirana parse' first): %w", err)
	}
	return sess, nil
}
