// Command qtrans is a demo CLI for the query translator: it reads a JSON
// query from a file or stdin, compiles it to SQL against a SQLite-backed
// demo Delegate, and prints the result. Flags and config loading follow
// the teacher's own cmd layout, using cobra for the command tree and
// viper/toml for qtrans.toml configuration.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	qt "github.com/couchbase/couchbase-lite-core-sub003"
	"github.com/couchbase/couchbase-lite-core-sub003/internal/sqlitedelegate"
)

type config struct {
	DBPath string `toml:"db_path" mapstructure:"db_path"`
	Vector bool   `toml:"vector" mapstructure:"vector"`
}

var (
	cfgFile string
	explain bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "qtrans [query.json]",
		Short: "Compile a JSON query into SQLite SQL",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runTranslate,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "qtrans.toml", "path to config file")
	root.Flags().BoolVar(&explain, "explain", false, "log a correlation id and the resolved table set for this run")
	return root
}

func loadConfig() (config, error) {
	v := viper.New()
	v.SetConfigFile(cfgFile)
	v.SetConfigType("toml")
	v.SetDefault("db_path", ":memory:")
	v.SetDefault("vector", false)

	cfg := config{DBPath: v.GetString("db_path"), Vector: v.GetBool("vector")}
	if _, err := os.Stat(cfgFile); err == nil {
		if _, err := toml.DecodeFile(cfgFile, &cfg); err != nil {
			return cfg, fmt.Errorf("decoding %s: %w", cfgFile, err)
		}
	}
	return cfg, nil
}

func runTranslate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var data []byte
	if len(args) == 1 {
		data, err = os.ReadFile(args[0])
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return fmt.Errorf("reading query: %w", err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	opts := []sqlitedelegate.Option{sqlitedelegate.WithPredictiveQueries()}
	if cfg.Vector {
		opts = append(opts, sqlitedelegate.WithVectorSearch())
	}
	delegate, err := sqlitedelegate.Open(cfg.DBPath, opts...)
	if err != nil {
		return fmt.Errorf("opening delegate database %s: %w", cfg.DBPath, err)
	}
	defer delegate.Close()

	translator := qt.New(delegate, qt.WithLogger(logger))

	if explain {
		runID := uuid.NewString()
		logger.Info("translating query", zap.String("run_id", runID))
	}

	if err := translator.ParseJSON(data); err != nil {
		if qt.IsInvalidQuery(err) {
			return fmt.Errorf("invalid query: %w", err)
		}
		return err
	}
	defer translator.Release()

	fmt.Println(translator.SQL())
	if explain {
		fmt.Fprintf(os.Stderr, "parameters: %v\n", translator.Parameters())
		fmt.Fprintf(os.Stderr, "collection tables: %v\n", translator.CollectionTablesUsed())
		fmt.Fprintf(os.Stderr, "fts tables: %v\n", translator.FTSTablesUsed())
		fmt.Fprintf(os.Stderr, "column titles: %v\n", translator.ColumnTitles())
		fmt.Fprintf(os.Stderr, "is_aggregate: %v uses_expiration: %v\n", translator.IsAggregateQuery(), translator.UsesExpiration())
	}
	return nil
}
