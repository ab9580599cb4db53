package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"godb/internal/catalog"
	"godb/internal/config"
)

var (
	flagInit     bool
	flagBatch    bool
	flagFile     string
	flagTable    string
	flagDatabase string
	flagConfig   string
)

func init() {
	rootCmd.Flags().BoolVar(&flagInit, "init", false, "wipe the data directory and re-create the global catalog, then exit")
	rootCmd.Flags().BoolVarP(&flagBatch, "batch", "b", false, "run statements from stdin, one per line, until exit")
	rootCmd.Flags().StringVar(&flagFile, "file", "", "CSV file to bulk-load into --table, then exit")
	rootCmd.Flags().StringVarP(&flagTable, "table", "t", "", "table name for --file")
	rootCmd.Flags().StringVar(&flagDatabase, "database", "", "select this database as active at startup")
	rootCmd.Flags().StringVar(&flagConfig, "config", "godb.config.json", "path to an optional config file")
}

var rootCmd = &cobra.Command{
	Use:   "godb",
	Short: "godb is a single-node relational database engine",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfig)
		if err != nil {
			return err
		}

		if flagInit {
			return catalog.Wipe(cfg.DataDir, cfg.BufferPoolSize)
		}

		c, err := catalog.OpenWithCacheSize(cfg.DataDir, cfg.BufferPoolSize, cfg.FileCacheSize)
		if err != nil {
			return err
		}
		defer c.Close()

		if flagDatabase != "" {
			if err := c.UseDatabase(flagDatabase); err != nil {
				return err
			}
		}

		switch {
		case flagFile != "":
			if flagTable == "" {
				return fmt.Errorf("--file requires --table/-t")
			}
			return loadFile(c, flagFile, flagTable)
		case flagBatch:
			runBatch(c, cfg, os.Stdin, os.Stdout)
			return nil
		default:
			runREPL(c, cfg, os.Stdin, os.Stdout)
			return nil
		}
	},
}

func main() {
	rootCmd.SilenceUsage = true
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "!ERROR")
		fmt.Fprintln(os.Stderr, err)
		os.Exit(-1)
	}
}
