// Package cli implements the photodup command line interface.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/patrickmn/go-cache"
	"github.com/spf13/cobra"

	"photodup/internal/config"
	"photodup/internal/database"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "photodup",
	Short: "Find visually similar images",
	Long: `photodup finds images that look alike even when they were resized,
recompressed, mirrored or rotated, and reports them as groups.

Settings come from built in defaults, an optional YAML file named by
PHOTODUP_CONFIG and PHOTODUP_* environment variables (a .env file in the
working directory is loaded first). Command line flags override all of them.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if !verbose {
			log.SetOutput(io.Discard)
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print log output to stderr")
}

func initConfig() {
	// .env file is optional
	_ = godotenv.Load()
}

// openCache builds the tiered hash cache described by cfg. The returned cache
// is always usable; when the persistent store cannot be opened the error is
// returned along with a memory only cache. The caller must close it.
func openCache(cfg *config.Config) (*database.TieredCache, error) {
	ttl := cfg.Cache.MemoryTTL
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	mem := database.NewMemoryCache(cfg.Cache.MemoryShards, ttl, 10*ttl)

	path, err := cfg.CachePath()
	if err != nil {
		return database.NewTieredCache(mem, nil), err
	}
	store, err := database.OpenSQLiteStore(path)
	if err != nil {
		return database.NewTieredCache(mem, nil), err
	}
	return database.NewTieredCache(mem, store), nil
}

func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}

// mustGetBool gets a bool flag value or panics if the flag doesn't exist.
func mustGetBool(cmd *cobra.Command, name string) bool {
	val, err := cmd.Flags().GetBool(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

// mustGetInt gets an int flag value or panics if the flag doesn't exist.
func mustGetInt(cmd *cobra.Command, name string) int {
	val, err := cmd.Flags().GetInt(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

// mustGetString gets a string flag value or panics if the flag doesn't exist.
func mustGetString(cmd *cobra.Command, name string) string {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}
