package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"photodup/internal/config"
	"photodup/internal/database"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the hash cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the number of cached hash sets",
	RunE:  runCacheStats,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached hash set",
	RunE:  runCacheClear,
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove stale cache entries",
	Long: `Prune removes entries of files that no longer exist and, with
--older-than, entries that were not refreshed within that duration.

Examples:
  photodup cache prune
  photodup cache prune --older-than 720h`,
	RunE: runCachePrune,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd, cachePruneCmd)

	cacheStatsCmd.Flags().Bool("json", false, "Output as JSON")
	cacheClearCmd.Flags().Bool("json", false, "Output as JSON")
	cachePruneCmd.Flags().Bool("json", false, "Output as JSON")
	cachePruneCmd.Flags().Duration("older-than", 0, "Also remove entries not refreshed within this duration")
}

// CacheResult is the JSON output of the cache maintenance commands.
type CacheResult struct {
	Path    string          `json:"path"`
	Stats   *database.Stats `json:"stats,omitempty"`
	Removed int64           `json:"removed"`
}

func openStore() (*database.SQLiteStore, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	path, err := cfg.CachePath()
	if err != nil {
		return nil, err
	}
	return database.OpenSQLiteStore(path)
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := store.Stats(context.Background())
	if err != nil {
		return err
	}
	if mustGetBool(cmd, "json") {
		return outputJSON(CacheResult{Path: store.Path(), Stats: &stats})
	}
	fmt.Printf("Cache: %s\nEntries: %d\n", store.Path(), stats.Entries)
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	removed, err := store.Clear(context.Background())
	if err != nil {
		return err
	}
	if mustGetBool(cmd, "json") {
		return outputJSON(CacheResult{Path: store.Path(), Removed: removed})
	}
	fmt.Printf("Removed %d entries from %s\n", removed, store.Path())
	return nil
}

func runCachePrune(cmd *cobra.Command, args []string) error {
	olderThan, err := cmd.Flags().GetDuration("older-than")
	if err != nil {
		return err
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	removed, err := store.PruneMissing(ctx)
	if err != nil {
		return err
	}
	if olderThan > 0 {
		n, err := store.Prune(ctx, time.Now().Add(-olderThan))
		if err != nil {
			return err
		}
		removed += n
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(CacheResult{Path: store.Path(), Removed: removed})
	}
	fmt.Printf("Removed %d stale entries from %s\n", removed, store.Path())
	return nil
}
