package cli

import (
	"context"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photodup/internal/config"
	"photodup/internal/database"
	"photodup/internal/finder"
	"photodup/internal/imageprocessing"
)

func newTestSearchCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "search"}
	addSearchFlags(cmd.Flags())
	require.NoError(t, cmd.Flags().Parse(args))
	return cmd
}

func loadConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func TestApplySearchFlags(t *testing.T) {
	cfg := loadConfig(t)
	cmd := newTestSearchCmd(t,
		"--algorithm", "blockhash",
		"--hash-size", "8",
		"--filter", "gaussian",
		"--invariance", "mirror_flip_rotate90",
		"--level", "Very High",
		"--exclude-same-size",
		"--no-cache",
		"--workers", "2",
		"--exclude", "**/tmp",
		"--min-size", "0",
		"--no-recursive",
	)
	require.NoError(t, applySearchFlags(cmd, cfg))

	s := cfg.Search
	assert.Equal(t, imageprocessing.Blockhash, s.Algorithm)
	assert.Equal(t, 8, s.HashSize)
	assert.Equal(t, imageprocessing.Gaussian, s.Filter)
	assert.Equal(t, imageprocessing.MirrorFlipRotate90, s.Invariance)
	assert.Equal(t, uint32(1), s.SimilarityThreshold)
	assert.True(t, s.ExcludeSameSize)
	assert.False(t, s.UseCache)
	assert.Equal(t, 2, s.Workers)
	assert.Contains(t, cfg.Scan.Exclude, "**/tmp")
	assert.Contains(t, cfg.Scan.Exclude, "**/.git", "flag patterns add to the configured ones")
	assert.Zero(t, cfg.Scan.MinSize)
	assert.False(t, cfg.Scan.Recursive)
}

func TestApplySearchFlagsHashSizeRescalesLevel(t *testing.T) {
	cfg := loadConfig(t)
	require.NoError(t, applySearchFlags(newTestSearchCmd(t, "--hash-size", "64"), cfg))
	assert.Equal(t, uint32(20), cfg.Search.SimilarityThreshold, "High at hash size 64")

	cfg = loadConfig(t)
	require.NoError(t, applySearchFlags(newTestSearchCmd(t, "--hash-size", "64", "--threshold", "3"), cfg))
	assert.Equal(t, uint32(3), cfg.Search.SimilarityThreshold)
}

func TestApplySearchFlagsErrors(t *testing.T) {
	tests := [][]string{
		{"--algorithm", "md5"},
		{"--filter", "bicubic"},
		{"--invariance", "sideways"},
		{"--level", "Enormous"},
		{"--threshold", "-2"},
		{"--hash-size", "10", "--threshold", "1"},
		{"--workers", "-1"},
	}
	for _, args := range tests {
		err := applySearchFlags(newTestSearchCmd(t, args...), loadConfig(t))
		assert.Error(t, err, "%v", args)
	}

	err := applySearchFlags(newTestSearchCmd(t, "--workers", "-1"), loadConfig(t))
	assert.True(t, errors.Is(err, finder.ErrInvalidParameters))
}

func TestApplySearchFlagsLargeThreshold(t *testing.T) {
	cfg := loadConfig(t)
	require.NoError(t, applySearchFlags(newTestSearchCmd(t, "--hash-size", "8", "--threshold", "222240"), cfg))
	assert.Equal(t, uint32(222240), cfg.Search.SimilarityThreshold)
}

func TestOpenCacheFallsBackToMemory(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	cfg := loadConfig(t)
	cfg.Cache.Path = filepath.Join(blocker, "hashes.db")
	tiered, err := openCache(cfg)
	require.Error(t, err)
	require.NotNil(t, tiered)
	defer tiered.Close()

	ctx := context.Background()
	key := database.Key{Path: "a.png", Size: 1}
	require.NoError(t, tiered.Store(ctx, key, database.Entry{Width: 4, Height: 3}))
	entry, ok, err := tiered.Lookup(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 4, entry.Width)
}

func TestSearchRunsWithoutPersistentCache(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))
	t.Setenv("PHOTODUP_CACHE_PATH", filepath.Join(blocker, "hashes.db"))

	dir := t.TempDir()
	img := imaging.New(40, 30, color.NRGBA{R: 90, G: 140, B: 200, A: 255})
	require.NoError(t, imaging.Save(img, filepath.Join(dir, "a.png")))

	rootCmd.SetArgs([]string{"search", "--json", "--min-size", "0", dir})
	assert.NoError(t, rootCmd.Execute())
}

func TestCommandsRun(t *testing.T) {
	t.Setenv("PHOTODUP_CACHE_PATH", filepath.Join(t.TempDir(), "hashes.db"))
	dir := t.TempDir()
	img := imaging.New(40, 30, color.NRGBA{R: 90, G: 140, B: 200, A: 255})
	require.NoError(t, imaging.Save(img, filepath.Join(dir, "a.png")))
	require.NoError(t, imaging.Save(img, filepath.Join(dir, "b.png")))

	runs := [][]string{
		{"search", "--json", "--min-size", "0", dir},
		{"search", "--min-size", "0", "--level", "Original", dir},
		{"cache", "stats", "--json"},
		{"cache", "prune", "--older-than", "1h"},
		{"cache", "clear"},
		{"version"},
	}
	for _, args := range runs {
		rootCmd.SetArgs(args)
		assert.NoError(t, rootCmd.Execute(), "%v", args)
	}
}
