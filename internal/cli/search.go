package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"photodup/internal/config"
	"photodup/internal/database"
	"photodup/internal/finder"
	"photodup/internal/imageprocessing"
	"photodup/internal/report"
	"photodup/internal/scan"

	imagehelper "photodup/helper/image"
)

var searchCmd = &cobra.Command{
	Use:   "search [dirs...]",
	Short: "Search directories for similar images",
	Long: `Search hashes every image below the given directories and prints the
groups of images that look alike.

Examples:
  # Default settings, current directory
  photodup search

  # Stricter match, mirrored and rotated copies count as duplicates
  photodup search --level "Very High" --invariance mirror_flip_rotate90 ~/Pictures

  # JSON output for scripting
  photodup search --json ~/Pictures`,
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	addSearchFlags(searchCmd.Flags())
}

func addSearchFlags(f *pflag.FlagSet) {
	f.String("algorithm", "", "Hash algorithm: gradient, double_gradient, vert_gradient, blockhash, mean")
	f.Int("hash-size", 0, "Hash size: 8, 16, 32 or 64")
	f.String("filter", "", "Resize filter: lanczos3, gaussian, nearest")
	f.String("invariance", "", "Geometric tolerance: off, mirror_flip, mirror_flip_rotate90")
	f.Int("threshold", 0, "Maximum hash distance between similar images")
	f.String("level", "", "Similarity level instead of a threshold (Original, Very High, High, Medium, Small, Very Small, Minimal)")
	f.Bool("exclude-same-size", false, "Never pair files with identical byte size")
	f.Bool("no-cache", false, "Do not read or write the hash cache")
	f.Int("workers", 0, "Number of parallel workers (0 uses all CPUs)")
	f.StringSlice("exclude", nil, "Glob patterns of paths to skip")
	f.Int("min-size", 0, "Skip files smaller than this many bytes")
	f.Bool("no-recursive", false, "Only scan the given directories, not their subdirectories")
	f.Bool("auto-orient", false, "Apply the EXIF orientation before hashing")
	f.Bool("json", false, "Output as JSON instead of text")
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := applySearchFlags(cmd, cfg); err != nil {
		return err
	}
	jsonOutput := mustGetBool(cmd, "json")

	roots := args
	if len(roots) == 0 {
		roots = []string{"."}
	}

	stop := new(atomic.Bool)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	go func() {
		<-ctx.Done()
		stop.Store(true)
	}()

	scanner, err := scan.New(scan.Options{
		Exclude:   cfg.Scan.Exclude,
		MinSize:   cfg.Scan.MinSize,
		Recursive: cfg.Scan.Recursive,
	})
	if err != nil {
		return err
	}
	files, err := scanner.Scan(roots, stop)
	if err != nil {
		return err
	}
	if !jsonOutput {
		fmt.Printf("Found %d candidate images\n", len(files))
	}

	var hashCache database.HashCache = database.Noop{}
	if cfg.Search.UseCache {
		tiered, err := openCache(cfg)
		if err != nil {
			log.Printf("Warning: Could not open hash cache: %v", err)
			log.Printf("Continuing with an in-memory cache only")
		}
		defer tiered.Close()
		hashCache = tiered
	}

	var bars *stageBars
	var progress finder.ProgressFunc
	if !jsonOutput {
		bars = &stageBars{}
		progress = bars.update
	}

	decoder := imagehelper.NewDecoder(cfg.Scan.AutoOrient)
	start := time.Now()
	info, groups, err := finder.Search(context.Background(), cfg.Search.Parameters, files, decoder, hashCache, stop, progress)
	if bars != nil {
		bars.finish()
	}
	if err != nil {
		return err
	}

	r := report.Build(report.NewRunID(), cfg.Search.Parameters, info, groups, time.Since(start), report.Options{})
	if jsonOutput {
		return outputJSON(r)
	}
	return report.WriteText(os.Stdout, r)
}

func applySearchFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	s := &cfg.Search

	if flags.Changed("algorithm") {
		alg, err := imageprocessing.ParseAlgorithm(mustGetString(cmd, "algorithm"))
		if err != nil {
			return err
		}
		s.Algorithm = alg
	}
	if flags.Changed("hash-size") {
		s.HashSize = mustGetInt(cmd, "hash-size")
	}
	if flags.Changed("filter") {
		filter, err := imageprocessing.ParseFilter(mustGetString(cmd, "filter"))
		if err != nil {
			return err
		}
		s.Filter = filter
	}
	if flags.Changed("invariance") {
		inv, err := imageprocessing.ParseInvariance(mustGetString(cmd, "invariance"))
		if err != nil {
			return err
		}
		s.Invariance = inv
	}
	if flags.Changed("threshold") {
		threshold := mustGetInt(cmd, "threshold")
		if threshold < 0 {
			return errors.Wrapf(finder.ErrInvalidParameters, "negative threshold %d", threshold)
		}
		s.SimilarityThreshold = uint32(threshold)
	} else if flags.Changed("level") || flags.Changed("hash-size") {
		level := s.SimilarityLevel
		if flags.Changed("level") {
			level = mustGetString(cmd, "level")
		}
		if level != "" {
			threshold, ok := imageprocessing.ThresholdForLevel(imageprocessing.SimilarityLevel(level), s.HashSize)
			if !ok {
				return errors.Wrapf(finder.ErrInvalidParameters, "unknown similarity level %q for hash size %d", level, s.HashSize)
			}
			s.SimilarityThreshold = threshold
		}
	}
	if flags.Changed("exclude-same-size") {
		s.ExcludeSameSize = mustGetBool(cmd, "exclude-same-size")
	}
	if mustGetBool(cmd, "no-cache") {
		s.UseCache = false
	}
	if flags.Changed("workers") {
		s.Workers = mustGetInt(cmd, "workers")
	}

	if flags.Changed("exclude") {
		patterns, err := flags.GetStringSlice("exclude")
		if err != nil {
			return err
		}
		cfg.Scan.Exclude = append(cfg.Scan.Exclude, patterns...)
	}
	if flags.Changed("min-size") {
		cfg.Scan.MinSize = int64(mustGetInt(cmd, "min-size"))
	}
	if mustGetBool(cmd, "no-recursive") {
		cfg.Scan.Recursive = false
	}
	if flags.Changed("auto-orient") {
		cfg.Scan.AutoOrient = mustGetBool(cmd, "auto-orient")
	}
	return s.Validate()
}

// stageBars shows one progress bar per search stage.
type stageBars struct {
	stage finder.Stage
	bar   *progressbar.ProgressBar
}

func (b *stageBars) update(p finder.Progress) {
	if b.bar == nil || b.stage != p.Stage {
		b.finish()
		b.stage = p.Stage
		b.bar = progressbar.NewOptions(p.Total,
			progressbar.OptionSetDescription(stageDescription(p.Stage)),
			progressbar.OptionShowCount(),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
	}
	b.bar.ChangeMax(p.Total)
	_ = b.bar.Set(p.Checked)
}

func (b *stageBars) finish() {
	if b.bar == nil {
		return
	}
	_ = b.bar.Finish()
	fmt.Println()
	b.bar = nil
}

func stageDescription(s finder.Stage) string {
	switch s {
	case finder.StageHashing:
		return "Hashing images"
	case finder.StageGrouping:
		return "Comparing hashes"
	default:
		return s.String()
	}
}
