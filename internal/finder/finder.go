// Package finder runs a similar image search: it hashes every candidate
// file, links files whose hashes are close and reports the linked groups.
package finder

import (
	"context"
	"fmt"
	"image"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"photodup/internal/database"
	"photodup/internal/imageprocessing"
	"photodup/internal/similarity"
)

// FileEntry is one candidate file as found by a directory crawler.
type FileEntry struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// ImageRecord is a successfully hashed file. It is written once by the
// worker that hashed it and never modified afterwards.
type ImageRecord struct {
	Path     string                    `json:"path"`
	Size     int64                     `json:"size"`
	ModTime  time.Time                 `json:"mod_time"`
	Width    int                       `json:"width"`
	Height   int                       `json:"height"`
	Variants []imageprocessing.Variant `json:"-"`
}

func (r *ImageRecord) PixelCount() int64 {
	return int64(r.Width) * int64(r.Height)
}

// Group is a set of mutually reachable similar images, ordered by path.
type Group []*ImageRecord

// RunInfo summarizes a search run.
type RunInfo struct {
	InitialFoundFiles  int  `json:"initial_found_files"`
	NumberOfGroups     int  `json:"number_of_groups"`
	NumberOfDuplicates int  `json:"number_of_duplicates"`
	SkippedFiles       int  `json:"skipped_files"`
	CacheHits          int  `json:"cache_hits"`
	Stopped            bool `json:"stopped"`
}

// Decoder turns a file path into pixels.
type Decoder interface {
	Decode(path string) (image.Image, error)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(path string) (image.Image, error)

func (f DecoderFunc) Decode(path string) (image.Image, error) { return f(path) }

// DecodeError reports a file that could not be turned into pixels. Such files
// are skipped, never fatal.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Search hashes files, groups similar images and returns the run summary with
// the groups. Only invalid params produce an error. RunInfo.InitialFoundFiles
// counts the images actually hashed; undecodable files go to SkippedFiles.
//
// cache may be nil, and is ignored unless params.UseCache is set. stop may be
// nil; once it is set no new file is hashed and no new comparison row is
// started, and the groups found so far are returned with RunInfo.Stopped set.
// ctx scopes cache I/O only.
func Search(
	ctx context.Context,
	params Parameters,
	files []FileEntry,
	decoder Decoder,
	cache database.HashCache,
	stop *atomic.Bool,
	progress ProgressFunc,
) (RunInfo, []Group, error) {
	if err := params.Validate(); err != nil {
		return RunInfo{}, nil, err
	}
	if decoder == nil {
		return RunInfo{}, nil, errors.Wrap(ErrInvalidParameters, "no decoder")
	}
	hasher, err := imageprocessing.NewHasher(params.Algorithm, params.HashSize, params.Filter)
	if err != nil {
		return RunInfo{}, nil, errors.Wrap(ErrInvalidParameters, err.Error())
	}
	if cache == nil || !params.UseCache {
		cache = database.Noop{}
	}
	if stop == nil {
		stop = new(atomic.Bool)
	}

	files = uniqueSorted(files)
	var info RunInfo

	s := &search{
		params:  params,
		hasher:  hasher,
		decoder: decoder,
		cache:   cache,
	}

	start := time.Now()
	records := s.hashAll(ctx, files, stop, progress)
	info.InitialFoundFiles = len(records)
	info.SkippedFiles = int(s.skipped.Load())
	info.CacheHits = int(s.cacheHits.Load())
	log.Printf("Hashed %d files in %s (%d from cache, %d skipped)",
		len(records), time.Since(start).Round(time.Millisecond), info.CacheHits, info.SkippedFiles)

	if stop.Load() {
		info.Stopped = true
		info, groups := Aggregate(info, nil)
		return info, groups, nil
	}

	start = time.Now()
	groups, stopped := s.group(records, stop, progress)
	info.Stopped = stopped
	info, groups = Aggregate(info, groups)
	log.Printf("Found %d groups with %d duplicates in %s",
		info.NumberOfGroups, info.NumberOfDuplicates, time.Since(start).Round(time.Millisecond))
	return info, groups, nil
}

type search struct {
	params  Parameters
	hasher  *imageprocessing.Hasher
	decoder Decoder
	cache   database.HashCache

	skipped   atomic.Int64
	cacheHits atomic.Int64
}

// hashAll hashes every file on a bounded pool of workers. The returned
// records keep the order of files; failed and unstarted files are left out.
func (s *search) hashAll(ctx context.Context, files []FileEntry, stop *atomic.Bool, progress ProgressFunc) []*ImageRecord {
	slots := make([]*ImageRecord, len(files))
	tracker := startProgress(StageHashing, len(files), progress)

	var wg sync.WaitGroup
	threadLimit := make(chan struct{}, s.params.workers())

	for i, file := range files {
		threadLimit <- struct{}{}
		if stop.Load() {
			<-threadLimit
			break
		}
		wg.Add(1)

		go func(i int, file FileEntry) {
			defer wg.Done()
			defer func() { <-threadLimit }()
			defer tracker.add(1)

			record, err := s.hashFile(ctx, file)
			if err != nil {
				s.skipped.Add(1)
				log.Printf("Skipping %s: %v", file.Path, err)
				return
			}
			slots[i] = record
		}(i, file)
	}

	wg.Wait()
	tracker.stop()

	records := make([]*ImageRecord, 0, len(slots))
	for _, r := range slots {
		if r != nil {
			records = append(records, r)
		}
	}
	return records
}

func (s *search) hashFile(ctx context.Context, file FileEntry) (*ImageRecord, error) {
	key := database.Key{
		Path:       file.Path,
		Size:       file.Size,
		ModTime:    file.ModTime,
		Algorithm:  s.params.Algorithm,
		HashSize:   s.params.HashSize,
		Filter:     s.params.Filter,
		Invariance: s.params.Invariance,
	}

	record := &ImageRecord{Path: file.Path, Size: file.Size, ModTime: file.ModTime}

	entry, ok, err := s.cache.Lookup(ctx, key)
	if err != nil {
		log.Printf("Cache lookup failed for %s: %v", file.Path, err)
	} else if ok && s.usable(entry) {
		s.cacheHits.Add(1)
		record.Width, record.Height, record.Variants = entry.Width, entry.Height, entry.Variants
		return record, nil
	}

	img, err := s.decoder.Decode(file.Path)
	if err != nil {
		return nil, &DecodeError{Path: file.Path, Err: err}
	}
	variants, err := s.hasher.Compute(img, s.params.Invariance)
	if err != nil {
		return nil, errors.Wrapf(err, "hash %s", file.Path)
	}
	bounds := img.Bounds()
	record.Width, record.Height, record.Variants = bounds.Dx(), bounds.Dy(), variants

	entry = database.Entry{Width: record.Width, Height: record.Height, Variants: variants}
	if err := s.cache.Store(ctx, key, entry); err != nil {
		log.Printf("Cache store failed for %s: %v", file.Path, err)
	}
	return record, nil
}

// usable rejects cached entries that do not have the shape this run would
// have produced.
func (s *search) usable(entry database.Entry) bool {
	transforms, err := s.params.Invariance.Transforms()
	if err != nil || len(entry.Variants) != len(transforms) {
		return false
	}
	bits := s.params.Algorithm.BitLength(s.params.HashSize)
	for _, v := range entry.Variants {
		if v.Hash.Bits() != bits {
			return false
		}
	}
	return true
}

func (s *search) group(records []*ImageRecord, stop *atomic.Bool, progress ProgressFunc) ([]Group, bool) {
	nodes := make([]similarity.Node, len(records))
	for i, r := range records {
		nodes[i] = similarity.Node{Size: r.Size, Variants: r.Variants}
	}

	tracker := startProgress(StageGrouping, len(nodes), progress)
	result := similarity.Group(nodes, similarity.Options{
		Threshold:       s.params.SimilarityThreshold,
		Algorithm:       s.params.Algorithm,
		ExcludeSameSize: s.params.ExcludeSameSize,
		Workers:         s.params.workers(),
	}, stop, tracker.observe)
	tracker.stop()

	groups := make([]Group, len(result.Groups))
	for i, members := range result.Groups {
		g := make(Group, len(members))
		for j, idx := range members {
			g[j] = records[idx]
		}
		groups[i] = g
	}
	return groups, result.Stopped
}

// uniqueSorted orders files by path and drops repeated paths, keeping the
// first occurrence.
func uniqueSorted(files []FileEntry) []FileEntry {
	out := make([]FileEntry, len(files))
	copy(out, files)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Path < out[j].Path })

	unique := out[:0]
	for _, f := range out {
		if len(unique) > 0 && unique[len(unique)-1].Path == f.Path {
			continue
		}
		unique = append(unique, f)
	}
	return unique
}
