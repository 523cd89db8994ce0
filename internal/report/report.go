// Package report turns search results into the JSON and text shapes shown
// to users.
package report

import (
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"

	"photodup/internal/finder"
	"photodup/internal/imageprocessing"
)

type Member struct {
	Path       string    `json:"path"`
	Size       int64     `json:"size"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	ModTime    time.Time `json:"mod_time"`
	Distance   int       `json:"distance"`
	Similarity string    `json:"similarity"`
	Thumbnail  string    `json:"thumbnail,omitempty"`
}

type Group struct {
	Members []Member `json:"members"`
}

// Report is the outcome of one search run.
type Report struct {
	RunID      string            `json:"run_id"`
	Info       finder.RunInfo    `json:"info"`
	Parameters finder.Parameters `json:"parameters"`
	Groups     []Group           `json:"groups"`
	DurationMs int64             `json:"duration_ms"`
}

// Options tune Build.
type Options struct {
	// ThumbnailSize > 0 embeds base64 JPEG thumbnails of that width.
	ThumbnailSize int
	Decoder       finder.Decoder
}

// NewRunID returns a fresh identifier for a search run.
func NewRunID() string {
	return uuid.NewString()
}

// Build describes every group member by its distance to the group's first
// member, the reference image.
func Build(runID string, params finder.Parameters, info finder.RunInfo, groups []finder.Group, elapsed time.Duration, opts Options) Report {
	r := Report{
		RunID:      runID,
		Info:       info,
		Parameters: params,
		Groups:     make([]Group, 0, len(groups)),
		DurationMs: elapsed.Milliseconds(),
	}
	for _, g := range groups {
		ref := g[0]
		out := Group{Members: make([]Member, 0, len(g))}
		for _, rec := range g {
			d := Distance(params.Algorithm, ref, rec)
			m := Member{
				Path:       rec.Path,
				Size:       rec.Size,
				Width:      rec.Width,
				Height:     rec.Height,
				ModTime:    rec.ModTime,
				Distance:   d,
				Similarity: string(imageprocessing.DescribeDistance(uint32(d), params.HashSize)),
			}
			if opts.ThumbnailSize > 0 && opts.Decoder != nil {
				m.Thumbnail = thumbnail(opts.Decoder, rec.Path, opts.ThumbnailSize)
			}
			out.Members = append(out.Members, m)
		}
		r.Groups = append(r.Groups, out)
	}
	return r
}

// Distance is the smallest distance between any variant of a and any
// variant of b, or -1 if none are comparable. Members of one group can be
// further apart than the threshold since groups are transitive.
func Distance(alg imageprocessing.Algorithm, a, b *finder.ImageRecord) int {
	best := -1
	for _, va := range a.Variants {
		for _, vb := range b.Variants {
			d, err := alg.Distance(va.Hash, vb.Hash)
			if err != nil {
				continue
			}
			if best < 0 || d < best {
				best = d
			}
		}
	}
	return best
}

func thumbnail(dec finder.Decoder, path string, size int) string {
	img, err := dec.Decode(path)
	if err != nil {
		log.Printf("Could not create thumbnail for %s: %v", path, err)
		return ""
	}
	return imageprocessing.GenerateThumbnail(img, size)
}

// WriteText prints the report in a human readable form.
func WriteText(w io.Writer, r Report) error {
	for i, g := range r.Groups {
		if _, err := fmt.Fprintf(w, "Group %d (%d images)\n", i+1, len(g.Members)); err != nil {
			return err
		}
		for _, m := range g.Members {
			label := m.Similarity
			if label == "" {
				label = "-"
			}
			if _, err := fmt.Fprintf(w, "  %-12s %4dx%-4d %10d  %s\n", label, m.Width, m.Height, m.Size, m.Path); err != nil {
				return err
			}
		}
	}
	info := r.Info
	_, err := fmt.Fprintf(w, "\n%d files checked, %d groups, %d duplicates, %d skipped, %d from cache\n",
		info.InitialFoundFiles, info.NumberOfGroups, info.NumberOfDuplicates, info.SkippedFiles, info.CacheHits)
	if err == nil && info.Stopped {
		_, err = fmt.Fprintln(w, "Search was stopped before it finished; results are partial.")
	}
	return err
}
