package report

import (
	"bytes"
	"encoding/json"
	"image"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photodup/internal/finder"
	"photodup/internal/imageprocessing"
)

func record(t *testing.T, path string, words ...uint64) *finder.ImageRecord {
	t.Helper()
	r := &finder.ImageRecord{Path: path, Size: 10, Width: 4, Height: 3}
	for _, w := range words {
		h, err := imageprocessing.NewHashValue([]uint64{w}, 64)
		require.NoError(t, err)
		r.Variants = append(r.Variants, imageprocessing.Variant{Hash: h})
	}
	return r
}

func TestDistanceUsesClosestVariants(t *testing.T) {
	a := record(t, "a", 0x0, 0xFF)
	b := record(t, "b", 0xF0, 0xFFFF)
	assert.Equal(t, 4, Distance(imageprocessing.Gradient, a, b))

	short := &finder.ImageRecord{Path: "s"}
	h, err := imageprocessing.NewHashValue([]uint64{0}, 32)
	require.NoError(t, err)
	short.Variants = []imageprocessing.Variant{{Hash: h}}
	assert.Equal(t, -1, Distance(imageprocessing.Gradient, a, short))
}

func TestBuild(t *testing.T) {
	params := finder.Parameters{HashSize: 8, Algorithm: imageprocessing.Gradient}
	groups := []finder.Group{{record(t, "a", 0), record(t, "b", 0b111)}}
	info := finder.RunInfo{InitialFoundFiles: 3, NumberOfGroups: 1, NumberOfDuplicates: 1}

	decodes := 0
	dec := finder.DecoderFunc(func(string) (image.Image, error) {
		decodes++
		return image.NewNRGBA(image.Rect(0, 0, 8, 8)), nil
	})

	id := NewRunID()
	_, err := uuid.Parse(id)
	require.NoError(t, err)

	r := Build(id, params, info, groups, 1500*time.Millisecond, Options{ThumbnailSize: 4, Decoder: dec})
	assert.Equal(t, id, r.RunID)
	assert.Equal(t, int64(1500), r.DurationMs)
	require.Len(t, r.Groups, 1)
	members := r.Groups[0].Members
	require.Len(t, members, 2)
	assert.Equal(t, 0, members[0].Distance)
	assert.Equal(t, string(imageprocessing.LevelOriginal), members[0].Similarity)
	assert.Equal(t, 3, members[1].Distance)
	assert.Equal(t, string(imageprocessing.LevelMedium), members[1].Similarity)
	assert.NotEmpty(t, members[1].Thumbnail)
	assert.Equal(t, 2, decodes)

	raw, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"algorithm":"gradient"`)
	assert.Contains(t, string(raw), `"number_of_duplicates":1`)
}

func TestWriteText(t *testing.T) {
	params := finder.Parameters{HashSize: 8, Algorithm: imageprocessing.Gradient}
	groups := []finder.Group{{record(t, "/p/a.png", 0), record(t, "/p/b.png", 1)}}
	r := Build("id", params, finder.RunInfo{InitialFoundFiles: 2, NumberOfGroups: 1, NumberOfDuplicates: 1, Stopped: true},
		groups, 0, Options{})

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, r))
	out := buf.String()
	assert.Contains(t, out, "Group 1 (2 images)")
	assert.Contains(t, out, "/p/b.png")
	assert.Contains(t, out, "Very High")
	assert.Contains(t, out, "2 files checked, 1 groups, 1 duplicates")
	assert.Contains(t, out, "partial")
}
