package handler

import (
	"context"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	imagehelper "photodup/helper/image"
	"photodup/internal/config"
	"photodup/internal/database"
	"photodup/internal/finder"
	"photodup/internal/imageprocessing"
	"photodup/internal/report"
	"photodup/internal/scan"
)

const maxUploadSize = 10 << 20

type Handler struct {
	Config  *config.Config
	Cache   *database.TieredCache // nil disables caching
	Decoder *imagehelper.Decoder
}

// SearchRequest selects directories to search. Omitted fields fall back to
// the server configuration.
type SearchRequest struct {
	Dirs            []string `json:"dirs" binding:"required,min=1"`
	Algorithm       string   `json:"algorithm,omitempty"`
	HashSize        int      `json:"hash_size,omitempty"`
	Filter          string   `json:"filter,omitempty"`
	Invariance      string   `json:"invariance,omitempty"`
	Threshold       *uint32  `json:"threshold,omitempty"`
	Level           string   `json:"level,omitempty"`
	ExcludeSameSize *bool    `json:"exclude_same_size,omitempty"`
	UseCache        *bool    `json:"use_cache,omitempty"`
	Exclude         []string `json:"exclude,omitempty"`
	MinSize         *int64   `json:"min_size,omitempty"`
	Recursive       *bool    `json:"recursive,omitempty"`
	Thumbnails      bool     `json:"thumbnails,omitempty"`
}

// CompareResponse is the result of comparing two uploaded images.
type CompareResponse struct {
	Distance     int    `json:"distance"`
	Similarity   string `json:"similarity"`
	Threshold    uint32 `json:"threshold"`
	Match        bool   `json:"match"`
	ProcessingMs int64  `json:"processing_time_ms"`
}

// @Summary Search directories for similar images
// @Description Hash every image below the given server side directories and return groups of similar images. Cancelling the request stops the search.
// @Tags Search
// @Accept json
// @Produce json
// @Param request body SearchRequest true "Directories and optional parameters"
// @Success 200 {object} report.Report
// @Failure 400 {object} map[string]string
// @Failure 413 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /search [post]
func (h *Handler) SearchHandler(c *gin.Context) {
	start := time.Now()
	runID := report.NewRunID()

	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	params, err := req.parameters(h.Config.Search)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for _, dir := range req.Dirs {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "not a directory: " + dir})
			return
		}
	}

	scanOpts := scan.Options{
		Exclude:   append(append([]string{}, h.Config.Scan.Exclude...), req.Exclude...),
		MinSize:   h.Config.Scan.MinSize,
		Recursive: h.Config.Scan.Recursive,
	}
	if req.MinSize != nil {
		scanOpts.MinSize = *req.MinSize
	}
	if req.Recursive != nil {
		scanOpts.Recursive = *req.Recursive
	}
	scanner, err := scan.New(scanOpts)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stop := new(atomic.Bool)
	release := context.AfterFunc(c.Request.Context(), func() { stop.Store(true) })
	defer release()

	files, err := scanner.Scan(req.Dirs, stop)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if limit := h.Config.Server.MaxFiles; limit > 0 && len(files) > limit {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": "too many files: " + strconv.Itoa(len(files)) + " > " + strconv.Itoa(limit),
		})
		return
	}

	var hashCache database.HashCache
	if h.Cache != nil {
		hashCache = h.Cache
	}

	log.Printf("Search %s: %d files in %v", runID, len(files), req.Dirs)
	info, groups, err := finder.Search(c.Request.Context(), params, files, h.Decoder, hashCache, stop, nil)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	opts := report.Options{}
	if req.Thumbnails {
		opts.ThumbnailSize = h.Config.Server.ThumbnailSize
		if opts.ThumbnailSize <= 0 {
			opts.ThumbnailSize = 160
		}
		opts.Decoder = h.Decoder
	}
	r := report.Build(runID, params, info, groups, time.Since(start), opts)
	log.Printf("Search %s: %d groups, %d duplicates, stopped=%v", runID, info.NumberOfGroups, info.NumberOfDuplicates, info.Stopped)
	c.JSON(http.StatusOK, r)
}

// parameters overlays the request onto the configured search settings.
func (r SearchRequest) parameters(base config.SearchConfig) (finder.Parameters, error) {
	p := base.Parameters
	if r.Algorithm != "" {
		alg, err := imageprocessing.ParseAlgorithm(r.Algorithm)
		if err != nil {
			return p, errors.Wrap(finder.ErrInvalidParameters, err.Error())
		}
		p.Algorithm = alg
	}
	if r.HashSize != 0 {
		p.HashSize = r.HashSize
	}
	if r.Filter != "" {
		f, err := imageprocessing.ParseFilter(r.Filter)
		if err != nil {
			return p, errors.Wrap(finder.ErrInvalidParameters, err.Error())
		}
		p.Filter = f
	}
	if r.Invariance != "" {
		inv, err := imageprocessing.ParseInvariance(r.Invariance)
		if err != nil {
			return p, errors.Wrap(finder.ErrInvalidParameters, err.Error())
		}
		p.Invariance = inv
	}

	level := base.SimilarityLevel
	if r.Level != "" {
		level = r.Level
	}
	switch {
	case r.Threshold != nil:
		p.SimilarityThreshold = *r.Threshold
	case level != "":
		threshold, ok := imageprocessing.ThresholdForLevel(imageprocessing.SimilarityLevel(level), p.HashSize)
		if !ok {
			return p, errors.Wrapf(finder.ErrInvalidParameters, "unknown similarity level %q for hash size %d", level, p.HashSize)
		}
		p.SimilarityThreshold = threshold
	}

	if r.ExcludeSameSize != nil {
		p.ExcludeSameSize = *r.ExcludeSameSize
	}
	if r.UseCache != nil {
		p.UseCache = *r.UseCache
	}
	return p, p.Validate()
}

// @Summary Compare two images
// @Description Hash two uploaded images and return their distance and similarity level
// @Tags Search
// @Accept multipart/form-data
// @Produce json
// @Param image1 formData file true "First image"
// @Param image2 formData file true "Second image"
// @Param algorithm formData string false "Hash algorithm"
// @Param hash_size formData int false "Hash size"
// @Param invariance formData string false "Geometric tolerance"
// @Param threshold formData int false "Maximum distance still counted as a match"
// @Success 200 {object} CompareResponse
// @Failure 400 {object} map[string]string
// @Router /compare [post]
func (h *Handler) CompareHandler(c *gin.Context) {
	start := time.Now()

	req := SearchRequest{
		Algorithm:  c.PostForm("algorithm"),
		Invariance: c.PostForm("invariance"),
		Filter:     c.PostForm("filter"),
	}
	if v := c.PostForm("hash_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid hash_size"})
			return
		}
		req.HashSize = n
	}
	if v := c.PostForm("threshold"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid threshold"})
			return
		}
		threshold := uint32(n)
		req.Threshold = &threshold
	}
	params, err := req.parameters(h.Config.Search)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hasher, err := imageprocessing.NewHasher(params.Algorithm, params.HashSize, params.Filter)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var records [2]*finder.ImageRecord
	for i, field := range []string{"image1", "image2"} {
		file, header, err := c.Request.FormFile(field)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing " + field})
			return
		}
		if header.Size > maxUploadSize {
			file.Close()
			c.JSON(http.StatusBadRequest, gin.H{"error": field + " exceeds the 10MB limit"})
			return
		}
		img, err := h.Decoder.DecodeReader(file)
		file.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": field + ": invalid image format"})
			return
		}
		variants, err := hasher.Compute(img, params.Invariance)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		records[i] = &finder.ImageRecord{Path: filepath.Base(header.Filename), Variants: variants}
	}

	d := report.Distance(params.Algorithm, records[0], records[1])
	c.JSON(http.StatusOK, CompareResponse{
		Distance:     d,
		Similarity:   string(imageprocessing.DescribeDistance(uint32(d), params.HashSize)),
		Threshold:    params.SimilarityThreshold,
		Match:        d >= 0 && uint32(d) <= params.SimilarityThreshold,
		ProcessingMs: time.Since(start).Milliseconds(),
	})
}

// @Summary Hello endpoint
// @Description Test connection endpoint
// @Tags Admin
// @Produce json
// @Success 200 {object} map[string]string
// @Router /admin/hello [get]
func (h *Handler) Hello(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Hello, world"})
}

// @Summary Hash cache statistics
// @Description Number of persisted hash sets and hit counters of this process
// @Tags Admin
// @Produce json
// @Success 200 {object} database.Stats
// @Failure 500 {object} map[string]string
// @Router /admin/cache/stats [get]
func (h *Handler) CacheStatsHandler(c *gin.Context) {
	if h.Cache == nil {
		c.JSON(http.StatusOK, database.Stats{})
		return
	}
	stats, err := h.Cache.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// @Summary Clear the hash cache
// @Description Remove every cached hash set
// @Tags Admin
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} map[string]string
// @Router /admin/cache/clear [post]
func (h *Handler) CacheClearHandler(c *gin.Context) {
	if h.Cache == nil {
		c.JSON(http.StatusOK, gin.H{"message": "cache disabled", "removed": 0})
		return
	}
	removed, err := h.Cache.Clear(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "cache cleared", "removed": removed})
}
