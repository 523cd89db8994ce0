package finder

import (
	"runtime"

	"github.com/pkg/errors"

	"photodup/internal/imageprocessing"
)

// ErrInvalidParameters is returned by Search before any work starts when the
// run configuration cannot be used.
var ErrInvalidParameters = errors.New("invalid search parameters")

// Parameters configure one search run. UseCache and Workers never change the
// result, only how fast it is produced.
type Parameters struct {
	SimilarityThreshold uint32                     `json:"similarity_threshold" yaml:"similarity_threshold"`
	HashSize            int                        `json:"hash_size" yaml:"hash_size"`
	Algorithm           imageprocessing.Algorithm  `json:"algorithm" yaml:"algorithm"`
	Filter              imageprocessing.Filter     `json:"filter" yaml:"filter"`
	ExcludeSameSize     bool                       `json:"exclude_same_size" yaml:"exclude_same_size"`
	Invariance          imageprocessing.Invariance `json:"invariance" yaml:"invariance"`
	UseCache            bool                       `json:"use_cache" yaml:"use_cache"`
	Workers             int                        `json:"workers,omitempty" yaml:"workers"`
}

// DefaultParameters returns 16 bit gradient hashing with mirror detection
// at the "High" similarity level.
func DefaultParameters() Parameters {
	threshold, _ := imageprocessing.ThresholdForLevel(imageprocessing.LevelHigh, 16)
	return Parameters{
		SimilarityThreshold: threshold,
		HashSize:            16,
		Algorithm:           imageprocessing.Gradient,
		Filter:              imageprocessing.Lanczos3,
		Invariance:          imageprocessing.MirrorFlip,
		UseCache:            true,
	}
}

// Validate checks every field and returns an error wrapping
// ErrInvalidParameters on the first problem found.
func (p Parameters) Validate() error {
	if _, err := imageprocessing.NewHasher(p.Algorithm, p.HashSize, p.Filter); err != nil {
		return errors.Wrap(ErrInvalidParameters, err.Error())
	}
	if _, err := p.Invariance.MarshalText(); err != nil {
		return errors.Wrap(ErrInvalidParameters, err.Error())
	}
	if p.Workers < 0 {
		return errors.Wrapf(ErrInvalidParameters, "negative worker count %d", p.Workers)
	}
	return nil
}

func (p Parameters) workers() int {
	if p.Workers > 0 {
		return p.Workers
	}
	return runtime.GOMAXPROCS(0)
}
