package imageprocessing

import (
	"fmt"
	"image"
	"strings"

	"github.com/corona10/goimagehash"
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// Error definitions
var (
	ErrHashLengthMismatch = errors.New("hash lengths do not match")
	ErrUnknownAlgorithm   = errors.New("unknown hash algorithm")
	ErrUnknownFilter      = errors.New("unknown resize filter")
	ErrUnknownInvariance  = errors.New("unknown geometric invariance")
	ErrInvalidHashSize    = errors.New("invalid hash size")
)

// SupportedHashSizes lists the hash resolutions a Hasher accepts.
var SupportedHashSizes = []int{8, 16, 32, 64}

// Algorithm selects the bit extraction rule applied to the resized
// luminance image.
type Algorithm int

const (
	Gradient Algorithm = iota
	DoubleGradient
	VertGradient
	Blockhash
	Mean
)

var algorithmNames = map[Algorithm]string{
	Gradient:       "gradient",
	DoubleGradient: "double_gradient",
	VertGradient:   "vert_gradient",
	Blockhash:      "blockhash",
	Mean:           "mean",
}

func (a Algorithm) String() string {
	if name, ok := algorithmNames[a]; ok {
		return name
	}
	return fmt.Sprintf("algorithm(%d)", int(a))
}

// ParseAlgorithm accepts the canonical names plus the spellings without
// separators ("doublegradient", "vertgradient").
func ParseAlgorithm(s string) (Algorithm, error) {
	key := normalizeName(s)
	for alg, name := range algorithmNames {
		if key == normalizeName(name) {
			return alg, nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownAlgorithm, "%q", s)
}

func (a Algorithm) MarshalText() ([]byte, error) {
	if _, ok := algorithmNames[a]; !ok {
		return nil, errors.Wrapf(ErrUnknownAlgorithm, "%d", int(a))
	}
	return []byte(a.String()), nil
}

func (a *Algorithm) UnmarshalText(text []byte) error {
	parsed, err := ParseAlgorithm(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// BitLength is the number of hash bits the algorithm produces for the
// given hash size. It is also the largest possible distance, so threshold
// values are only comparable between runs using the same algorithm and size.
func (a Algorithm) BitLength(hashSize int) int {
	if a == DoubleGradient {
		half := hashSize / 2
		return 2 * half * half
	}
	return hashSize * hashSize
}

// Distance compares two hashes produced by this algorithm. Every algorithm
// here yields a plain bit vector, so the native distance is the number of
// differing bits; hashes of different length never match.
func (a Algorithm) Distance(h1, h2 HashValue) (int, error) {
	switch a {
	case Gradient, DoubleGradient, VertGradient, Blockhash, Mean:
		return h1.Distance(h2)
	default:
		return 0, errors.Wrapf(ErrUnknownAlgorithm, "%d", int(a))
	}
}

// Filter is the resampling filter used to shrink images to the working
// resolution.
type Filter int

const (
	Lanczos3 Filter = iota
	Gaussian
	Nearest
)

var filterNames = map[Filter]string{
	Lanczos3: "lanczos3",
	Gaussian: "gaussian",
	Nearest:  "nearest",
}

func (f Filter) String() string {
	if name, ok := filterNames[f]; ok {
		return name
	}
	return fmt.Sprintf("filter(%d)", int(f))
}

// ParseFilter parses a filter name; "lanczos" is accepted for Lanczos3.
func ParseFilter(s string) (Filter, error) {
	key := normalizeName(s)
	if key == "lanczos" {
		return Lanczos3, nil
	}
	for f, name := range filterNames {
		if key == name {
			return f, nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownFilter, "%q", s)
}

func (f Filter) MarshalText() ([]byte, error) {
	if _, ok := filterNames[f]; !ok {
		return nil, errors.Wrapf(ErrUnknownFilter, "%d", int(f))
	}
	return []byte(f.String()), nil
}

func (f *Filter) UnmarshalText(text []byte) error {
	parsed, err := ParseFilter(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

func (f Filter) resample() (imaging.ResampleFilter, error) {
	switch f {
	case Lanczos3:
		return imaging.Lanczos, nil
	case Gaussian:
		return imaging.Gaussian, nil
	case Nearest:
		return imaging.NearestNeighbor, nil
	default:
		return imaging.ResampleFilter{}, errors.Wrapf(ErrUnknownFilter, "%d", int(f))
	}
}

func normalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(s)
}

// HashValue is a fixed length perceptual hash.
type HashValue struct {
	ext *goimagehash.ExtImageHash
}

// NewHashValue rebuilds a hash from its packed words, as returned by Words.
func NewHashValue(words []uint64, bitLen int) (HashValue, error) {
	if bitLen <= 0 || len(words) != (bitLen+63)/64 {
		return HashValue{}, errors.Wrapf(ErrHashLengthMismatch, "%d words for %d bits", len(words), bitLen)
	}
	packed := make([]uint64, len(words))
	copy(packed, words)
	return HashValue{ext: goimagehash.NewExtImageHash(packed, goimagehash.Unknown, bitLen)}, nil
}

func hashFromBits(set []bool) HashValue {
	words := make([]uint64, (len(set)+63)/64)
	for i, on := range set {
		if on {
			words[i/64] |= 1 << (63 - uint(i%64))
		}
	}
	return HashValue{ext: goimagehash.NewExtImageHash(words, goimagehash.Unknown, len(set))}
}

// Bits returns the hash length in bits.
func (h HashValue) Bits() int {
	if h.ext == nil {
		return 0
	}
	return h.ext.Bits()
}

// Words returns a copy of the packed hash bits, most significant bit first.
func (h HashValue) Words() []uint64 {
	if h.ext == nil {
		return nil
	}
	src := h.ext.GetHash()
	out := make([]uint64, len(src))
	copy(out, src)
	return out
}

// Distance is the number of differing bits.
func (h HashValue) Distance(other HashValue) (int, error) {
	if h.ext == nil || other.ext == nil {
		return 0, ErrHashLengthMismatch
	}
	d, err := h.ext.Distance(other.ext)
	if err != nil {
		return 0, errors.Wrap(ErrHashLengthMismatch, err.Error())
	}
	return d, nil
}

// Equal reports whether both hashes have the same length and bits. An empty
// hash equals nothing, matching Distance.
func (h HashValue) Equal(other HashValue) bool {
	if h.ext == nil || other.ext == nil || h.Bits() != other.Bits() {
		return false
	}
	a, b := h.ext.GetHash(), other.ext.GetHash()
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// String renders the hash as lowercase hex, one 16 digit group per word.
func (h HashValue) String() string {
	if h.ext == nil {
		return ""
	}
	var sb strings.Builder
	for _, w := range h.ext.GetHash() {
		fmt.Fprintf(&sb, "%016x", w)
	}
	return sb.String()
}

// Hasher computes perceptual hashes with one fixed configuration.
type Hasher struct {
	algorithm Algorithm
	hashSize  int
	filter    Filter
	resample  imaging.ResampleFilter
}

// NewHasher validates the configuration up front so that Compute cannot
// fail on a bad algorithm or filter.
func NewHasher(algorithm Algorithm, hashSize int, filter Filter) (*Hasher, error) {
	if _, ok := algorithmNames[algorithm]; !ok {
		return nil, errors.Wrapf(ErrUnknownAlgorithm, "%d", int(algorithm))
	}
	if !validHashSize(hashSize) {
		return nil, errors.Wrapf(ErrInvalidHashSize, "%d (supported: %v)", hashSize, SupportedHashSizes)
	}
	resample, err := filter.resample()
	if err != nil {
		return nil, err
	}
	return &Hasher{
		algorithm: algorithm,
		hashSize:  hashSize,
		filter:    filter,
		resample:  resample,
	}, nil
}

func validHashSize(size int) bool {
	for _, s := range SupportedHashSizes {
		if s == size {
			return true
		}
	}
	return false
}

func (h *Hasher) Algorithm() Algorithm { return h.algorithm }
func (h *Hasher) HashSize() int        { return h.hashSize }
func (h *Hasher) Filter() Filter       { return h.filter }

// Hash computes the hash of img as is, without geometric variants.
func (h *Hasher) Hash(img image.Image) HashValue {
	w, ht := h.workingSize()
	resized := imaging.Resize(img, w, ht, h.resample)
	luma := luminance(imaging.Grayscale(resized))

	var set []bool
	switch h.algorithm {
	case Gradient:
		set = rowGradientBits(luma, h.hashSize, h.hashSize)
	case VertGradient:
		set = columnGradientBits(luma, h.hashSize, h.hashSize)
	case DoubleGradient:
		half := h.hashSize / 2
		set = append(rowGradientBits(luma, half, half), columnGradientBits(luma, half, half)...)
	case Blockhash:
		set = blockBits(luma, h.hashSize)
	case Mean:
		set = meanBits(luma)
	}
	return hashFromBits(set)
}

// Compute returns one hash per variant required by inv, in the fixed
// variant order of inv.Transforms().
func (h *Hasher) Compute(img image.Image, inv Invariance) ([]Variant, error) {
	transforms, err := inv.Transforms()
	if err != nil {
		return nil, err
	}
	base := imaging.Clone(img)
	variants := make([]Variant, 0, len(transforms))
	for _, t := range transforms {
		variants = append(variants, Variant{
			Transform: t,
			Hash:      h.Hash(t.Apply(base)),
		})
	}
	return variants, nil
}

// workingSize is the resolution the image is resized to before bit
// extraction.
func (h *Hasher) workingSize() (int, int) {
	n := h.hashSize
	switch h.algorithm {
	case Gradient:
		return n + 1, n
	case VertGradient:
		return n, n + 1
	case DoubleGradient:
		return n/2 + 1, n/2 + 1
	case Blockhash:
		return blockScale * n, blockScale * n
	default:
		return n, n
	}
}
