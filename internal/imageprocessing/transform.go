package imageprocessing

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// Transform is a lossless geometric operation from the dihedral group of
// the square.
type Transform int

const (
	Identity Transform = iota
	FlipH
	FlipV
	Rotate90
	Rotate180
	Rotate270
	Transpose
	Transverse
)

var transformNames = [...]string{
	Identity:   "identity",
	FlipH:      "flip_h",
	FlipV:      "flip_v",
	Rotate90:   "rotate90",
	Rotate180:  "rotate180",
	Rotate270:  "rotate270",
	Transpose:  "transpose",
	Transverse: "transverse",
}

func (t Transform) String() string {
	if t >= 0 && int(t) < len(transformNames) {
		return transformNames[t]
	}
	return fmt.Sprintf("transform(%d)", int(t))
}

// Apply returns a transformed copy of img. Identity returns img unchanged.
func (t Transform) Apply(img image.Image) image.Image {
	switch t {
	case FlipH:
		return imaging.FlipH(img)
	case FlipV:
		return imaging.FlipV(img)
	case Rotate90:
		return imaging.Rotate90(img)
	case Rotate180:
		return imaging.Rotate180(img)
	case Rotate270:
		return imaging.Rotate270(img)
	case Transpose:
		return imaging.Transpose(img)
	case Transverse:
		return imaging.Transverse(img)
	default:
		return img
	}
}

// Variant is the hash of one geometric variant of an image.
type Variant struct {
	Transform Transform
	Hash      HashValue
}

// Invariance selects which geometric variants are hashed and compared.
type Invariance int

const (
	InvarianceOff Invariance = iota
	MirrorFlip
	MirrorFlipRotate90
)

var invarianceNames = map[Invariance]string{
	InvarianceOff:      "off",
	MirrorFlip:         "mirror_flip",
	MirrorFlipRotate90: "mirror_flip_rotate90",
}

var invarianceTransforms = map[Invariance][]Transform{
	InvarianceOff: {Identity},
	MirrorFlip:    {Identity, FlipH},
	MirrorFlipRotate90: {
		Identity, Rotate90, Rotate180, Rotate270,
		FlipH, FlipV, Transpose, Transverse,
	},
}

func (i Invariance) String() string {
	if name, ok := invarianceNames[i]; ok {
		return name
	}
	return fmt.Sprintf("invariance(%d)", int(i))
}

// ParseInvariance parses "off", "mirror_flip" or "mirror_flip_rotate90";
// separators are optional.
func ParseInvariance(s string) (Invariance, error) {
	key := normalizeName(s)
	if key == "" || key == "none" {
		return InvarianceOff, nil
	}
	for inv, name := range invarianceNames {
		if key == normalizeName(name) {
			return inv, nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownInvariance, "%q", s)
}

func (i Invariance) MarshalText() ([]byte, error) {
	if _, ok := invarianceNames[i]; !ok {
		return nil, errors.Wrapf(ErrUnknownInvariance, "%d", int(i))
	}
	return []byte(i.String()), nil
}

func (i *Invariance) UnmarshalText(text []byte) error {
	parsed, err := ParseInvariance(string(text))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// Transforms returns the variant set of the mode. The first entry is always
// Identity.
func (i Invariance) Transforms() ([]Transform, error) {
	ts, ok := invarianceTransforms[i]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownInvariance, "%d", int(i))
	}
	out := make([]Transform, len(ts))
	copy(out, ts)
	return out, nil
}
