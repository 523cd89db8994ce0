// Package image decodes image files for hashing.
package image

import (
	"image"
	"io"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// ErrEmptyImage is returned for images without pixels.
var ErrEmptyImage = errors.New("image has no pixels")

// Decoder opens image files with imaging. It is safe for concurrent use.
type Decoder struct {
	// AutoOrient applies the EXIF orientation tag of JPEG files.
	AutoOrient bool
}

func NewDecoder(autoOrient bool) *Decoder {
	return &Decoder{AutoOrient: autoOrient}
}

func (d *Decoder) Decode(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(d.AutoOrient))
	if err != nil {
		return nil, errors.Wrapf(err, "could not open %s", path)
	}
	return checkBounds(img)
}

// DecodeReader decodes an image from r, e.g. an uploaded form file.
func (d *Decoder) DecodeReader(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(d.AutoOrient))
	if err != nil {
		return nil, errors.Wrap(err, "could not decode image")
	}
	return checkBounds(img)
}

func checkBounds(img image.Image) (image.Image, error) {
	if img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	return img, nil
}
