package imageprocessing

import (
	"image"
	"image/color"
	"math/bits"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func onesCount(h HashValue) int {
	n := 0
	for _, w := range h.Words() {
		n += bits.OnesCount64(w)
	}
	return n
}

// rampImage brightens from left to right.
func rampImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(10 + x*200/w)
			img.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

// asymmetricImage has no mirror or rotation symmetry.
func asymmetricImage() *image.NRGBA {
	img := imaging.New(32, 24, color.NRGBA{A: 255})
	for x := 0; x < 32; x++ {
		img.SetNRGBA(x, 0, color.NRGBA{R: 255, A: 255})
	}
	for y := 4; y < 20; y++ {
		for x := 2; x < 10; x++ {
			img.SetNRGBA(x, y, color.NRGBA{G: 255, B: 120, A: 255})
		}
	}
	img.SetNRGBA(20, 18, color.NRGBA{B: 255, A: 255})
	return img
}

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		input    string
		expected Algorithm
	}{
		{"gradient", Gradient},
		{"Gradient", Gradient},
		{"double_gradient", DoubleGradient},
		{"doublegradient", DoubleGradient},
		{"vert-gradient", VertGradient},
		{"blockhash", Blockhash},
		{"MEAN", Mean},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			alg, err := ParseAlgorithm(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, alg)
		})
	}

	_, err := ParseAlgorithm("dct")
	assert.True(t, errors.Is(err, ErrUnknownAlgorithm))
}

func TestParseFilterAndInvariance(t *testing.T) {
	f, err := ParseFilter("lanczos")
	require.NoError(t, err)
	assert.Equal(t, Lanczos3, f)

	f, err = ParseFilter("Nearest")
	require.NoError(t, err)
	assert.Equal(t, Nearest, f)

	_, err = ParseFilter("bicubic")
	assert.True(t, errors.Is(err, ErrUnknownFilter))

	inv, err := ParseInvariance("mirror-flip-rotate90")
	require.NoError(t, err)
	assert.Equal(t, MirrorFlipRotate90, inv)

	inv, err = ParseInvariance("")
	require.NoError(t, err)
	assert.Equal(t, InvarianceOff, inv)

	_, err = ParseInvariance("rotate45")
	assert.True(t, errors.Is(err, ErrUnknownInvariance))
}

func TestTextRoundTrip(t *testing.T) {
	var alg Algorithm
	require.NoError(t, alg.UnmarshalText([]byte("vert_gradient")))
	text, err := alg.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "vert_gradient", string(text))

	_, err = Algorithm(42).MarshalText()
	assert.Error(t, err)
}

func TestNewHasherValidation(t *testing.T) {
	_, err := NewHasher(Gradient, 12, Lanczos3)
	assert.True(t, errors.Is(err, ErrInvalidHashSize))

	_, err = NewHasher(Algorithm(9), 8, Lanczos3)
	assert.True(t, errors.Is(err, ErrUnknownAlgorithm))

	_, err = NewHasher(Gradient, 8, Filter(7))
	assert.True(t, errors.Is(err, ErrUnknownFilter))

	h, err := NewHasher(Mean, 16, Gaussian)
	require.NoError(t, err)
	assert.Equal(t, Mean, h.Algorithm())
	assert.Equal(t, 16, h.HashSize())
	assert.Equal(t, Gaussian, h.Filter())
}

func TestHashBitLength(t *testing.T) {
	img := asymmetricImage()
	for alg := range algorithmNames {
		for _, size := range SupportedHashSizes {
			h, err := NewHasher(alg, size, Lanczos3)
			require.NoError(t, err)

			hash := h.Hash(img)
			assert.Equal(t, alg.BitLength(size), hash.Bits(), "%s/%d", alg, size)
			assert.Len(t, hash.Words(), (hash.Bits()+63)/64)
		}
	}
}

func TestHashDeterministic(t *testing.T) {
	img := asymmetricImage()
	for alg := range algorithmNames {
		for _, filter := range []Filter{Lanczos3, Gaussian, Nearest} {
			h, err := NewHasher(alg, 8, filter)
			require.NoError(t, err)
			assert.True(t, h.Hash(img).Equal(h.Hash(img)), "%s/%s", alg, filter)
		}
	}
}

func TestGradientOnRamp(t *testing.T) {
	ramp := rampImage(64, 64)

	for _, filter := range []Filter{Lanczos3, Gaussian, Nearest} {
		h, err := NewHasher(Gradient, 8, filter)
		require.NoError(t, err)

		assert.Equal(t, 64, onesCount(h.Hash(ramp)), "brightening ramp sets every bit (%s)", filter)
		assert.Equal(t, 0, onesCount(h.Hash(imaging.FlipH(ramp))), "mirrored ramp clears every bit (%s)", filter)
	}
}

func TestVertGradientIgnoresHorizontalRamp(t *testing.T) {
	h, err := NewHasher(VertGradient, 8, Nearest)
	require.NoError(t, err)

	// Columns of a horizontal ramp are constant, so no sample is darker
	// than the one below it.
	assert.Equal(t, 0, onesCount(h.Hash(rampImage(64, 64))))
	assert.Equal(t, 64, onesCount(h.Hash(imaging.Rotate270(rampImage(64, 64)))))
}

func TestBlockhashCountsBlocksAtTheMedian(t *testing.T) {
	h, err := NewHasher(Blockhash, 8, Lanczos3)
	require.NoError(t, err)

	flat := imaging.New(64, 64, color.NRGBA{R: 120, G: 120, B: 120, A: 255})
	assert.Equal(t, 64, onesCount(h.Hash(flat)), "every block equals its band median")
}

func TestMeanOnRamp(t *testing.T) {
	h, err := NewHasher(Mean, 8, Nearest)
	require.NoError(t, err)

	hash := h.Hash(rampImage(64, 64))
	assert.Equal(t, 32, onesCount(hash), "right half is above the mean")
}

func TestComputeVariantCounts(t *testing.T) {
	h, err := NewHasher(Gradient, 8, Lanczos3)
	require.NoError(t, err)

	tests := []struct {
		inv      Invariance
		expected int
	}{
		{InvarianceOff, 1},
		{MirrorFlip, 2},
		{MirrorFlipRotate90, 8},
	}

	for _, tc := range tests {
		t.Run(tc.inv.String(), func(t *testing.T) {
			variants, err := h.Compute(asymmetricImage(), tc.inv)
			require.NoError(t, err)
			require.Len(t, variants, tc.expected)
			assert.Equal(t, Identity, variants[0].Transform)
		})
	}

	_, err = h.Compute(asymmetricImage(), Invariance(5))
	assert.True(t, errors.Is(err, ErrUnknownInvariance))
}

func TestComputeRecoversRotation(t *testing.T) {
	h, err := NewHasher(Gradient, 8, Lanczos3)
	require.NoError(t, err)

	base := asymmetricImage()
	original := h.Hash(base)

	variants, err := h.Compute(imaging.Rotate90(base), MirrorFlipRotate90)
	require.NoError(t, err)

	var matched bool
	for _, v := range variants {
		if v.Hash.Equal(original) {
			matched = true
		}
	}
	assert.True(t, matched, "one rotation variant must reproduce the original hash")
}

func TestComputeRecoversMirror(t *testing.T) {
	h, err := NewHasher(DoubleGradient, 16, Gaussian)
	require.NoError(t, err)

	base := asymmetricImage()
	variants, err := h.Compute(imaging.FlipH(base), MirrorFlip)
	require.NoError(t, err)
	require.Len(t, variants, 2)

	assert.Equal(t, FlipH, variants[1].Transform)
	assert.True(t, variants[1].Hash.Equal(h.Hash(base)))
}

func TestHashValueRoundTrip(t *testing.T) {
	h, err := NewHasher(Blockhash, 16, Lanczos3)
	require.NoError(t, err)
	hash := h.Hash(asymmetricImage())

	rebuilt, err := NewHashValue(hash.Words(), hash.Bits())
	require.NoError(t, err)
	assert.True(t, hash.Equal(rebuilt))
	assert.Equal(t, hash.String(), rebuilt.String())

	d, err := hash.Distance(rebuilt)
	require.NoError(t, err)
	assert.Equal(t, 0, d)

	_, err = NewHashValue([]uint64{1, 2}, 64)
	assert.True(t, errors.Is(err, ErrHashLengthMismatch))
}

func TestDistance(t *testing.T) {
	a, err := NewHashValue([]uint64{0x0}, 64)
	require.NoError(t, err)
	b, err := NewHashValue([]uint64{0xFF}, 64)
	require.NoError(t, err)
	c, err := NewHashValue([]uint64{0x0, 0x0}, 128)
	require.NoError(t, err)

	d, err := Gradient.Distance(a, b)
	require.NoError(t, err)
	assert.Equal(t, 8, d)

	_, err = Mean.Distance(a, c)
	assert.True(t, errors.Is(err, ErrHashLengthMismatch))

	_, err = HashValue{}.Distance(a)
	assert.Error(t, err)
}
