package imageprocessing

import (
	"image"
	"sort"
)

// blockScale is the side length, in working pixels, of one Blockhash block.
const blockScale = 4

// luminance copies the gray channel of an imaging.Grayscale result into a
// row-major matrix.
func luminance(gray *image.NRGBA) [][]float64 {
	bounds := gray.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	rows := make([][]float64, h)
	for y := 0; y < h; y++ {
		row := make([]float64, w)
		off := y * gray.Stride
		for x := 0; x < w; x++ {
			row[x] = float64(gray.Pix[off+x*4])
		}
		rows[y] = row
	}
	return rows
}

// rowGradientBits compares each sample with its right neighbour.
func rowGradientBits(luma [][]float64, rows, cols int) []bool {
	set := make([]bool, 0, rows*cols)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			set = append(set, luma[y][x] < luma[y][x+1])
		}
	}
	return set
}

// columnGradientBits compares each sample with the one below it.
func columnGradientBits(luma [][]float64, rows, cols int) []bool {
	set := make([]bool, 0, rows*cols)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			set = append(set, luma[y][x] < luma[y+1][x])
		}
	}
	return set
}

// meanBits thresholds every sample against the global mean.
func meanBits(luma [][]float64) []bool {
	var sum float64
	var count int
	for _, row := range luma {
		for _, v := range row {
			sum += v
			count++
		}
	}
	avg := sum / float64(count)

	set := make([]bool, 0, count)
	for _, row := range luma {
		for _, v := range row {
			set = append(set, v >= avg)
		}
	}
	return set
}

// blockBits averages blockScale x blockScale blocks into an n x n grid and
// sets a bit for each block at or above the median of its horizontal band. The grid
// is split into four bands so a bright sky does not swamp the bottom half.
func blockBits(luma [][]float64, n int) []bool {
	blocks := make([]float64, 0, n*n)
	for by := 0; by < n; by++ {
		for bx := 0; bx < n; bx++ {
			var sum float64
			for y := by * blockScale; y < (by+1)*blockScale; y++ {
				for x := bx * blockScale; x < (bx+1)*blockScale; x++ {
					sum += luma[y][x]
				}
			}
			blocks = append(blocks, sum/(blockScale*blockScale))
		}
	}

	const bands = 4
	bandSize := len(blocks) / bands
	set := make([]bool, 0, len(blocks))
	for b := 0; b < bands; b++ {
		band := blocks[b*bandSize : (b+1)*bandSize]
		m := median(band)
		for _, v := range band {
			set = append(set, v >= m)
		}
	}
	return set
}

func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
