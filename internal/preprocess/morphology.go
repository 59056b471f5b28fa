package preprocess

import "image"

// maxFilterRect returns the grayscale dilation of src by a k×k rectangle.
// The filter is separable, so it runs as a row pass followed by a column pass.
// Pixels outside the image are ignored.
func maxFilterRect(src *image.Gray, k int) *image.Gray {
	return rankFilterRect(src, k, func(a, b uint8) bool { return a > b })
}

// minFilterRect returns the grayscale erosion of src by a k×k rectangle.
func minFilterRect(src *image.Gray, k int) *image.Gray {
	return rankFilterRect(src, k, func(a, b uint8) bool { return a < b })
}

func rankFilterRect(src *image.Gray, k int, better func(a, b uint8) bool) *image.Gray {
	if k <= 1 {
		return cloneGray(src)
	}
	w, h := src.Rect.Dx(), src.Rect.Dy()
	half := k / 2
	tmp := image.NewGray(image.Rect(0, 0, w, h))
	for y := range h {
		row := src.Pix[y*src.Stride : y*src.Stride+w]
		for x := range w {
			v := row[x]
			for dx := max(x-half, 0); dx <= min(x+half, w-1); dx++ {
				if better(row[dx], v) {
					v = row[dx]
				}
			}
			tmp.Pix[y*tmp.Stride+x] = v
		}
	}
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			v := tmp.Pix[y*tmp.Stride+x]
			for dy := max(y-half, 0); dy <= min(y+half, h-1); dy++ {
				if c := tmp.Pix[dy*tmp.Stride+x]; better(c, v) {
					v = c
				}
			}
			out.Pix[y*out.Stride+x] = v
		}
	}
	return out
}

// closeRect is a morphological close (dilate then erode) with a k×k rectangle.
// On dark text over a bright background it removes the text and keeps the background.
func closeRect(src *image.Gray, k int) *image.Gray {
	return minFilterRect(maxFilterRect(src, k), k)
}

// thickenInk grows the black strokes of a black-on-white binary by one pixel,
// taking the minimum over each pixel's 3×3 cross neighbourhood.
func thickenInk(src *image.Gray) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	at := func(x, y int) uint8 { return src.Pix[y*src.Stride+x] }
	for y := range h {
		for x := range w {
			v := at(x, y)
			if x > 0 {
				v = min(v, at(x-1, y))
			}
			if x < w-1 {
				v = min(v, at(x+1, y))
			}
			if y > 0 {
				v = min(v, at(x, y-1))
			}
			if y < h-1 {
				v = min(v, at(x, y+1))
			}
			out.Pix[y*out.Stride+x] = v
		}
	}
	return out
}

func cloneGray(src *image.Gray) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := range h {
		copy(out.Pix[y*out.Stride:y*out.Stride+w], src.Pix[y*src.Stride:y*src.Stride+w])
	}
	return out
}
