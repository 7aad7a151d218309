package notifications

import (
	"image"

	"golang.org/x/image/draw"
)

// ImageFromImage converts img into image-data suitable for the
// [Image] hint: 8-bit RGBA rows with no padding.
//
// If maxSide is positive and either dimension of img exceeds it, the
// image is scaled down to fit, preserving its aspect ratio.
func ImageFromImage(img image.Image, maxSide int) ImageData {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxSide > 0 && (w > maxSide || h > maxSide) {
		if w >= h {
			h = max(1, h*maxSide/w)
			w = maxSide
		} else {
			w = max(1, w*maxSide/h)
			h = maxSide
		}
	}

	// image.NRGBA is non-premultiplied, which is what the
	// notification service expects.
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	}

	return ImageData{
		Width:         int32(w),
		Height:        int32(h),
		RowStride:     int32(dst.Stride),
		HasAlpha:      true,
		BitsPerSample: 8,
		Channels:      4,
		Data:          dst.Pix,
	}
}
