package pixel

import "image"

// ToImage wraps raw frame bytes in an image.Image so the standard encoders
// can render them. Packed 4:2:2 frames unpack into planar image.YCbCr;
// RGBA frames copy straight into image.RGBA. Bytes past the geometry are
// ignored, short frames leave the remaining rows black.
func ToImage(data []byte, width, height int, format Format) image.Image {
	if format == RGBA {
		img := image.NewRGBA(image.Rect(0, 0, width, height))
		copy(img.Pix, data)
		return img
	}
	return unpack422(data, width, height, format)
}

func unpack422(data []byte, width, height int, format Format) *image.YCbCr {
	img := image.NewYCbCr(image.Rect(0, 0, width, height), image.YCbCrSubsampleRatio422)

	lumaAt := 0
	if format == UYVY {
		lumaAt = 1
	}

	rowBytes := width * 2
	for row := 0; row < height; row++ {
		if (row+1)*rowBytes > len(data) {
			break
		}
		src := data[row*rowBytes:]
		y := img.Y[row*img.YStride:]
		cb := img.Cb[row*img.CStride:]
		cr := img.Cr[row*img.CStride:]

		for col := 0; col < width/2; col++ {
			g := src[col*4 : col*4+4]
			if lumaAt == 0 {
				y[col*2], cb[col], y[col*2+1], cr[col] = g[0], g[1], g[2], g[3]
			} else {
				cb[col], y[col*2], cr[col], y[col*2+1] = g[0], g[1], g[2], g[3]
			}
		}
	}
	return img
}
