// image.go still image decoding and preprocessing for the model input
package classifier

import (
	"fmt"

	"github.com/disintegration/imaging"

	"github.com/tphakala/birdfeeder-go/internal/errors"
)

// loadImageTensor decodes the image at path, resizes it to the model input
// size and returns NHWC float32 data normalized to [-1, 1], matching the
// preprocessing the model was trained with.
func loadImageTensor(path string, width, height int) ([]float32, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to decode image: %w", err)).
			Component("classifier").
			Category(errors.CategoryImageDecode).
			Context("image_path", path).
			Build()
	}

	resized := imaging.Resize(img, width, height, imaging.Lanczos)

	sample := make([]float32, width*height*3)
	i := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			// NRGBA pixel layout, 4 bytes per pixel
			off := resized.PixOffset(x, y)
			sample[i] = float32(resized.Pix[off])/127.5 - 1.0
			sample[i+1] = float32(resized.Pix[off+1])/127.5 - 1.0
			sample[i+2] = float32(resized.Pix[off+2])/127.5 - 1.0
			i += 3
		}
	}
	return sample, nil
}
