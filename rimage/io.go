package rimage

import (
	"image"
	"io"
	"path/filepath"

	"github.com/disintegration/imaging"
	_ "github.com/lmittmann/ppm" // register ppm
	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"  // register bmp
	_ "golang.org/x/image/tiff" // register tiff
)

// LoadStereoFrame reads a side-by-side stereo image from disk. Any format registered with the
// image package (png, jpeg, bmp, tiff, ppm/pgm) is accepted; color images are converted to gray
// and images of the wrong size are resized to StereoWidth x StereoHeight.
func LoadStereoFrame(path string) (*StereoFrame, error) {
	img, err := imaging.Open(filepath.Clean(path))
	if err != nil {
		return nil, errors.Wrapf(err, "cannot load stereo frame %q", path)
	}
	return stereoFrameFromImage(img), nil
}

// DecodeStereoFrame is LoadStereoFrame over a reader.
func DecodeStereoFrame(r io.Reader) (*StereoFrame, error) {
	img, err := imaging.Decode(r)
	if err != nil {
		return nil, errors.Wrap(err, "cannot decode stereo frame")
	}
	return stereoFrameFromImage(img), nil
}

func stereoFrameFromImage(img image.Image) *StereoFrame {
	if gray, ok := img.(*image.Gray); ok && gray.Bounds().Dx() == StereoWidth && gray.Bounds().Dy() == StereoHeight {
		f, err := StereoFrameFromGray(gray)
		if err == nil {
			return f
		}
	}

	b := img.Bounds()
	if b.Dx() != StereoWidth || b.Dy() != StereoHeight {
		img = imaging.Resize(img, StereoWidth, StereoHeight, imaging.Linear)
	}
	nrgba := imaging.Grayscale(img)

	// Grayscale leaves R == G == B.
	f := NewStereoFrame()
	for y := 0; y < StereoHeight; y++ {
		src := nrgba.Pix[y*nrgba.Stride:]
		dst := f.Pix[y*f.Stride:]
		for x := 0; x < StereoWidth; x++ {
			dst[x] = src[4*x]
		}
	}
	return f
}

// SaveGray writes a gray image; the format follows the file extension.
func SaveGray(img *image.Gray, path string) error {
	return imaging.Save(img, filepath.Clean(path))
}
