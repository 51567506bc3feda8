package downloader

import (
	"bufio"
	"image"
	_ "image/gif" // register decoder
	"image/jpeg"
	_ "image/png" // register decoder
	"io"
	"os"
	"path/filepath"

	"github.com/disintegration/gift"
	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"  // register decoder
	_ "golang.org/x/image/webp" // register decoder
)

const jpegQuality = 92

func decodeConfig(r io.Reader) (image.Config, string, error) {
	return image.DecodeConfig(bufio.NewReader(r))
}

// jpegEncoder writes img to w as JPEG
type jpegEncoder func(w io.Writer, img image.Image, o *jpeg.Options) error

// postProcess rewrites the image at path: non-JPEG images are re-encoded
// when toJPEG is set and images whose longest side exceeds maxDim are shrunk
// to fit and written as JPEG. Images that need neither are left untouched.
// The result goes to a sibling file that replaces path only once it is
// complete, so on error path still holds the original image.
func postProcess(path string, toJPEG bool, maxDim int, encode jpegEncoder) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open")
	}
	img, format, err := image.Decode(bufio.NewReader(f))
	_ = f.Close()
	if err != nil {
		return errors.Wrap(err, "decode")
	}

	b := img.Bounds()
	needResize := maxDim > 0 && (b.Dx() > maxDim || b.Dy() > maxDim)
	needConvert := toJPEG && format != "jpeg"
	if !needResize && !needConvert {
		return nil
	}

	if needResize {
		g := gift.New(gift.ResizeToFit(maxDim, maxDim, gift.LanczosResampling))
		dst := image.NewRGBA(g.Bounds(b))
		g.Draw(dst, img)
		img = dst
	}

	out, err := os.CreateTemp(filepath.Dir(path), ".cover-*.jpg.part")
	if err != nil {
		return errors.Wrap(err, "create")
	}
	outPath := out.Name()

	w := bufio.NewWriter(out)
	err = encode(w, img, &jpeg.Options{Quality: jpegQuality})
	if err == nil {
		err = errors.Wrap(w.Flush(), "flush")
	} else {
		err = errors.Wrap(err, "encode")
	}
	if closeErr := out.Close(); err == nil && closeErr != nil {
		err = errors.Wrap(closeErr, "close")
	}
	if err != nil {
		_ = os.Remove(outPath)
		return err
	}
	return errors.Wrap(os.Rename(outPath, path), "replace")
}
