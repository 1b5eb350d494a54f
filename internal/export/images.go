package export

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
	"golang.org/x/image/draw"

	dcm "github.com/mrsinham/dicom2xml/internal/dicom"
	"github.com/mrsinham/dicom2xml/internal/util"
)

const imagesStage = "images"

// DefaultJPEGQuality is used when ImageOptions.Quality is zero.
const DefaultJPEGQuality = 90

// ImageOptions controls frame re-encoding.
type ImageOptions struct {
	Quality int
	// MaxDimension bounds the longest side of a written frame; 0 disables scaling.
	MaxDimension int
	Logger       logrus.FieldLogger
}

// ImageResult summarizes an image export.
type ImageResult struct {
	// Frames is the authoritative frame count of the dataset.
	Frames int
	// Paths lists the written files in frame order.
	Paths []string
}

// Written returns the number of frames written to disk.
func (r ImageResult) Written() int {
	return len(r.Paths)
}

// ExportImages writes every frame of a JPEG-family dataset to
// {outputDir}/{prefix}_{n}.jpeg, n starting at 1. Datasets with any other
// transfer syntax are skipped without reading the file.
//
// A frame that cannot be decoded or written is logged and skipped; the
// returned error joins one FrameExtractionFailure per skipped frame while the
// result still lists every frame that was written.
func ExportImages(inputPath, outputDir, prefix, transferSyntaxUID string, opts ImageOptions) (ImageResult, error) {
	if !dcm.IsJPEGFamily(transferSyntaxUID) {
		return ImageResult{}, nil
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	quality := opts.Quality
	if quality == 0 {
		quality = DefaultJPEGQuality
	}

	ds, err := dcm.OpenAndParse(inputPath)
	if err != nil {
		return ImageResult{}, err
	}

	info, hasPixels := pixelDataInfo(ds.Main)
	count := len(info.Frames)
	if n, ok := dcm.IntValue(ds.Main, tag.NumberOfFrames); ok && n > 0 {
		count = n
	}
	if !hasPixels {
		count = 0
	}

	codec := dcm.CodecFor(transferSyntaxUID)
	src := newFrameSource(inputPath, codec, info, count)
	if available := src.Len(); count != available {
		log.WithFields(logrus.Fields{
			"declared": count,
			"parsed":   available,
		}).Warn("frame count mismatch")
	}
	log.WithFields(logrus.Fields{
		"codec":  codec,
		"frames": count,
	}).Debug("decoding frames")

	result := ImageResult{Frames: count}
	var errs []error
	for i := 0; i < count; i++ {
		path := filepath.Join(outputDir, fmt.Sprintf("%s_%d.jpeg", prefix, i+1))
		if err := writeFrame(path, src, i, quality, opts.MaxDimension); err != nil {
			ferr := dcm.FrameFailure(inputPath, i, err)
			log.WithError(err).WithField("frame", i+1).Warn("skipping frame")
			errs = append(errs, ferr)
			continue
		}
		log.WithField("path", util.AbsPath(path)).Debug("frame written")
		result.Paths = append(result.Paths, path)
	}

	return result, errors.Join(errs...)
}

func pixelDataInfo(ds dicom.Dataset) (dicom.PixelDataInfo, bool) {
	elem, err := ds.FindElementByTag(tag.PixelData)
	if err != nil || elem.Value == nil {
		return dicom.PixelDataInfo{}, false
	}
	info, ok := elem.Value.GetValue().(dicom.PixelDataInfo)
	return info, ok
}

func writeFrame(path string, src frameSource, index, quality, maxDimension int) error {
	img, err := src.Frame(index)
	if err != nil {
		return err
	}
	img = normalize(img, maxDimension)

	return writeAtomic(imagesStage, path, func(w io.Writer) error {
		if err := jpeg.Encode(w, img, &jpeg.Options{Quality: quality}); err != nil {
			return fmt.Errorf("encode: %w", err)
		}
		return nil
	})
}

// normalize converts img to a raster image/jpeg encodes directly and
// shrinks it so its longest side is at most maxDimension.
func normalize(img image.Image, maxDimension int) image.Image {
	switch src := img.(type) {
	case *image.Gray16:
		img = stretchGray16(src)
	case *image.Gray, *image.YCbCr, *image.RGBA, *image.CMYK:
	default:
		rgba := image.NewRGBA(img.Bounds())
		draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)
		img = rgba
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxDimension <= 0 || (w <= maxDimension && h <= maxDimension) {
		return img
	}
	if w >= h {
		h = max(1, h*maxDimension/w)
		w = maxDimension
	} else {
		w = max(1, w*maxDimension/h)
		h = maxDimension
	}

	var dst draw.Image
	if _, ok := img.(*image.Gray); ok {
		dst = image.NewGray(image.Rect(0, 0, w, h))
	} else {
		dst = image.NewRGBA(image.Rect(0, 0, w, h))
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// stretchGray16 maps the used range of a 16-bit frame onto 8 bits.
func stretchGray16(src *image.Gray16) *image.Gray {
	b := src.Bounds()
	lo, hi := uint16(0xFFFF), uint16(0)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := src.Gray16At(x, y).Y
			lo = min(lo, v)
			hi = max(hi, v)
		}
	}

	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	span := uint32(hi) - uint32(lo)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			var v uint8
			if span > 0 {
				v = uint8((uint32(src.Gray16At(x, y).Y-lo) * 255) / span)
			}
			dst.Pix[(y-b.Min.Y)*dst.Stride+(x-b.Min.X)] = v
		}
	}
	return dst
}
