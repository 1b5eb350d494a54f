package export

import (
	"encoding/binary"
	"fmt"
	"image"

	"github.com/cocosip/go-dicom/pkg/dicom/parser"
	"github.com/cocosip/go-dicom/pkg/dicom/transfer"
	"github.com/cocosip/go-dicom/pkg/imaging"
	"github.com/cocosip/go-dicom/pkg/imaging/codec"

	// Register the decoders CodecTranscode relies on.
	_ "github.com/cocosip/go-dicom-codec/jpeg/extended"
	_ "github.com/cocosip/go-dicom-codec/jpeg/lossless"
	_ "github.com/cocosip/go-dicom-codec/jpeg/lossless14sv1"
	_ "github.com/cocosip/go-dicom-codec/jpegls/lossless"
)

// rawGeometry describes native pixel samples.
type rawGeometry struct {
	width, height int
	samples       int
	bitsAllocated int
	signed        bool
}

// transcodedSource holds frames decompressed to native little-endian samples.
type transcodedSource struct {
	geometry rawGeometry
	frames   [][]byte
	errs     []error
}

// openTranscoded decompresses every frame of path to Explicit VR Little
// Endian. A failure to open or transcode the file fails every frame.
func openTranscoded(path string) frameSource {
	src, err := transcodeFrames(path)
	if err != nil {
		return failedSource{err: err}
	}
	return src
}

func transcodeFrames(path string) (*transcodedSource, error) {
	res, err := parser.ParseFile(path, parser.WithReadOption(parser.ReadAll))
	if err != nil {
		return nil, fmt.Errorf("decode: parse: %w", err)
	}
	ds := res.Dataset
	if res.TransferSyntax != nil && res.TransferSyntax.IsEncapsulated() {
		tr := codec.NewTranscoder(res.TransferSyntax, transfer.ExplicitVRLittleEndian)
		native, err := tr.Transcode(ds)
		if err != nil {
			return nil, fmt.Errorf("decode: transcode: %w", err)
		}
		ds = native
	}

	pd, err := imaging.CreatePixelData(ds)
	if err != nil {
		return nil, fmt.Errorf("decode: pixel data: %w", err)
	}

	src := &transcodedSource{
		geometry: rawGeometry{
			width:         int(pd.Info.Width),
			height:        int(pd.Info.Height),
			samples:       int(pd.Info.SamplesPerPixel),
			bitsAllocated: int(pd.Info.BitsAllocated),
			signed:        int(pd.Info.PixelRepresentation) == 1,
		},
	}
	n := int(pd.FrameCount())
	for i := 0; i < n; i++ {
		data, err := pd.GetFrame(i)
		src.frames = append(src.frames, data)
		src.errs = append(src.errs, err)
	}
	return src, nil
}

func (s *transcodedSource) Len() int { return len(s.frames) }

func (s *transcodedSource) Frame(index int) (image.Image, error) {
	if index >= len(s.frames) {
		return nil, fmt.Errorf("frame not present in pixel data (%d decoded)", len(s.frames))
	}
	if err := s.errs[index]; err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	img, err := rasterize(s.frames[index], s.geometry)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return img, nil
}

// rasterize wraps interleaved little-endian samples in an image.
func rasterize(data []byte, g rawGeometry) (image.Image, error) {
	if g.width <= 0 || g.height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", g.width, g.height)
	}
	bytesPerSample := (g.bitsAllocated + 7) / 8
	want := g.width * g.height * g.samples * bytesPerSample
	if len(data) < want {
		return nil, fmt.Errorf("frame holds %d bytes, want %d", len(data), want)
	}
	rect := image.Rect(0, 0, g.width, g.height)

	switch {
	case g.samples == 1 && g.bitsAllocated == 8:
		img := image.NewGray(rect)
		copy(img.Pix, data)
		if g.signed {
			for i := range img.Pix {
				img.Pix[i] ^= 0x80
			}
		}
		return img, nil
	case g.samples == 1 && g.bitsAllocated == 16:
		img := image.NewGray16(rect)
		for i := 0; i < g.width*g.height; i++ {
			v := binary.LittleEndian.Uint16(data[2*i:])
			if g.signed {
				v ^= 0x8000
			}
			binary.BigEndian.PutUint16(img.Pix[2*i:], v)
		}
		return img, nil
	case g.samples == 3 && g.bitsAllocated == 8:
		img := image.NewRGBA(rect)
		for i := 0; i < g.width*g.height; i++ {
			copy(img.Pix[4*i:4*i+3], data[3*i:3*i+3])
			img.Pix[4*i+3] = 0xFF
		}
		return img, nil
	}
	return nil, fmt.Errorf("unsupported pixel layout: %d sample(s) of %d bits", g.samples, g.bitsAllocated)
}
