package export

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"

	jpeg2000 "github.com/mrjoshuak/go-jpeg2000"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"

	dcm "github.com/mrsinham/dicom2xml/internal/dicom"
)

// frameSource yields the decoded frames of one dataset by 0-based index.
type frameSource interface {
	Frame(index int) (image.Image, error)
	// Len is the number of frames the source can address.
	Len() int
}

// newFrameSource picks the decoder for codec. Encapsulated fragments are
// grouped into count frames first.
func newFrameSource(path string, codec dcm.Codec, info dicom.PixelDataInfo, count int) frameSource {
	if info.ParseErr != nil {
		return failedSource{err: fmt.Errorf("pixel data: %w", info.ParseErr), n: len(info.Frames)}
	}
	if !info.IsEncapsulated {
		return nativeSource(info.Frames)
	}

	fragments := make([][]byte, 0, len(info.Frames))
	for _, fr := range info.Frames {
		if fr != nil {
			fragments = append(fragments, fr.EncapsulatedData.Data)
		}
	}
	frames := assembleFrames(fragments, count)

	switch codec {
	case dcm.CodecJPEGBaseline:
		return encodedSource{frames: frames, decode: jpeg.Decode}
	case dcm.CodecJPEG2000:
		return encodedSource{frames: frames, decode: jpeg2000.Decode}
	case dcm.CodecTranscode:
		return openTranscoded(path)
	}
	return failedSource{err: errors.New("no decoder for this transfer syntax"), n: len(frames)}
}

// assembleFrames groups encapsulated fragments into frames. A single frame
// owns every fragment; otherwise a frame starts at each fragment that opens
// with a JPEG, JPEG 2000 codestream or JP2 signature.
func assembleFrames(fragments [][]byte, count int) [][]byte {
	switch {
	case len(fragments) <= count || count <= 0:
		return fragments
	case count == 1:
		return [][]byte{bytes.Join(fragments, nil)}
	}

	var frames [][]byte
	for _, frag := range fragments {
		if len(frames) == 0 || startsFrame(frag) {
			frames = append(frames, append([]byte(nil), frag...))
			continue
		}
		last := len(frames) - 1
		frames[last] = append(frames[last], frag...)
	}
	return frames
}

var frameMarkers = [][]byte{
	{0xFF, 0xD8},             // SOI
	{0xFF, 0x4F, 0xFF, 0x51}, // SOC, SIZ
	{0x00, 0x00, 0x00, 0x0C, 'j', 'P', ' ', ' '},
}

func startsFrame(fragment []byte) bool {
	for _, m := range frameMarkers {
		if bytes.HasPrefix(fragment, m) {
			return true
		}
	}
	return false
}

type encodedSource struct {
	frames [][]byte
	decode func(io.Reader) (image.Image, error)
}

func (s encodedSource) Len() int { return len(s.frames) }

func (s encodedSource) Frame(index int) (image.Image, error) {
	if index >= len(s.frames) {
		return nil, fmt.Errorf("frame not present in pixel data (%d parsed)", len(s.frames))
	}
	img, err := s.decode(bytes.NewReader(s.frames[index]))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return img, nil
}

type nativeSource []*frame.Frame

func (s nativeSource) Len() int { return len(s) }

func (s nativeSource) Frame(index int) (image.Image, error) {
	if index >= len(s) || s[index] == nil {
		return nil, fmt.Errorf("frame not present in pixel data (%d parsed)", len(s))
	}
	if s[index].NativeData == nil {
		return nil, errors.New("decode: empty native frame")
	}
	img, err := s[index].GetImage()
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return img, nil
}

// failedSource reports the same error for every frame.
type failedSource struct {
	err error
	n   int
}

func (s failedSource) Len() int { return s.n }

func (s failedSource) Frame(int) (image.Image, error) { return nil, s.err }
