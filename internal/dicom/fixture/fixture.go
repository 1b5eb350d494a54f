// Package fixture writes small synthetic DICOM files used by the extraction tests.
package fixture

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"sort"

	jpeg2000 "github.com/mrjoshuak/go-jpeg2000"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Options describes the synthetic file to write.
type Options struct {
	PatientName     string
	OmitPatientName bool
	PatientID       string
	OmitPatientID   bool

	TransferSyntaxUID string // defaults to Explicit VR Little Endian

	// NumFrames frames are written as encapsulated fragments when the transfer
	// syntax is in the JPEG branch, otherwise as one native frame. Lossless
	// and JPEG 2000 syntaxes get matching codestreams; the rest of the branch
	// gets baseline JPEG.
	NumFrames int
	// DeclaredFrames overrides NumberOfFrames (0 = NumFrames).
	DeclaredFrames int
	// CorruptFrames lists 0-based frame indexes written as undecodable bytes.
	CorruptFrames []int
	// FragmentsPerFrame splits every encoded frame into that many fragments
	// and records the frame starts in the Basic Offset Table.
	FragmentsPerFrame int
	Width, Height     int

	Document     []byte
	DocumentMIME string

	// WithSequence adds a two-level nested sequence.
	WithSequence bool
	// WithPrivateBlock adds a private creator and two private elements.
	WithPrivateBlock bool
	// Vendors adds manufacturer private blocks, including nested private sequences.
	Vendors []Vendor

	// CharacterSet is written as SpecificCharacterSet and used to encode the
	// patient name and ID. Defaults to ISO_IR 192 (UTF-8).
	CharacterSet string
}

const (
	secondaryCaptureSOPClass     = "1.2.840.10008.5.1.4.1.1.7"
	encapsulatedPDFSOPClass      = "1.2.840.10008.5.1.4.1.1.104.1"
	defaultTransferSyntax        = "1.2.840.10008.1.2.1"
	jpegBranch                   = "1.2.840.10008.1.2.4."
	jpegLossless                 = "1.2.840.10008.1.2.4.57"
	jpegLosslessSV1              = "1.2.840.10008.1.2.4.70"
	jpeg2000Lossless             = "1.2.840.10008.1.2.4.90"
	jpeg2000Lossy                = "1.2.840.10008.1.2.4.91"
	fixtureImplementationUIDRoot = "1.2.826.0.1.3680043.8.498"
)

// Write writes a synthetic DICOM file described by opts to path.
func Write(path string, opts Options) error {
	ds, err := Build(opts)
	if err != nil {
		return err
	}
	var writeOpts []dicom.WriteOption
	if opts.WithPrivateBlock || len(opts.Vendors) > 0 {
		writeOpts = append(writeOpts, dicom.SkipVRVerification(), dicom.SkipValueTypeVerification())
	}
	return writeDatasetToFile(path, ds, writeOpts...)
}

// MustWrite is Write for tests; it panics on error.
func MustWrite(path string, opts Options) {
	if err := Write(path, opts); err != nil {
		panic(fmt.Sprintf("write fixture %s: %v", path, err))
	}
}

// Build returns the dataset Write would serialize.
func Build(opts Options) (dicom.Dataset, error) {
	ts := opts.TransferSyntaxUID
	if ts == "" {
		ts = defaultTransferSyntax
	}
	width, height := opts.Width, opts.Height
	if width <= 0 {
		width = 32
	}
	if height <= 0 {
		height = 32
	}

	charset := opts.CharacterSet
	if charset == "" {
		charset = "ISO_IR 192"
	}
	patientName, err := encodeText(charset, opts.PatientName)
	if err != nil {
		return dicom.Dataset{}, err
	}
	patientID, err := encodeText(charset, opts.PatientID)
	if err != nil {
		return dicom.Dataset{}, err
	}

	sopClass := secondaryCaptureSOPClass
	if opts.Document != nil {
		sopClass = encapsulatedPDFSOPClass
	}

	elements := []*dicom.Element{
		mustNewElement(tag.MediaStorageSOPClassUID, []string{sopClass}),
		mustNewElement(tag.MediaStorageSOPInstanceUID, []string{fixtureImplementationUIDRoot + ".1.1"}),
		mustNewElement(tag.TransferSyntaxUID, []string{ts}),
		mustNewElement(tag.ImplementationClassUID, []string{fixtureImplementationUIDRoot}),
		mustNewElement(tag.SpecificCharacterSet, []string{charset}),
		mustNewElement(tag.SOPClassUID, []string{sopClass}),
		mustNewElement(tag.SOPInstanceUID, []string{fixtureImplementationUIDRoot + ".1.1"}),
		mustNewElement(tag.Modality, []string{"OT"}),
	}

	if !opts.OmitPatientName {
		elements = append(elements, mustNewElement(tag.PatientName, []string{patientName}))
	}
	if !opts.OmitPatientID {
		elements = append(elements, mustNewElement(tag.PatientID, []string{patientID}))
	}

	if opts.WithPrivateBlock {
		elements = append(elements,
			mustNewPrivateElement(tag.Tag{Group: 0x0029, Element: 0x0010}, "LO", []string{"DICOM2XML TEST"}),
			mustNewPrivateElement(tag.Tag{Group: 0x0029, Element: 0x1010}, "LO", []string{"private value"}),
			mustNewPrivateElement(tag.Tag{Group: 0x0029, Element: 0x1020}, "OB", []byte{0x01, 0x02, 0x03, 0x04}),
		)
	}

	elements = append(elements, vendorElements(opts.Vendors)...)

	if opts.WithSequence {
		inner := [][]*dicom.Element{{
			mustNewElement(tag.ReferencedSOPClassUID, []string{secondaryCaptureSOPClass}),
			mustNewElement(tag.ReferencedSOPInstanceUID, []string{fixtureImplementationUIDRoot + ".2.1"}),
		}}
		items := [][]*dicom.Element{
			{
				mustNewElement(tag.RequestedProcedureID, []string{"RP1"}),
				mustNewElement(tag.ReferencedStudySequence, inner),
			},
			{
				mustNewElement(tag.RequestedProcedureID, []string{"RP2"}),
			},
		}
		elements = append(elements, mustNewElement(tag.RequestAttributesSequence, items))
	}

	if opts.Document != nil {
		mime := opts.DocumentMIME
		if mime == "" {
			mime = "application/pdf"
		}
		elements = append(elements,
			mustNewElement(tag.DocumentTitle, []string{"Report"}),
			mustNewElement(tag.MIMETypeOfEncapsulatedDocument, []string{mime}),
			mustNewElement(tag.EncapsulatedDocument, opts.Document),
		)
	}

	if opts.NumFrames > 0 {
		pixelElements, err := buildPixelData(ts, width, height, opts)
		if err != nil {
			return dicom.Dataset{}, err
		}
		elements = append(elements, pixelElements...)
	}

	sort.SliceStable(elements, func(i, j int) bool {
		return tagLess(elements[i].Tag, elements[j].Tag)
	})
	return dicom.Dataset{Elements: elements}, nil
}

func tagLess(a, b tag.Tag) bool {
	if a.Group != b.Group {
		return a.Group < b.Group
	}
	return a.Element < b.Element
}

func buildPixelData(ts string, width, height int, opts Options) ([]*dicom.Element, error) {
	declared := opts.DeclaredFrames
	if declared <= 0 {
		declared = opts.NumFrames
	}
	corrupt := make(map[int]bool, len(opts.CorruptFrames))
	for _, i := range opts.CorruptFrames {
		corrupt[i] = true
	}

	elements := []*dicom.Element{
		mustNewElement(tag.SamplesPerPixel, []int{1}),
		mustNewElement(tag.PhotometricInterpretation, []string{"MONOCHROME2"}),
		mustNewElement(tag.NumberOfFrames, []string{fmt.Sprintf("%d", declared)}),
		mustNewElement(tag.Rows, []int{height}),
		mustNewElement(tag.Columns, []int{width}),
		mustNewElement(tag.BitsAllocated, []int{8}),
		mustNewElement(tag.BitsStored, []int{8}),
		mustNewElement(tag.HighBit, []int{7}),
		mustNewElement(tag.PixelRepresentation, []int{0}),
	}

	if len(ts) <= len(jpegBranch) || ts[:len(jpegBranch)] != jpegBranch {
		// Native pixel data: a single uncompressed frame.
		nativeFrame := frame.NewNativeFrame[uint8](8, height, width, width*height, 1)
		gray := renderFrame(width, height, "Frame 1/1")
		copy(nativeFrame.RawData, gray.Pix)
		pixelData := mustNewElement(tag.PixelData, dicom.PixelDataInfo{
			Frames: []*frame.Frame{{Encapsulated: false, NativeData: nativeFrame}},
		})
		return append(elements, pixelData), nil
	}

	var (
		frames  []*frame.Frame
		offsets []uint32
		offset  uint32
	)
	for i := 0; i < opts.NumFrames; i++ {
		var data []byte
		if corrupt[i] {
			data = []byte("this is not a JPEG bitstream")
		} else {
			encoded, err := encodeFrame(ts, renderFrame(width, height, fmt.Sprintf("%d/%d", i+1, opts.NumFrames)))
			if err != nil {
				return nil, fmt.Errorf("encode frame %d: %w", i+1, err)
			}
			data = encoded
		}
		// Fragments must have an even length.
		if len(data)%2 != 0 {
			data = append(data, 0x00)
		}
		offsets = append(offsets, offset)
		for _, frag := range splitFragments(data, opts.FragmentsPerFrame) {
			frames = append(frames, &frame.Frame{
				Encapsulated:     true,
				EncapsulatedData: frame.EncapsulatedFrame{Data: frag},
			})
			offset += uint32(8 + len(frag))
		}
	}

	info := dicom.PixelDataInfo{
		IsEncapsulated: true,
		Frames:         frames,
	}
	if opts.FragmentsPerFrame > 1 {
		info.Offsets = offsets
	}
	pixelData := mustNewElement(tag.PixelData, info)
	pixelData.ValueLength = tag.VLUndefinedLength
	return append(elements, pixelData), nil
}

// encodeFrame compresses img with the codec named by ts.
func encodeFrame(ts string, img *image.Gray) ([]byte, error) {
	switch ts {
	case jpegLossless, jpegLosslessSV1:
		return encodeLossless(img), nil
	case jpeg2000Lossless, jpeg2000Lossy:
		opts := jpeg2000.DefaultOptions()
		opts.Format = jpeg2000.FormatJ2K
		opts.Lossless = ts == jpeg2000Lossless
		if !opts.Lossless {
			opts.Quality = 90
		}
		var buf bytes.Buffer
		if err := jpeg2000.Encode(&buf, img, opts); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return encodeJPEG(img)
}

// splitFragments cuts an even-length frame into at most n even-length pieces.
func splitFragments(data []byte, n int) [][]byte {
	if n <= 1 || len(data) <= 2 {
		return [][]byte{data}
	}
	size := (len(data) + n - 1) / n
	size += size % 2
	var out [][]byte
	for len(data) > size {
		out = append(out, data[:size])
		data = data[size:]
	}
	return append(out, data)
}

// renderFrame draws a gradient with a centered text label.
func renderFrame(width, height int, label string) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8((x + y) * 255 / (width + height))})
		}
	}

	face := basicfont.Face7x13
	textWidth := font.MeasureString(face, label).Ceil()
	textImg := image.NewRGBA(image.Rect(0, 0, textWidth, 13))
	drawer := &font.Drawer{
		Dst:  textImg,
		Src:  image.NewUniform(color.RGBA{255, 255, 255, 255}),
		Face: face,
		Dot:  fixed.Point26_6{Y: fixed.I(11)},
	}
	drawer.DrawString(label)

	// Fit the label into the frame, keeping its aspect ratio.
	dstW := min(width, textWidth)
	dstH := max(1, 13*dstW/max(1, textWidth))
	x := (width - dstW) / 2
	y := (height - dstH) / 2
	draw.BiLinear.Scale(img, image.Rect(x, y, x+dstW, y+dstH), textImg, textImg.Bounds(), draw.Over, nil)
	return img
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeDatasetToFile writes a DICOM dataset to a file
func writeDatasetToFile(filename string, ds dicom.Dataset, opts ...dicom.WriteOption) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	return dicom.Write(f, ds, opts...)
}

// mustNewElement creates a new DICOM element, panicking on error.
func mustNewElement(t tag.Tag, value interface{}) *dicom.Element {
	elem, err := dicom.NewElement(t, value)
	if err != nil {
		panic(fmt.Sprintf("failed to create element %v: %v", t, err))
	}
	return elem
}

// mustNewPrivateElement creates an element outside the standard dictionary.
func mustNewPrivateElement(t tag.Tag, rawVR string, data any) *dicom.Element {
	value, err := dicom.NewValue(data)
	if err != nil {
		panic(fmt.Sprintf("failed to create value for private element %v: %v", t, err))
	}
	return &dicom.Element{
		Tag:                    t,
		ValueRepresentation:    tag.GetVRKind(t, rawVR),
		RawValueRepresentation: rawVR,
		Value:                  value,
	}
}
