package export

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	dcm "github.com/mrsinham/dicom2xml/internal/dicom"
	"github.com/mrsinham/dicom2xml/internal/dicom/fixture"
	"github.com/mrsinham/dicom2xml/internal/logger"
)

func decodeJPEGFile(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open %s: %v", path, err)
	}
	defer func() { _ = f.Close() }()
	img, err := jpeg.Decode(f)
	if err != nil {
		t.Fatalf("%s is not a JPEG: %v", path, err)
	}
	return img
}

func TestExportImages_JPEGFrames(t *testing.T) {
	input := writeFixture(t, fixture.Options{
		PatientName:       "DOE^JOHN",
		PatientID:         "12345",
		TransferSyntaxUID: dcm.JPEGBaseline,
		NumFrames:         2,
		Width:             48,
		Height:            40,
	})
	outDir := t.TempDir()

	result, err := ExportImages(input, outDir, "DOE^JOHN_12345", dcm.JPEGBaseline, ImageOptions{Logger: logger.Discard()})
	if err != nil {
		t.Fatalf("ExportImages failed: %v", err)
	}
	if result.Frames != 2 || result.Written() != 2 {
		t.Fatalf("result = %+v, want 2 frames written", result)
	}

	for i, name := range []string{"DOE^JOHN_12345_1.jpeg", "DOE^JOHN_12345_2.jpeg"} {
		want := filepath.Join(outDir, name)
		if result.Paths[i] != want {
			t.Errorf("Paths[%d] = %s, want %s", i, result.Paths[i], want)
		}
		img := decodeJPEGFile(t, want)
		if b := img.Bounds(); b.Dx() != 48 || b.Dy() != 40 {
			t.Errorf("%s is %dx%d, want 48x40", name, b.Dx(), b.Dy())
		}
	}
}

func TestExportImages_NonJPEGSkipped(t *testing.T) {
	outDir := t.TempDir()

	tests := []string{"", dcm.ExplicitVRLittleEndian, dcm.ImplicitVRLittleEndian, "1.2.840.10008.1.2.40"}
	for _, ts := range tests {
		t.Run(ts, func(t *testing.T) {
			// The input does not exist: a skipped export must not touch it.
			result, err := ExportImages(filepath.Join(outDir, "missing.dcm"), outDir, "P_1", ts, ImageOptions{})
			if err != nil {
				t.Fatalf("ExportImages failed: %v", err)
			}
			if result.Written() != 0 || result.Frames != 0 {
				t.Errorf("result = %+v, want nothing", result)
			}
		})
	}

	entries, _ := os.ReadDir(outDir)
	if len(entries) != 0 {
		t.Errorf("expected no files, got %d", len(entries))
	}
}

func TestExportImages_CorruptFrameSkipped(t *testing.T) {
	input := writeFixture(t, fixture.Options{
		PatientName:       "A",
		PatientID:         "1",
		TransferSyntaxUID: dcm.JPEGBaseline,
		NumFrames:         3,
		CorruptFrames:     []int{1},
	})
	outDir := t.TempDir()

	result, err := ExportImages(input, outDir, "A_1", dcm.JPEGBaseline, ImageOptions{Logger: logger.Discard()})
	if err == nil {
		t.Fatal("expected a frame failure")
	}
	if !dcm.HasKind(err, dcm.KindFrameExtractionFailure) {
		t.Errorf("error should be a FrameExtractionFailure: %v", err)
	}
	var frameErr *dcm.FrameError
	if !errors.As(err, &frameErr) || frameErr.Index != 1 {
		t.Errorf("expected FrameError for index 1, got %v", err)
	}

	if result.Frames != 3 || result.Written() != 2 {
		t.Fatalf("result = %+v, want 2 of 3 frames", result)
	}
	if _, err := os.Stat(filepath.Join(outDir, "A_1_2.jpeg")); !os.IsNotExist(err) {
		t.Errorf("corrupt frame should not be written")
	}
	for _, name := range []string{"A_1_1.jpeg", "A_1_3.jpeg"} {
		decodeJPEGFile(t, filepath.Join(outDir, name))
	}
	if matches, _ := filepath.Glob(filepath.Join(outDir, "*.part")); len(matches) != 0 {
		t.Errorf("partial files left behind: %v", matches)
	}
}

func TestExportImages_DeclaredCountAuthoritative(t *testing.T) {
	input := writeFixture(t, fixture.Options{
		PatientName:       "A",
		PatientID:         "1",
		TransferSyntaxUID: dcm.JPEGBaseline,
		NumFrames:         2,
		DeclaredFrames:    3,
	})
	outDir := t.TempDir()

	result, err := ExportImages(input, outDir, "A_1", dcm.JPEGBaseline, ImageOptions{Logger: logger.Discard()})
	var frameErr *dcm.FrameError
	if !errors.As(err, &frameErr) || frameErr.Index != 2 {
		t.Fatalf("expected the missing third frame to fail, got %v", err)
	}
	if result.Frames != 3 || result.Written() != 2 {
		t.Errorf("result = %+v, want 2 of 3 frames", result)
	}
}

func TestExportImages_MaxDimension(t *testing.T) {
	input := writeFixture(t, fixture.Options{
		PatientName:       "A",
		PatientID:         "1",
		TransferSyntaxUID: dcm.JPEGBaseline,
		NumFrames:         1,
		Width:             64,
		Height:            32,
	})
	outDir := t.TempDir()

	result, err := ExportImages(input, outDir, "A_1", dcm.JPEGBaseline, ImageOptions{
		Quality:      50,
		MaxDimension: 16,
		Logger:       logger.Discard(),
	})
	if err != nil {
		t.Fatalf("ExportImages failed: %v", err)
	}
	img := decodeJPEGFile(t, result.Paths[0])
	if b := img.Bounds(); b.Dx() != 16 || b.Dy() != 8 {
		t.Errorf("scaled frame is %dx%d, want 16x8", b.Dx(), b.Dy())
	}
}

func TestExportImages_ParseFailure(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "bad.dcm")
	if err := os.WriteFile(input, []byte("not dicom"), 0644); err != nil {
		t.Fatalf("Failed to write input: %v", err)
	}

	_, err := ExportImages(input, dir, "P_1", dcm.JPEGBaseline, ImageOptions{Logger: logger.Discard()})
	if dcm.KindOf(err) != dcm.KindDicomParseFailure {
		t.Errorf("kind = %v, want DicomParseFailure (%v)", dcm.KindOf(err), err)
	}
}

func TestNormalize(t *testing.T) {
	gray16 := image.NewGray16(image.Rect(0, 0, 4, 2))
	gray16.SetGray16(0, 0, color.Gray16{Y: 100})
	gray16.SetGray16(3, 1, color.Gray16{Y: 300})
	for x := 1; x < 4; x++ {
		gray16.SetGray16(x, 0, color.Gray16{Y: 200})
	}

	out, ok := normalize(gray16, 0).(*image.Gray)
	if !ok {
		t.Fatalf("16-bit frames should become 8-bit gray, got %T", out)
	}
	if out.GrayAt(3, 1).Y != 255 {
		t.Errorf("max sample = %d, want 255", out.GrayAt(3, 1).Y)
	}

	paletted := image.NewPaletted(image.Rect(0, 0, 10, 20), color.Palette{color.Black, color.White})
	scaled := normalize(paletted, 5)
	if _, ok := scaled.(*image.RGBA); !ok {
		t.Errorf("paletted frames should become RGBA, got %T", scaled)
	}
	if b := scaled.Bounds(); b.Dx() != 2 || b.Dy() != 5 {
		t.Errorf("scaled to %dx%d, want 2x5", b.Dx(), b.Dy())
	}

	small := image.NewGray(image.Rect(0, 0, 3, 3))
	if normalize(small, 10) != image.Image(small) {
		t.Error("frames within bounds should not be copied")
	}
}

func TestExportImages_FragmentedFrames(t *testing.T) {
	tests := []struct {
		name      string
		frames    int
		fragments int
	}{
		{"single frame in two fragments", 1, 2},
		{"single frame in three fragments", 1, 3},
		{"two frames in two fragments each", 2, 2},
		{"three frames in three fragments each", 3, 3},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			input := writeFixture(t, fixture.Options{
				PatientName:       "A",
				PatientID:         "1",
				TransferSyntaxUID: dcm.JPEGBaseline,
				NumFrames:         tc.frames,
				FragmentsPerFrame: tc.fragments,
				Width:             64,
				Height:            64,
			})
			outDir := t.TempDir()

			result, err := ExportImages(input, outDir, "A_1", dcm.JPEGBaseline, ImageOptions{Logger: logger.Discard()})
			if err != nil {
				t.Fatalf("ExportImages failed: %v", err)
			}
			if result.Frames != tc.frames || result.Written() != tc.frames {
				t.Fatalf("result = %+v, want %d frames written", result, tc.frames)
			}
			for _, path := range result.Paths {
				img := decodeJPEGFile(t, path)
				if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 64 {
					t.Errorf("%s is %dx%d, want 64x64", path, b.Dx(), b.Dy())
				}
			}
		})
	}
}

func TestExportImages_CodecFamilies(t *testing.T) {
	tests := []struct {
		name string
		ts   string
	}{
		{"jpeg 2000 lossless", dcm.JPEG2000Lossless},
		{"jpeg 2000", dcm.JPEG2000},
		{"jpeg lossless first-order", dcm.JPEGLosslessSV1},
		{"jpeg lossless", dcm.JPEGLossless},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			input := writeFixture(t, fixture.Options{
				PatientName:       "A",
				PatientID:         "1",
				TransferSyntaxUID: tc.ts,
				NumFrames:         2,
				Width:             40,
				Height:            24,
			})
			outDir := t.TempDir()

			result, err := ExportImages(input, outDir, "A_1", tc.ts, ImageOptions{Logger: logger.Discard()})
			if err != nil {
				t.Fatalf("ExportImages failed: %v", err)
			}
			if result.Written() != 2 {
				t.Fatalf("result = %+v, want 2 frames written", result)
			}
			for _, path := range result.Paths {
				img := decodeJPEGFile(t, path)
				if b := img.Bounds(); b.Dx() != 40 || b.Dy() != 24 {
					t.Errorf("%s is %dx%d, want 40x24", path, b.Dx(), b.Dy())
				}
			}
		})
	}
}

func TestExportImages_UnsupportedCodec(t *testing.T) {
	const mpeg2 = "1.2.840.10008.1.2.4.100"
	input := writeFixture(t, fixture.Options{
		PatientName:       "A",
		PatientID:         "1",
		TransferSyntaxUID: mpeg2,
		NumFrames:         2,
	})
	outDir := t.TempDir()

	result, err := ExportImages(input, outDir, "A_1", mpeg2, ImageOptions{Logger: logger.Discard()})
	if !dcm.HasKind(err, dcm.KindFrameExtractionFailure) {
		t.Fatalf("expected frame failures, got %v", err)
	}
	if result.Frames != 2 || result.Written() != 0 {
		t.Errorf("result = %+v, want 0 of 2 frames", result)
	}
}

func TestAssembleFrames(t *testing.T) {
	soi := []byte{0xFF, 0xD8, 0x01, 0x02}
	soc := []byte{0xFF, 0x4F, 0xFF, 0x51}
	tail := []byte{0x03, 0x04}

	tests := []struct {
		name      string
		fragments [][]byte
		count     int
		expected  [][]byte
	}{
		{"one fragment per frame", [][]byte{soi, soi}, 2, [][]byte{soi, soi}},
		{"single frame joins everything", [][]byte{soi, tail, tail}, 1,
			[][]byte{{0xFF, 0xD8, 0x01, 0x02, 0x03, 0x04, 0x03, 0x04}}},
		{"grouped on jpeg markers", [][]byte{soi, tail, soi, tail}, 2,
			[][]byte{{0xFF, 0xD8, 0x01, 0x02, 0x03, 0x04}, {0xFF, 0xD8, 0x01, 0x02, 0x03, 0x04}}},
		{"grouped on codestream markers", [][]byte{soc, tail, soc}, 2,
			[][]byte{{0xFF, 0x4F, 0xFF, 0x51, 0x03, 0x04}, soc}},
		{"unknown count keeps fragments", [][]byte{soi, tail}, 0, [][]byte{soi, tail}},
		{"fewer fragments than frames", [][]byte{soi}, 3, [][]byte{soi}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := assembleFrames(tc.fragments, tc.count)
			if len(got) != len(tc.expected) {
				t.Fatalf("got %d frames, want %d", len(got), len(tc.expected))
			}
			for i := range got {
				if !bytes.Equal(got[i], tc.expected[i]) {
					t.Errorf("frame %d = % x, want % x", i, got[i], tc.expected[i])
				}
			}
		})
	}

	// Grouping must not write into the caller's fragments.
	if !bytes.Equal(soi, []byte{0xFF, 0xD8, 0x01, 0x02}) {
		t.Errorf("input fragment modified: % x", soi)
	}
}

func TestRasterize(t *testing.T) {
	gray8, err := rasterize([]byte{0, 10, 20, 30}, rawGeometry{width: 2, height: 2, samples: 1, bitsAllocated: 8})
	if err != nil {
		t.Fatalf("rasterize 8-bit: %v", err)
	}
	if g, ok := gray8.(*image.Gray); !ok || g.GrayAt(1, 1).Y != 30 {
		t.Errorf("8-bit frame = %T, want Gray with 30 at (1,1)", gray8)
	}

	// Little-endian 0x0102 and a signed -1.
	gray16, err := rasterize([]byte{0x02, 0x01, 0xFF, 0xFF}, rawGeometry{width: 2, height: 1, samples: 1, bitsAllocated: 16, signed: true})
	if err != nil {
		t.Fatalf("rasterize 16-bit: %v", err)
	}
	g16, ok := gray16.(*image.Gray16)
	if !ok {
		t.Fatalf("16-bit frame = %T, want Gray16", gray16)
	}
	if v := g16.Gray16At(0, 0).Y; v != 0x8102 {
		t.Errorf("sample 0 = %#x, want 0x8102", v)
	}
	if v := g16.Gray16At(1, 0).Y; v != 0x7FFF {
		t.Errorf("sample 1 = %#x, want 0x7fff", v)
	}

	rgb, err := rasterize([]byte{1, 2, 3}, rawGeometry{width: 1, height: 1, samples: 3, bitsAllocated: 8})
	if err != nil {
		t.Fatalf("rasterize rgb: %v", err)
	}
	if c := rgb.(*image.RGBA).RGBAAt(0, 0); c != (color.RGBA{1, 2, 3, 0xFF}) {
		t.Errorf("rgb pixel = %v", c)
	}

	if _, err := rasterize([]byte{0}, rawGeometry{width: 2, height: 2, samples: 1, bitsAllocated: 8}); err == nil {
		t.Error("short frame should fail")
	}
	if _, err := rasterize(make([]byte, 16), rawGeometry{width: 1, height: 1, samples: 4, bitsAllocated: 8}); err == nil {
		t.Error("four samples per pixel should fail")
	}
}
