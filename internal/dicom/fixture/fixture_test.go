package fixture

import (
	"bytes"
	"testing"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

func TestBuild_ElementsSorted(t *testing.T) {
	ds, err := Build(Options{
		PatientName:  "A",
		PatientID:    "1",
		NumFrames:    1,
		WithSequence: true,
		Vendors:      []Vendor{VendorPhilips, VendorGE, VendorSiemens},
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	for i := 1; i < len(ds.Elements); i++ {
		if tagLess(ds.Elements[i].Tag, ds.Elements[i-1].Tag) {
			t.Errorf("element %v written after %v", ds.Elements[i].Tag, ds.Elements[i-1].Tag)
		}
	}
}

func TestBuild_VendorCreators(t *testing.T) {
	tests := []struct {
		vendor  Vendor
		creator tag.Tag
		want    string
	}{
		{VendorSiemens, tag.Tag{Group: 0x0029, Element: 0x0010}, SiemensCSACreator},
		{VendorGE, tag.Tag{Group: 0x0043, Element: 0x0010}, GEParamCreator},
		{VendorPhilips, tag.Tag{Group: 0x2005, Element: 0x0010}, PhilipsMRCreator},
	}

	for _, tc := range tests {
		t.Run(string(tc.vendor), func(t *testing.T) {
			ds, err := Build(Options{Vendors: []Vendor{tc.vendor}})
			if err != nil {
				t.Fatalf("Build failed: %v", err)
			}
			elem, err := ds.FindElementByTag(tc.creator)
			if err != nil {
				t.Fatalf("creator %v not found: %v", tc.creator, err)
			}
			values, _ := elem.Value.GetValue().([]string)
			if len(values) != 1 || values[0] != tc.want {
				t.Errorf("creator = %v, want %q", values, tc.want)
			}
		})
	}
}

func TestCSAImageHeader(t *testing.T) {
	header := CSAImageHeader()
	if !bytes.HasPrefix(header, []byte("SV10\x04\x03\x02\x01")) {
		t.Errorf("header starts with %q", header[:8])
	}
	if !bytes.Contains(header, []byte("ImaCoilString")) {
		t.Error("header should name its elements")
	}
	if len(header)%2 != 0 {
		t.Errorf("header length %d is odd", len(header))
	}
}

func TestEncodeText(t *testing.T) {
	for _, name := range SpecialCharacterNames {
		got, err := encodeText(Latin1, name)
		if err != nil {
			t.Errorf("encodeText(%q) failed: %v", name, err)
			continue
		}
		if len(got) >= len(name) {
			t.Errorf("%q should shrink when encoded as Latin-1, got %d bytes", name, len(got))
		}
	}

	if got, _ := encodeText("", "Zoë"); got != "Zoë" {
		t.Errorf("default character set should keep UTF-8, got %q", got)
	}
	if _, err := encodeText(Latin1, "Łukasz"); err == nil {
		t.Error("expected an error for a rune outside Latin-1")
	}
	if _, err := encodeText("ISO 2022 IR 87", "A"); err == nil {
		t.Error("expected an error for an unsupported character set")
	}
}

func TestSplitFragments(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB}, 10)
	tests := []struct {
		n        int
		expected []int
	}{
		{0, []int{10}},
		{1, []int{10}},
		{2, []int{6, 4}},
		{3, []int{4, 4, 2}},
		{4, []int{4, 4, 2}},
	}

	for _, tc := range tests {
		got := splitFragments(data, tc.n)
		var sizes []int
		for _, frag := range got {
			sizes = append(sizes, len(frag))
		}
		if len(sizes) != len(tc.expected) {
			t.Errorf("n=%d: sizes = %v, want %v", tc.n, sizes, tc.expected)
			continue
		}
		for i := range sizes {
			if sizes[i] != tc.expected[i] {
				t.Errorf("n=%d: sizes = %v, want %v", tc.n, sizes, tc.expected)
				break
			}
		}
	}
}

func TestBuild_FragmentOffsets(t *testing.T) {
	ds, err := Build(Options{
		PatientName:       "A",
		PatientID:         "1",
		TransferSyntaxUID: "1.2.840.10008.1.2.4.50",
		NumFrames:         2,
		FragmentsPerFrame: 3,
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	elem, err := ds.FindElementByTag(tag.PixelData)
	if err != nil {
		t.Fatalf("no pixel data: %v", err)
	}
	info := elem.Value.GetValue().(dicom.PixelDataInfo)
	if len(info.Frames) != 6 {
		t.Fatalf("got %d fragments, want 6", len(info.Frames))
	}
	if len(info.Offsets) != 2 || info.Offsets[0] != 0 {
		t.Fatalf("offsets = %v, want two starting at 0", info.Offsets)
	}

	var second uint32
	for _, fr := range info.Frames[:3] {
		data := fr.EncapsulatedData.Data
		if len(data)%2 != 0 {
			t.Errorf("odd fragment length %d", len(data))
		}
		second += uint32(8 + len(data))
	}
	if info.Offsets[1] != second {
		t.Errorf("second frame offset = %d, want %d", info.Offsets[1], second)
	}
	if !bytes.HasPrefix(info.Frames[3].EncapsulatedData.Data, []byte{0xFF, 0xD8}) {
		t.Error("second frame should start with SOI")
	}
}

func TestEncodeLossless(t *testing.T) {
	img := renderFrame(16, 8, "1/1")
	out := encodeLossless(img)

	if !bytes.HasPrefix(out, []byte{0xFF, 0xD8, 0xFF, 0xC4}) {
		t.Errorf("stream should open with SOI and DHT: % x", out[:4])
	}
	if !bytes.HasSuffix(out, []byte{0xFF, 0xD9}) {
		t.Error("stream should end with EOI")
	}
	sof := bytes.Index(out, []byte{0xFF, 0xC3})
	if sof < 0 {
		t.Fatal("missing SOF3")
	}
	// Precision, rows, columns.
	if got := out[sof+4 : sof+9]; !bytes.Equal(got, []byte{8, 0, 8, 0, 16}) {
		t.Errorf("SOF3 header = % x", got)
	}

	sos := bytes.Index(out, []byte{0xFF, 0xDA})
	scan := out[sos+10 : len(out)-2]
	for i := 0; i < len(scan)-1; i++ {
		if scan[i] == 0xFF && scan[i+1] != 0x00 {
			t.Fatalf("unstuffed 0xFF at scan offset %d", i)
		}
		if scan[i] == 0xFF {
			i++
		}
	}
}

func TestLosslessCodes(t *testing.T) {
	codes := losslessCodes()
	expected := map[byte]huffCode{
		0:  {0b00, 2},
		1:  {0b010, 3},
		5:  {0b110, 3},
		6:  {0b1110, 4},
		11: {0b111111110, 9},
	}
	for sym, want := range expected {
		if got := codes[sym]; got != want {
			t.Errorf("code for %d = %+v, want %+v", sym, got, want)
		}
	}
}
