package fixture

import (
	"bytes"
	"encoding/binary"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// Vendor selects a block of manufacturer private elements.
type Vendor string

const (
	VendorSiemens Vendor = "siemens"
	VendorGE      Vendor = "ge"
	VendorPhilips Vendor = "philips"
)

// Private creator identifiers written by the vendor blocks.
const (
	SiemensCSACreator      = "SIEMENS CSA HEADER"
	SiemensNonImageCreator = "SIEMENS CSA NON-IMAGE"
	GEIdentCreator         = "GEMS_IDEN_01"
	GEParamCreator         = "GEMS_PARM_01"
	PhilipsImagingCreator  = "Philips Imaging DD 001"
	PhilipsMRCreator       = "Philips MR Imaging DD 001"
	PhilipsMRItemCreator   = "Philips MR Imaging DD 005"
)

// csaElement is one entry of a Siemens CSA header.
type csaElement struct {
	Name     string
	VM       int32
	VR       string
	SyngoDT  int32
	NumItems int32
	Values   []string
}

// buildCSAHeader encodes elements in the "SV10" layout.
func buildCSAHeader(elements []csaElement) []byte {
	var buf bytes.Buffer

	buf.WriteString("SV10")
	buf.Write([]byte{0x04, 0x03, 0x02, 0x01})

	// binary.Write to bytes.Buffer never fails.
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(elements)))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(0x4D))

	for _, elem := range elements {
		name := make([]byte, 64)
		copy(name, elem.Name)
		buf.Write(name)

		_ = binary.Write(&buf, binary.LittleEndian, elem.VM)

		vr := make([]byte, 4)
		copy(vr, elem.VR)
		buf.Write(vr)

		_ = binary.Write(&buf, binary.LittleEndian, elem.SyngoDT)
		_ = binary.Write(&buf, binary.LittleEndian, elem.NumItems)
		_ = binary.Write(&buf, binary.LittleEndian, uint32(0x4D))

		for i := int32(0); i < elem.NumItems; i++ {
			var val []byte
			if i < int32(len(elem.Values)) {
				val = []byte(elem.Values[i])
			}
			itemLen := uint32(len(val))
			for j := 0; j < 4; j++ {
				_ = binary.Write(&buf, binary.LittleEndian, itemLen)
			}
			buf.Write(val)
			if padding := (4 - len(val)%4) % 4; padding > 0 {
				buf.Write(make([]byte, padding))
			}
		}
	}
	return buf.Bytes()
}

// CSAImageHeader is the blob written at (0029,1010).
func CSAImageHeader() []byte {
	return buildCSAHeader([]csaElement{
		{Name: "NumberOfImagesInMosaic", VM: 1, VR: "IS", SyngoDT: 6, NumItems: 1, Values: []string{"1"}},
		{Name: "SliceNormalVector", VM: 3, VR: "FD", SyngoDT: 3, NumItems: 3, Values: []string{"0.0", "0.0", "1.0"}},
		{Name: "B_value", VM: 1, VR: "IS", SyngoDT: 6, NumItems: 1, Values: []string{"0"}},
		{Name: "ImaCoilString", VM: 1, VR: "LO", SyngoDT: 19, NumItems: 1, Values: []string{"HEA;HEP"}},
	})
}

func siemensElements() []*dicom.Element {
	nested := []*dicom.Element{
		mustNewPrivateElement(tag.Tag{Group: 0x0029, Element: 0x0011}, "LO", []string{SiemensNonImageCreator}),
		mustNewPrivateElement(tag.Tag{Group: 0x0029, Element: 0x1100}, "OB", []byte{0xDE, 0xAD, 0xBE, 0xEF}),
	}
	return []*dicom.Element{
		mustNewPrivateElement(tag.Tag{Group: 0x0029, Element: 0x0010}, "LO", []string{SiemensCSACreator}),
		mustNewPrivateElement(tag.Tag{Group: 0x0029, Element: 0x0011}, "LO", []string{SiemensNonImageCreator}),
		mustNewPrivateElement(tag.Tag{Group: 0x0029, Element: 0x1010}, "OB", CSAImageHeader()),
		mustNewPrivateElement(tag.Tag{Group: 0x0029, Element: 0x1102}, "SQ", [][]*dicom.Element{nested}),
	}
}

func geElements() []*dicom.Element {
	return []*dicom.Element{
		mustNewPrivateElement(tag.Tag{Group: 0x0009, Element: 0x0010}, "LO", []string{GEIdentCreator}),
		mustNewPrivateElement(tag.Tag{Group: 0x0009, Element: 0x10E3}, "LO", []string{"DV25.1_R02_M5"}),
		mustNewPrivateElement(tag.Tag{Group: 0x0043, Element: 0x0010}, "LO", []string{GEParamCreator}),
		mustNewPrivateElement(tag.Tag{Group: 0x0043, Element: 0x1039}, "IS", []string{"1000", "0", "0", "0"}),
	}
}

func philipsElements() []*dicom.Element {
	item := []*dicom.Element{
		mustNewPrivateElement(tag.Tag{Group: 0x2005, Element: 0x0011}, "LO", []string{PhilipsMRItemCreator}),
		mustNewPrivateElement(tag.Tag{Group: 0x2005, Element: 0x1100}, "DS", []string{"1.5"}),
		mustNewPrivateElement(tag.Tag{Group: 0x2005, Element: 0x1101}, "DS", []string{"-2.25"}),
	}
	return []*dicom.Element{
		mustNewPrivateElement(tag.Tag{Group: 0x2001, Element: 0x0010}, "LO", []string{PhilipsImagingCreator}),
		mustNewPrivateElement(tag.Tag{Group: 0x2005, Element: 0x0010}, "LO", []string{PhilipsMRCreator}),
		mustNewPrivateElement(tag.Tag{Group: 0x2005, Element: 0x100E}, "SQ", [][]*dicom.Element{item}),
	}
}

// vendorElements returns the private elements of every requested vendor.
func vendorElements(vendors []Vendor) []*dicom.Element {
	var elements []*dicom.Element
	for _, v := range vendors {
		switch v {
		case VendorSiemens:
			elements = append(elements, siemensElements()...)
		case VendorGE:
			elements = append(elements, geElements()...)
		case VendorPhilips:
			elements = append(elements, philipsElements()...)
		}
	}
	return elements
}
