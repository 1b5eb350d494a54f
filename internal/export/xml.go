package export

import (
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	dcm "github.com/mrsinham/dicom2xml/internal/dicom"
	"github.com/mrsinham/dicom2xml/internal/util"
)

// NativeModelNamespace is the namespace of the DICOM Native Model (PS3.19).
const NativeModelNamespace = "http://dicom.nema.org/PS3.19/models/NativeDICOM"

const xmlStage = "xml"

// XMLOptions controls the XML rendering.
type XMLOptions struct {
	Indent bool
	// OmitTags lists tags written as empty DicomAttribute elements.
	OmitTags []tag.Tag
}

// ExportXML parses inputPath and writes its full attribute set to
// {outputDir}/{prefix}.xml. It returns the path of the written file.
func ExportXML(inputPath, outputDir, prefix string, opts XMLOptions) (string, error) {
	ds, err := dcm.OpenAndParse(inputPath, dicom.SkipProcessingPixelDataValue())
	if err != nil {
		return "", err
	}

	path := filepath.Join(outputDir, prefix+".xml")
	err = writeAtomic(xmlStage, path, func(w io.Writer) error {
		return WriteXML(w, ds, opts)
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

// WriteXML streams ds to w as a Native DICOM Model document. Failures of w
// are reported as IOFailure, every other encoding failure as
// SerializationFailure.
func WriteXML(w io.Writer, ds *dcm.Dataset, opts XMLOptions) error {
	rec := &recordingWriter{w: w}
	x := newXMLWriter(rec, ds, opts)

	err := x.writeDocument(ds.All.Elements)
	if err == nil {
		return nil
	}
	if rec.err != nil {
		return dcm.NewError(dcm.KindIOFailure, xmlStage, ds.Path, fmt.Errorf("write xml: %w", rec.err))
	}
	return dcm.NewError(dcm.KindSerializationFailure, xmlStage, ds.Path, err)
}

type xmlWriter struct {
	w       io.Writer
	enc     *xml.Encoder
	strings *util.StringDecoder
	omit    map[tag.Tag]bool
}

func newXMLWriter(w io.Writer, ds *dcm.Dataset, opts XMLOptions) *xmlWriter {
	enc := xml.NewEncoder(w)
	if opts.Indent {
		enc.Indent("", "  ")
	}

	omit := make(map[tag.Tag]bool, len(opts.OmitTags))
	for _, t := range opts.OmitTags {
		omit[t] = true
	}

	return &xmlWriter{
		w:       w,
		enc:     enc,
		strings: util.NewStringDecoder(dcm.CharacterSets(ds.Main)),
		omit:    omit,
	}
}

func (x *xmlWriter) writeDocument(elements []*dicom.Element) error {
	if _, err := io.WriteString(x.w, xml.Header); err != nil {
		return err
	}

	root := xml.StartElement{
		Name: xml.Name{Local: "NativeDicomModel"},
		Attr: []xml.Attr{{Name: xml.Name{Local: "xmlns"}, Value: NativeModelNamespace}},
	}
	if err := x.enc.EncodeToken(root); err != nil {
		return err
	}
	if err := x.writeElements(elements); err != nil {
		return err
	}
	if err := x.enc.EncodeToken(root.End()); err != nil {
		return err
	}
	if err := x.enc.Close(); err != nil {
		return err
	}
	_, err := io.WriteString(x.w, "\n")
	return err
}

// writeElements writes one nesting level. Private creators are resolved
// against the elements of the same level only.
func (x *xmlWriter) writeElements(elements []*dicom.Element) error {
	creators := privateCreators(elements)
	for _, elem := range elements {
		if elem == nil {
			continue
		}
		if err := x.writeAttribute(elem, creators); err != nil {
			return err
		}
	}
	return nil
}

func (x *xmlWriter) writeAttribute(elem *dicom.Element, creators map[privateBlock]string) error {
	t := elem.Tag
	vr := valueRepresentation(elem)

	var attrs []xml.Attr
	if keyword := keywordOf(t); keyword != "" {
		attrs = append(attrs, xmlAttr("keyword", keyword))
	}
	attrs = append(attrs, xmlAttr("tag", fmt.Sprintf("%04X%04X", t.Group, t.Element)))
	if creator, ok := creators[blockOf(t)]; ok && isPrivateData(t) {
		attrs = append(attrs, xmlAttr("privateCreator", creator))
	}
	attrs = append(attrs, xmlAttr("vr", vr))

	start := xml.StartElement{Name: xml.Name{Local: "DicomAttribute"}, Attr: attrs}
	if err := x.enc.EncodeToken(start); err != nil {
		return err
	}
	if !x.omit[t] && elem.Value != nil {
		if err := x.writeValue(elem.Value, vr); err != nil {
			return fmt.Errorf("element %s: %w", t, err)
		}
	}
	return x.enc.EncodeToken(start.End())
}

func (x *xmlWriter) writeValue(v dicom.Value, vr string) error {
	switch v.ValueType() {
	case dicom.Strings:
		values, _ := v.GetValue().([]string)
		if vr == "PN" {
			return x.writePersonNames(values)
		}
		for i, s := range values {
			s = strings.TrimRight(x.strings.Decode(s), " \x00")
			if s == "" {
				continue
			}
			if err := x.writeText("Value", i+1, s); err != nil {
				return err
			}
		}
	case dicom.Ints:
		values, _ := v.GetValue().([]int)
		if vr == "AT" && len(values)%2 == 0 {
			for i := 0; i < len(values); i += 2 {
				s := fmt.Sprintf("%04X%04X", uint16(values[i]), uint16(values[i+1]))
				if err := x.writeText("Value", i/2+1, s); err != nil {
					return err
				}
			}
			return nil
		}
		for i, n := range values {
			if err := x.writeText("Value", i+1, strconv.Itoa(n)); err != nil {
				return err
			}
		}
	case dicom.Floats:
		values, _ := v.GetValue().([]float64)
		bitSize := 64
		if vr == "FL" || vr == "OF" {
			bitSize = 32
		}
		for i, f := range values {
			if err := x.writeText("Value", i+1, strconv.FormatFloat(f, 'g', -1, bitSize)); err != nil {
				return err
			}
		}
	case dicom.Bytes:
		data, _ := v.GetValue().([]byte)
		return x.writeInlineBinary(data)
	case dicom.Sequences:
		items, _ := v.GetValue().([]*dicom.SequenceItemValue)
		for i, item := range items {
			if err := x.writeItem(i+1, item); err != nil {
				return err
			}
		}
	case dicom.PixelData:
		info, ok := v.GetValue().(dicom.PixelDataInfo)
		if !ok {
			return fmt.Errorf("unexpected pixel data value %T", v.GetValue())
		}
		return x.writePixelData(info)
	}
	return nil
}

func (x *xmlWriter) writeItem(number int, item *dicom.SequenceItemValue) error {
	start := xml.StartElement{
		Name: xml.Name{Local: "Item"},
		Attr: []xml.Attr{xmlAttr("number", strconv.Itoa(number))},
	}
	if err := x.enc.EncodeToken(start); err != nil {
		return err
	}
	if item != nil {
		elements, _ := item.GetValue().([]*dicom.Element)
		if err := x.writeElements(elements); err != nil {
			return err
		}
	}
	return x.enc.EncodeToken(start.End())
}

func (x *xmlWriter) writePixelData(info dicom.PixelDataInfo) error {
	if info.IsEncapsulated {
		for i, fr := range info.Frames {
			if fr == nil {
				continue
			}
			start := xml.StartElement{
				Name: xml.Name{Local: "DataFragment"},
				Attr: []xml.Attr{xmlAttr("number", strconv.Itoa(i+1))},
			}
			if err := x.enc.EncodeToken(start); err != nil {
				return err
			}
			if err := x.writeInlineBinary(fr.EncapsulatedData.Data); err != nil {
				return err
			}
			if err := x.enc.EncodeToken(start.End()); err != nil {
				return err
			}
		}
		return nil
	}
	return x.writeInlineBinary(info.UnprocessedValueData)
}

func (x *xmlWriter) writeInlineBinary(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	start := xml.StartElement{Name: xml.Name{Local: "InlineBinary"}}
	if err := x.enc.EncodeToken(start); err != nil {
		return err
	}
	if err := x.enc.EncodeToken(xml.CharData(base64.StdEncoding.EncodeToString(data))); err != nil {
		return err
	}
	return x.enc.EncodeToken(start.End())
}

// personNameGroups are the component groups of a PN value, separated by '='.
var personNameGroups = []string{"Alphabetic", "Ideographic", "Phonetic"}

// personNameComponents are the components of a group, separated by '^'.
var personNameComponents = []string{"FamilyName", "GivenName", "MiddleName", "NamePrefix", "NameSuffix"}

func (x *xmlWriter) writePersonNames(values []string) error {
	for i, raw := range values {
		raw = strings.TrimRight(x.strings.Decode(raw), " \x00")
		if raw == "" {
			continue
		}
		start := xml.StartElement{
			Name: xml.Name{Local: "PersonName"},
			Attr: []xml.Attr{xmlAttr("number", strconv.Itoa(i+1))},
		}
		if err := x.enc.EncodeToken(start); err != nil {
			return err
		}

		groups := strings.SplitN(raw, "=", len(personNameGroups))
		for g, group := range groups {
			if group == "" {
				continue
			}
			groupStart := xml.StartElement{Name: xml.Name{Local: personNameGroups[g]}}
			if err := x.enc.EncodeToken(groupStart); err != nil {
				return err
			}
			components := strings.SplitN(group, "^", len(personNameComponents))
			for c, component := range components {
				component = strings.TrimSpace(component)
				if component == "" {
					continue
				}
				if err := x.writeText(personNameComponents[c], 0, component); err != nil {
					return err
				}
			}
			if err := x.enc.EncodeToken(groupStart.End()); err != nil {
				return err
			}
		}

		if err := x.enc.EncodeToken(start.End()); err != nil {
			return err
		}
	}
	return nil
}

// writeText writes <name number="n">text</name>; number 0 omits the attribute.
func (x *xmlWriter) writeText(name string, number int, text string) error {
	start := xml.StartElement{Name: xml.Name{Local: name}}
	if number > 0 {
		start.Attr = []xml.Attr{xmlAttr("number", strconv.Itoa(number))}
	}
	if err := x.enc.EncodeToken(start); err != nil {
		return err
	}
	if err := x.enc.EncodeToken(xml.CharData(text)); err != nil {
		return err
	}
	return x.enc.EncodeToken(start.End())
}

func xmlAttr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}

// privateBlock identifies a reserved private block: odd group plus the high
// byte of the element number.
type privateBlock struct {
	group uint16
	block uint16
}

func blockOf(t tag.Tag) privateBlock {
	return privateBlock{group: t.Group, block: t.Element >> 8}
}

func isPrivateGroup(t tag.Tag) bool {
	return t.Group%2 == 1
}

// isPrivateCreator reports whether t is a private creator element (gggg,0010-00FF).
func isPrivateCreator(t tag.Tag) bool {
	return isPrivateGroup(t) && t.Element >= 0x0010 && t.Element <= 0x00FF
}

// isPrivateData reports whether t is a data element of a private block (gggg,1000-FFFF).
func isPrivateData(t tag.Tag) bool {
	return isPrivateGroup(t) && t.Element >= 0x1000
}

// privateCreators maps each private block reserved at this level to its
// creator identification.
func privateCreators(elements []*dicom.Element) map[privateBlock]string {
	creators := make(map[privateBlock]string)
	for _, elem := range elements {
		if elem == nil || !isPrivateCreator(elem.Tag) || elem.Value == nil {
			continue
		}
		if elem.Value.ValueType() != dicom.Strings {
			continue
		}
		values, _ := elem.Value.GetValue().([]string)
		if len(values) == 0 {
			continue
		}
		creator := strings.TrimSpace(strings.TrimRight(values[0], "\x00"))
		if creator == "" {
			continue
		}
		creators[privateBlock{group: elem.Tag.Group, block: elem.Tag.Element}] = creator
	}
	return creators
}

// keywordOf returns the dictionary keyword of t, or "" for private and
// unknown tags.
func keywordOf(t tag.Tag) string {
	if isPrivateGroup(t) {
		return ""
	}
	info, err := tag.Find(t)
	if err != nil {
		return ""
	}
	return info.Keyword
}

// valueRepresentation returns the two-letter VR of elem, falling back to the
// dictionary and finally to UN.
func valueRepresentation(elem *dicom.Element) string {
	vr := strings.TrimSpace(elem.RawValueRepresentation)
	if len(vr) == 2 {
		return vr
	}
	if !isPrivateGroup(elem.Tag) {
		if info, err := tag.Find(elem.Tag); err == nil && len(info.VRs) > 0 && len(info.VRs[0]) == 2 {
			return info.VRs[0]
		}
	}
	return "UN"
}
