package util

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
)

// characterSetLabels maps DICOM SpecificCharacterSet defined terms to
// encoding/htmlindex labels. "" means the default repertoire.
var characterSetLabels = map[string]string{
	"":                "",
	"ISO_IR 6":        "",
	"ISO 2022 IR 6":   "",
	"ISO_IR 100":      "iso-8859-1",
	"ISO 2022 IR 100": "iso-8859-1",
	"ISO_IR 101":      "iso-8859-2",
	"ISO 2022 IR 101": "iso-8859-2",
	"ISO_IR 109":      "iso-8859-3",
	"ISO 2022 IR 109": "iso-8859-3",
	"ISO_IR 110":      "iso-8859-4",
	"ISO 2022 IR 110": "iso-8859-4",
	"ISO_IR 144":      "iso-8859-5",
	"ISO 2022 IR 144": "iso-8859-5",
	"ISO_IR 127":      "iso-8859-6",
	"ISO 2022 IR 127": "iso-8859-6",
	"ISO_IR 126":      "iso-8859-7",
	"ISO 2022 IR 126": "iso-8859-7",
	"ISO_IR 138":      "iso-8859-8",
	"ISO 2022 IR 138": "iso-8859-8",
	"ISO_IR 148":      "iso-8859-9",
	"ISO 2022 IR 148": "iso-8859-9",
	"ISO_IR 13":       "shift_jis",
	"ISO 2022 IR 13":  "shift_jis",
	"ISO_IR 166":      "windows-874",
	"ISO 2022 IR 166": "windows-874",
	"ISO 2022 IR 87":  "iso-2022-jp",
	"ISO 2022 IR 159": "iso-2022-jp",
	"ISO 2022 IR 149": "euc-kr",
	"ISO_IR 192":      "utf-8",
	"GB18030":         "gb18030",
	"GBK":             "gbk",
}

// StringDecoder turns raw DICOM string values into UTF-8.
type StringDecoder struct {
	dec *encoding.Decoder
}

// NewStringDecoder builds a decoder for the first SpecificCharacterSet term
// that maps to a known encoding. Unknown or empty terms yield a decoder that
// only falls back to ISO 8859-1, the most common legacy repertoire.
func NewStringDecoder(terms []string) *StringDecoder {
	for _, term := range terms {
		label, ok := characterSetLabels[strings.TrimSpace(term)]
		if !ok || label == "" {
			continue
		}
		if enc, err := lookupEncoding(label); err == nil {
			return &StringDecoder{dec: enc.NewDecoder()}
		}
	}
	return &StringDecoder{dec: charmap.ISO8859_1.NewDecoder()}
}

// lookupEncoding resolves a label. htmlindex follows WHATWG, which aliases
// iso-8859-1 to windows-1252, so Latin-1 is taken from charmap directly.
func lookupEncoding(label string) (encoding.Encoding, error) {
	if label == "iso-8859-1" {
		return charmap.ISO8859_1, nil
	}
	return htmlindex.Get(label)
}

// Decode returns s unchanged when it is already valid UTF-8; otherwise it
// transcodes s from the decoder's character set.
func (d *StringDecoder) Decode(s string) string {
	if utf8.ValidString(s) || d == nil || d.dec == nil {
		return s
	}
	out, err := d.dec.String(s)
	if err != nil {
		return s
	}
	return out
}
