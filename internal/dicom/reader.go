// Package dicom reads DICOM files and derives the metadata that drives an
// extraction run.
package dicom

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// metaGroup is the DICOM group holding the file meta information.
const metaGroup = 0x0002

// Dataset is a parsed DICOM file with its file meta information held apart
// from the main dataset.
type Dataset struct {
	Path string
	// All holds every element in file order, meta information included.
	All dicom.Dataset
	// Meta holds the group 0x0002 elements.
	Meta dicom.Dataset
	// Main holds every other top-level element.
	Main dicom.Dataset
}

// OpenAndParse opens the file at path and parses it with the given options.
// The file is always closed before returning.
func OpenAndParse(path string, opts ...dicom.ParseOption) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, NewError(KindIOFailure, "read", path, fmt.Errorf("open input: %w", err))
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, NewError(KindIOFailure, "read", path, fmt.Errorf("stat input: %w", err))
	}
	if info.IsDir() {
		return nil, NewError(KindIOFailure, "read", path, fmt.Errorf("input is a directory"))
	}

	ds, err := dicom.Parse(f, info.Size(), nil, opts...)
	if err != nil {
		return nil, NewError(KindDicomParseFailure, "read", path, fmt.Errorf("parse DICOM: %w", err))
	}

	return split(path, ds), nil
}

// ReadMetadata parses the file without loading pixel data. It is enough for
// the extraction context and for the document exporter.
func ReadMetadata(path string) (*Dataset, error) {
	return OpenAndParse(path, dicom.SkipPixelData())
}

func split(path string, ds dicom.Dataset) *Dataset {
	out := &Dataset{Path: path, All: ds}
	for _, elem := range ds.Elements {
		if elem.Tag.Group == metaGroup {
			out.Meta.Elements = append(out.Meta.Elements, elem)
		} else {
			out.Main.Elements = append(out.Main.Elements, elem)
		}
	}
	return out
}

// StringValue returns the first string value of t in ds.
// The boolean is false when the element is missing, has no values, or the
// first value is blank once DICOM padding is removed.
func StringValue(ds dicom.Dataset, t tag.Tag) (string, bool) {
	elem, err := ds.FindElementByTag(t)
	if err != nil || elem.Value == nil {
		return "", false
	}
	if elem.Value.ValueType() != dicom.Strings {
		return "", false
	}
	values, ok := elem.Value.GetValue().([]string)
	if !ok || len(values) == 0 {
		return "", false
	}
	v := strings.TrimRight(values[0], " \x00")
	v = strings.TrimLeft(v, " ")
	if v == "" {
		return "", false
	}
	return v, true
}

// IntValue returns the first numeric value of t in ds. IS elements are
// decoded from their string form.
func IntValue(ds dicom.Dataset, t tag.Tag) (int, bool) {
	elem, err := ds.FindElementByTag(t)
	if err != nil || elem.Value == nil {
		return 0, false
	}
	switch elem.Value.ValueType() {
	case dicom.Ints:
		values, ok := elem.Value.GetValue().([]int)
		if !ok || len(values) == 0 {
			return 0, false
		}
		return values[0], true
	case dicom.Strings:
		s, ok := StringValue(ds, t)
		if !ok {
			return 0, false
		}
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// BytesValue returns the raw bytes of t in ds.
func BytesValue(ds dicom.Dataset, t tag.Tag) ([]byte, bool) {
	elem, err := ds.FindElementByTag(t)
	if err != nil || elem.Value == nil {
		return nil, false
	}
	if elem.Value.ValueType() != dicom.Bytes {
		return nil, false
	}
	b, ok := elem.Value.GetValue().([]byte)
	return b, ok
}
