package dicom

import (
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/mrsinham/dicom2xml/internal/util"
)

// DefaultPlaceholder stands in for a missing patient name or ID in the output prefix.
const DefaultPlaceholder = "UNKNOWN"

// Context is the read-only projection of a dataset shared by all exporters.
type Context struct {
	PatientName       string
	HasPatientName    bool
	PatientID         string
	HasPatientID      bool
	TransferSyntaxUID string
	HasTransferSyntax bool
	OutputPrefix      string
}

// ExtractContext derives the extraction context from the file meta
// information and the main dataset. It never fails: missing fields are
// rendered with placeholder (DefaultPlaceholder when empty). Patient
// fields are decoded to UTF-8 using the dataset's SpecificCharacterSet.
func ExtractContext(meta, main dicom.Dataset, placeholder string) Context {
	if placeholder == "" {
		placeholder = DefaultPlaceholder
	}

	var c Context
	c.TransferSyntaxUID, c.HasTransferSyntax = StringValue(meta, tag.TransferSyntaxUID)
	c.PatientName, c.HasPatientName = StringValue(main, tag.PatientName)
	c.PatientID, c.HasPatientID = StringValue(main, tag.PatientID)

	dec := util.NewStringDecoder(CharacterSets(main))
	c.PatientName = dec.Decode(c.PatientName)
	c.PatientID = dec.Decode(c.PatientID)

	name := placeholder
	if c.HasPatientName {
		name = c.PatientName
	}
	id := placeholder
	if c.HasPatientID {
		id = c.PatientID
	}
	c.OutputPrefix = sanitizePrefix(name) + "_" + sanitizePrefix(id)
	return c
}

// sanitizePrefix replaces characters that would take a file name outside the
// output directory.
func sanitizePrefix(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return '_'
		}
		return r
	}, s)
}

// CharacterSets returns the SpecificCharacterSet terms of ds.
func CharacterSets(ds dicom.Dataset) []string {
	elem, err := ds.FindElementByTag(tag.SpecificCharacterSet)
	if err != nil || elem.Value == nil || elem.Value.ValueType() != dicom.Strings {
		return nil
	}
	terms, _ := elem.Value.GetValue().([]string)
	return terms
}
