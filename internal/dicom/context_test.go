package dicom

import (
	"testing"

	"github.com/mrsinham/dicom2xml/internal/dicom/fixture"
)

func TestExtractContext(t *testing.T) {
	tests := []struct {
		name        string
		opts        fixture.Options
		placeholder string
		prefix      string
		hasName     bool
		hasID       bool
	}{
		{
			name:   "name and id",
			opts:   fixture.Options{PatientName: "DOE^JOHN", PatientID: "12345"},
			prefix: "DOE^JOHN_12345", hasName: true, hasID: true,
		},
		{
			name:   "missing name",
			opts:   fixture.Options{OmitPatientName: true, PatientID: "12345"},
			prefix: "UNKNOWN_12345", hasID: true,
		},
		{
			name:   "missing id",
			opts:   fixture.Options{PatientName: "DOE^JOHN", OmitPatientID: true},
			prefix: "DOE^JOHN_UNKNOWN", hasName: true,
		},
		{
			name:   "both missing",
			opts:   fixture.Options{OmitPatientName: true, OmitPatientID: true},
			prefix: "UNKNOWN_UNKNOWN",
		},
		{
			name:   "empty values count as missing",
			opts:   fixture.Options{PatientName: "", PatientID: ""},
			prefix: "UNKNOWN_UNKNOWN",
		},
		{
			name:        "custom placeholder",
			opts:        fixture.Options{OmitPatientName: true, PatientID: "7"},
			placeholder: "ANON",
			prefix:      "ANON_7", hasID: true,
		},
		{
			name:   "latin-1 name decoded",
			opts:   fixture.Options{PatientName: fixture.SpecialCharacterNames[0], PatientID: "12345", CharacterSet: fixture.Latin1},
			prefix: "Müller-Schmidt^Jean-Pierre_12345", hasName: true, hasID: true,
		},
		{
			name:   "utf-8 name kept",
			opts:   fixture.Options{PatientName: "Østergaard^Zoë", PatientID: "12345"},
			prefix: "Østergaard^Zoë_12345", hasName: true, hasID: true,
		},
		{
			name:   "path separators replaced",
			opts:   fixture.Options{PatientName: "A/B", PatientID: "C/D"},
			prefix: "A_B_C_D", hasName: true, hasID: true,
		},
		{
			name:   "multi-valued id uses the first value",
			opts:   fixture.Options{PatientName: "A", PatientID: `C\D`},
			prefix: "A_C", hasName: true, hasID: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ds, err := ReadMetadata(writeTestFile(t, tc.opts))
			if err != nil {
				t.Fatalf("ReadMetadata failed: %v", err)
			}

			c := ExtractContext(ds.Meta, ds.Main, tc.placeholder)
			if c.OutputPrefix != tc.prefix {
				t.Errorf("OutputPrefix = %q, want %q", c.OutputPrefix, tc.prefix)
			}
			if c.HasPatientName != tc.hasName || c.HasPatientID != tc.hasID {
				t.Errorf("HasPatientName=%v HasPatientID=%v, want %v %v", c.HasPatientName, c.HasPatientID, tc.hasName, tc.hasID)
			}
			if !c.HasTransferSyntax || c.TransferSyntaxUID != ExplicitVRLittleEndian {
				t.Errorf("TransferSyntaxUID = %q (%v)", c.TransferSyntaxUID, c.HasTransferSyntax)
			}
		})
	}
}

func TestExtractContext_Deterministic(t *testing.T) {
	ds, err := ReadMetadata(writeTestFile(t, fixture.Options{PatientName: "DOE^JOHN", PatientID: "12345"}))
	if err != nil {
		t.Fatalf("ReadMetadata failed: %v", err)
	}
	first := ExtractContext(ds.Meta, ds.Main, "")
	second := ExtractContext(ds.Meta, ds.Main, "")
	if first != second {
		t.Errorf("contexts differ: %+v vs %+v", first, second)
	}
	if first.PatientName != "DOE^JOHN" || first.PatientID != "12345" {
		t.Errorf("context = %+v", first)
	}
}

func TestExtractContext_TransferSyntaxFromMetaOnly(t *testing.T) {
	ds, err := ReadMetadata(writeTestFile(t, fixture.Options{
		PatientName:       "A",
		PatientID:         "1",
		TransferSyntaxUID: JPEGBaseline,
		NumFrames:         1,
	}))
	if err != nil {
		t.Fatalf("ReadMetadata failed: %v", err)
	}

	if c := ExtractContext(ds.Meta, ds.Main, ""); c.TransferSyntaxUID != JPEGBaseline {
		t.Errorf("TransferSyntaxUID = %q, want %q", c.TransferSyntaxUID, JPEGBaseline)
	}
	if c := ExtractContext(ds.Main, ds.Main, ""); c.HasTransferSyntax {
		t.Error("transfer syntax must only be read from the file meta information")
	}
}
