package util

import "testing"

func TestStringDecoder_Decode(t *testing.T) {
	tests := []struct {
		name     string
		terms    []string
		input    string
		expected string
	}{
		{"valid utf-8 untouched", []string{"ISO_IR 100"}, "Müller", "Müller"},
		{"latin-1 bytes", []string{"ISO_IR 100"}, "M\xfcller", "Müller"},
		{"no terms falls back to latin-1", nil, "Jos\xe9", "José"},
		{"unknown term falls back to latin-1", []string{"ISO_IR 999"}, "Jos\xe9", "José"},
		{"latin-2 bytes", []string{"ISO_IR 101"}, "\xb3", "ł"},
		{"plain ascii", []string{"ISO_IR 6"}, "DOE^JOHN", "DOE^JOHN"},
		{"latin-1 is not windows-1252", []string{"ISO_IR 100"}, "A\x80\x9c", "A\u0080\u009c"},
		{"fallback is not windows-1252", nil, "A\x80", "A\u0080"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := NewStringDecoder(tc.terms).Decode(tc.input)
			if got != tc.expected {
				t.Errorf("Decode(%q) = %q, want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestStringDecoder_NilSafe(t *testing.T) {
	var d *StringDecoder
	if got := d.Decode("abc"); got != "abc" {
		t.Errorf("nil decoder Decode = %q, want %q", got, "abc")
	}
}
