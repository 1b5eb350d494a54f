package fixture

import (
	"fmt"

	"golang.org/x/text/encoding/charmap"
)

// SpecialCharacterNames are person names outside ASCII that every Latin-1
// repertoire can still represent.
var SpecialCharacterNames = []string{
	"Müller-Schmidt^Jean-Pierre",
	"O'Connor^Françoise",
	"D'Agostino^André",
	"García-López^José",
	"Björnsson^Søren",
	"Østergaard^Zoë",
	"Pérez-Rodríguez^Ángela",
	"González^Éléonore",
}

// Latin1 is the SpecificCharacterSet term for ISO 8859-1.
const Latin1 = "ISO_IR 100"

// encodeText converts s from UTF-8 to the repertoire named by charset.
func encodeText(charset, s string) (string, error) {
	switch charset {
	case "", "ISO_IR 192":
		return s, nil
	case Latin1:
		out, err := charmap.ISO8859_1.NewEncoder().String(s)
		if err != nil {
			return "", fmt.Errorf("encode %q as %s: %w", s, charset, err)
		}
		return out, nil
	}
	return "", fmt.Errorf("unsupported character set %q", charset)
}
