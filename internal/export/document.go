package export

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/suyashkumar/dicom/pkg/tag"

	dcm "github.com/mrsinham/dicom2xml/internal/dicom"
)

const documentStage = "document"

// documentExtensions maps non-PDF encapsulated document MIME types to the
// extension of the written file.
var documentExtensions = map[string]string{
	"model/stl": "stl",
	"model/obj": "obj",
	"model/mtl": "mtl",
	"text/xml":  "cda.xml",
}

// DocumentExtension returns the file extension for an encapsulated document
// of the given MIME type. Unknown or missing types are written as PDF.
func DocumentExtension(mime string) string {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	if ext, ok := documentExtensions[mime]; ok {
		return ext
	}
	return "pdf"
}

// ExportDocument writes the EncapsulatedDocument payload of inputPath to
// {outputDir}/{prefix}.{ext}, byte for byte. The boolean is false, and
// nothing is written, when the dataset carries no document.
func ExportDocument(inputPath, outputDir, prefix string) (string, bool, error) {
	ds, err := dcm.ReadMetadata(inputPath)
	if err != nil {
		return "", false, err
	}

	data, ok := dcm.BytesValue(ds.Main, tag.EncapsulatedDocument)
	if !ok {
		return "", false, nil
	}
	mime, _ := dcm.StringValue(ds.Main, tag.MIMETypeOfEncapsulatedDocument)

	path := filepath.Join(outputDir, prefix+"."+DocumentExtension(mime))
	err = writeAtomic(documentStage, path, func(w io.Writer) error {
		if _, err := w.Write(data); err != nil {
			return dcm.NewError(dcm.KindIOFailure, documentStage, path, fmt.Errorf("write document: %w", err))
		}
		return nil
	})
	if err != nil {
		return "", true, err
	}
	return path, true, nil
}
