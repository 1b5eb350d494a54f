package dicom

import "strings"

// Transfer syntax UIDs referenced by the exporters and tests.
const (
	ImplicitVRLittleEndian = "1.2.840.10008.1.2"
	ExplicitVRLittleEndian = "1.2.840.10008.1.2.1"
	ExplicitVRBigEndian    = "1.2.840.10008.1.2.2"
	JPEGBaseline           = "1.2.840.10008.1.2.4.50"
	JPEGExtended           = "1.2.840.10008.1.2.4.51"
	JPEGLossless           = "1.2.840.10008.1.2.4.57"
	JPEGLosslessSV1        = "1.2.840.10008.1.2.4.70"
	JPEGLSLossless         = "1.2.840.10008.1.2.4.80"
	JPEGLSNearLossless     = "1.2.840.10008.1.2.4.81"
	JPEG2000Lossless       = "1.2.840.10008.1.2.4.90"
	JPEG2000               = "1.2.840.10008.1.2.4.91"
	JPEG2000Part2Lossless  = "1.2.840.10008.1.2.4.92"
	JPEG2000Part2          = "1.2.840.10008.1.2.4.93"
	HTJ2KLossless          = "1.2.840.10008.1.2.4.201"
	HTJ2KLosslessRPCL      = "1.2.840.10008.1.2.4.202"
	HTJ2K                  = "1.2.840.10008.1.2.4.203"
)

// Codec identifies how the frames of a JPEG-family transfer syntax are decoded.
type Codec int

const (
	// CodecUnsupported covers the rest of the branch (MPEG, HEVC video).
	CodecUnsupported Codec = iota
	// CodecJPEGBaseline frames are 8-bit DCT streams image/jpeg reads.
	CodecJPEGBaseline
	// CodecJPEG2000 frames are JPEG 2000 or HTJ2K codestreams.
	CodecJPEG2000
	// CodecTranscode covers extended (12-bit), lossless and JPEG-LS, which
	// are decompressed to native pixels first.
	CodecTranscode
)

func (c Codec) String() string {
	switch c {
	case CodecJPEGBaseline:
		return "jpeg-baseline"
	case CodecJPEG2000:
		return "jpeg2000"
	case CodecTranscode:
		return "transcode"
	default:
		return "unsupported"
	}
}

var codecs = map[string]Codec{
	JPEGBaseline:          CodecJPEGBaseline,
	JPEGExtended:          CodecTranscode,
	JPEGLossless:          CodecTranscode,
	JPEGLosslessSV1:       CodecTranscode,
	JPEGLSLossless:        CodecTranscode,
	JPEGLSNearLossless:    CodecTranscode,
	JPEG2000Lossless:      CodecJPEG2000,
	JPEG2000:              CodecJPEG2000,
	JPEG2000Part2Lossless: CodecJPEG2000,
	JPEG2000Part2:         CodecJPEG2000,
	HTJ2KLossless:         CodecJPEG2000,
	HTJ2KLosslessRPCL:     CodecJPEG2000,
	HTJ2K:                 CodecJPEG2000,
}

// CodecFor returns the frame codec of a transfer syntax.
func CodecFor(uid string) Codec {
	return codecs[strings.TrimRight(uid, " \x00")]
}

// jpegRoot is the UID branch shared by every JPEG-family transfer syntax.
const jpegRoot = "1.2.840.10008.1.2.4"

// IsJPEGFamily reports whether uid belongs to the JPEG transfer syntax
// branch (baseline, extended, lossless, JPEG-LS and JPEG 2000).
func IsJPEGFamily(uid string) bool {
	uid = strings.TrimRight(uid, " \x00")
	return uid == jpegRoot || strings.HasPrefix(uid, jpegRoot+".")
}

var transferSyntaxNames = map[string]string{
	ImplicitVRLittleEndian: "Implicit VR Little Endian",
	ExplicitVRLittleEndian: "Explicit VR Little Endian",
	ExplicitVRBigEndian:    "Explicit VR Big Endian",
	JPEGBaseline:           "JPEG Baseline (Process 1)",
	JPEGExtended:           "JPEG Extended (Process 2 & 4)",
	JPEGLossless:           "JPEG Lossless, Non-Hierarchical (Process 14)",
	JPEGLosslessSV1:        "JPEG Lossless, First-Order Prediction",
	JPEGLSLossless:         "JPEG-LS Lossless",
	JPEGLSNearLossless:     "JPEG-LS Lossy (Near-Lossless)",
	JPEG2000Lossless:       "JPEG 2000 (Lossless Only)",
	JPEG2000:               "JPEG 2000",
	JPEG2000Part2Lossless:  "JPEG 2000 Part 2 Multi-component (Lossless Only)",
	JPEG2000Part2:          "JPEG 2000 Part 2 Multi-component",
	HTJ2KLossless:          "High-Throughput JPEG 2000 (Lossless Only)",
	HTJ2KLosslessRPCL:      "High-Throughput JPEG 2000 with RPCL Options (Lossless Only)",
	HTJ2K:                  "High-Throughput JPEG 2000",
}

// TransferSyntaxName returns a readable name for uid, or uid itself when unknown.
func TransferSyntaxName(uid string) string {
	if name, ok := transferSyntaxNames[uid]; ok {
		return name
	}
	return uid
}
