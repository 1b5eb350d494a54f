package fixture

import (
	"bytes"
	"image"
	"math/bits"
)

// Table K.3 luminance DC code lengths and symbols.
var (
	losslessBits   = [16]byte{0, 1, 5, 1, 1, 1, 1, 1, 1}
	losslessValues = []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}
)

type huffCode struct {
	code uint16
	size uint8
}

func losslessCodes() map[byte]huffCode {
	codes := make(map[byte]huffCode, len(losslessValues))
	var code uint16
	k := 0
	for length := 1; length <= 16; length++ {
		for i := 0; i < int(losslessBits[length-1]); i++ {
			codes[losslessValues[k]] = huffCode{code: code, size: uint8(length)}
			code++
			k++
		}
		code <<= 1
	}
	return codes
}

type bitWriter struct {
	buf   bytes.Buffer
	acc   uint32
	nbits uint
}

func (w *bitWriter) write(v uint32, n uint) {
	for i := int(n) - 1; i >= 0; i-- {
		w.acc = w.acc<<1 | (v>>uint(i))&1
		w.nbits++
		if w.nbits == 8 {
			w.emit()
		}
	}
}

func (w *bitWriter) emit() {
	b := byte(w.acc)
	w.buf.WriteByte(b)
	if b == 0xFF {
		w.buf.WriteByte(0x00)
	}
	w.acc, w.nbits = 0, 0
}

// flush pads the last byte with ones.
func (w *bitWriter) flush() {
	for w.nbits != 0 {
		w.write(1, 1)
	}
}

// encodeLossless writes img as a process 14 (SOF3) JPEG with selection
// value 1 and no point transform.
func encodeLossless(img *image.Gray) []byte {
	width, height := img.Rect.Dx(), img.Rect.Dy()
	var out bytes.Buffer

	out.Write([]byte{0xFF, 0xD8})

	out.Write([]byte{0xFF, 0xC4, 0x00, byte(2 + 1 + 16 + len(losslessValues)), 0x00})
	out.Write(losslessBits[:])
	out.Write(losslessValues)

	out.Write([]byte{0xFF, 0xC3, 0x00, 11, 8,
		byte(height >> 8), byte(height), byte(width >> 8), byte(width),
		1, 1, 0x11, 0})

	out.Write([]byte{0xFF, 0xDA, 0x00, 8, 1, 1, 0x00, 1, 0, 0x00})

	codes := losslessCodes()
	var w bitWriter
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var pred int
			switch {
			case x == 0 && y == 0:
				pred = 128
			case y == 0:
				pred = int(img.GrayAt(x-1, y).Y)
			case x == 0:
				pred = int(img.GrayAt(x, y-1).Y)
			default:
				pred = int(img.GrayAt(x-1, y).Y)
			}
			diff := int(img.GrayAt(x, y).Y) - pred

			mag := diff
			if mag < 0 {
				mag = -mag
			}
			ssss := uint(bits.Len(uint(mag)))
			hc := codes[byte(ssss)]
			w.write(uint32(hc.code), uint(hc.size))
			if ssss > 0 {
				extra := diff
				if diff < 0 {
					extra = diff - 1
				}
				w.write(uint32(extra)&(1<<ssss-1), ssss)
			}
		}
	}
	w.flush()
	out.Write(w.buf.Bytes())

	out.Write([]byte{0xFF, 0xD9})
	return out.Bytes()
}
