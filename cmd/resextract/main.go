// Command resextract dumps the resources packed into a toumapet ROM/flash
// image as standalone files: RLE images as binary PPM, 1-bit images as
// ASCII PBM, and everything else (including sound, per SPEC_FULL.md's
// Open Question decision) as raw .bin.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/toumapet/toumapet-emu/internal/rom"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: resextract flash.bin [path/name] [index]")
		return
	}
	romFn := os.Args[1]
	outFn := "res"
	if len(os.Args) > 2 {
		outFn = os.Args[2]
	}
	resIdx := -1
	if len(os.Args) > 3 {
		n, err := strconv.ParseInt(os.Args[3], 0, 64)
		if err != nil {
			fmt.Fprintln(os.Stderr, "bad index:", err)
			os.Exit(1)
		}
		resIdx = int(n)
	}

	r, err := rom.Load(romFn, 8<<20)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := r.VerifyAndUnmask(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	pal := extractPalette()
	data := r.Bytes()

	start, end := 0, resourceCount(r)
	if resIdx >= 0 {
		start = resIdx
		if end > start+1 {
			end = start + 1
		}
	}

	for i := start; i < end; i++ {
		resStart, resEnd, err := r.ResourceBounds(i)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		kind := r.ResourceKind(resStart, resEnd)
		res := data[resStart:resEnd]

		var name, extn string
		switch kind {
		case rom.KindImageRLE:
			extn = "ppm"
		case rom.KindSound:
			extn = "bin"
		case rom.KindImage1Bit:
			extn = "pbm"
		default:
			extn = "bin"
		}
		if resIdx >= 0 {
			name = fmt.Sprintf("%s.%s", outFn, extn)
		} else {
			name = fmt.Sprintf("%s%d.%s", outFn, i, extn)
		}

		var derr error
		switch kind {
		case rom.KindImageRLE:
			derr = decodeImage(res, pal, name)
		case rom.KindSound:
			derr = writeRaw(res, name)
		case rom.KindImage1Bit:
			derr = decodeImage1Bit(res, name)
		default:
			derr = writeRaw(res, name)
		}
		if derr != nil {
			fmt.Printf("error at res%d (addr = 0x%x): %v\n", i, resStart, derr)
		}
	}
}

// resourceCount returns how many resource-table entries exist before the
// table itself starts (the table's own offset doubles as the end
// sentinel, matching main()'s `end = rom_size - res_tab - 5` derivation
// adapted to our table-entry width).
func resourceCount(r *rom.ROM) int {
	n := 0
	for {
		if _, _, err := r.ResourceBounds(n); err != nil {
			return n
		}
		n++
	}
}

func writeRaw(data []byte, name string) error {
	return os.WriteFile(name, data, 0o644)
}

// extractPalette builds resextract's own 256-color gamma table — distinct
// from the device's own runtime palette (internal/video.BuildPalette),
// which expands indices for direct host-window presentation rather than
// producing plain 8-bit-per-channel RGB triples for a PPM file.
func extractPalette() [256][3]byte {
	curveR := [8]byte{0, 8, 24, 57, 99, 123, 214, 255}
	curveG := [8]byte{0, 12, 24, 48, 85, 125, 170, 255}
	curveB := [4]byte{0, 66, 132, 255}
	var pal [256][3]byte
	for i := range pal {
		pal[i][0] = curveR[i>>5&7]
		pal[i][1] = curveG[i>>2&7]
		pal[i][2] = curveB[i&3]
	}
	return pal
}

// decodeImage expands a row-RLE image resource into a binary PPM (P6).
func decodeImage(src []byte, pal [256][3]byte, name string) error {
	if len(src) < 4 {
		return fmt.Errorf("too small")
	}
	if src[1] != 0 || src[3] != 0x80 {
		return fmt.Errorf("unexpected image header")
	}
	w, h := int(src[0]), int(src[2])
	size := len(src) - 4
	src = src[4:]
	data := make([]byte, w*h)

	for y := 0; y < h; y++ {
		rowLen := int(src[0]) | int(src[1])<<8
		if size < rowLen {
			return fmt.Errorf("end of file")
		}
		s := src[2:]
		src = src[rowLen:]
		size -= rowLen
		remaining := rowLen - 4
		a, n := 0, 1
		row := data[y*w : (y+1)*w]
		for x := 0; x < w; x++ {
			n--
			if n == 0 {
				remaining--
				if remaining < 0 {
					return fmt.Errorf("RLE error")
				}
				a = int(s[0])
				s = s[1:]
				n = 1
				if a == 0 {
					remaining -= 2
					if remaining < 0 {
						return fmt.Errorf("RLE error")
					}
					a = int(s[0])
					n = int(s[1])
					s = s[2:]
					if n == 0 {
						return fmt.Errorf("zero RLE count")
					}
				}
			}
			row[x] = byte(a)
		}
	}

	f, err := os.Create(name)
	if err != nil {
		return err
	}
	defer f.Close()
	fmt.Fprintf(f, "P6\n%d %d\n255\n", w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := pal[data[y*w+x]]
			if _, err := f.Write(c[:]); err != nil {
				return err
			}
		}
	}
	return nil
}

// decodeImage1Bit expands a packed 1bpp image resource into an ASCII PBM
// (P1), matching decode_image_1bit's text output (no compact binary P4
// path exists in the original, so none is added here).
func decodeImage1Bit(src []byte, name string) error {
	if len(src) < 2 {
		return fmt.Errorf("too small")
	}
	w, h := int(src[0]), int(src[1])
	src = src[2:]
	need := ((w+7)>>3)*h + 2 - 2
	if len(src) < need {
		return fmt.Errorf("too small")
	}
	data := make([]byte, w*h)

	for y := 0; y < h; y++ {
		a := -1
		row := data[y*w : (y+1)*w]
		for x := 0; x < w; x++ {
			if a&(1<<16) != 0 {
				a = int(src[0]) | 0x100
				src = src[1:]
			}
			bit := (a >> 7) & 1
			row[x] = byte(bit) + '0'
			a <<= 1
		}
	}

	f, err := os.Create(name)
	if err != nil {
		return err
	}
	defer f.Close()
	fmt.Fprintf(f, "P1\n%d %d\n", w, h)
	for y := 0; y < h; y++ {
		f.Write(data[y*w : (y+1)*w])
		fmt.Fprintln(f)
	}
	return nil
}
