// Package rom loads and interprets a toumapet ROM/flash image: the XOR
// obfuscation layer, the 3-byte-offset resource table, and the per-model
// screen geometry derived from the raw file size.
package rom

import (
	"os"

	"github.com/toumapet/toumapet-emu/internal/emuerr"
)

// Model identifies which physical device a ROM was dumped from. The
// original firmware has no explicit model field; it infers the model
// purely from the file size.
type Model int

const (
	ModelUnknown Model = iota
	Model550
	Model560
)

// SaveWindowSize is the fixed size of the trailing save region carved out
// of the ROM image (CPU RAM and framebuffer are not part of it).
const SaveWindowSize = 0x10000

// Kind classifies a resource-table entry by its leading bytes, matching
// resextract's type switch.
type Kind int

const (
	KindOpaque Kind = iota
	KindImageRLE
	KindSound
	KindImage1Bit
)

// ROM is a loaded, unmasked toumapet flash image plus its derived layout.
type ROM struct {
	data       []byte
	key        uint8
	resTable   uint32
	saveOffset uint32
	model      Model
	screenH    int
	unmasked   bool
}

// Load reads a ROM file from disk, capping it at max bytes (the original
// loadfile() refuses to read past its nmax argument) and classifying it by
// size into a device Model. It does not verify the magic or unmask the
// image; call VerifyAndUnmask for that.
func Load(path string, max int) (*ROM, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, emuerr.New(emuerr.CategoryROM, "loading ROM failed: %w", err)
	}
	if len(data) > max {
		return nil, emuerr.New(emuerr.CategoryROM, "ROM exceeds %d byte cap", max)
	}

	r := &ROM{data: data}
	switch len(data) {
	case 4 << 20:
		r.model = Model550
		r.screenH = 128
	case 8 << 20:
		r.model = Model560
		r.screenH = 160
	default:
		return nil, emuerr.New(emuerr.CategoryROM, "unexpected ROM size %d", len(data))
	}
	r.saveOffset = uint32(len(data) - SaveWindowSize)
	return r, nil
}

// VerifyAndUnmask checks the "tony" magic at offset 0x23 and, if the
// derived XOR key is nonzero, unmasks the whole image in place. It then
// reads the resource table offset out of the now-unmasked header.
//
// Matches check_rom(): the key comes from rom[0x23]^'t', and bytes
// 0x24..0x26 must equal "ony" once XORed with that same key.
func (r *ROM) VerifyAndUnmask() error {
	if len(r.data) < SaveWindowSize {
		return emuerr.New(emuerr.CategoryROM, "ROM is too small")
	}
	const magicOffset = 0x23
	const magic = "tony"

	key := r.data[magicOffset] ^ magic[0]
	for i := 1; i < 4; i++ {
		if r.data[magicOffset+i]^key != magic[i] {
			return emuerr.New(emuerr.CategoryROM, "ROM magic doesn't match")
		}
	}
	r.key = key
	if key != 0 {
		for i := range r.data {
			r.data[i] ^= key
		}
	}

	resTable := read24(r.data, 0)
	if uint32(len(r.data)) < resTable {
		return emuerr.New(emuerr.CategoryROM, "bad resources offset")
	}
	r.resTable = resTable
	r.unmasked = true
	return nil
}

// Key returns the XOR obfuscation key derived during VerifyAndUnmask.
func (r *ROM) Key() uint8 { return r.key }

// Model returns the device model inferred from the ROM's file size.
func (r *ROM) Model() Model { return r.model }

// ScreenHeight returns the LCD height in pixels for this ROM's model.
func (r *ROM) ScreenHeight() int { return r.screenH }

// SaveOffset returns the byte offset where the save-state region begins.
func (r *ROM) SaveOffset() uint32 { return r.saveOffset }

// Bytes returns the unmasked ROM image.
func (r *ROM) Bytes() []byte { return r.data }

// Size returns the ROM image length.
func (r *ROM) Size() uint32 { return uint32(len(r.data)) }

// ResourceOffset returns the byte offset of resource id's data, replicating
// get_image()'s two bounds checks: the table-entry read itself must be in
// range, and the offset it names must leave room for at least the 4-byte
// image/resource header.
func (r *ROM) ResourceOffset(id int) (uint32, error) {
	entryOffs := r.resTable + uint32(id)*3
	if r.Size() < entryOffs+3 {
		return 0, emuerr.New(emuerr.CategoryROM, "bad resource index %d", id)
	}
	offs := read24(r.data, entryOffs)
	if r.Size() < offs+4 {
		return 0, emuerr.New(emuerr.CategoryROM, "bad resource offset for index %d", id)
	}
	return offs, nil
}

// ResourceBounds returns the [start, end) byte range of resource id's data.
// The end is the next table entry's offset, or the resource table's own
// offset when the next entry is the 0xFFFFFF end-of-table sentinel.
func (r *ROM) ResourceBounds(id int) (start, end uint32, err error) {
	start, err = r.ResourceOffset(id)
	if err != nil {
		return 0, 0, err
	}
	nextEntryOffs := r.resTable + uint32(id+1)*3
	if r.Size() < nextEntryOffs+3 {
		return 0, 0, emuerr.New(emuerr.CategoryROM, "bad resource index %d", id+1)
	}
	next := read24(r.data, nextEntryOffs)
	if next == 0xFFFFFF {
		next = r.resTable
	}
	if start >= next {
		return 0, 0, emuerr.New(emuerr.CategoryROM, "resource %d has non-increasing bounds", id)
	}
	if next > r.Size() {
		return 0, 0, emuerr.New(emuerr.CategoryROM, "resource %d extends past ROM end", id)
	}
	return start, next, nil
}

// ResourceKind classifies the resource at [start, end) by its leading
// bytes, matching resextract's type switch.
func (r *ROM) ResourceKind(start, end uint32) Kind {
	size := end - start
	if size < 2 {
		return KindOpaque
	}
	data := r.data[start:end]
	switch {
	case size >= 4 && data[3] == 0x80 && data[1] == 0:
		return KindImageRLE
	case data[0] == 0x81:
		return KindSound
	default:
		w, h := int(data[0]), int(data[1])
		stride := (w + 7) >> 3
		if w <= 0x80 && h <= 0x80 && int(size) == stride*h+2 {
			return KindImage1Bit
		}
		return KindOpaque
	}
}

func read24(b []byte, off uint32) uint32 {
	return uint32(b[off]) | uint32(b[off+1])<<8 | uint32(b[off+2])<<16
}
