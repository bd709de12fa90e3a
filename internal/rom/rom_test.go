package rom

import (
	"os"
	"path/filepath"
	"testing"
)

// buildROM constructs a minimal valid 4MiB ROM image: a 3-byte resource
// table offset, the "tony" magic masked with key, one resource entry
// followed by the end-of-table sentinel, and the save window.
func buildROM(t *testing.T, key uint8) []byte {
	t.Helper()
	size := 4 << 20
	data := make([]byte, size)

	const resTable = 0x1000
	data[0] = byte(resTable & 0xff)
	data[1] = byte(resTable >> 8)
	data[2] = byte(resTable >> 16)

	data[0x23] = 't'
	data[0x24] = 'o'
	data[0x25] = 'n'
	data[0x26] = 'y'

	const resAddr = 0x0800
	data[resTable+0] = byte(resAddr & 0xff)
	data[resTable+1] = byte(resAddr >> 8)
	data[resTable+2] = byte(resAddr >> 16)
	data[resTable+3] = 0xFF
	data[resTable+4] = 0xFF
	data[resTable+5] = 0xFF

	// A 4-byte opaque-looking resource body.
	data[resAddr+0] = 0x01
	data[resAddr+1] = 0x02
	data[resAddr+2] = 0x03
	data[resAddr+3] = 0x04

	if key != 0 {
		for i := range data {
			data[i] ^= key
		}
	}
	return data
}

func writeTempROM(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rom.bin")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing temp ROM: %v", err)
	}
	return path
}

func TestLoadModelDetection(t *testing.T) {
	cases := []struct {
		name    string
		size    int
		model   Model
		screenH int
	}{
		{"550", 4 << 20, Model550, 128},
		{"560", 8 << 20, Model560, 160},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			path := writeTempROM(t, make([]byte, c.size))
			r, err := Load(path, 8<<20)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if r.Model() != c.model {
				t.Errorf("Model() = %v, want %v", r.Model(), c.model)
			}
			if r.ScreenHeight() != c.screenH {
				t.Errorf("ScreenHeight() = %d, want %d", r.ScreenHeight(), c.screenH)
			}
			if r.SaveOffset() != uint32(c.size-SaveWindowSize) {
				t.Errorf("SaveOffset() = %d, want %d", r.SaveOffset(), c.size-SaveWindowSize)
			}
		})
	}
}

func TestLoadRejectsUnexpectedSize(t *testing.T) {
	path := writeTempROM(t, make([]byte, 123))
	if _, err := Load(path, 8<<20); err == nil {
		t.Fatal("expected error for unexpected ROM size")
	}
}

func TestLoadRejectsOversize(t *testing.T) {
	path := writeTempROM(t, make([]byte, 8<<20))
	if _, err := Load(path, 4<<20); err == nil {
		t.Fatal("expected error for ROM exceeding cap")
	}
}

func TestVerifyAndUnmaskKeyedROM(t *testing.T) {
	for _, key := range []uint8{0x00, 0x37, 0xAA} {
		data := buildROM(t, key)
		path := writeTempROM(t, data)
		r, err := Load(path, 8<<20)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if err := r.VerifyAndUnmask(); err != nil {
			t.Fatalf("VerifyAndUnmask(key=%#x): %v", key, err)
		}
		if r.Key() != key {
			t.Errorf("Key() = %#x, want %#x", r.Key(), key)
		}
		start, end, err := r.ResourceBounds(0)
		if err != nil {
			t.Fatalf("ResourceBounds(0): %v", err)
		}
		if start != 0x0800 {
			t.Errorf("resource 0 start = %#x, want 0x0800", start)
		}
		if end != 0x1000 {
			t.Errorf("resource 0 end = %#x, want table offset 0x1000 (sentinel)", end)
		}
	}
}

func TestVerifyAndUnmaskBadMagic(t *testing.T) {
	data := buildROM(t, 0x37)
	data[0x23] ^= 0xFF // corrupt the masked magic byte
	path := writeTempROM(t, data)
	r, err := Load(path, 8<<20)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := r.VerifyAndUnmask(); err == nil {
		t.Fatal("expected magic mismatch error")
	}
}

func TestResourceOffsetBoundsChecks(t *testing.T) {
	data := buildROM(t, 0x37)
	path := writeTempROM(t, data)
	r, err := Load(path, 8<<20)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := r.VerifyAndUnmask(); err != nil {
		t.Fatalf("VerifyAndUnmask: %v", err)
	}
	if _, err := r.ResourceOffset(2000000); err == nil {
		t.Fatal("expected bad resource index error for far-out-of-range id")
	}
}

func TestResourceKind(t *testing.T) {
	r := &ROM{data: make([]byte, 16)}

	rle := []byte{0x08, 0x00, 0x10, 0x80}
	copy(r.data[0:4], rle)
	if k := r.ResourceKind(0, 4); k != KindImageRLE {
		t.Errorf("RLE image: got %v, want KindImageRLE", k)
	}

	sound := []byte{0x81, 0x00, 0x00, 0x00}
	copy(r.data[4:8], sound)
	if k := r.ResourceKind(4, 8); k != KindSound {
		t.Errorf("sound: got %v, want KindSound", k)
	}

	// 8x1 1-bit image: stride=1, size = 1*1+2 = 3
	oneBit := []byte{0x08, 0x01, 0xFF}
	copy(r.data[8:11], oneBit)
	if k := r.ResourceKind(8, 11); k != KindImage1Bit {
		t.Errorf("1-bit image: got %v, want KindImage1Bit", k)
	}

	opaque := []byte{0x01, 0x05, 0x03, 0x04}
	copy(r.data[12:16], opaque)
	if k := r.ResourceKind(12, 16); k != KindOpaque {
		t.Errorf("opaque: got %v, want KindOpaque", k)
	}
}
