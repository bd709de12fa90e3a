package video

import "testing"

func TestBuildPaletteChannelLayout(t *testing.T) {
	// redByteIndex=2 matches a BGRA32 host format: byte0=B, byte1=G, byte2=R, byte3=A.
	pal := BuildPalette(2)
	white := pal[0xff] // i=0xff -> max of every channel
	if white != 0xffffffff {
		t.Errorf("max index should be opaque white, got %#08x", white)
	}
	black := pal[0]
	if black != 0xff000000 {
		t.Errorf("index 0 should be opaque black, got %#08x", black)
	}
}

func TestFillRows(t *testing.T) {
	fb := NewFramebuffer(128)
	fb.FillRows(10, 19, 0x42)
	if fb.At(0, 9) != 0 {
		t.Error("row 9 should be untouched")
	}
	if fb.At(0, 10) != 0x42 || fb.At(ScreenWidth-1, 19) != 0x42 {
		t.Error("rows 10..19 should be filled")
	}
	if fb.At(0, 20) != 0 {
		t.Error("row 20 should be untouched")
	}
}

func TestFillRowsNoOpWhenStartAfterEnd(t *testing.T) {
	fb := NewFramebuffer(128)
	for i := range fb.Pix {
		fb.Pix[i] = 7
	}
	fb.FillRows(50, 10, 0)
	for i, v := range fb.Pix {
		if v != 7 {
			t.Fatalf("pixel %d modified despite start >= end", i)
		}
	}
}

// a solid w x h image: header + h rows, each row w single-pixel literal codes.
func solidImage(w, h int, value byte) []byte {
	// row format: 2-byte length (total incl. itself+terminator), body, 0,0 terminator.
	row := func() []byte {
		body := []byte{}
		for x := 0; x < w; x++ {
			body = append(body, value)
		}
		body = append(body, 0, 0) // terminator: a=0,count=0 never reached since w consumed first
		length := len(body) + 2
		return append([]byte{byte(length), byte(length >> 8)}, body...)
	}
	data := []byte{byte(w), 0, byte(h), 0x80}
	for y := 0; y < h; y++ {
		data = append(data, row()...)
	}
	return data
}

func TestDrawImageSolidBlock(t *testing.T) {
	fb := NewFramebuffer(128)
	img := solidImage(4, 2, 9)
	if err := DrawImage(fb, 10, 20, 0, 0xff, -1, img); err != nil {
		t.Fatalf("DrawImage: %v", err)
	}
	for y := 20; y < 22; y++ {
		for x := 10; x < 14; x++ {
			if fb.At(x, y) != 9 {
				t.Errorf("pixel (%d,%d) = %d, want 9", x, y, fb.At(x, y))
			}
		}
	}
	if fb.At(9, 20) != 0 || fb.At(14, 20) != 0 {
		t.Error("drawing leaked outside the image bounds")
	}
}

func TestDrawImageColorKeySkipsAlpha(t *testing.T) {
	fb := NewFramebuffer(128)
	for i := range fb.Pix {
		fb.Pix[i] = 0x55
	}
	img := solidImage(2, 1, 3)
	if err := DrawImage(fb, 0, 0, 0, 0xff, 3, img); err != nil {
		t.Fatalf("DrawImage: %v", err)
	}
	if fb.At(0, 0) != 0x55 || fb.At(1, 0) != 0x55 {
		t.Error("alpha color-key value should have been skipped, leaving background")
	}
}

func TestDrawImageRejectsBadHeader(t *testing.T) {
	fb := NewFramebuffer(128)
	bad := []byte{4, 1, 2, 0x80, 0, 0, 0, 0}
	if err := DrawImage(fb, 0, 0, 0, 0xff, -1, bad); err == nil {
		t.Fatal("expected error for malformed image header")
	}
}

func TestDrawCharSetBitsOnly(t *testing.T) {
	fb := NewFramebuffer(128)
	glyph := make([]byte, 16)
	glyph[0] = 0x80 // top-left pixel only
	if err := DrawChar(fb, 0, 0, glyph, 5, -1); err != nil {
		t.Fatalf("DrawChar: %v", err)
	}
	if fb.At(0, 0) != 5 {
		t.Errorf("top-left pixel = %d, want 5", fb.At(0, 0))
	}
	if fb.At(1, 0) != 0 {
		t.Errorf("adjacent pixel = %d, want 0 (transparent bg)", fb.At(1, 0))
	}
}

func TestDrawCharOpaqueBackground(t *testing.T) {
	fb := NewFramebuffer(128)
	glyph := make([]byte, 16)
	glyph[0] = 0x80
	if err := DrawChar(fb, 0, 0, glyph, 5, 1); err != nil {
		t.Fatalf("DrawChar: %v", err)
	}
	if fb.At(1, 0) != 1 {
		t.Errorf("cleared bit with bg=1 should paint background, got %d", fb.At(1, 0))
	}
}

func TestFontGlyphOffset(t *testing.T) {
	off, err := FontGlyphOffset(0x100, 0x41)
	if err != nil {
		t.Fatalf("FontGlyphOffset: %v", err)
	}
	want := 0x100 + (0x41-0x20)<<4
	if off != want {
		t.Errorf("offset = %#x, want %#x", off, want)
	}
	if _, err := FontGlyphOffset(0x100, 0x10); err == nil {
		t.Fatal("expected error for id below 0x20")
	}
}

func TestReplicateColumnFill(t *testing.T) {
	fb := NewFramebuffer(128)
	fb.Pix[0*fb.Width+5] = 11
	fb.Pix[1*fb.Width+5] = 22
	fb.ReplicateColumnFill(5, 2, 3)
	if fb.At(6, 0) != 11 || fb.At(7, 0) != 11 {
		t.Error("row 0 not replicated from column 5's value")
	}
	if fb.At(6, 1) != 22 || fb.At(7, 1) != 22 {
		t.Error("row 1 not replicated from column 5's value")
	}
}

func TestReplicateRowDown(t *testing.T) {
	fb := NewFramebuffer(128)
	for x := 0; x < 4; x++ {
		fb.Pix[3*fb.Width+x] = byte(x + 1)
	}
	fb.ReplicateRowDown(3, 4, 3)
	for i := 4; i <= 5; i++ {
		for x := 0; x < 4; x++ {
			if fb.At(x, i) != byte(x+1) {
				t.Errorf("row %d col %d = %d, want %d", i, x, fb.At(x, i), x+1)
			}
		}
	}
}
