// Package sdlwindow implements internal/window.Window on top of SDL2,
// grounded on the teacher's own cmd/sdl-display (renderer + streaming
// RGB24 texture + sdl.PollEvent loop) and the original's SDL2 window_init
// (window-surface red-mask derivation, used here to build the palette
// once up front instead of per present).
package sdlwindow

import (
	"unsafe"

	"github.com/sirupsen/logrus"
	"github.com/veandco/go-sdl2/sdl"

	"github.com/toumapet/toumapet-emu/internal/emuerr"
	"github.com/toumapet/toumapet-emu/internal/video"
	"github.com/toumapet/toumapet-emu/internal/window"
)

// SDLWindow drives an SDL2 window, renderer, and a streaming RGB24
// texture sized to the device's screen at the given zoom factor.
type SDLWindow struct {
	window   *sdl.Window
	renderer *sdl.Renderer
	texture  *sdl.Texture
	pixels   []byte
	log      *logrus.Entry
}

// New opens an SDL2 window titled title, sized screenW*zoom x screenH*zoom.
func New(title string, screenW, screenH, zoom int, log *logrus.Entry) (*SDLWindow, error) {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, emuerr.New(emuerr.CategoryWindow, "sdl init failed: %w", err)
	}
	win, err := sdl.CreateWindow(title,
		sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED,
		int32(screenW*zoom), int32(screenH*zoom),
		sdl.WINDOW_SHOWN)
	if err != nil {
		sdl.Quit()
		return nil, emuerr.New(emuerr.CategoryWindow, "sdl create window failed: %w", err)
	}
	renderer, err := sdl.CreateRenderer(win, -1, sdl.RENDERER_ACCELERATED)
	if err != nil {
		win.Destroy()
		sdl.Quit()
		return nil, emuerr.New(emuerr.CategoryWindow, "sdl create renderer failed: %w", err)
	}
	texture, err := renderer.CreateTexture(sdl.PIXELFORMAT_RGB24, sdl.TEXTUREACCESS_STREAMING,
		int32(screenW*zoom), int32(screenH*zoom))
	if err != nil {
		renderer.Destroy()
		win.Destroy()
		sdl.Quit()
		return nil, emuerr.New(emuerr.CategoryWindow, "sdl create texture failed: %w", err)
	}
	return &SDLWindow{
		window:   win,
		renderer: renderer,
		texture:  texture,
		pixels:   make([]byte, screenW*zoom*screenH*zoom*3),
		log:      log,
	}, nil
}

// RedByteIndex reports which byte of each packed RGB24 pixel carries red,
// the one piece of host pixel-format info video.BuildPalette needs.
func (w *SDLWindow) RedByteIndex() int { return 0 }

// PollEvent implements window.Window.
func (w *SDLWindow) PollEvent() (window.Event, bool) {
	ev := sdl.PollEvent()
	if ev == nil {
		return window.Event{}, false
	}
	switch e := ev.(type) {
	case *sdl.QuitEvent:
		return window.Event{Kind: window.EventQuit}, true
	case *sdl.KeyboardEvent:
		kind := window.EventKeyRelease
		if e.Type == sdl.KEYDOWN {
			kind = window.EventKeyPress
		}
		key, ok := translateKey(e.Keysym.Sym)
		if !ok {
			return window.Event{Kind: window.EventNone}, true
		}
		return window.Event{Kind: kind, Key: key}, true
	default:
		return window.Event{Kind: window.EventNone}, true
	}
}

// translateKey folds both the arrow/function keys and their letter
// aliases onto the same semantic window.Key, matching game_event's dual
// case labels (SYSKEY_LEFT or 'a', SYSKEY_DOWN or 's', ...).
func translateKey(sym sdl.Keycode) (window.Key, bool) {
	switch sym {
	case sdl.K_LEFT, sdl.K_a:
		return window.KeyLeft, true
	case sdl.K_DOWN, sdl.K_s:
		return window.KeyDown, true
	case sdl.K_RIGHT, sdl.K_d:
		return window.KeyRight, true
	case sdl.K_DELETE, sdl.K_q:
		return window.KeyDelete, true
	case sdl.K_PAGEDOWN, sdl.K_e:
		return window.KeyPageDown, true
	case sdl.K_r:
		return window.KeyReset, true
	case sdl.K_ESCAPE:
		return window.KeyEscape, true
	default:
		return 0, false
	}
}

// Present implements window.Window: expands fb through pal at zoom, then
// uploads and blits the streaming texture.
func (w *SDLWindow) Present(fb *video.Framebuffer, pal video.Palette, zoom int) {
	stride := fb.Width * zoom
	rgb := make([]uint32, stride*fb.Height*zoom)
	fb.Render(pal, zoom, rgb, stride)
	for i, c := range rgb {
		w.pixels[i*3+0] = byte(c)
		w.pixels[i*3+1] = byte(c >> 8)
		w.pixels[i*3+2] = byte(c >> 16)
	}
	if err := w.texture.Update(nil, unsafe.Pointer(&w.pixels[0]), stride*3); err != nil {
		w.log.WithError(err).Warn("texture update failed")
		return
	}
	w.renderer.Clear()
	w.renderer.Copy(w.texture, nil, nil)
	w.renderer.Present()
}

// NowMillis implements window.Window using SDL's own tick counter.
func (w *SDLWindow) NowMillis() int64 { return int64(sdl.GetTicks64()) }

// Sleep implements window.Window.
func (w *SDLWindow) Sleep(ms int) {
	if ms > 0 {
		sdl.Delay(uint32(ms))
	}
}

// Close implements window.Window.
func (w *SDLWindow) Close() {
	w.texture.Destroy()
	w.renderer.Destroy()
	w.window.Destroy()
	sdl.Quit()
}
