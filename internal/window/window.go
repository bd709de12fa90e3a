// Package window defines the host display/input boundary the device loop
// drives: presenting a palette-expanded framebuffer and polling input
// events, without the core emulation knowing anything about SDL.
package window

import "github.com/toumapet/toumapet-emu/internal/video"

// Key is a semantic input key. Both the arrow/function keys and their
// letter aliases (game_event accepts either) are folded into one Key by
// the window implementation before the device ever sees it.
type Key int

const (
	KeyLeft Key = iota
	KeyDown
	KeyRight
	KeyDelete
	KeyPageDown
	KeyReset
	KeyEscape
)

// EventKind classifies a polled input Event.
type EventKind int

const (
	EventNone EventKind = iota
	EventKeyPress
	EventKeyRelease
	EventQuit
)

// Event is one polled input event.
type Event struct {
	Kind EventKind
	Key  Key
}

// Window is the host display and input surface the device loop drives
// once per frame, matching sys_update/sys_sleep/sys_time_ms/window_event.
type Window interface {
	// PollEvent returns the next pending event, or ok=false when the
	// event queue is empty (matching EVENT_EMPTY).
	PollEvent() (Event, bool)
	// Present uploads fb through pal at the given integer zoom factor.
	Present(fb *video.Framebuffer, pal video.Palette, zoom int)
	// NowMillis returns a monotonic millisecond clock.
	NowMillis() int64
	// Sleep blocks for approximately ms milliseconds.
	Sleep(ms int)
	// Close releases any host resources.
	Close()
}
