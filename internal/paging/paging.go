// Package paging implements the ROM frame-call stack: the mechanism by
// which a cartridge's code, which never exceeds the 0x300-0x7ff window, is
// paged in and out of that window from anywhere in a much larger ROM
// image. Call and Return only track the bookkeeping (which frame is
// active, what to copy where); the actual window copy, synthetic return
// address, and stack-pointer manipulation live in the caller, since those
// touch CPU registers and RAM paging.Stack has no business owning.
package paging

import "github.com/toumapet/toumapet-emu/internal/emuerr"

// Max is the deepest the call stack may nest (FRAME_STACK_MAX).
const Max = 16

// WindowBase is the RAM address frames are copied to and executed from.
const WindowBase = 0x300

const maxFrameSize = 0x500

type frame struct {
	addr uint32
	size uint32
}

// Stack tracks the currently paged-in ROM frame and its ancestors.
type Stack struct {
	frames [Max]frame
	depth  int
}

// Depth reports how many frames are currently nested.
func (s *Stack) Depth() int { return s.depth }

// CurrentSize returns the active frame's window size, or 0 if empty.
func (s *Stack) CurrentSize() uint32 {
	if s.depth == 0 {
		return 0
	}
	return s.frames[s.depth-1].size
}

// Call pushes a new frame (or, if tailCall, replaces the current one
// without growing depth), matching the 0x60de/0x6052 trap. romSize bounds
// the frame against the loaded ROM image.
func (s *Stack) Call(tailCall bool, addr, size uint32, romSize int) error {
	if size >= maxFrameSize {
		return emuerr.New(emuerr.CategoryPaging, "too big rom call (0x%x, 0x%x)", addr, size)
	}
	if addr+size > uint32(romSize) {
		return emuerr.New(emuerr.CategoryPaging, "bad ROM call (0x%x, 0x%x)", addr, size)
	}
	if s.depth >= Max {
		return emuerr.New(emuerr.CategoryPaging, "call stack overflow")
	}
	if tailCall {
		if s.depth == 0 {
			return emuerr.New(emuerr.CategoryPaging, "call stack underflow")
		}
		s.depth--
	}
	s.frames[s.depth] = frame{addr: addr, size: size}
	s.depth++
	return nil
}

// Return pops the active frame, matching the SYS_RET trap. done reports
// whether the entire call tree has unwound (the caller should halt Run
// rather than re-page a parent frame). When !done, addr/size describe the
// parent frame the caller must re-copy into the window.
func (s *Stack) Return() (done bool, addr, size uint32, err error) {
	if s.depth == 0 {
		return false, 0, 0, emuerr.New(emuerr.CategoryPaging, "call stack underflow")
	}
	s.depth--
	if s.depth == 0 {
		return true, 0, 0, nil
	}
	f := s.frames[s.depth-1]
	return false, f.addr, f.size, nil
}
