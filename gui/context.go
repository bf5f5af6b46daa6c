// Package gui is the host-facing shell: an SDL window that presents the
// composited picture, and a hidden SDL/GL context the rendering thread
// draws VRAM through. Nothing in here runs the emulation itself; it only
// satisfies the framebuffer-presentation and event-pump collaborators the
// core expects (window creation and GL context bring-up are out of scope
// for the core proper, per spec.md §1).
package gui

import (
	"github.com/veandco/go-sdl2/sdl"

	"github.com/jetsetilly/gopsx/psxerr"
)

// GLHost owns a hidden window whose only purpose is to hold an OpenGL
// context for the rendering thread's VRAM texture work. It never shows a
// window of its own; Display is the visible surface the emulated picture
// ends up on.
type GLHost struct {
	window *sdl.Window
	ctx    sdl.GLContext
}

// NewGLHost creates a 1x1 hidden window and an attached GL context. Safe
// to call before or after sdl.Init elsewhere; SDL subsystem init is
// reference-counted.
func NewGLHost() (*GLHost, error) {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, psxerr.Errorf("gui: sdl init: %v", err)
	}

	window, err := sdl.CreateWindow("", sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED,
		1, 1, sdl.WINDOW_OPENGL|sdl.WINDOW_HIDDEN)
	if err != nil {
		return nil, psxerr.Errorf("gui: create gl host window: %v", err)
	}

	ctx, err := window.GLCreateContext()
	if err != nil {
		window.Destroy()
		return nil, psxerr.Errorf("gui: create gl context: %v", err)
	}

	return &GLHost{window: window, ctx: ctx}, nil
}

// MakeCurrent binds the context to the calling goroutine. The caller must
// have locked itself to an OS thread first (runtime.LockOSThread) and must
// call this before issuing any gl.* call from that goroutine.
func (h *GLHost) MakeCurrent() error {
	if err := h.window.GLMakeCurrent(h.ctx); err != nil {
		return psxerr.Errorf("gui: make gl context current: %v", err)
	}
	return nil
}

// Destroy releases the context and its host window.
func (h *GLHost) Destroy() {
	sdl.GLDeleteContext(h.ctx)
	h.window.Destroy()
}
