package gui

import (
	"context"
	"image"
	"time"

	"github.com/veandco/go-sdl2/sdl"
	"golang.org/x/image/draw"

	"github.com/jetsetilly/gopsx/gpu/renderer"
	"github.com/jetsetilly/gopsx/psxerr"
)

const pixelDepth = 4

const (
	defaultWidth  = 640
	defaultHeight = 480
)

// Display is the visible window the composited PSX picture is presented
// on. Window, renderer and texture calls must only happen on the
// goroutine that owns the window; Enqueue is how other goroutines ask for
// that work to happen, mirroring the "service" channel the teacher's SDL
// player uses for the same reason.
type Display struct {
	window   *sdl.Window
	renderer *sdl.Renderer
	texture  *sdl.Texture

	service chan func()

	scale        int
	destW, destH int32
	scaled       *image.RGBA
}

// NewDisplay opens a scale-times window titled title. It must be called
// from the goroutine that will go on to call Loop.
func NewDisplay(title string, scale int) (*Display, error) {
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		return nil, psxerr.Errorf("gui: sdl init: %v", err)
	}
	if scale < 1 {
		scale = 1
	}

	d := &Display{scale: scale, service: make(chan func(), 4)}

	window, err := sdl.CreateWindow(title, sdl.WINDOWPOS_CENTERED, sdl.WINDOWPOS_CENTERED,
		defaultWidth*int32(scale), defaultHeight*int32(scale), sdl.WINDOW_SHOWN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		return nil, psxerr.Errorf("gui: create window: %v", err)
	}
	d.window = window

	r, err := sdl.CreateRenderer(window, -1, sdl.RENDERER_ACCELERATED|sdl.RENDERER_PRESENTVSYNC)
	if err != nil {
		window.Destroy()
		return nil, psxerr.Errorf("gui: create renderer: %v", err)
	}
	d.renderer = r

	if err := d.resize(defaultWidth, defaultHeight); err != nil {
		d.Destroy()
		return nil, err
	}

	return d, nil
}

// resize (re)allocates the presentation texture and the CPU-side scaling
// buffer for a frame of w by h PSX pixels.
func (d *Display) resize(w, h int32) error {
	if d.texture != nil {
		d.texture.Destroy()
	}

	d.destW, d.destH = w*int32(d.scale), h*int32(d.scale)

	texture, err := d.renderer.CreateTexture(uint32(sdl.PIXELFORMAT_ABGR8888), int(sdl.TEXTUREACCESS_STREAMING), d.destW, d.destH)
	if err != nil {
		return psxerr.Errorf("gui: create texture: %v", err)
	}
	d.texture = texture
	d.scaled = image.NewRGBA(image.Rect(0, 0, int(d.destW), int(d.destH)))

	return d.window.SetSize(d.destW, d.destH)
}

// Present scales frame up to the window's current size with nearest-
// neighbour interpolation (the CPU-side composition step ahead of the SDL
// blit) and hands the result to SDL to paint. Must run on the window's
// owning goroutine - call it from inside an Enqueue closure otherwise.
func (d *Display) Present(frame renderer.Frame) error {
	if frame.W == 0 || frame.H == 0 || len(frame.Pixels) == 0 {
		return nil
	}

	if d.texture == nil || d.destW != frame.W*int32(d.scale) || d.destH != frame.H*int32(d.scale) {
		if err := d.resize(frame.W, frame.H); err != nil {
			return err
		}
	}

	src := &image.RGBA{
		Pix:    frame.Pixels,
		Stride: int(frame.W) * pixelDepth,
		Rect:   image.Rect(0, 0, int(frame.W), int(frame.H)),
	}
	draw.NearestNeighbor.Scale(d.scaled, d.scaled.Bounds(), src, src.Bounds(), draw.Src, nil)

	if err := d.texture.Update(nil, d.scaled.Pix, d.scaled.Stride); err != nil {
		return psxerr.Errorf("gui: update texture: %v", err)
	}
	if err := d.renderer.Copy(d.texture, nil, nil); err != nil {
		return psxerr.Errorf("gui: copy texture: %v", err)
	}
	d.renderer.Present()
	return nil
}

// Enqueue asks the window's owning goroutine to run fn. Safe to call from
// any goroutine.
func (d *Display) Enqueue(fn func()) {
	d.service <- fn
}

// Loop drains queued window work and pumps SDL's event queue until ctx is
// cancelled or the user closes the window, reporting which happened first
// by returning true on a user-requested quit.
func (d *Display) Loop(ctx context.Context) bool {
	ticker := time.NewTicker(4 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case fn := <-d.service:
			fn()
		case <-ticker.C:
			if pollQuit() {
				return true
			}
		}
	}
}

func pollQuit() bool {
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		if _, ok := event.(*sdl.QuitEvent); ok {
			return true
		}
	}
	return false
}

// Destroy releases the window, renderer and texture.
func (d *Display) Destroy() {
	if d.texture != nil {
		d.texture.Destroy()
	}
	if d.renderer != nil {
		d.renderer.Destroy()
	}
	if d.window != nil {
		d.window.Destroy()
	}
}
