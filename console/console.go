// Package console is the top-level wiring point: it owns the CPU, the
// system interlink and every device reachable through it, the rendering
// thread's job queue, and the host window, and coordinates the emulation
// and rendering goroutines that drive them. Nothing below this package
// knows that goroutines exist; RunBlock, the DMA arbiter, the GPU and the
// rest are all single-threaded and driven entirely by whichever goroutine
// calls into them.
package console

import (
	"context"
	"os"
	"runtime"

	"github.com/go-echarts/statsview"
	"golang.org/x/sync/errgroup"

	"github.com/jetsetilly/gopsx/cdrom/cdimage"
	"github.com/jetsetilly/gopsx/cpu"
	"github.com/jetsetilly/gopsx/gpu/renderer"
	"github.com/jetsetilly/gopsx/gui"
	"github.com/jetsetilly/gopsx/logger"
	"github.com/jetsetilly/gopsx/memory"
	"github.com/jetsetilly/gopsx/psxerr"
)

// Config is the small set of knobs cmd/gopsx exposes on the command line.
// There is no persisted preferences file: every run starts from these
// values and nothing it changes outlives the process.
type Config struct {
	BIOSPath string
	CDPath   string
	Scale    int

	// DebugStatsAddr, if non-empty, starts a statsview runtime dashboard
	// (goroutine count, GC pauses, heap) on that address for the life of
	// the process. Empty disables it; there is no default listener.
	DebugStatsAddr string
}

// Console owns every emulated device plus the presentation window and
// rendering queue that sit outside the core proper.
type Console struct {
	cfg Config

	mem *memory.Interlink
	cpu *cpu.CPU

	queue   *renderer.Queue
	backend *renderer.GLBackend
	glHost  *gui.GLHost
	display *gui.Display
}

// New loads the BIOS, optionally mounts a disc image, and opens the
// presentation window. It does not start emulation; call Run for that.
func New(cfg Config) (*Console, error) {
	biosData, err := os.ReadFile(cfg.BIOSPath)
	if err != nil {
		return nil, psxerr.Errorf("console: read bios: %v", err)
	}

	glHost, err := gui.NewGLHost()
	if err != nil {
		return nil, psxerr.Errorf("console: %v", err)
	}

	display, err := gui.NewDisplay("gopsx", cfg.Scale)
	if err != nil {
		glHost.Destroy()
		return nil, psxerr.Errorf("console: %v", err)
	}

	queue := renderer.NewQueue(16)
	mem := memory.New(queue)
	if err := mem.LoadBIOS(biosData); err != nil {
		display.Destroy()
		glHost.Destroy()
		return nil, psxerr.Errorf("console: %v", err)
	}

	if cfg.CDPath != "" {
		img, err := cdimage.Open(cfg.CDPath)
		if err != nil {
			display.Destroy()
			glHost.Destroy()
			return nil, psxerr.Errorf("console: load disc: %v", err)
		}
		mem.InsertDisc(img)
	}

	return &Console{
		cfg:     cfg,
		mem:     mem,
		cpu:     cpu.New(mem),
		queue:   queue,
		backend: renderer.NewGLBackend(),
		glHost:  glHost,
		display: display,
	}, nil
}

// Run drives emulation until the window is closed or ctx is cancelled. It
// must be called from the goroutine that called New.
func (c *Console) Run(ctx context.Context) error {
	defer c.display.Destroy()
	defer c.glHost.Destroy()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if c.cfg.DebugStatsAddr != "" {
		viewer := statsview.New(statsview.WithAddr(c.cfg.DebugStatsAddr))
		go func() {
			if err := viewer.Start(); err != nil {
				logger.Logf("console", "statsview: %v", err)
			}
		}()
	}

	g, gctx := errgroup.WithContext(runCtx)
	stop := make(chan struct{})

	g.Go(func() error {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		if err := c.glHost.MakeCurrent(); err != nil {
			return err
		}
		if err := c.backend.Init(); err != nil {
			return psxerr.Errorf("console: init gl backend: %v", err)
		}
		c.queue.Run(stop, c.backend)
		return nil
	})

	g.Go(func() error {
		defer close(stop)
		return c.runEmulation(gctx)
	})

	c.display.Loop(gctx)
	cancel()

	return g.Wait()
}

// runEmulation repeatedly executes basic blocks and, on every vblank
// rising edge, asks the rendering thread for its current frame and hands
// it to the display's owning goroutine to present.
func (c *Console) runEmulation(ctx context.Context) error {
	wasVblank := false
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		c.cpu.RunBlock()

		inVblank := c.mem.GPU().IsInVblank()
		if inVblank && !wasVblank {
			frame := c.queue.RequestFrame()
			c.display.Enqueue(func() {
				if err := c.display.Present(frame); err != nil {
					logger.Logf("console", "present frame: %v", err)
				}
			})
		}
		wasVblank = inVblank
	}
}
