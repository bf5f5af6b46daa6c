// Command gopsx is the PSX core's command-line front end: it resolves a
// BIOS image and an optional disc, opens a window, and runs the console
// until it's closed.
package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/jetsetilly/gopsx/console"
	"github.com/jetsetilly/gopsx/psxerr"
)

func init() {
	// SDL requires the thread that creates windows and pumps events to
	// stay put for the life of the process.
	runtime.LockOSThread()
}

// parseArgs walks argv looking for -bios, -cd and -debug-stats (with or
// without a leading second dash); anything else, including a flag with no
// recognised name, is ignored rather than treated as an error.
func parseArgs(argv []string) console.Config {
	cfg := console.Config{Scale: 2}

	for i := 0; i < len(argv); i++ {
		arg := strings.TrimLeft(argv[i], "-")
		switch arg {
		case "bios":
			if i+1 < len(argv) {
				i++
				cfg.BIOSPath = argv[i]
			}
		case "cd":
			if i+1 < len(argv) {
				i++
				cfg.CDPath = argv[i]
			}
		case "debug-stats":
			if i+1 < len(argv) {
				i++
				cfg.DebugStatsAddr = argv[i]
			}
		}
	}

	return cfg
}

func validate(cfg console.Config) error {
	if cfg.BIOSPath == "" {
		return psxerr.Errorf("gopsx: -bios <path> is required")
	}
	if cfg.CDPath != "" {
		lower := strings.ToLower(cfg.CDPath)
		if !strings.HasSuffix(lower, ".cue") {
			return psxerr.Errorf("gopsx: -cd path must end in .cue or .CUE, got %q", cfg.CDPath)
		}
	}
	return nil
}

func main() {
	cfg := parseArgs(os.Args[1:])
	if err := validate(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	c, err := console.New(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := c.Run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
