package main

import (
	"fmt"
	"os"

	"github.com/fenilsonani/smarthttp/internal/giterr"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode reports transport failures under their host error class and
// everything else (usage, config, local I/O) as 1.
func exitCode(err error) int {
	if kind := giterr.KindOf(err); kind != 0 {
		return kind.Class()
	}
	return 1
}
