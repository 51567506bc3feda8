// Package version reports the anime-cover build
package version

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
)

const (
	Version = "0.3"
)

// HasVersionArg catches a version request given as the first argument,
// before the flag set is parsed
func HasVersionArg() bool {
	if len(os.Args) < 2 {
		return false
	}
	switch os.Args[1] {
	case "--version", "-version", "-v", "--v", "version":
		return true
	}
	return false
}

// Revision returns the short VCS revision stamped by the Go toolchain, with a
// "+dirty" suffix for modified trees. It is empty for builds without VCS info.
func Revision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	var rev string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if len(rev) > 12 {
		rev = rev[:12]
	}
	if rev != "" && dirty {
		rev += "+dirty"
	}
	return rev
}

// String is the one-line version banner
func String() string {
	s := fmt.Sprintf("anime-cover v%s (%s/%s, %s)", Version, runtime.GOOS, runtime.GOARCH, runtime.Version())
	if rev := Revision(); rev != "" {
		s += " rev " + rev
	}
	return s
}

func ShowVersion() {
	fmt.Println(String())
}
