// Package buildinfo reports the version stamped into the binary.
package buildinfo

import (
	"fmt"
	"io"
	"runtime/debug"
)

// Info describes the running binary.
type Info struct {
	Version   string
	GoVersion string
	Revision  string
	Dirty     bool
}

// Get reads the build information embedded by the Go toolchain.
func Get() Info {
	info := Info{Version: "unknown", GoVersion: "unknown", Revision: "unknown"}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	info.Version = bi.Main.Version
	if info.Version == "" || info.Version == "(devel)" {
		info.Version = "dev"
	}
	info.GoVersion = bi.GoVersion
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			info.Revision = s.Value
		case "vcs.modified":
			info.Dirty = s.Value == "true"
		}
	}
	return info
}

// Print writes a human readable description of i for the named program.
func (i Info) Print(w io.Writer, name string) {
	fmt.Fprintf(w, "%s %s\n", name, i.Version)
	fmt.Fprintf(w, "  Go version: %s\n", i.GoVersion)
	fmt.Fprintf(w, "  Revision:   %s\n", i.Revision)
	if i.Dirty {
		fmt.Fprintf(w, "  Modified:   true\n")
	}
}
