package version

import (
	"fmt"
	"io"
	"os"
)

// Package returns the overall, canonical project import path under
// which the package was built.
func Package() string {
	return mainpkg
}

// Version returns the module version the running binary was built from.
func Version() string {
	return version
}

// Revision returns the VCS revision being used to build the program at
// linking time.
func Revision() string {
	return revision
}

// FprintVersion outputs the version string to the writer, followed by a
// newline:
//
//	<cmd> <project> <version> [<revision>]
func FprintVersion(w io.Writer) {
	if rev := Revision(); rev != "" {
		fmt.Fprintln(w, os.Args[0], Package(), Version(), rev)
		return
	}
	fmt.Fprintln(w, os.Args[0], Package(), Version())
}

// PrintVersion outputs the version information, from Fprint, to stdout.
func PrintVersion() {
	FprintVersion(os.Stdout)
}
