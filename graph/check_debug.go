//go:build audiodebug

package graph

import "fmt"

// checkf traps on violated audio-thread invariants in debug builds.
func checkf(ok bool, format string, args ...interface{}) {
	if !ok {
		panic(fmt.Sprintf(format, args...))
	}
}
