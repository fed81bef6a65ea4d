// Package plugins provides the built-in plugin set. Importing it registers
// every plugin with the process-wide registry:
//
//	import _ "github.com/mrdg/groove/plugins"
//
// Each plugin registers from its own file's init, before any graph build.
package plugins
