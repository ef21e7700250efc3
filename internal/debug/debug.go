// Package debug provides a conditional, component-scoped logger for tracing
// the pickling pipeline without paying for formatting when disabled.
package debug

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// EnableDebug can be overridden at build time:
// go build -ldflags "-X github.com/pulp-platform/morty/internal/debug.EnableDebug=true"
var EnableDebug = "false"

var (
	mu     sync.Mutex
	output io.Writer
)

func init() {
	if os.Getenv("MORTY_DEBUG") != "" || EnableDebug == "true" {
		output = os.Stderr
	}
}

// SetOutput overrides the debug writer. Pass nil to silence debug output.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// Enabled reports whether debug tracing is currently active.
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return output != nil
}

func log(component, format string, args ...interface{}) {
	mu.Lock()
	w := output
	mu.Unlock()
	if w == nil {
		return
	}
	fmt.Fprintf(w, "[morty:%s] "+format+"\n", append([]interface{}{component}, args...)...)
}

// LogBundle traces C1 file bundle loading.
func LogBundle(format string, args ...interface{}) { log("bundle", format, args...) }

// LogParse traces C2 parsing.
func LogParse(format string, args ...interface{}) { log("parse", format, args...) }

// LogIndex traces C3/C4 declaration and usage indexing.
func LogIndex(format string, args ...interface{}) { log("index", format, args...) }

// LogPrune traces C5 top-module pruning.
func LogPrune(format string, args ...interface{}) { log("prune", format, args...) }

// LogRename traces C6 rename planning.
func LogRename(format string, args ...interface{}) { log("rename", format, args...) }

// LogEmit traces C7 emission.
func LogEmit(format string, args ...interface{}) { log("emit", format, args...) }
