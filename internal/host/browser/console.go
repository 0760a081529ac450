//go:build js

package browser

import (
	"strings"

	"github.com/gopherjs/gopherjs/js"
)

// Console is an io.Writer over the page console, suitable as a zerolog
// output. Warnings and errors go to console.warn and console.error.
type Console struct{}

func (Console) Write(p []byte) (int, error) {
	line := strings.TrimRight(string(p), "\n")
	method := "log"
	switch {
	case strings.Contains(line, `"level":"error"`), strings.Contains(line, `"level":"fatal"`):
		method = "error"
	case strings.Contains(line, `"level":"warn"`):
		method = "warn"
	}
	js.Global.Get("console").Call(method, line)
	return len(p), nil
}
