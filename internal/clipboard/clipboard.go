// Package clipboard copies text to the system clipboard.
package clipboard

import (
	"github.com/atotto/clipboard"
	"github.com/spetersoncode/kigen/internal/logger"
)

// Writer is a clipboard backend.
type Writer interface {
	WriteAll(text string) error
}

// System writes through the OS clipboard (pbcopy, xclip/xsel/wl-copy, or the
// Windows API).
type System struct{}

// WriteAll implements Writer.
func (System) WriteAll(text string) error {
	return clipboard.WriteAll(text)
}

// Available reports whether the host has a usable clipboard utility.
func Available() bool {
	return !clipboard.Unsupported
}

// Copy writes text with w and reports whether it succeeded. Failures are
// logged rather than returned; callers only need to know whether to tell the
// user the text is on the clipboard.
func Copy(w Writer, text string) bool {
	if w == nil {
		w = System{}
	}
	if err := w.WriteAll(text); err != nil {
		logger.Warn("failed to copy to clipboard", "error", err)
		return false
	}
	return true
}
