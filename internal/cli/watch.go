package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spetersoncode/kigen/internal/debounce"
	kerrors "github.com/spetersoncode/kigen/internal/errors"
	"github.com/spetersoncode/kigen/internal/logger"
	"github.com/spetersoncode/kigen/internal/timefmt"
	"github.com/spetersoncode/kigen/internal/token"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// reloadDelay coalesces the burst of events editors produce on save.
const reloadDelay = 100 * time.Millisecond

var (
	watchFile     string
	watchInterval int
	watchPast     bool
	watchCount    int
)

func init() {
	tokenWatchCmd.Flags().StringVarP(&watchFile, "file", "f", "", "Read the token from a file and reload it when the file changes")
	tokenWatchCmd.Flags().IntVarP(&watchInterval, "interval", "i", 0, "Refresh period in seconds (default from config, 1)")
	tokenWatchCmd.Flags().BoolVar(&watchPast, "past", false, "Show elapsed time once the token has expired")
	tokenWatchCmd.Flags().IntVarP(&watchCount, "count", "n", 0, "Stop after this many refreshes (0 = until interrupted)")
	tokenCmd.AddCommand(tokenWatchCmd)
}

var tokenWatchCmd = &cobra.Command{
	Use:   "watch [jwt|-]",
	Short: "Show a live countdown to a token's expiry",
	Long: `Re-render the time left until a token's exp claim every interval.

With --file, the token is read from the file and reloaded whenever the file
is rewritten, so a countdown survives token refreshes. On a terminal the
line is updated in place; otherwise one line is printed per refresh.

Examples:
  kigen token watch <jwt>
  kigen token watch --file ~/.cache/session.jwt
  kigen token watch --stored session --count 5`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTokenWatch,
}

func runTokenWatch(cmd *cobra.Command, args []string) error {
	f, err := Formatter()
	if err != nil {
		return err
	}

	interval := watchInterval
	if interval == 0 {
		interval = GetConfig().Watch.Interval
	}
	if interval <= 0 {
		return kerrors.InvalidArgs("interval must be positive, got %d", interval)
	}

	var tok string
	if watchFile != "" {
		tok, err = readTokenFile(watchFile)
	} else {
		tok, err = readToken(cmd, args)
	}
	if err != nil {
		return err
	}

	w := newExpiryWatcher(cmd.OutOrStdout(), f, watchPast)
	if err := w.setToken(tok); err != nil {
		return err
	}

	ctx := cmd.Context()
	if watchFile != "" {
		stop, err := w.watchFile(ctx, watchFile)
		if err != nil {
			return err
		}
		defer stop()
	}

	return w.run(ctx, time.Duration(interval)*time.Second, watchCount)
}

func readTokenFile(path string) (string, error) {
	data, err := os.ReadFile(expandHome(path))
	if err != nil {
		return "", kerrors.Wrap(err, kerrors.KindInvalidArgs, "failed to read token file")
	}
	return strings.TrimSpace(string(data)), nil
}

// expiryWatcher renders the difference to a token's exp claim.
type expiryWatcher struct {
	out       io.Writer
	formatter *timefmt.Formatter
	past      bool
	inPlace   bool

	mu  sync.Mutex
	exp int64
}

func newExpiryWatcher(out io.Writer, f *timefmt.Formatter, past bool) *expiryWatcher {
	w := &expiryWatcher{out: out, formatter: f, past: past}
	if file, ok := out.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		w.inPlace = true
	}
	return w
}

func (w *expiryWatcher) setToken(tok string) error {
	exp, ok, err := token.Expiry(tok)
	if err != nil {
		return kerrors.WrapToken(err, "failed to read exp claim")
	}
	if !ok {
		return kerrors.Token("token has no exp claim")
	}
	w.mu.Lock()
	w.exp = exp
	w.mu.Unlock()
	return nil
}

func (w *expiryWatcher) expiry() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.exp
}

func (w *expiryWatcher) render() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.formatter.Now()
	text := timefmt.DifferenceAt(w.exp, now, w.past, w.formatter.Labels())
	line := colorize(diffState(timefmt.Diff(w.exp, now), w.past), text)
	if w.inPlace {
		fmt.Fprintf(w.out, "\r\033[K%s", line)
		return
	}
	fmt.Fprintln(w.out, line)
}

// run renders once per interval until ctx is done or count renders have
// been written. A count of zero means no limit.
func (w *expiryWatcher) run(ctx context.Context, interval time.Duration, count int) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	defer func() {
		if w.inPlace {
			fmt.Fprintln(w.out)
		}
	}()

	for n := 1; ; n++ {
		w.render()
		if count > 0 && n >= count {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// watchFile reloads the token whenever path is written or replaced. The
// returned func stops watching.
func (w *expiryWatcher) watchFile(ctx context.Context, path string) (func(), error) {
	abs, err := filepath.Abs(expandHome(path))
	if err != nil {
		return nil, kerrors.Wrap(err, kerrors.KindInvalidArgs, "invalid token file path")
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, kerrors.Wrap(err, kerrors.KindUnavailable, "failed to start file watcher")
	}
	// Editors often save by renaming a temp file over the target, which
	// drops a watch on the file itself. Watch the directory instead.
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, kerrors.Wrap(err, kerrors.KindUnavailable, "failed to watch %s", filepath.Dir(abs))
	}

	reload := debounce.New(reloadDelay, w.reload)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-fw.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs {
					continue
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					reload.Call(abs)
				}
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				logger.Warn("file watcher error", "error", err)
			}
		}
	}()

	return func() {
		fw.Close()
		<-done
		reload.Stop()
	}, nil
}

func (w *expiryWatcher) reload(path string) {
	tok, err := readTokenFile(path)
	if err != nil {
		logger.Warn("failed to reload token", "path", path, "error", err)
		return
	}
	if tok == "" {
		// Truncate-then-write saves briefly leave the file empty.
		logger.Debug("token file empty, keeping previous token", "path", path)
		return
	}
	if err := w.setToken(tok); err != nil {
		logger.Warn("reloaded token is invalid, keeping previous token", "path", path, "error", err)
		return
	}
	logger.Info("token reloaded", "path", path, "exp", w.expiry())
	w.render()
}
