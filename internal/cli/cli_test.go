package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spetersoncode/kigen/internal/config"
	"github.com/spetersoncode/kigen/internal/idgen"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

// testNow is the fixed current time passed as --now in every command test.
const testNow = "1700000000"

// testDBPath returns a store path in an isolated temp directory.
// Tests must never touch ~/.kigen.
func testDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "kigen.db")
}

// resetGlobalFlags resets all global CLI flags to their default values.
// This is necessary because cobra keeps state between test runs.
// Default values must match the flag defaults defined in the init() functions.
func resetGlobalFlags() {
	// Root command flags
	dbPath = ""
	jsonOut = false
	quiet = false
	verbose = false
	noColor = false
	locale = ""
	nowFlag = ""
	timezone = ""

	// Difference
	diffPast = false

	// Token command flags
	tokenKey = ""
	tokenKeyFile = ""
	tokenAlg = ""
	tokenStored = ""
	encodeClaims = nil
	encodeExpIn = 0
	encodeIat = false
	encodeSave = ""
	encodeCopy = false
	decodeNoVerify = false
	expiryPast = false
	keygenBits = 2048
	keygenKID = "kigen-key"
	keygenOut = "kigen-rs256"

	// Watch command flags
	watchFile = ""
	watchInterval = 0
	watchPast = false
	watchCount = 0

	// Store command flags
	storeGetDefault = ""
	storeListPrefix = ""
	storeSetString = false

	// Utility command flags
	idLength = idgen.DefaultLength
	idCount = 1
	idUUID = false
	idCopy = false
	hashHMACKey = ""
	hashEncoding = "hex"
	hashCheck = ""
	randEncoding = "hex"
	initForce = false
	initWithConfig = false

	// Flags() keeps Changed between runs; string arrays also append to
	// their previous value until Changed is cleared.
	resetChanged(rootCmd)
}

// testConfig replaces the default configuration for commands run by the
// current test. Set it with withConfig.
var testConfig *config.Config

func withConfig(t *testing.T, cfg *config.Config) {
	t.Helper()
	testConfig = cfg
	t.Cleanup(func() { testConfig = nil })
}

func resetChanged(c *cobra.Command) {
	unset := func(f *pflag.Flag) { f.Changed = false }
	c.Flags().VisitAll(unset)
	c.PersistentFlags().VisitAll(unset)
	for _, sub := range c.Commands() {
		resetChanged(sub)
	}
}

// runCmdIn executes the root command against dbPath with stdin and returns
// stdout. Stderr is discarded.
func runCmdIn(t *testing.T, testDBPath, stdin string, args ...string) (string, error) {
	t.Helper()
	resetGlobalFlags()

	// Never read the developer's ~/.kigen/config.toml.
	globalConfig = config.DefaultConfig()
	if testConfig != nil {
		globalConfig = testConfig
	}

	stdout := new(bytes.Buffer)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(new(bytes.Buffer))
	rootCmd.SetIn(strings.NewReader(stdin))

	fullArgs := append([]string{"--db", testDBPath, "--no-color", "--now", testNow}, args...)
	rootCmd.SetArgs(fullArgs)

	err := rootCmd.Execute()
	return stdout.String(), err
}

// runCmd executes a command with empty stdin.
func runCmd(t *testing.T, testDBPath string, args ...string) (string, error) {
	t.Helper()
	return runCmdIn(t, testDBPath, "", args...)
}

// runCmdJSON executes a command with --json and decodes the result.
func runCmdJSON(t *testing.T, testDBPath string, result any, args ...string) error {
	t.Helper()
	out, err := runCmd(t, testDBPath, append([]string{"--json"}, args...)...)
	if err != nil {
		return err
	}
	require.NoError(t, json.Unmarshal([]byte(out), result), "output: %s", out)
	return nil
}

// fakeClipboard records writes, or fails every write when err is set.
type fakeClipboard struct {
	text string
	err  error
}

func (f *fakeClipboard) WriteAll(text string) error {
	if f.err != nil {
		return f.err
	}
	f.text = text
	return nil
}

// useClipboard swaps in a fake clipboard for the duration of the test.
func useClipboard(t *testing.T, fake *fakeClipboard) {
	t.Helper()
	prev := clipboardWriter
	clipboardWriter = fake
	t.Cleanup(func() { clipboardWriter = prev })
}
