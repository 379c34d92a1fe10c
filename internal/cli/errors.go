package cli

import (
	"errors"
	"strings"

	kerrors "github.com/spetersoncode/kigen/internal/errors"
	"github.com/spetersoncode/kigen/internal/store"
	"github.com/spetersoncode/kigen/internal/token"
)

// ExitCode returns the process exit code for an error returned by Execute.
func ExitCode(err error) int {
	return kerrors.GetCLIExitCode(classify(err))
}

// FormatErrorMessage returns the error message with a suggestion if one is known.
func FormatErrorMessage(err error) string {
	err = classify(err)

	var b strings.Builder
	b.WriteString("Error: ")
	b.WriteString(err.Error())

	var kerr *kerrors.Error
	if errors.As(err, &kerr) && kerr.Suggestion != "" {
		b.WriteString("\n\nSuggestion: ")
		b.WriteString(kerr.Suggestion)
	}
	return b.String()
}

// classify gives library sentinel errors a kind when a command returned them
// unwrapped.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var kerr *kerrors.Error
	if errors.As(err, &kerr) {
		return err
	}

	switch {
	case errors.Is(err, store.ErrNotFound):
		return kerrors.Wrap(err, kerrors.KindNotFound, "lookup failed").WithSuggestion(SuggestListKeys)
	case errors.Is(err, store.ErrEmptyKey):
		return kerrors.Wrap(err, kerrors.KindInvalidArgs, "invalid key")
	case errors.Is(err, token.ErrMalformed),
		errors.Is(err, token.ErrSignature),
		errors.Is(err, token.ErrExpired),
		errors.Is(err, token.ErrNotYetActive):
		return kerrors.WrapToken(err, "token rejected")
	case errors.Is(err, token.ErrUnsupportedAlgorithm), errors.Is(err, token.ErrKey):
		return kerrors.Wrap(err, kerrors.KindInvalidArgs, "invalid token options")
	default:
		return err
	}
}

// Common suggestions
const (
	SuggestRunInit  = "Run 'kigen init' to create the local store."
	SuggestListKeys = "Run 'kigen store list' to see stored keys."
	SuggestKey      = "Pass --key, --key-file, or set token.key_file in ~/.kigen/config.toml."
	SuggestNoVerify = "Use --no-verify to inspect the claims without checking the signature."
)
