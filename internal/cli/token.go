package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hako/durafmt"
	kerrors "github.com/spetersoncode/kigen/internal/errors"
	"github.com/spetersoncode/kigen/internal/store"
	"github.com/spetersoncode/kigen/internal/timefmt"
	"github.com/spetersoncode/kigen/internal/token"
	"github.com/spf13/cobra"
)

// Token command flags
var (
	tokenKey       string
	tokenKeyFile   string
	tokenAlg       string
	tokenStored    string
	encodeClaims   []string
	encodeExpIn    int64
	encodeIat      bool
	encodeSave     string
	encodeCopy     bool
	decodeNoVerify bool
	expiryPast     bool
	keygenBits     int
	keygenKID      string
	keygenOut      string
)

func init() {
	for _, c := range []*cobra.Command{tokenEncodeCmd, tokenDecodeCmd} {
		c.Flags().StringVar(&tokenKey, "key", "", "HMAC secret or key material")
		c.Flags().StringVar(&tokenKeyFile, "key-file", "", "Read the key from a file (PEM or JWK for RS256)")
		c.Flags().StringVar(&tokenAlg, "alg", "", "Algorithm: "+strings.Join(token.Algorithms(), ", "))
	}
	for _, c := range []*cobra.Command{tokenDecodeCmd, tokenExpiryCmd, tokenWatchCmd} {
		c.Flags().StringVar(&tokenStored, "stored", "", "Read the token from this store key")
	}

	tokenEncodeCmd.Flags().StringArrayVarP(&encodeClaims, "claim", "c", nil, "Claim as key=value; JSON values are decoded (repeatable)")
	tokenEncodeCmd.Flags().Int64Var(&encodeExpIn, "exp-in", 0, "Set exp to now plus this many seconds")
	tokenEncodeCmd.Flags().BoolVar(&encodeIat, "iat", false, "Set iat to now")
	tokenEncodeCmd.Flags().StringVar(&encodeSave, "save", "", "Also save the token under this store key")
	tokenEncodeCmd.Flags().BoolVar(&encodeCopy, "copy", false, "Copy the token to the clipboard")

	tokenDecodeCmd.Flags().BoolVar(&decodeNoVerify, "no-verify", false, "Skip signature, exp and nbf checks")

	tokenExpiryCmd.Flags().BoolVar(&expiryPast, "past", false, "Show elapsed time for expired tokens")

	tokenKeygenCmd.Flags().IntVar(&keygenBits, "bits", 2048, "RSA key size")
	tokenKeygenCmd.Flags().StringVar(&keygenKID, "kid", "kigen-key", "Key ID written to the JWK")
	tokenKeygenCmd.Flags().StringVarP(&keygenOut, "out", "o", "kigen-rs256", "Output path prefix")

	tokenCmd.AddCommand(tokenEncodeCmd)
	tokenCmd.AddCommand(tokenDecodeCmd)
	tokenCmd.AddCommand(tokenExpiryCmd)
	tokenCmd.AddCommand(tokenKeygenCmd)
	rootCmd.AddCommand(tokenCmd)
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Encode, decode and inspect JSON Web Tokens",
	Long: `Encode, decode and inspect JSON Web Tokens (HS256, HS384, HS512, RS256).

Tokens can be given as an argument, read from stdin with "-", or loaded
from the local store with --stored <key>.

Examples:
  kigen token encode --key secret -c sub=user-1 --exp-in 3600
  kigen token decode <jwt> --key secret
  kigen token decode <jwt> --no-verify
  kigen token expiry <jwt>
  kigen token watch --stored session`,
}

var tokenEncodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Sign a new token",
	Args:  cobra.NoArgs,
	RunE:  runTokenEncode,
}

var tokenDecodeCmd = &cobra.Command{
	Use:   "decode [jwt|-]",
	Short: "Verify a token and print its claims",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTokenDecode,
}

var tokenExpiryCmd = &cobra.Command{
	Use:   "expiry [jwt|-]",
	Short: "Show how long until a token expires",
	Long: `Show the difference between a token's exp claim and now.

The signature is not checked. Expired tokens show "有効期限切れ" unless
--past is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTokenExpiry,
}

var tokenKeygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an RS256 key pair",
	Long: `Generate an RSA key pair for RS256.

Writes <out>.pem (PKCS#8 private key, mode 0600) and <out>.jwks.json
(public JWK set).`,
	Args: cobra.NoArgs,
	RunE: runTokenKeygen,
}

// algorithm returns --alg, then the configured default.
func algorithm() string {
	if tokenAlg != "" {
		return tokenAlg
	}
	return GetConfig().Token.Algorithm
}

// keyMaterial returns --key, or the contents of --key-file or token.key_file.
func keyMaterial() ([]byte, error) {
	if tokenKey != "" {
		return []byte(tokenKey), nil
	}
	path := tokenKeyFile
	if path == "" {
		path = GetConfig().Token.KeyFile
	}
	if path == "" {
		return nil, kerrors.InvalidArgs("no signing key given").WithSuggestion(SuggestKey)
	}
	data, err := os.ReadFile(expandHome(path))
	if err != nil {
		return nil, kerrors.Wrap(err, kerrors.KindInvalidArgs, "failed to read key file")
	}
	// Secrets written with echo end in a newline that is not part of the key.
	return []byte(strings.TrimRight(string(data), "\r\n")), nil
}

func loadKey(alg string, private bool) (any, error) {
	material, err := keyMaterial()
	if err != nil {
		return nil, err
	}
	return loadKeyFrom(alg, material, private)
}

func loadKeyFrom(alg string, material []byte, private bool) (any, error) {
	key, err := token.LoadKey(alg, material, private)
	if err != nil {
		return nil, kerrors.Wrap(err, kerrors.KindInvalidArgs, "failed to load %s key", strings.ToUpper(alg))
	}
	return key, nil
}

// readToken resolves the token from --stored, an argument, or stdin.
func readToken(cmd *cobra.Command, args []string) (string, error) {
	if tokenStored != "" {
		s, err := openStore()
		if err != nil {
			return "", err
		}
		defer s.Close()

		var tok string
		if err := s.LoadInto(cmd.Context(), tokenStored, &tok); err != nil {
			return "", storeError(err, tokenStored)
		}
		return tok, nil
	}

	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", kerrors.Wrap(err, kerrors.KindInvalidArgs, "failed to read token from stdin")
		}
		tok := strings.TrimSpace(string(data))
		if tok == "" {
			return "", kerrors.InvalidArgs("no token given")
		}
		return tok, nil
	}
	return strings.TrimSpace(args[0]), nil
}

// parseClaim splits key=value. Values that parse as JSON keep their type.
func parseClaim(s string) (string, any, error) {
	k, v, ok := strings.Cut(s, "=")
	if !ok || k == "" {
		return "", nil, kerrors.InvalidArgs("invalid claim %q (want key=value)", s)
	}
	var decoded any
	if err := json.Unmarshal([]byte(v), &decoded); err == nil {
		return k, decoded, nil
	}
	return k, v, nil
}

func runTokenEncode(cmd *cobra.Command, args []string) error {
	claims := make(map[string]any)
	for _, c := range encodeClaims {
		k, v, err := parseClaim(c)
		if err != nil {
			return err
		}
		claims[k] = v
	}

	clock, err := Clock()
	if err != nil {
		return err
	}
	now := timefmt.CurrentTimestamp(clock)
	if encodeExpIn != 0 {
		claims["exp"] = timefmt.FutureTimestamp(clock, encodeExpIn)
	}
	if encodeIat {
		claims["iat"] = now
	}

	alg := algorithm()
	key, err := loadKey(alg, true)
	if err != nil {
		return err
	}

	tok, err := token.Encode(claims, key, alg)
	if err != nil {
		return kerrors.Wrap(err, kerrors.KindInvalidArgs, "failed to encode token")
	}

	if encodeSave != "" {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()
		if err := s.Save(cmd.Context(), encodeSave, tok); err != nil {
			return storeError(err, encodeSave)
		}
		VerboseOutput(cmd, "Saved token as %q\n", encodeSave)
	}

	if encodeCopy && !copyText(tok) {
		ErrorOutput(cmd, "Warning: could not copy the token to the clipboard\n")
	}

	if IsJSON() {
		return outputJSON(cmd.OutOrStdout(), map[string]any{"token": tok, "claims": claims})
	}
	Result(cmd, "%s", tok)
	return nil
}

// maxLifetime is the longest exp-iat span a time.Duration can hold.
const maxLifetime = int64(math.MaxInt64 / time.Second)

type decodeResult struct {
	Header    map[string]any `json:"header"`
	Claims    map[string]any `json:"claims"`
	Verified  bool           `json:"verified"`
	ExpiresAt *int64         `json:"expires_at,omitempty"`
	ExpiresIn string         `json:"expires_in,omitempty"`
	Lifetime  string         `json:"lifetime,omitempty"`
}

func runTokenDecode(cmd *cobra.Command, args []string) error {
	tok, err := readToken(cmd, args)
	if err != nil {
		return err
	}

	header, err := token.Header(tok)
	if err != nil {
		return kerrors.WrapToken(err, "failed to decode token")
	}

	f, err := Formatter()
	if err != nil {
		return err
	}
	// One reading of the clock serves verification and display.
	now := f.Now()

	var claims map[string]any
	if decodeNoVerify {
		claims, err = token.Decode(tok, nil, token.WithoutVerification())
	} else {
		// The key family comes from the key material, never from the
		// unverified header. Decode then only accepts header algorithms of
		// that family.
		var material []byte
		material, err = keyMaterial()
		if err != nil {
			return err
		}
		alg := tokenAlg
		if alg == "" {
			alg = token.Family(material, GetConfig().Token.Algorithm)
		}
		var key any
		key, err = loadKeyFrom(alg, material, false)
		if err != nil {
			return err
		}
		opts := []token.DecodeOption{token.WithClock(timefmt.FixedUnix(now))}
		if tokenAlg != "" {
			opts = append(opts, token.WithAlgorithm(tokenAlg))
		}
		claims, err = token.Decode(tok, key, opts...)
	}
	if err != nil {
		return kerrors.WrapToken(err, "failed to decode token").WithSuggestion(SuggestNoVerify)
	}

	result := decodeResult{Header: header, Claims: claims, Verified: !decodeNoVerify}
	if exp, ok, _ := token.Expiry(tok); ok {
		result.ExpiresAt = &exp
		result.ExpiresIn = timefmt.DifferenceAt(exp, now, true, f.Labels())
		if iat, ok, _ := token.IssuedAt(tok); ok && exp > iat && timefmt.Diff(exp, iat) <= maxLifetime {
			result.Lifetime = durafmt.Parse(time.Duration(exp-iat) * time.Second).LimitFirstN(2).String()
		}
	}

	if IsJSON() {
		return outputJSON(cmd.OutOrStdout(), result)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Header:   %s\n", compactJSON(header))
	fmt.Fprintln(w, "Claims:")
	keys := make([]string, 0, len(claims))
	for k := range claims {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %-8s %s\n", k, compactJSON(claims[k]))
	}
	if result.ExpiresAt != nil {
		loc, err := Location()
		if err != nil {
			return err
		}
		state := diffState(timefmt.Diff(*result.ExpiresAt, now), true)
		fmt.Fprintf(w, "Expires:  %s (%s)\n", timefmt.FormatTimestamp(*result.ExpiresAt, loc), colorize(state, result.ExpiresIn))
	}
	if result.Lifetime != "" {
		fmt.Fprintf(w, "Lifetime: %s\n", result.Lifetime)
	}
	if decodeNoVerify {
		fmt.Fprintln(w, "Signature: not verified")
	}
	return nil
}

func compactJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

type expiryResult struct {
	diffResult
	Expires string `json:"expires"`
}

func runTokenExpiry(cmd *cobra.Command, args []string) error {
	tok, err := readToken(cmd, args)
	if err != nil {
		return err
	}

	exp, ok, err := token.Expiry(tok)
	if err != nil {
		return kerrors.WrapToken(err, "failed to read exp claim")
	}
	if !ok {
		return kerrors.Token("token has no exp claim")
	}

	f, err := Formatter()
	if err != nil {
		return err
	}
	loc, err := Location()
	if err != nil {
		return err
	}

	now := f.Now()
	result := expiryResult{
		diffResult: diffResult{
			Timestamp: exp,
			Now:       now,
			Diff:      timefmt.Diff(exp, now),
			State:     diffState(timefmt.Diff(exp, now), expiryPast),
			Text:      timefmt.DifferenceAt(exp, now, expiryPast, f.Labels()),
		},
		Expires: timefmt.FormatTimestamp(exp, loc),
	}

	if IsJSON() {
		return outputJSON(cmd.OutOrStdout(), result)
	}
	Result(cmd, "%s", colorize(result.State, result.Text))
	return nil
}

func runTokenKeygen(cmd *cobra.Command, args []string) error {
	kp, err := token.GenerateRSAKey(keygenBits, keygenKID)
	if err != nil {
		return err
	}

	privPEM, err := kp.PrivatePEM()
	if err != nil {
		return err
	}
	jwks, err := kp.PublicJWKSet()
	if err != nil {
		return err
	}

	privPath := keygenOut + ".pem"
	jwksPath := keygenOut + ".jwks.json"
	if dir := filepath.Dir(privPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(privPath, privPEM, 0600); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}
	if err := os.WriteFile(jwksPath, jwks, 0644); err != nil {
		return fmt.Errorf("failed to write JWK set: %w", err)
	}

	if IsJSON() {
		return outputJSON(cmd.OutOrStdout(), map[string]any{"private_key": privPath, "jwks": jwksPath, "kid": keygenKID})
	}
	OutputLine(cmd, "Private key: %s", privPath)
	OutputLine(cmd, "Public JWKs: %s", jwksPath)
	return nil
}

// storeError maps store sentinels to CLI errors for key.
func storeError(err error, key string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return kerrors.NotFound("no value stored for %q", key).WithSuggestion(SuggestListKeys)
	case errors.Is(err, store.ErrEmptyKey):
		return kerrors.InvalidArgs("key must not be empty")
	default:
		return kerrors.WrapStorage(err, "store operation on %q failed", key)
	}
}

// expandHome expands a leading ~ to the user's home directory.
func expandHome(path string) string {
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
