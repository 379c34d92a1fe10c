package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spetersoncode/kigen/internal/config"
	"github.com/spetersoncode/kigen/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// encodeToken signs a token at testNow through the CLI.
func encodeToken(t *testing.T, dbPath string, args ...string) string {
	t.Helper()
	out, err := runCmd(t, dbPath, append([]string{"token", "encode", "--key", "secret"}, args...)...)
	require.NoError(t, err)
	return strings.TrimSpace(out)
}

func TestCmdTokenEncodeDecode(t *testing.T) {
	dbPath := testDBPath(t)
	tok := encodeToken(t, dbPath, "-c", "sub=user-1", "-c", "admin=true", "--exp-in", "3600", "--iat")

	claims, err := token.Decode(tok, []byte("secret"), token.WithoutVerification())
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims["sub"])
	assert.Equal(t, true, claims["admin"])
	assert.EqualValues(t, 1700003600, claims["exp"])
	assert.EqualValues(t, 1700000000, claims["iat"])

	out, err := runCmd(t, dbPath, "--tz", "UTC", "token", "decode", tok, "--key", "secret")
	require.NoError(t, err)
	assert.Contains(t, out, `sub      "user-1"`)
	assert.Contains(t, out, "Expires:  2023/11/14 23:13:20 (1時間後)")
	assert.Contains(t, out, "Lifetime: 1 hour")
	assert.NotContains(t, out, "not verified")
}

func TestCmdTokenDecodeJSON(t *testing.T) {
	dbPath := testDBPath(t)
	tok := encodeToken(t, dbPath, "-c", "sub=user-1", "--exp-in", "90")

	var result decodeResult
	err := runCmdJSON(t, dbPath, &result, "token", "decode", tok, "--key", "secret")
	require.NoError(t, err)

	assert.True(t, result.Verified)
	assert.Equal(t, "HS256", result.Header["alg"])
	assert.Equal(t, "user-1", result.Claims["sub"])
	require.NotNil(t, result.ExpiresAt)
	assert.Equal(t, int64(1700000090), *result.ExpiresAt)
	assert.Equal(t, "1分30秒後", result.ExpiresIn)
	assert.Empty(t, result.Lifetime, "no iat claim")
}

func TestCmdTokenDecodeFromStdin(t *testing.T) {
	dbPath := testDBPath(t)
	tok := encodeToken(t, dbPath, "-c", "sub=user-1")

	out, err := runCmdIn(t, dbPath, tok+"\n", "token", "decode", "-", "--key", "secret")
	require.NoError(t, err)
	assert.Contains(t, out, `"user-1"`)
}

func TestCmdTokenDecodeRejects(t *testing.T) {
	dbPath := testDBPath(t)
	tok := encodeToken(t, dbPath, "--exp-in", "60")

	t.Run("wrong key", func(t *testing.T) {
		_, err := runCmd(t, dbPath, "token", "decode", tok, "--key", "other")
		require.Error(t, err)
		assert.Equal(t, 4, ExitCode(err))
		assert.Contains(t, FormatErrorMessage(err), "--no-verify")
	})

	t.Run("expired", func(t *testing.T) {
		_, err := runCmd(t, dbPath, "token", "decode", tok, "--key", "secret", "--now", "1700000100")
		require.Error(t, err)
		assert.Equal(t, 4, ExitCode(err))
	})

	t.Run("pinned algorithm mismatch", func(t *testing.T) {
		_, err := runCmd(t, dbPath, "token", "decode", tok, "--key", "secret", "--alg", "HS512")
		require.Error(t, err)
		assert.Equal(t, 4, ExitCode(err))
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := runCmd(t, dbPath, "token", "decode", "not-a-token", "--key", "secret")
		require.Error(t, err)
		assert.Equal(t, 4, ExitCode(err))
	})

	t.Run("no key", func(t *testing.T) {
		_, err := runCmd(t, dbPath, "token", "decode", tok)
		require.Error(t, err)
		assert.Equal(t, 2, ExitCode(err))
		assert.Contains(t, FormatErrorMessage(err), "--key-file")
	})

	t.Run("no verify shows expired claims", func(t *testing.T) {
		out, err := runCmd(t, dbPath, "token", "decode", tok, "--no-verify", "--now", "1700000100")
		require.NoError(t, err)
		assert.Contains(t, out, "40秒前")
		assert.Contains(t, out, "Signature: not verified")
	})
}

func TestCmdTokenKeyFile(t *testing.T) {
	dbPath := testDBPath(t)
	keyFile := filepath.Join(t.TempDir(), "secret")
	require.NoError(t, os.WriteFile(keyFile, []byte("secret\n"), 0600))

	out, err := runCmd(t, dbPath, "token", "encode", "--key-file", keyFile, "-c", "sub=a")
	require.NoError(t, err)
	tok := strings.TrimSpace(out)

	// The trailing newline is not part of the secret.
	_, err = token.Decode(tok, []byte("secret"))
	require.NoError(t, err)

	_, err = runCmd(t, dbPath, "token", "decode", tok, "--key-file", keyFile)
	require.NoError(t, err)
}

func TestCmdTokenKeygenRS256(t *testing.T) {
	dbPath := testDBPath(t)
	prefix := filepath.Join(t.TempDir(), "keys", "test")

	out, err := runCmd(t, dbPath, "token", "keygen", "--out", prefix, "--kid", "k1")
	require.NoError(t, err)
	assert.Contains(t, out, prefix+".pem")

	info, err := os.Stat(prefix + ".pem")
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	out, err = runCmd(t, dbPath, "token", "encode", "--alg", "RS256", "--key-file", prefix+".pem", "-c", "sub=rsa", "--exp-in", "60")
	require.NoError(t, err)
	tok := strings.TrimSpace(out)

	out, err = runCmd(t, dbPath, "token", "decode", tok, "--key-file", prefix+".jwks.json")
	require.NoError(t, err)
	assert.Contains(t, out, `"RS256"`)
	assert.Contains(t, out, `"rsa"`)

	_, err = runCmd(t, dbPath, "token", "decode", tok, "--key", "secret", "--alg", "HS256")
	require.Error(t, err)
}

func TestCmdTokenDecodeRejectsPublicKeyAsSecret(t *testing.T) {
	dbPath := testDBPath(t)
	kp, err := token.GenerateRSAKey(2048, "k1")
	require.NoError(t, err)
	pubPEM, err := kp.PublicPEM()
	require.NoError(t, err)
	pubFile := filepath.Join(t.TempDir(), "pub.pem")
	require.NoError(t, os.WriteFile(pubFile, pubPEM, 0644))

	// An HS256 token whose secret is the published public key.
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "admin"}).
		SignedString([]byte(strings.TrimRight(string(pubPEM), "\r\n")))
	require.NoError(t, err)

	_, err = runCmd(t, dbPath, "token", "decode", forged, "--key-file", pubFile)
	require.Error(t, err)
	assert.Equal(t, 4, ExitCode(err))

	_, err = runCmd(t, dbPath, "token", "decode", forged, "--key-file", pubFile, "--alg", "HS256")
	require.Error(t, err)
	assert.Equal(t, 2, ExitCode(err))

	cfg := config.DefaultConfig()
	cfg.Token.Algorithm = "HS512"
	withConfig(t, cfg)
	_, err = runCmd(t, dbPath, "token", "decode", forged, "--key-file", pubFile)
	require.Error(t, err)
}

func TestCmdTokenSaveAndStored(t *testing.T) {
	dbPath := testDBPath(t)
	tok := encodeToken(t, dbPath, "--exp-in", "90", "--save", "session")

	out, err := runCmd(t, dbPath, "store", "get", "session")
	require.NoError(t, err)
	assert.Equal(t, tok+"\n", out)

	out, err = runCmd(t, dbPath, "token", "expiry", "--stored", "session")
	require.NoError(t, err)
	assert.Equal(t, "1分30秒後\n", out)

	_, err = runCmd(t, dbPath, "token", "expiry", "--stored", "missing")
	require.Error(t, err)
	assert.Equal(t, 3, ExitCode(err))
}

func TestCmdTokenEncodeCopy(t *testing.T) {
	fake := &fakeClipboard{}
	useClipboard(t, fake)

	tok := encodeToken(t, testDBPath(t), "-c", "sub=a", "--copy")
	assert.Equal(t, tok, fake.text)
}

func TestCmdTokenExpiry(t *testing.T) {
	dbPath := testDBPath(t)
	tok := encodeToken(t, dbPath, "--exp-in", "60")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"remaining", nil, "1分後"},
		{"expired", []string{"--now", "1700000100"}, "有効期限切れ"},
		{"elapsed", []string{"--now", "1700000100", "--past"}, "40秒前"},
		{"at expiry", []string{"--now", "1700000060"}, "今"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCmd(t, dbPath, append([]string{"token", "expiry", tok}, tt.args...)...)
			require.NoError(t, err)
			assert.Equal(t, tt.want+"\n", out)
		})
	}

	noExp := encodeToken(t, dbPath, "-c", "sub=a")
	_, err := runCmd(t, dbPath, "token", "expiry", noExp)
	require.Error(t, err)
	assert.Equal(t, 4, ExitCode(err))
}

func TestCmdTokenExpiryJSON(t *testing.T) {
	dbPath := testDBPath(t)
	tok := encodeToken(t, dbPath, "--exp-in", "60")

	var result expiryResult
	err := runCmdJSON(t, dbPath, &result, "--tz", "UTC", "token", "expiry", tok)
	require.NoError(t, err)
	assert.Equal(t, stateLater, result.State)
	assert.Equal(t, int64(60), result.Diff)
	assert.Equal(t, "2023/11/14 22:14:20", result.Expires)
}

func TestParseClaim(t *testing.T) {
	tests := []struct {
		in      string
		key     string
		value   any
		wantErr bool
	}{
		{"sub=user-1", "sub", "user-1", false},
		{"n=42", "n", float64(42), false},
		{"ok=true", "ok", true, false},
		{`roles=["a","b"]`, "roles", []any{"a", "b"}, false},
		{"eq=a=b", "eq", "a=b", false},
		{"empty=", "empty", "", false},
		{"novalue", "", nil, true},
		{"=x", "", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			k, v, err := parseClaim(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.key, k)
			assert.Equal(t, tt.value, v)
		})
	}
}
