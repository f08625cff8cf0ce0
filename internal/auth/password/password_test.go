package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerify(t *testing.T) {
	encoded, err := Hash("secret-pass")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$"))

	assert.True(t, Verify("secret-pass", encoded))
	assert.False(t, Verify("wrong-pass", encoded))
}

func TestVerifyRejectsMalformed(t *testing.T) {
	assert.False(t, Verify("x", ""))
	assert.False(t, Verify("x", "$argon2i$v=19$m=1,t=1,p=1$aa$bb"))
	assert.False(t, Verify("x", "$argon2id$v=19$m=1,t=1$aa$bb"))
}

func TestVerifyUsesEncodedParams(t *testing.T) {
	// A hash produced with cheaper settings still verifies.
	cheap := params{memory: 8 * 1024, passes: 2, threads: 1}
	salt := []byte("0123456789abcdef")
	key := cheap.derive("legacy", salt, 16)
	encoded := "$argon2id$v=19$m=8192,t=2,p=1$" + b64.EncodeToString(salt) + "$" + b64.EncodeToString(key)

	assert.True(t, Verify("legacy", encoded))
	assert.False(t, Verify("legacy", strings.Replace(encoded, "t=2", "t=3", 1)))
	assert.False(t, Verify("legacy", strings.Replace(encoded, "m=8192", "m=0", 1)))
	assert.False(t, Verify("legacy", strings.Replace(encoded, "v=19", "v=16", 1)))
}
