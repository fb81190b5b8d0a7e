package passhash

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerify(t *testing.T) {
	encoded, err := Hash("correct horse battery staple")
	require.NoError(t, err)

	ok, err := Verify("correct horse battery staple", encoded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Verify("wrong password", encoded)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashIsSalted(t *testing.T) {
	first, err := Hash("same password")
	require.NoError(t, err)

	second, err := Hash("same password")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestHashFormatIsSelfDescribing(t *testing.T) {
	encoded, err := Hash("secret")
	require.NoError(t, err)

	parts := strings.Split(encoded, "$")
	require.Len(t, parts, 4)
	assert.Equal(t, "pbkdf2_sha512", parts[0])
	assert.Equal(t, "100000", parts[1])
}

func TestEmptyPassword(t *testing.T) {
	_, err := Hash("")
	assert.ErrorIs(t, err, ErrEmptyPassword)

	_, err = Verify("", "whatever")
	assert.ErrorIs(t, err, ErrEmptyPassword)
}

func TestVerifyMalformedHash(t *testing.T) {
	for _, encoded := range []string{
		"",
		"not a hash",
		"pbkdf2_sha512$abc$salt$key",
		"md5$1000$c2FsdA$a2V5",
		"pbkdf2_sha512$100000$!!!$a2V5",
	} {
		_, err := Verify("password", encoded)
		assert.ErrorIs(t, err, ErrMalformedHash, "input %q", encoded)
	}
}
