package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSecretMatches(t *testing.T) {
	assert.True(t, SecretMatches("", ""))
	assert.True(t, SecretMatches("", "anything"))
	assert.True(t, SecretMatches("s3cret", "s3cret"))
	assert.False(t, SecretMatches("s3cret", ""))
	assert.False(t, SecretMatches("s3cret", "s3cre"))
	assert.False(t, SecretMatches("s3cret", "S3CRET"))
}
