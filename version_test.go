package claimsight

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetVersion(t *testing.T) {
	info := GetVersion()

	assert.Equal(t, Version, info.Version)
	assert.NotEmpty(t, info.GoVersion)
	assert.NotEmpty(t, info.Platform)

	s := info.String()
	assert.Contains(t, s, "ClaimSight")
	assert.Contains(t, s, Version)
}
