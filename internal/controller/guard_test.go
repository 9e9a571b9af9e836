package controller

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGuardSuppressesRepeatWithinCooldown(t *testing.T) {
	g := NewTapGuard(30_000)

	assert.False(t, g.Suppressed("AB12", 0), "fresh guard suppresses nothing")
	g.Claim("AB12", 0)

	assert.True(t, g.Suppressed("AB12", 10_000))
	assert.True(t, g.Suppressed("AB12", 29_999))
	assert.False(t, g.Suppressed("AB12", 30_000), "cooldown window is half-open")
}

func TestGuardDifferentIdentifierNotSuppressed(t *testing.T) {
	g := NewTapGuard(30_000)
	g.Claim("AB12", 0)

	assert.False(t, g.Suppressed("CD34", 1_000))
}

func TestGuardEmptyIdentifierClaims(t *testing.T) {
	g := NewTapGuard(30_000)
	g.Claim("", 0)

	assert.True(t, g.Suppressed("", 5_000), "failed reads suppress each other")
	assert.False(t, g.Suppressed("AB12", 5_000), "empty claim never matches a real identifier")
}

func TestGuardReclaimExtendsWindow(t *testing.T) {
	g := NewTapGuard(30_000)
	g.Claim("AB12", 0)
	g.Claim("AB12", 29_000)

	assert.True(t, g.Suppressed("AB12", 58_000))
}

func TestDetectLineStabilization(t *testing.T) {
	d := &DetectLine{}

	assert.False(t, d.Stable(100, 20), "unraised line is never stable")

	d.Raise(100)
	assert.False(t, d.Stable(110, 20), "still inside the debounce window")
	assert.True(t, d.Stable(120, 20))
}

func TestDetectLineReRaiseKeepsOriginalTime(t *testing.T) {
	d := &DetectLine{}
	d.Raise(100)
	d.Raise(115) // bounce

	assert.True(t, d.Stable(120, 20), "window measures from the first assertion")
}

func TestDetectLineConsume(t *testing.T) {
	d := &DetectLine{}
	d.Raise(100)
	d.Consume()

	assert.False(t, d.Stable(1_000, 20))

	d.Raise(1_000)
	assert.True(t, d.Stable(1_020, 20), "line can be raised again after consume")
}
