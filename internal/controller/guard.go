package controller

// TapGuard suppresses repeat processing of the same identifier within a
// cooldown window.
//
// The guard is claimed on every non-suppressed read, successful or not: a
// failed read claims the slot under the empty identifier, which damps
// re-trigger storms from a flaky reader without ever matching a real card.
//
// Suppression of taps whose identifier has an upload in flight is the
// controller's job; the guard only knows about the cooldown.
type TapGuard struct {
	cooldownMillis int64
	lastID         string
	lastAtMillis   int64
	claimed        bool
}

// NewTapGuard creates a guard with the given cooldown window.
func NewTapGuard(cooldownMillis int64) *TapGuard {
	return &TapGuard{cooldownMillis: cooldownMillis}
}

// Suppressed reports whether a read of id at nowMillis repeats the last
// claimed read within the cooldown window.
func (g *TapGuard) Suppressed(id string, nowMillis int64) bool {
	return g.claimed && id == g.lastID && nowMillis-g.lastAtMillis < g.cooldownMillis
}

// Claim records id as the last-seen read.
func (g *TapGuard) Claim(id string, nowMillis int64) {
	g.lastID = id
	g.lastAtMillis = nowMillis
	g.claimed = true
}
