package app

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/martian56/videoo-call/internal/domain"
)

func focusFixture() (*Directory, *Focus) {
	dir := NewDirectory(selfID)
	dir.Upsert(peerB, "bea")
	dir.Upsert(peerC, "cyd")
	return dir, NewFocus(dir)
}

func share(dir *Directory, focus *Focus, id domain.Identity) {
	dir.SetScreenSharing(id, true)
	focus.ShareStarted(id)
}

func unshare(dir *Directory, focus *Focus, id domain.Identity) {
	dir.SetScreenSharing(id, false)
	focus.ShareStopped(id)
}

func TestAutoPinFirstSharerWins(t *testing.T) {
	dir, focus := focusFixture()

	share(dir, focus, peerB)
	assert.Equal(t, peerB, focus.State().Pinned)
	assert.Equal(t, domain.PinAutoShare, focus.State().PinnedBy)

	// A second simultaneous sharer never steals focus.
	share(dir, focus, peerC)
	assert.Equal(t, peerB, focus.State().Pinned)

	// When the pinned sharer stops, the remaining one is promoted.
	unshare(dir, focus, peerB)
	assert.Equal(t, peerC, focus.State().Pinned)
	assert.Equal(t, domain.PinAutoShare, focus.State().PinnedBy)

	unshare(dir, focus, peerC)
	assert.Equal(t, domain.Identity(""), focus.State().Pinned)
	assert.Equal(t, domain.PinNone, focus.State().PinnedBy)
}

func TestAutoPinReplacesStalePin(t *testing.T) {
	dir, focus := focusFixture()

	// A pinned participant who is no longer sharing does not hold focus
	// against a fresh sharer.
	focus.Pin(peerB)
	share(dir, focus, peerC)
	assert.Equal(t, peerC, focus.State().Pinned)
	assert.Equal(t, domain.PinAutoShare, focus.State().PinnedBy)
}

func TestManualPinOverridesAuto(t *testing.T) {
	dir, focus := focusFixture()

	share(dir, focus, peerB)
	focus.Pin(peerC)
	assert.Equal(t, peerC, focus.State().Pinned)
	assert.Equal(t, domain.PinManual, focus.State().PinnedBy)
}

func TestPinToggleUnpins(t *testing.T) {
	_, focus := focusFixture()

	focus.Pin(peerB)
	assert.Equal(t, peerB, focus.State().Pinned)

	focus.Pin(peerB)
	assert.Equal(t, domain.FocusState{}, focus.State())
}

func TestEmptyPinAlwaysClears(t *testing.T) {
	dir, focus := focusFixture()

	share(dir, focus, peerB)
	focus.Pin("")
	assert.Equal(t, domain.FocusState{}, focus.State())
}

func TestNonPinnedStopLeavesPinUntouched(t *testing.T) {
	dir, focus := focusFixture()

	share(dir, focus, peerB)
	share(dir, focus, peerC)
	unshare(dir, focus, peerC)
	assert.Equal(t, peerB, focus.State().Pinned)
}

func TestParticipantGonePromotesNextSharer(t *testing.T) {
	dir, focus := focusFixture()

	share(dir, focus, peerB)
	share(dir, focus, peerC)

	dir.SetScreenSharing(peerB, false)
	dir.Remove(peerB)
	focus.ParticipantGone(peerB)
	assert.Equal(t, peerC, focus.State().Pinned)
}

func TestFocusChangeNotification(t *testing.T) {
	dir, focus := focusFixture()

	var seen []domain.FocusState
	focus.OnChange(func(s domain.FocusState) { seen = append(seen, s) })

	share(dir, focus, peerB)
	share(dir, focus, peerB) // no state change, no notification

	assert.Len(t, seen, 1)
	assert.Equal(t, peerB, seen[0].Pinned)
}
