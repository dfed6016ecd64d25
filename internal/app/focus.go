package app

import (
	"github.com/rs/zerolog/log"

	"github.com/martian56/videoo-call/internal/domain"
)

// Focus derives the pinned participant from screen-share events and manual
// pin actions. The first active sharer wins; a second simultaneous sharer
// never steals focus, but is promoted when the pinned one stops.
type Focus struct {
	dir      *Directory
	state    domain.FocusState
	onChange func(domain.FocusState)
}

func NewFocus(dir *Directory) *Focus {
	return &Focus{dir: dir}
}

// OnChange registers the UI-facing notification hook.
func (f *Focus) OnChange(fn func(domain.FocusState)) { f.onChange = fn }

func (f *Focus) State() domain.FocusState { return f.state }

// ShareStarted pins the new sharer unless somebody who is still sharing is
// already pinned.
func (f *Focus) ShareStarted(id domain.Identity) {
	if f.state.Pinned != "" && f.dir.IsSharing(f.state.Pinned) {
		return
	}
	f.set(domain.FocusState{Pinned: id, PinnedBy: domain.PinAutoShare})
}

// ShareStopped promotes the next sharer, in insertion order, when the
// stopping identity was pinned; otherwise the pin is untouched.
func (f *Focus) ShareStopped(id domain.Identity) {
	if f.state.Pinned != id {
		return
	}
	if next, ok := f.dir.FirstSharing(id); ok {
		f.set(domain.FocusState{Pinned: next, PinnedBy: domain.PinAutoShare})
		return
	}
	f.set(domain.FocusState{})
}

// Pin is the user clicking a participant. Clicking the already-pinned
// identity unpins; an empty identity always clears.
func (f *Focus) Pin(id domain.Identity) {
	if id == "" || id == f.state.Pinned {
		f.set(domain.FocusState{})
		return
	}
	f.set(domain.FocusState{Pinned: id, PinnedBy: domain.PinManual})
}

// ParticipantGone clears the pin when the pinned participant leaves or
// loses media, promoting another active sharer if there is one.
func (f *Focus) ParticipantGone(id domain.Identity) {
	if f.state.Pinned != id {
		return
	}
	f.ShareStopped(id)
}

func (f *Focus) set(next domain.FocusState) {
	if next == f.state {
		return
	}
	f.state = next
	log.Info().Str("module", "app.focus").Str("pinned", string(next.Pinned)).
		Str("by", next.PinnedBy.String()).Msg("focus changed")
	if f.onChange != nil {
		f.onChange(next)
	}
}
