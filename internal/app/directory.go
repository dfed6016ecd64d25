package app

import (
	"github.com/rs/zerolog/log"

	"github.com/martian56/videoo-call/internal/domain"
)

// Directory maps remote identities to their last-known presentation state.
// It never holds the local identity: the local entry is derivable from the
// orchestrator's own media state and would otherwise be ambiguous. Iteration
// order is insertion order, which keeps focus promotion deterministic.
type Directory struct {
	self    domain.Identity
	byID    map[domain.Identity]*domain.Participant
	ordered []domain.Identity
}

func NewDirectory(self domain.Identity) *Directory {
	return &Directory{
		self: self,
		byID: make(map[domain.Identity]*domain.Participant),
	}
}

// Upsert creates the record on first reference or refreshes the display
// name on a later one. Returns the record, or nil for the local identity.
func (d *Directory) Upsert(id domain.Identity, displayName string) *domain.Participant {
	if id == d.self || id == "" {
		return nil
	}
	if p, ok := d.byID[id]; ok {
		if displayName != "" {
			p.DisplayName = displayName
		}
		return p
	}
	p := domain.NewParticipant(id, displayName)
	d.byID[id] = p
	d.ordered = append(d.ordered, id)
	log.Info().Str("module", "app.directory").Str("peer", string(id)).Str("name", displayName).Msg("participant added")
	return p
}

func (d *Directory) Get(id domain.Identity) (*domain.Participant, bool) {
	p, ok := d.byID[id]
	return p, ok
}

func (d *Directory) Remove(id domain.Identity) {
	if _, ok := d.byID[id]; !ok {
		return
	}
	delete(d.byID, id)
	for i, oid := range d.ordered {
		if oid == id {
			d.ordered = append(d.ordered[:i], d.ordered[i+1:]...)
			break
		}
	}
	log.Info().Str("module", "app.directory").Str("peer", string(id)).Msg("participant removed")
}

func (d *Directory) SetAudio(id domain.Identity, enabled bool) {
	if p, ok := d.byID[id]; ok {
		p.AudioEnabled = enabled
	}
}

func (d *Directory) SetVideo(id domain.Identity, enabled bool) {
	if p, ok := d.byID[id]; ok {
		p.VideoEnabled = enabled
	}
}

func (d *Directory) SetScreenSharing(id domain.Identity, sharing bool) {
	if p, ok := d.byID[id]; ok {
		p.ScreenSharing = sharing
	}
}

// IsSharing reports the screenSharing flag for an identity; unknown
// identities are not sharing.
func (d *Directory) IsSharing(id domain.Identity) bool {
	p, ok := d.byID[id]
	return ok && p.ScreenSharing
}

// MarkNoMedia records that the participant's media session is gone while
// the participant itself may still be a meeting member.
func (d *Directory) MarkNoMedia(id domain.Identity) {
	if p, ok := d.byID[id]; ok {
		p.ScreenSharing = false
	}
}

// FirstSharing returns the first participant, in insertion order, whose
// screenSharing flag is set, skipping the given identity.
func (d *Directory) FirstSharing(skip domain.Identity) (domain.Identity, bool) {
	for _, id := range d.ordered {
		if id == skip {
			continue
		}
		if d.byID[id].ScreenSharing {
			return id, true
		}
	}
	return "", false
}

// Snapshot returns the participants in insertion order.
func (d *Directory) Snapshot() []domain.Participant {
	out := make([]domain.Participant, 0, len(d.ordered))
	for _, id := range d.ordered {
		out = append(out, *d.byID[id])
	}
	return out
}

func (d *Directory) Count() int { return len(d.byID) }
