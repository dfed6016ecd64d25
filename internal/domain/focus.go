package domain

// PinSource records who decided the current pin.
type PinSource int

const (
	PinNone PinSource = iota
	PinManual
	PinAutoShare
)

func (s PinSource) String() string {
	switch s {
	case PinManual:
		return "manual"
	case PinAutoShare:
		return "auto-screen-share"
	default:
		return "none"
	}
}

// FocusState is the single global pin value. Pinned is empty when nobody
// is pinned, and PinnedBy is PinNone exactly then.
type FocusState struct {
	Pinned   Identity
	PinnedBy PinSource
}
