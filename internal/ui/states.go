package ui

import "fmt"

// ModalState tracks whether the create-listing modal is shown.
type ModalState int

const (
	ModalClosed ModalState = iota
	ModalOpen
)

// String returns a human-readable name for the ModalState.
func (s ModalState) String() string {
	switch s {
	case ModalClosed:
		return "Closed"
	case ModalOpen:
		return "Open"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

// GenerationState tracks the ad-copy request of an open modal. It only exists
// inside an open modal, so a closed modal can never be generating.
type GenerationState int

const (
	GenerationIdle GenerationState = iota
	GenerationInFlight
)

// String returns a human-readable name for the GenerationState.
func (s GenerationState) String() string {
	switch s {
	case GenerationIdle:
		return "Idle"
	case GenerationInFlight:
		return "InFlight"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}
