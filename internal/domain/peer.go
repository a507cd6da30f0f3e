// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"unicode"
)

const MaxPeerIDLen = 64

var (
	ErrPeerIDTooLong = errors.New("peer id too long")
	ErrPeerIDEmpty   = errors.New("peer id empty")
	ErrPeerIDInvalid = errors.New("peer id contains control characters")
)

// PeerID is the self-chosen name a peer registers under.
type PeerID string

// ParsePeerID is a tiny helper to avoid ad-hoc validation in adapters.
func ParsePeerID(raw string) (PeerID, error) {
	if len(raw) == 0 {
		return "", ErrPeerIDEmpty
	}
	if len(raw) > MaxPeerIDLen {
		return "", ErrPeerIDTooLong
	}
	for _, r := range raw {
		if unicode.IsControl(r) {
			return "", ErrPeerIDInvalid
		}
	}
	return PeerID(raw), nil
}

func (id PeerID) String() string { return string(id) }

// PeerDTO is a read-only view for presence lists (no transport fields).
type PeerDTO struct {
	PeerID PeerID `json:"peerId"`
}

func NewPeerDTOs(ids []PeerID) []PeerDTO {
	out := make([]PeerDTO, 0, len(ids))
	for _, id := range ids {
		out = append(out, PeerDTO{PeerID: id})
	}
	return out
}
