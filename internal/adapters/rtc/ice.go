package rtc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dkeye/Incommunicado/internal/config"
	"github.com/pion/webrtc/v4"
)

var (
	ErrBadSDP       = errors.New("malformed session description")
	ErrBadCandidate = errors.New("malformed ice candidate")
)

func DefaultWebRTCConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: []string{"stun:stun.l.google.com:19302"},
			},
		},
	}
}

// WebRTCConfig builds the configuration handed to browsers from the
// configured ICE servers, falling back to the public STUN default.
func WebRTCConfig(servers []config.ICEServer) webrtc.Configuration {
	if len(servers) == 0 {
		return DefaultWebRTCConfig()
	}
	out := webrtc.Configuration{ICEServers: make([]webrtc.ICEServer, 0, len(servers))}
	for _, s := range servers {
		srv := webrtc.ICEServer{URLs: s.URLs, Username: s.Username}
		if s.Credential != "" {
			srv.Credential = s.Credential
		}
		out.ICEServers = append(out.ICEServers, srv)
	}
	return out
}

// ValidateSessionDescription checks that raw is a {type, sdp} object of the
// wanted type whose SDP body parses. The server never applies it.
func ValidateSessionDescription(raw json.RawMessage, want webrtc.SDPType) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: missing", ErrBadSDP)
	}
	var desc webrtc.SessionDescription
	if err := json.Unmarshal(raw, &desc); err != nil {
		return fmt.Errorf("%w: %w", ErrBadSDP, err)
	}
	if desc.Type != want {
		return fmt.Errorf("%w: type %q, want %q", ErrBadSDP, desc.Type.String(), want.String())
	}
	if _, err := desc.Unmarshal(); err != nil {
		return fmt.Errorf("%w: %w", ErrBadSDP, err)
	}
	return nil
}

// ValidateCandidate checks that raw decodes as an RTCIceCandidateInit.
// An empty candidate string is the end-of-candidates marker and passes.
func ValidateCandidate(raw json.RawMessage) error {
	if len(raw) == 0 || string(raw) == "null" {
		return fmt.Errorf("%w: missing", ErrBadCandidate)
	}
	var ci webrtc.ICECandidateInit
	if err := json.Unmarshal(raw, &ci); err != nil {
		return fmt.Errorf("%w: %w", ErrBadCandidate, err)
	}
	return nil
}
