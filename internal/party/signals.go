package party

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/desertthunder/amply/internal/models"
	"github.com/desertthunder/amply/internal/shared"
	"github.com/pion/webrtc/v4"
)

// ValidateSignal checks that payload is a well-formed WebRTC message of the given type.
//
// Offers and answers must be a session description whose SDP parses. ICE candidates must decode as
// an ICECandidateInit with a non-empty candidate line.
func ValidateSignal(typ models.SignalType, payload json.RawMessage) error {
	switch typ {
	case models.SignalOffer, models.SignalAnswer:
		var desc webrtc.SessionDescription
		if err := json.Unmarshal(payload, &desc); err != nil {
			return fmt.Errorf("%w: session description: %v", shared.ErrInvalidInput, err)
		}
		if desc.Type.String() != string(typ) {
			return fmt.Errorf("%w: session description type %q does not match %q", shared.ErrInvalidInput, desc.Type, typ)
		}
		if strings.TrimSpace(desc.SDP) == "" {
			return fmt.Errorf("%w: session description has no sdp", shared.ErrInvalidInput)
		}
		if _, err := desc.Unmarshal(); err != nil {
			return fmt.Errorf("%w: malformed sdp: %v", shared.ErrInvalidInput, err)
		}
		return nil
	case models.SignalICECandidate:
		var cand webrtc.ICECandidateInit
		if err := json.Unmarshal(payload, &cand); err != nil {
			return fmt.Errorf("%w: ice candidate: %v", shared.ErrInvalidInput, err)
		}
		if strings.TrimSpace(cand.Candidate) == "" {
			return fmt.Errorf("%w: ice candidate has no candidate line", shared.ErrInvalidInput)
		}
		if !strings.HasPrefix(cand.Candidate, "candidate:") {
			return fmt.Errorf("%w: ice candidate must start with \"candidate:\"", shared.ErrInvalidInput)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown signal type %q", shared.ErrInvalidInput, typ)
	}
}
