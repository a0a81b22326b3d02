package party

import (
	"encoding/json"
	"testing"

	"github.com/desertthunder/amply/internal/models"
	"github.com/desertthunder/amply/internal/shared"
	"github.com/stretchr/testify/assert"
)

func TestValidateSignal(t *testing.T) {
	desc := func(typ, sdp string) json.RawMessage {
		b, _ := json.Marshal(map[string]string{"type": typ, "sdp": sdp})
		return b
	}

	tests := []struct {
		name    string
		typ     models.SignalType
		payload json.RawMessage
		wantErr bool
	}{
		{"offer", models.SignalOffer, desc("offer", testSDP), false},
		{"answer", models.SignalAnswer, desc("answer", testSDP), false},
		{"type mismatch", models.SignalOffer, desc("answer", testSDP), true},
		{"empty sdp", models.SignalOffer, desc("offer", ""), true},
		{"garbage sdp", models.SignalAnswer, desc("answer", "hello"), true},
		{"not an object", models.SignalOffer, json.RawMessage(`"offer"`), true},
		{"candidate", models.SignalICECandidate, json.RawMessage(`{"candidate":"candidate:842163049 1 udp 1677729535 203.0.113.7 46154 typ srflx","sdpMid":"0","sdpMLineIndex":0}`), false},
		{"empty candidate", models.SignalICECandidate, json.RawMessage(`{"candidate":""}`), true},
		{"candidate key missing", models.SignalICECandidate, json.RawMessage(`{"sdpMid":"0"}`), true},
		{"empty object", models.SignalICECandidate, json.RawMessage(`{}`), true},
		{"null candidate", models.SignalICECandidate, json.RawMessage(`null`), true},
		{"bad candidate", models.SignalICECandidate, json.RawMessage(`{"candidate":"1 udp"}`), true},
		{"unknown type", models.SignalType("renegotiate"), json.RawMessage(`{}`), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSignal(tt.typ, tt.payload)
			if tt.wantErr {
				assert.ErrorIs(t, err, shared.ErrInvalidInput)
				return
			}
			assert.NoError(t, err)
		})
	}
}
