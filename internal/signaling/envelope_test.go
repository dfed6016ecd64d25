package signaling

import (
	"encoding/json"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSenderIDPrefersFrom(t *testing.T) {
	env := Envelope{From: "abc", ClientID: "def"}
	assert.Equal(t, "abc", env.SenderID())

	env = Envelope{ClientID: "def"}
	assert.Equal(t, "def", env.SenderID())

	env = Envelope{}
	assert.Equal(t, "", env.SenderID())
}

func TestOfferRoundTrip(t *testing.T) {
	sd := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0\r\n"}

	env, err := Offer("target-1", sd)
	require.NoError(t, err)
	assert.Equal(t, TypeOffer, env.Type)
	assert.Equal(t, "target-1", env.Target)
	assert.Empty(t, env.From)

	got, err := env.SessionDescription()
	require.NoError(t, err)
	assert.Equal(t, sd, got)
}

func TestCandidateRoundTrip(t *testing.T) {
	mid := "0"
	c := webrtc.ICECandidateInit{
		Candidate: "candidate:1 1 udp 2130706431 192.0.2.1 54321 typ host",
		SDPMid:    &mid,
	}

	env, err := Candidate("target-1", c)
	require.NoError(t, err)
	assert.Equal(t, TypeICECandidate, env.Type)

	got, err := env.Candidate()
	require.NoError(t, err)
	assert.Equal(t, c.Candidate, got.Candidate)
	require.NotNil(t, got.SDPMid)
	assert.Equal(t, mid, *got.SDPMid)
}

func TestEnvelopeWireShape(t *testing.T) {
	data, err := json.Marshal(Join("alice"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"join","displayName":"alice"}`, string(data))

	data, err = json.Marshal(AudioToggle(false))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"audio-toggle","enabled":false}`, string(data))

	data, err = json.Marshal(Leave())
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"leave"}`, string(data))

	data, err = json.Marshal(Chat("alice", "hi"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"chat-message","displayName":"alice","message":"hi"}`, string(data))
}

func TestParticipantsUpdateDecode(t *testing.T) {
	raw := `{
		"type": "participants-update",
		"participants": ["a", "b"],
		"participantsData": [
			{"clientId": "a", "displayName": "alice", "screenSharing": true},
			{"clientId": "b", "audioEnabled": false}
		]
	}`

	var env Envelope
	require.NoError(t, json.Unmarshal([]byte(raw), &env))
	assert.Equal(t, TypeParticipants, env.Type)
	assert.Equal(t, []string{"a", "b"}, env.Participants)
	require.Len(t, env.ParticipantsData, 2)

	a := env.ParticipantsData[0]
	require.NotNil(t, a.ScreenSharing)
	assert.True(t, *a.ScreenSharing)
	assert.Nil(t, a.AudioEnabled)

	b := env.ParticipantsData[1]
	require.NotNil(t, b.AudioEnabled)
	assert.False(t, *b.AudioEnabled)
	assert.Nil(t, b.ScreenSharing)
}

func TestBadDataRejected(t *testing.T) {
	env := Envelope{Type: TypeOffer, Data: json.RawMessage(`not json`)}
	_, err := env.SessionDescription()
	assert.Error(t, err)

	env = Envelope{Type: TypeICECandidate, Data: json.RawMessage(`42`)}
	_, err = env.Candidate()
	assert.Error(t, err)
}
