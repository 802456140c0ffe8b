// Package wire encodes relay messages as tagged JSON objects.
package wire

import (
	"bytes"
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/Wyydra/safemeet/internal/core/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// envelope is the union of every field any relay message carries.
type envelope struct {
	Type          domain.SignalType   `json:"type"`
	MeetCode      string              `json:"meetCode,omitempty"`
	UserID        string              `json:"userId,omitempty"`
	TargetUserID  string              `json:"targetUserId,omitempty"`
	FromUserID    string              `json:"fromUserId,omitempty"`
	SDP           jsoniter.RawMessage `json:"sdp,omitempty"`
	Candidate     jsoniter.RawMessage `json:"candidate,omitempty"`
	ExistingPeers *[]string           `json:"existingPeers,omitempty"`
	Message       string              `json:"message,omitempty"`
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrMalformedMessage, fmt.Sprintf(format, args...))
}

func present(raw jsoniter.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

func parse(data []byte) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return envelope{}, malformed("invalid json")
	}
	if env.Type == "" {
		return envelope{}, malformed("missing type")
	}
	return env, nil
}

// DecodeInbound parses and validates a message sent by a participant.
// Anything outside the inbound variant set is rejected.
func DecodeInbound(data []byte) (domain.Inbound, error) {
	env, err := parse(data)
	if err != nil {
		return nil, err
	}
	if env.FromUserID != "" || env.ExistingPeers != nil || env.Message != "" {
		return nil, malformed("%s message has server-only fields", env.Type)
	}

	switch env.Type {
	case domain.SignalJoin:
		if env.MeetCode == "" || env.UserID == "" {
			return nil, malformed("join message missing meetCode/userId")
		}
		if env.TargetUserID != "" || present(env.SDP) || present(env.Candidate) {
			return nil, malformed("join message has unexpected fields")
		}
		return domain.Join{MeetCode: domain.NormalizeMeetCode(env.MeetCode), UserID: domain.UserID(env.UserID)}, nil

	case domain.SignalOffer, domain.SignalAnswer:
		if env.TargetUserID == "" || !present(env.SDP) {
			return nil, malformed("%s message missing targetUserId/sdp", env.Type)
		}
		if present(env.Candidate) || env.MeetCode != "" || env.UserID != "" {
			return nil, malformed("%s message has unexpected fields", env.Type)
		}
		if env.Type == domain.SignalOffer {
			return domain.Offer{TargetUserID: domain.UserID(env.TargetUserID), SDP: domain.Payload(env.SDP)}, nil
		}
		return domain.Answer{TargetUserID: domain.UserID(env.TargetUserID), SDP: domain.Payload(env.SDP)}, nil

	case domain.SignalICECandidate:
		if env.TargetUserID == "" || !present(env.Candidate) {
			return nil, malformed("ice-candidate message missing targetUserId/candidate")
		}
		if present(env.SDP) || env.MeetCode != "" || env.UserID != "" {
			return nil, malformed("ice-candidate message has unexpected fields")
		}
		return domain.ICECandidate{TargetUserID: domain.UserID(env.TargetUserID), Candidate: domain.Payload(env.Candidate)}, nil

	case domain.SignalLeave:
		if env.MeetCode != "" || env.UserID != "" || env.TargetUserID != "" || present(env.SDP) || present(env.Candidate) {
			return nil, malformed("leave message has unexpected fields")
		}
		return domain.Leave{}, nil
	}
	return nil, malformed("unsupported message type %q", env.Type)
}

// EncodeOutbound renders a relay-to-participant message.
func EncodeOutbound(msg domain.Outbound) ([]byte, error) {
	env := envelope{Type: msg.Type()}
	switch m := msg.(type) {
	case domain.Joined:
		peers := make([]string, 0, len(m.ExistingPeers))
		for _, p := range m.ExistingPeers {
			peers = append(peers, p.String())
		}
		env.MeetCode = m.MeetCode.String()
		env.ExistingPeers = &peers
	case domain.UserJoined:
		env.UserID = m.UserID.String()
	case domain.UserLeft:
		env.UserID = m.UserID.String()
	case domain.Relayed:
		env.FromUserID = m.FromUserID.String()
		switch m.Kind {
		case domain.SignalOffer, domain.SignalAnswer:
			env.SDP = jsoniter.RawMessage(m.Payload)
		case domain.SignalICECandidate:
			env.Candidate = jsoniter.RawMessage(m.Payload)
		default:
			return nil, fmt.Errorf("encode relayed %q: unsupported kind", m.Kind)
		}
	case domain.Error:
		env.Message = m.Message
	default:
		return nil, fmt.Errorf("encode %T: unsupported message", msg)
	}
	return json.Marshal(env)
}

// EncodeInbound renders a participant-to-relay message.
func EncodeInbound(msg domain.Inbound) ([]byte, error) {
	env := envelope{Type: msg.Type()}
	switch m := msg.(type) {
	case domain.Join:
		env.MeetCode = m.MeetCode.String()
		env.UserID = m.UserID.String()
	case domain.Offer:
		env.TargetUserID = m.TargetUserID.String()
		env.SDP = jsoniter.RawMessage(m.SDP)
	case domain.Answer:
		env.TargetUserID = m.TargetUserID.String()
		env.SDP = jsoniter.RawMessage(m.SDP)
	case domain.ICECandidate:
		env.TargetUserID = m.TargetUserID.String()
		env.Candidate = jsoniter.RawMessage(m.Candidate)
	case domain.Leave:
	default:
		return nil, fmt.Errorf("encode %T: unsupported message", msg)
	}
	return json.Marshal(env)
}

// DecodeOutbound parses a relay-to-participant message.
func DecodeOutbound(data []byte) (domain.Outbound, error) {
	env, err := parse(data)
	if err != nil {
		return nil, err
	}

	switch env.Type {
	case domain.SignalJoined:
		if env.MeetCode == "" {
			return nil, malformed("joined message missing meetCode")
		}
		var peers []domain.UserID
		if env.ExistingPeers != nil {
			for _, p := range *env.ExistingPeers {
				peers = append(peers, domain.UserID(p))
			}
		}
		return domain.Joined{MeetCode: domain.NormalizeMeetCode(env.MeetCode), ExistingPeers: peers}, nil

	case domain.SignalUserJoined, domain.SignalUserLeft:
		if env.UserID == "" {
			return nil, malformed("%s message missing userId", env.Type)
		}
		if env.Type == domain.SignalUserJoined {
			return domain.UserJoined{UserID: domain.UserID(env.UserID)}, nil
		}
		return domain.UserLeft{UserID: domain.UserID(env.UserID)}, nil

	case domain.SignalOffer, domain.SignalAnswer:
		if env.FromUserID == "" || !present(env.SDP) {
			return nil, malformed("%s message missing fromUserId/sdp", env.Type)
		}
		return domain.Relayed{Kind: env.Type, FromUserID: domain.UserID(env.FromUserID), Payload: domain.Payload(env.SDP)}, nil

	case domain.SignalICECandidate:
		if env.FromUserID == "" || !present(env.Candidate) {
			return nil, malformed("ice-candidate message missing fromUserId/candidate")
		}
		return domain.Relayed{Kind: env.Type, FromUserID: domain.UserID(env.FromUserID), Payload: domain.Payload(env.Candidate)}, nil

	case domain.SignalError:
		return domain.Error{Message: env.Message}, nil
	}
	return nil, malformed("unsupported message type %q", env.Type)
}
