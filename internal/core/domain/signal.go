package domain

type SignalType string

const (
	SignalJoin         SignalType = "join"
	SignalOffer        SignalType = "offer"
	SignalAnswer       SignalType = "answer"
	SignalICECandidate SignalType = "ice-candidate"
	SignalLeave        SignalType = "leave"

	SignalJoined     SignalType = "joined"
	SignalUserJoined SignalType = "user-joined"
	SignalUserLeft   SignalType = "user-left"
	SignalError      SignalType = "error"
)

// CloseReasonMeetingEnded is the transport close reason the relay uses when
// a meeting is ended while connections are still bound.
const CloseReasonMeetingEnded = "meeting ended"

// Payload is an opaque negotiation blob (session description or ICE
// candidate). The relay never looks inside it.
type Payload []byte

// Inbound is a message a participant sends to the relay. The set of
// implementations is closed.
type Inbound interface {
	Type() SignalType
	inbound()
}

// Outbound is a message the relay sends to a participant. The set of
// implementations is closed.
type Outbound interface {
	Type() SignalType
	outbound()
}

// Addressed is an inbound message forwarded verbatim to one peer.
type Addressed interface {
	Inbound
	Target() UserID
	// From relabels the message with the sender identity for delivery.
	From(sender UserID) Relayed
}

type Join struct {
	MeetCode MeetCode
	UserID   UserID
}

type Offer struct {
	TargetUserID UserID
	SDP          Payload
}

type Answer struct {
	TargetUserID UserID
	SDP          Payload
}

type ICECandidate struct {
	TargetUserID UserID
	Candidate    Payload
}

type Leave struct{}

func (Join) Type() SignalType         { return SignalJoin }
func (Offer) Type() SignalType        { return SignalOffer }
func (Answer) Type() SignalType       { return SignalAnswer }
func (ICECandidate) Type() SignalType { return SignalICECandidate }
func (Leave) Type() SignalType        { return SignalLeave }

func (Join) inbound()         {}
func (Offer) inbound()        {}
func (Answer) inbound()       {}
func (ICECandidate) inbound() {}
func (Leave) inbound()        {}

func (m Offer) Target() UserID        { return m.TargetUserID }
func (m Answer) Target() UserID       { return m.TargetUserID }
func (m ICECandidate) Target() UserID { return m.TargetUserID }

func (m Offer) From(sender UserID) Relayed {
	return Relayed{Kind: SignalOffer, FromUserID: sender, Payload: m.SDP}
}

func (m Answer) From(sender UserID) Relayed {
	return Relayed{Kind: SignalAnswer, FromUserID: sender, Payload: m.SDP}
}

func (m ICECandidate) From(sender UserID) Relayed {
	return Relayed{Kind: SignalICECandidate, FromUserID: sender, Payload: m.Candidate}
}

type Joined struct {
	MeetCode      MeetCode
	ExistingPeers []UserID
}

type UserJoined struct {
	UserID UserID
}

// Relayed is an offer, answer or ice-candidate delivered to its addressee.
type Relayed struct {
	Kind       SignalType
	FromUserID UserID
	Payload    Payload
}

type UserLeft struct {
	UserID UserID
}

type Error struct {
	Message string
}

func (Joined) Type() SignalType     { return SignalJoined }
func (UserJoined) Type() SignalType { return SignalUserJoined }
func (m Relayed) Type() SignalType  { return m.Kind }
func (UserLeft) Type() SignalType   { return SignalUserLeft }
func (Error) Type() SignalType      { return SignalError }

func (Joined) outbound()     {}
func (UserJoined) outbound() {}
func (Relayed) outbound()    {}
func (UserLeft) outbound()   {}
func (Error) outbound()      {}
