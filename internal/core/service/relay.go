package service

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/Wyydra/safemeet/internal/core/domain"
	"github.com/Wyydra/safemeet/internal/core/port"
)

// RoomCapacity is the maximum number of live bindings per meet code.
const RoomCapacity = 2

const (
	ReasonMeetingEnded = domain.CloseReasonMeetingEnded
	ReasonReplaced     = "replaced by a newer connection"
	ReasonSendFailed   = "send failed"
	ReasonShutdown     = "relay shutting down"
)

var errRelayStopped = errors.New("relay is shutting down")

// RelayService pairs up to two live connections per meet code and forwards
// negotiation messages between them. Membership changes are serialized per
// room; distinct rooms never contend with each other.
type RelayService struct {
	dir port.MeetingDirectory

	mu      sync.Mutex
	rooms   map[domain.MeetCode]*room
	stopped bool
}

type room struct {
	code domain.MeetCode

	mu      sync.Mutex
	members []*binding
	// closed is set once the room left the registry; joiners that raced
	// with the removal must look the code up again.
	closed bool
}

type binding struct {
	userID domain.UserID
	conn   port.RelayConn
	room   *room
}

func NewRelayService(dir port.MeetingDirectory) *RelayService {
	return &RelayService{
		dir:   dir,
		rooms: make(map[domain.MeetCode]*room),
	}
}

// Attach starts relay bookkeeping for a freshly accepted transport.
func (s *RelayService) Attach(conn port.RelayConn) *RelaySession {
	return &RelaySession{relay: s, conn: conn}
}

func (s *RelayService) acquire(code domain.MeetCode) (*room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, errRelayStopped
	}
	r, ok := s.rooms[code]
	if !ok {
		r = &room{code: code}
		s.rooms[code] = r
	}
	return r, nil
}

func (s *RelayService) forget(r *room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rooms[r.code] == r {
		delete(s.rooms, r.code)
	}
}

// RoomCount reports how many rooms hold at least one binding.
func (s *RelayService) RoomCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}

// Occupants lists the users bound to code in bind order.
func (s *RelayService) Occupants(code domain.MeetCode) []domain.UserID {
	s.mu.Lock()
	r, ok := s.rooms[code]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.userIDs(nil)
}

// EndRoom closes every binding of code and returns how many were closed.
func (s *RelayService) EndRoom(code domain.MeetCode, reason string) int {
	s.mu.Lock()
	r, ok := s.rooms[code]
	if ok {
		delete(s.rooms, code)
	}
	s.mu.Unlock()
	if !ok {
		return 0
	}

	r.mu.Lock()
	members := r.members
	r.members = nil
	r.closed = true
	r.mu.Unlock()

	for _, b := range members {
		if err := b.conn.Close(reason); err != nil {
			log.Debug().Err(err).Str("meet_code", code.String()).Str("user_id", b.userID.String()).Msg("Error closing relay connection")
		}
	}
	log.Info().Str("meet_code", code.String()).Int("closed", len(members)).Str("reason", reason).Msg("Room torn down")
	return len(members)
}

// Stop tears down every room and rejects further joins.
func (s *RelayService) Stop() {
	s.mu.Lock()
	s.stopped = true
	codes := lo.Keys(s.rooms)
	s.mu.Unlock()

	log.Info().Int("rooms", len(codes)).Msg("Stopping relay. Disconnecting all clients.")
	for _, code := range codes {
		s.EndRoom(code, ReasonShutdown)
	}
}

func (r *room) userIDs(except *binding) []domain.UserID {
	ids := make([]domain.UserID, 0, len(r.members))
	for _, b := range r.members {
		if b != except {
			ids = append(ids, b.userID)
		}
	}
	return ids
}

func (r *room) find(userID domain.UserID) *binding {
	for _, b := range r.members {
		if b.userID == userID {
			return b
		}
	}
	return nil
}

func (r *room) contains(b *binding) bool {
	return lo.Contains(r.members, b)
}

// unbindLocked removes b and tells every remaining occupant. The caller
// holds r.mu, so the notification lands before any later join is admitted.
func (s *RelayService) unbindLocked(r *room, b *binding) {
	if !r.contains(b) {
		return
	}
	r.members = lo.Without(r.members, b)
	for _, other := range r.members {
		if err := other.conn.Send(domain.UserLeft{UserID: b.userID}); err != nil {
			log.Warn().Err(err).Str("meet_code", r.code.String()).Str("user_id", other.userID.String()).Msg("Failed to deliver user-left")
		}
	}
	if len(r.members) == 0 {
		r.closed = true
		s.forget(r)
	}
}

// dropLocked unbinds b after a transport failure and closes it.
func (s *RelayService) dropLocked(r *room, b *binding) {
	s.unbindLocked(r, b)
	if err := b.conn.Close(ReasonSendFailed); err != nil {
		log.Debug().Err(err).Str("user_id", b.userID.String()).Msg("Error closing failed relay connection")
	}
}

// RelaySession is the relay-side state of one connection. Its methods must
// be called from the connection's single read loop, in arrival order.
type RelaySession struct {
	relay *RelayService
	conn  port.RelayConn

	mu      sync.Mutex
	binding *binding
}

func (sess *RelaySession) current() *binding {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.binding
}

func (sess *RelaySession) setBinding(b *binding) {
	sess.mu.Lock()
	sess.binding = b
	sess.mu.Unlock()
}

// UserID returns the identity bound to this connection, if any.
func (sess *RelaySession) UserID() (domain.UserID, bool) {
	b := sess.current()
	if b == nil {
		return "", false
	}
	return b.userID, true
}

func (sess *RelaySession) fail(err error) {
	if sendErr := sess.conn.Send(domain.Error{Message: err.Error()}); sendErr != nil {
		log.Debug().Err(sendErr).Str("client_id", sess.conn.ID().String()).Msg("Failed to deliver error frame")
	}
}

// Reject answers a message that failed validation. The binding is kept.
func (sess *RelaySession) Reject(err error) {
	log.Debug().Err(err).Str("client_id", sess.conn.ID().String()).Msg("Malformed relay message")
	sess.fail(err)
}

// Handle processes one validated inbound message.
func (sess *RelaySession) Handle(ctx context.Context, msg domain.Inbound) {
	switch m := msg.(type) {
	case domain.Join:
		sess.join(ctx, m)
	case domain.Addressed:
		sess.forward(m)
	case domain.Leave:
		sess.leave()
	default:
		sess.Reject(domain.ErrMalformedMessage)
	}
}

func (sess *RelaySession) join(ctx context.Context, msg domain.Join) {
	if b := sess.current(); b != nil {
		b.room.mu.Lock()
		bound := b.room.contains(b)
		b.room.mu.Unlock()
		if bound {
			sess.fail(domain.ErrAlreadyJoined)
			return
		}
	}

	code := domain.NormalizeMeetCode(msg.MeetCode.String())
	m, err := sess.relay.dir.Get(ctx, code.String())
	if err != nil {
		sess.fail(err)
		return
	}
	if !m.Active() {
		sess.fail(domain.ErrMeetingEnded)
		return
	}

	l := log.With().Str("meet_code", code.String()).Str("user_id", msg.UserID.String()).Logger()
	for {
		r, err := sess.relay.acquire(code)
		if err != nil {
			sess.fail(err)
			return
		}

		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			continue
		}

		// A full room rejects even a userId it already holds, so a third
		// connection can never evict a live occupant.
		if len(r.members) >= RoomCapacity {
			r.mu.Unlock()
			l.Warn().Msg("Room at capacity, join rejected")
			sess.fail(domain.ErrMeetingFull)
			return
		}

		if stale := r.find(msg.UserID); stale != nil {
			l.Info().Msg("Replacing stale binding")
			sess.relay.unbindLocked(r, stale)
			if err := stale.conn.Close(ReasonReplaced); err != nil {
				l.Debug().Err(err).Msg("Error closing stale connection")
			}
			if r.closed {
				r.mu.Unlock()
				continue
			}
		}

		b := &binding{userID: msg.UserID, conn: sess.conn, room: r}
		peers := r.userIDs(nil)
		r.members = append(r.members, b)
		sess.setBinding(b)

		if err := sess.conn.Send(domain.Joined{MeetCode: code, ExistingPeers: peers}); err != nil {
			l.Warn().Err(err).Msg("Failed to deliver joined, unbinding")
			sess.relay.unbindLocked(r, b)
			r.mu.Unlock()
			return
		}
		for _, other := range r.userIDs(b) {
			o := r.find(other)
			if err := o.conn.Send(domain.UserJoined{UserID: msg.UserID}); err != nil {
				l.Warn().Err(err).Str("peer", other.String()).Msg("Failed to deliver user-joined, dropping peer")
				sess.relay.dropLocked(r, o)
			}
		}
		r.mu.Unlock()

		l.Info().Int("occupants", len(peers)+1).Msg("Connection bound to room")
		return
	}
}

func (sess *RelaySession) forward(msg domain.Addressed) {
	b := sess.current()
	if b == nil {
		sess.fail(domain.ErrNotJoined)
		return
	}
	r := b.room

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.contains(b) {
		sess.fail(domain.ErrNotJoined)
		return
	}

	target := r.find(msg.Target())
	if target == nil || target == b {
		log.Warn().
			Str("meet_code", r.code.String()).
			Str("from", b.userID.String()).
			Str("target", msg.Target().String()).
			Str("type", string(msg.Type())).
			Msg("Addressed peer not bound, message dropped")
		return
	}

	if err := target.conn.Send(msg.From(b.userID)); err != nil {
		log.Warn().Err(err).
			Str("meet_code", r.code.String()).
			Str("target", target.userID.String()).
			Msg("Forward failed, dropping addressed peer")
		sess.relay.dropLocked(r, target)
	}
}

func (sess *RelaySession) leave() {
	b := sess.current()
	if b == nil {
		return
	}
	sess.setBinding(nil)

	r := b.room
	r.mu.Lock()
	sess.relay.unbindLocked(r, b)
	r.mu.Unlock()
	log.Info().Str("meet_code", r.code.String()).Str("user_id", b.userID.String()).Msg("Connection left room")
}

// Detach releases the binding after the transport closed.
func (sess *RelaySession) Detach() {
	sess.leave()
}
