package http

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Wyydra/safemeet/internal/adapter/driven/gateway/ws"
	"github.com/Wyydra/safemeet/internal/adapter/driven/persistence/memory"
	"github.com/Wyydra/safemeet/internal/adapter/wire"
	"github.com/Wyydra/safemeet/internal/core/domain"
	"github.com/Wyydra/safemeet/internal/core/service"
)

type testServer struct {
	*httptest.Server
	relay *service.RelayService
	hub   *ws.Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	meets := service.NewMeetService(memory.NewMeetingRepository(), service.WithCodeGenerator(func() string { return "7x2q" }))
	relay := service.NewRelayService(meets)
	hub := ws.NewHub()
	go hub.Run()

	h := NewHandler(meets, relay, hub, RelayLimits{
		WriteTimeout:    time.Second,
		MaxMessageBytes: 4096,
		PingInterval:    time.Second,
	})
	srv := httptest.NewServer(h.NewRouter())
	t.Cleanup(func() {
		srv.Close()
		relay.Stop()
		hub.Stop()
	})
	return &testServer{Server: srv, relay: relay, hub: hub}
}

func (s *testServer) do(t *testing.T, method, path, body string) (int, meetingDTO, errorDTO) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, s.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	var m meetingDTO
	var e errorDTO
	if resp.StatusCode < 300 {
		if err := json.Unmarshal(raw, &m); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
	} else {
		_ = json.Unmarshal(raw, &e)
	}
	return resp.StatusCode, m, e
}

func (s *testServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func recv(t *testing.T, conn *websocket.Conn) domain.Outbound {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	msg, err := wire.DecodeOutbound(data)
	if err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return msg
}

// expectSilence leaves conn unusable for further reads.
func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	_, data, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("unexpected frame %s", data)
	}
}

func joinRelay(t *testing.T, s *testServer, code, user string) (*websocket.Conn, domain.Joined) {
	t.Helper()
	conn := s.dial(t)
	send(t, conn, `{"type":"join","meetCode":"`+code+`","userId":"`+user+`"}`)
	joined, ok := recv(t, conn).(domain.Joined)
	if !ok {
		t.Fatalf("%s: expected joined", user)
	}
	return conn, joined
}

func TestLifecycleAPI_Scenario(t *testing.T) {
	s := newTestServer(t)

	status, m, _ := s.do(t, http.MethodPost, "/meets", `{"createdByUserId":"u1","createdByName":"Amina"}`)
	if status != http.StatusCreated {
		t.Fatalf("create: %d", status)
	}
	if m.MeetCode != "sb-7x2q" || m.Status != "active" || m.Participants == nil || len(m.Participants) != 0 || m.EndedAt != nil {
		t.Fatalf("create body: %+v", m)
	}

	status, m, _ = s.do(t, http.MethodPost, "/meets/sb-7x2q/join", `{"userId":"u2","userName":"Sarah"}`)
	if status != http.StatusOK || len(m.Participants) != 1 || m.Participants[0].UserID != "u2" {
		t.Fatalf("join: %d %+v", status, m)
	}

	status, _, e := s.do(t, http.MethodPost, "/meets/sb-7x2q/join", `{"userId":"u3","userName":"Omar"}`)
	if status != http.StatusConflict || e.Error != "meeting full" {
		t.Fatalf("third join: %d %+v", status, e)
	}

	status, m, _ = s.do(t, http.MethodGet, "/meets/SB-7X2Q", "")
	if status != http.StatusOK || len(m.Participants) != 1 {
		t.Fatalf("get: %d %+v", status, m)
	}

	status, _, e = s.do(t, http.MethodGet, "/meets/sb-zzzz", "")
	if status != http.StatusNotFound || e.Error != "meeting not found" {
		t.Fatalf("get unknown: %d %+v", status, e)
	}

	status, ended, _ := s.do(t, http.MethodPatch, "/meets/"+m.ID+"/end", "")
	if status != http.StatusOK || ended.Status != "ended" || ended.EndedAt == nil {
		t.Fatalf("end: %d %+v", status, ended)
	}
	status, again, _ := s.do(t, http.MethodPatch, "/meets/"+m.ID+"/end", "")
	if status != http.StatusOK || !again.EndedAt.Equal(*ended.EndedAt) {
		t.Fatalf("second end: %d %+v", status, again)
	}

	status, _, e = s.do(t, http.MethodPost, "/meets/sb-7x2q/join", `{"userId":"u4","userName":"Lina"}`)
	if status != http.StatusConflict || e.Error != "meeting has ended" {
		t.Fatalf("join ended: %d %+v", status, e)
	}
}

func TestLifecycleAPI_BadRequests(t *testing.T) {
	s := newTestServer(t)

	if status, _, _ := s.do(t, http.MethodPost, "/meets", `{"createdByName":"Amina"}`); status != http.StatusBadRequest {
		t.Fatalf("missing creator id: %d", status)
	}
	if status, _, _ := s.do(t, http.MethodPost, "/meets", `not json`); status != http.StatusBadRequest {
		t.Fatalf("bad json: %d", status)
	}
	if status, _, _ := s.do(t, http.MethodPost, "/meets/sb-7x2q/join", `{"userId":"u2"}`); status != http.StatusBadRequest {
		t.Fatalf("missing user name: %d", status)
	}
	if status, _, _ := s.do(t, http.MethodPatch, "/meets/not-a-uuid/end", ""); status != http.StatusNotFound {
		t.Fatalf("bad id: %d", status)
	}
	if status, _, _ := s.do(t, http.MethodPatch, "/meets/"+domain.NewMeetingID().String()+"/end", ""); status != http.StatusNotFound {
		t.Fatalf("unknown id: %d", status)
	}
}

func TestRelay_PairingAndForwarding(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/meets", `{"createdByUserId":"u1","createdByName":"Amina"}`)

	a, joined := joinRelay(t, s, "sb-7x2q", "u1")
	if len(joined.ExistingPeers) != 0 {
		t.Fatalf("first occupant saw peers %v", joined.ExistingPeers)
	}

	b, joined := joinRelay(t, s, "SB-7X2Q", "u2")
	if len(joined.ExistingPeers) != 1 || joined.ExistingPeers[0] != "u1" {
		t.Fatalf("second occupant peers %v", joined.ExistingPeers)
	}
	if uj, ok := recv(t, a).(domain.UserJoined); !ok || uj.UserID != "u2" {
		t.Fatalf("A expected user-joined u2")
	}

	send(t, b, `{"type":"offer","targetUserId":"u1","sdp":{"type":"offer","sdp":"v=0"}}`)
	offer, ok := recv(t, a).(domain.Relayed)
	if !ok || offer.Kind != domain.SignalOffer || offer.FromUserID != "u2" || string(offer.Payload) != `{"type":"offer","sdp":"v=0"}` {
		t.Fatalf("A got %#v", offer)
	}
	expectSilence(t, b)

	c := s.dial(t)
	send(t, c, `{"type":"join","meetCode":"sb-7x2q","userId":"u3"}`)
	if e, ok := recv(t, c).(domain.Error); !ok || e.Message != "meeting full" {
		t.Fatalf("third connection expected meeting full")
	}
	expectSilence(t, a)
}

func TestRelay_UnknownCodeAndMalformedFrames(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/meets", `{"createdByUserId":"u1","createdByName":"Amina"}`)

	c := s.dial(t)
	send(t, c, `{"type":"join","meetCode":"sb-none","userId":"u1"}`)
	if e, ok := recv(t, c).(domain.Error); !ok || e.Message != "meeting not found" {
		t.Fatalf("expected meeting not found")
	}

	a, _ := joinRelay(t, s, "sb-7x2q", "u1")
	send(t, a, `{"type":"chat","content":"hi"}`)
	if _, ok := recv(t, a).(domain.Error); !ok {
		t.Fatalf("expected error frame for malformed message")
	}
	if err := a.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	if _, ok := recv(t, a).(domain.Error); !ok {
		t.Fatalf("expected error frame for binary message")
	}

	_, joined := joinRelay(t, s, "sb-7x2q", "u2")
	if len(joined.ExistingPeers) != 1 {
		t.Fatalf("malformed frames unbound the first occupant")
	}
}

func TestRelay_DisconnectFreesSlot(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/meets", `{"createdByUserId":"u1","createdByName":"Amina"}`)

	a, _ := joinRelay(t, s, "sb-7x2q", "u1")
	b, _ := joinRelay(t, s, "sb-7x2q", "u2")
	recv(t, a)

	a.Close()
	if ul, ok := recv(t, b).(domain.UserLeft); !ok || ul.UserID != "u1" {
		t.Fatalf("B expected user-left u1")
	}

	_, joined := joinRelay(t, s, "sb-7x2q", "u1")
	if len(joined.ExistingPeers) != 1 || joined.ExistingPeers[0] != "u2" {
		t.Fatalf("rejoin peers %v", joined.ExistingPeers)
	}
	if uj, ok := recv(t, b).(domain.UserJoined); !ok || uj.UserID != "u1" {
		t.Fatalf("B expected user-joined u1")
	}
}

func TestRelay_EndClosesConnections(t *testing.T) {
	s := newTestServer(t)
	_, m, _ := s.do(t, http.MethodPost, "/meets", `{"createdByUserId":"u1","createdByName":"Amina"}`)

	a, _ := joinRelay(t, s, "sb-7x2q", "u1")

	if status, _, _ := s.do(t, http.MethodPatch, "/meets/"+m.ID+"/end", ""); status != http.StatusOK {
		t.Fatalf("end: %d", status)
	}

	_ = a.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := a.ReadMessage()
	var ce *websocket.CloseError
	if !errors.As(err, &ce) || ce.Text != service.ReasonMeetingEnded {
		t.Fatalf("expected close with reason %q, got %v", service.ReasonMeetingEnded, err)
	}

	c := s.dial(t)
	send(t, c, `{"type":"join","meetCode":"sb-7x2q","userId":"u2"}`)
	if e, ok := recv(t, c).(domain.Error); !ok || e.Message != "meeting has ended" {
		t.Fatalf("join after end expected meeting has ended")
	}
}

func TestRelay_OversizedFrameClosesConnection(t *testing.T) {
	s := newTestServer(t)
	c := s.dial(t)
	send(t, c, `{"type":"leave","pad":"`+string(bytes.Repeat([]byte("x"), 8192))+`"}`)
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := c.ReadMessage(); err == nil {
		t.Fatalf("expected connection to be closed")
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/meets", `{"createdByUserId":"u1","createdByName":"Amina"}`)
	joinRelay(t, s, "sb-7x2q", "u1")

	resp, err := http.Get(s.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body struct {
		Status string `json:"status"`
		Rooms  int    `json:"rooms"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK || body.Status != "ok" || body.Rooms != 1 {
		t.Fatalf("health: %d %+v", resp.StatusCode, body)
	}
}
