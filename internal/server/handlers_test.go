package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthsync/healthsync/internal/broadcast"
	"github.com/healthsync/healthsync/internal/config"
	"github.com/healthsync/healthsync/internal/domain"
	"github.com/healthsync/healthsync/internal/events"
	"github.com/healthsync/healthsync/internal/store"
)

type wireEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T) (*Server, *httptest.Server, *store.Memory) {
	t.Helper()

	mem := store.NewMemory()
	clock := clockwork.NewRealClock()
	require.NoError(t, store.Seed(context.Background(), mem, clock.Now()))

	hub := broadcast.NewHub(clock)
	t.Cleanup(hub.Stop)

	svc := events.NewService(mem, hub, clock)
	cfg := &config.Config{Port: "0", AllowedOrigins: []string{"*"}}
	srv := New(cfg, mem, hub, svc, clock)

	ts := httptest.NewServer(srv.echo)
	t.Cleanup(ts.Close)
	return srv, ts, mem
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readWire(t *testing.T, conn *websocket.Conn) wireEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev wireEvent
	require.NoError(t, json.Unmarshal(payload, &ev))
	return ev
}

// readUntil skips unrelated broadcasts until the named event arrives.
func readUntil(t *testing.T, conn *websocket.Conn, name string) wireEvent {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		ev := readWire(t, conn)
		if ev.Event == name {
			return ev
		}
	}
	t.Fatalf("event %q never arrived", name)
	return wireEvent{}
}

func TestHealthEndpoints(t *testing.T) {
	_, ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health/live")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/health/ready")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestListPatients(t *testing.T) {
	_, ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/patients")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var patients []domain.Patient
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&patients))
	assert.Len(t, patients, 3)
}

func TestPatientVitalsNotFound(t *testing.T) {
	_, ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/patients/ghost/vitals")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCommunityFilter(t *testing.T) {
	_, ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/community?type=Local&location=India")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var communities []domain.Community
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&communities))
	require.Len(t, communities, 1)
	assert.Equal(t, "India Community", communities[0].Name)
}

func TestCommunityMessagesInvalidChannel(t *testing.T) {
	_, ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/community/Global/messages/random")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTopDoctors(t *testing.T) {
	_, ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/community/top-doctors")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var byRegion map[string][]domain.Doctor
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&byRegion))
	assert.Contains(t, byRegion, "India")
	assert.Contains(t, byRegion, "USA")
	assert.Contains(t, byRegion, "UK")
}

func TestWebSocket_Snapshot(t *testing.T) {
	_, ts, _ := newTestServer(t)
	conn := dialWS(t, ts)

	connected := readWire(t, conn)
	assert.Equal(t, domain.EventConnected, connected.Event)

	initial := readWire(t, conn)
	require.Equal(t, domain.EventInitialData, initial.Event)

	var snapshot struct {
		Posts    []domain.Post                  `json:"posts"`
		Messages map[string]map[string][]string `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(initial.Data, &snapshot))
	assert.Len(t, snapshot.Posts, 4)
	assert.Contains(t, snapshot.Messages, "Global")
	assert.Contains(t, snapshot.Messages, "Local_India")
	assert.Contains(t, snapshot.Messages["Global"], domain.ChannelGeneral)
}

func TestWebSocket_LikePostRoundTrip(t *testing.T) {
	_, ts, mem := newTestServer(t)
	conn := dialWS(t, ts)
	readWire(t, conn) // connected
	readWire(t, conn) // initialData

	frame := `{"event":"likePost","data":{"postId":"post1","user":"userA"}}`
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))

	ev := readUntil(t, conn, domain.EventPostUpdated)
	var data struct {
		PostID string `json:"postId"`
		Likes  int    `json:"likes"`
	}
	require.NoError(t, json.Unmarshal(ev.Data, &data))
	assert.Equal(t, "post1", data.PostID)
	assert.Equal(t, 1, data.Likes)

	post, err := mem.Posts().Get(context.Background(), "post1")
	require.NoError(t, err)
	assert.Equal(t, 1, post.LikeCount())
}

func TestWebSocket_TargetedSwitchAfterIdentify(t *testing.T) {
	_, ts, _ := newTestServer(t)

	patientConn := dialWS(t, ts)
	readWire(t, patientConn)
	readWire(t, patientConn)

	otherConn := dialWS(t, ts)
	readWire(t, otherConn)
	readWire(t, otherConn)

	identify := `{"event":"identify","data":{"user":"userA"}}`
	require.NoError(t, patientConn.WriteMessage(websocket.TextMessage, []byte(identify)))

	// Identification is async through the hub; give it a beat before the
	// targeted event is emitted.
	time.Sleep(100 * time.Millisecond)

	connect := `{"event":"connectDoctor","data":{"from":"userA","to":"Dr. Kumar"}}`
	require.NoError(t, patientConn.WriteMessage(websocket.TextMessage, []byte(connect)))

	ev := readUntil(t, patientConn, domain.EventSwitchToPrivateCommunity)
	var data struct {
		CommunityID string `json:"communityId"`
	}
	require.NoError(t, json.Unmarshal(ev.Data, &data))
	assert.Equal(t, "Local_India", data.CommunityID)

	// The other, unidentified connection sees the public status change but
	// never the targeted switch.
	update := readUntil(t, otherConn, domain.EventConnectionUpdate)
	assert.Equal(t, domain.EventConnectionUpdate, update.Event)
	require.NoError(t, otherConn.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	for {
		_, payload, err := otherConn.ReadMessage()
		if err != nil {
			break
		}
		var stray wireEvent
		require.NoError(t, json.Unmarshal(payload, &stray))
		require.NotEqual(t, domain.EventSwitchToPrivateCommunity, stray.Event)
	}
}

func TestWebSocket_MalformedFrame(t *testing.T) {
	_, ts, _ := newTestServer(t)
	conn := dialWS(t, ts)
	readWire(t, conn)
	readWire(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	ev := readUntil(t, conn, domain.EventError)
	assert.Equal(t, domain.EventError, ev.Event)
}
