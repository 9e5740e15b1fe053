package stream

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	return conn
}

func waitForObservers(t *testing.T, h *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.Observers() != want {
		if time.Now().After(deadline) {
			t.Fatalf("Observers = %d, want %d", h.Observers(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubPublishesNeighborUpdates(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn := dialHub(t, srv)
	defer conn.Close()
	waitForObservers(t, h, 1)

	h.PublishNeighbors("192.168.2.1", []string{"192.168.2.2", "192.168.2.3"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, frame, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read error: %v", err)
	}

	var update NeighborUpdate
	if err := json.Unmarshal(frame, &update); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if update.Type != "neighbors" || update.Address != "192.168.2.1" {
		t.Fatalf("update = %+v", update)
	}
	if len(update.Neighbors) != 2 || update.Neighbors[0] != "192.168.2.2" {
		t.Fatalf("neighbors = %v", update.Neighbors)
	}
}

func TestHubFansOutToAllObservers(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()
	srv := httptest.NewServer(h)
	defer srv.Close()

	first := dialHub(t, srv)
	defer first.Close()
	second := dialHub(t, srv)
	defer second.Close()
	waitForObservers(t, h, 2)

	h.PublishNeighbors("192.168.2.1", nil)

	for _, conn := range []*websocket.Conn{first, second} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		if _, _, err := conn.ReadMessage(); err != nil {
			t.Fatalf("read error: %v", err)
		}
	}
}

func TestHubDropsDisconnectedObservers(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn := dialHub(t, srv)
	waitForObservers(t, h, 1)

	conn.Close()
	waitForObservers(t, h, 0)

	// Publishing with no observers is a no-op.
	h.PublishNeighbors("192.168.2.1", []string{"192.168.2.2"})
}
