package geocode

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/astrohelm/natalchart/internal/domain"
)

func fakeGeocoder(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		if reply != "" {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(reply))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestResolve(t *testing.T) {
	srv := fakeGeocoder(t, `{"result":{"name":"Shanghai","lat":31.23,"lng":121.47}}`)
	r := NewResolver(Config{URL: wsURL(srv)}, slog.Default())

	place, err := r.Resolve(context.Background(), "shanghai")
	if err != nil {
		t.Fatal(err)
	}
	if place.Name != "Shanghai" || place.Coord.Latitude != 31.23 || place.Coord.Longitude != 121.47 {
		t.Fatalf("got %+v", place)
	}
}

func TestResolveNoMatch(t *testing.T) {
	srv := fakeGeocoder(t, `{"error":"no geocode result"}`)
	r := NewResolver(Config{URL: wsURL(srv)}, slog.Default())

	_, err := r.Resolve(context.Background(), "nowhere at all")
	if !errors.Is(err, domain.ErrAddressNotFound) {
		t.Fatalf("err = %v, want ErrAddressNotFound", err)
	}
}

func TestResolveTimeoutIsAddressNotFound(t *testing.T) {
	srv := fakeGeocoder(t, "") // never replies
	r := NewResolver(Config{URL: wsURL(srv), Timeout: 200 * time.Millisecond}, slog.Default())

	_, err := r.Resolve(context.Background(), "shanghai")
	if !errors.Is(err, domain.ErrAddressNotFound) {
		t.Fatalf("err = %v, want ErrAddressNotFound", err)
	}
}
