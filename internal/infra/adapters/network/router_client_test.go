//go:build !integration

package network

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"captive-portal/internal/config"
)

func TestRouterClient_Disconnect(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.New(io.Discard)

	t.Run("should post the identifier with basic auth", func(t *testing.T) {
		// --- Arrange ---
		var got []disconnectRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if u, p, ok := r.BasicAuth(); !ok || u != "admin" || p != "pw" || r.Method != http.MethodPost {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			var body disconnectRequest
			_ = json.NewDecoder(r.Body).Decode(&body)
			got = append(got, body)
		}))
		defer srv.Close()
		c, err := NewRouterClient(config.NetworkConfig{DisconnectURL: srv.URL, Username: "admin", Password: "pw"}, &logger)
		if err != nil {
			t.Fatalf("new client: %v", err)
		}

		// --- Act ---
		err1 := c.Disconnect(ctx, "+256770000001")
		err2 := c.Disconnect(ctx, "AA:BB:CC:DD:EE:FF")

		// --- Assert ---
		if err1 != nil || err2 != nil {
			t.Fatalf("unexpected errors: %v %v", err1, err2)
		}
		if len(got) != 2 || got[0].PhoneNumber != "+256770000001" || got[1].MACAddress != "AA:BB:CC:DD:EE:FF" {
			t.Errorf("unexpected requests %+v", got)
		}
	})

	t.Run("should fail on non-2xx and on timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/slow" {
				time.Sleep(300 * time.Millisecond)
				return
			}
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		c, _ := NewRouterClient(config.NetworkConfig{DisconnectURL: srv.URL}, &logger)
		if err := c.Disconnect(ctx, "+1"); err == nil {
			t.Error("expected an error for 502")
		}
		slow, _ := NewRouterClient(config.NetworkConfig{DisconnectURL: srv.URL + "/slow", Timeout: 50 * time.Millisecond}, &logger)
		if err := slow.Disconnect(ctx, "+1"); err == nil {
			t.Error("expected a timeout error")
		}
	})

	t.Run("should require a url", func(t *testing.T) {
		if _, err := NewRouterClient(config.NetworkConfig{}, &logger); err == nil {
			t.Fatal("expected an error")
		}
	})
}
