package network

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"captive-portal/internal/config"
	"captive-portal/internal/domain/ports/adapter"
)

var _ adapter.Disconnector = (*RouterClient)(nil)

// RouterClient asks the captive-portal router to drop a client. The identifier is a
// phone number for paid sessions or a MAC address for code sessions.
type RouterClient struct {
	url      string
	username string
	password string
	client   *http.Client
	log      zerolog.Logger
}

func NewRouterClient(cfg config.NetworkConfig, logger *zerolog.Logger) (*RouterClient, error) {
	if cfg.DisconnectURL == "" {
		return nil, errors.New("router disconnect url empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RouterClient{
		url:      cfg.DisconnectURL,
		username: cfg.Username,
		password: cfg.Password,
		client:   &http.Client{Timeout: timeout},
		log:      logger.With().Str("component", "RouterClient").Logger(),
	}, nil
}

type disconnectRequest struct {
	PhoneNumber string `json:"phone_number,omitempty"`
	MACAddress  string `json:"mac_address,omitempty"`
}

func (c *RouterClient) Disconnect(ctx context.Context, identifier string) error {
	body := disconnectRequest{PhoneNumber: identifier}
	if isMAC(identifier) {
		body = disconnectRequest{MACAddress: identifier}
	}
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("router disconnect: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("router disconnect: http %d", resp.StatusCode)
	}
	return nil
}

// isMAC recognises the colon-separated form produced by model.NormalizeMAC.
func isMAC(s string) bool {
	parts := strings.Split(s, ":")
	if len(parts) != 6 {
		return false
	}
	for _, p := range parts {
		if len(p) != 2 {
			return false
		}
	}
	return true
}
