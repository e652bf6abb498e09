// File: internal/infra/adapters/payment/momo_gateway.go
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"captive-portal/internal/config"
	"captive-portal/internal/domain"
	"captive-portal/internal/domain/ports/adapter"
	"captive-portal/internal/infra/metrics"
)

var _ adapter.PaymentGateway = (*MoMoGateway)(nil)

const momoName = "momo"

// MoMoGateway implements adapter.PaymentGateway against the MTN MoMo Collections API.
type MoMoGateway struct {
	cfg    config.MoMoConfig
	client *http.Client
	log    zerolog.Logger
	now    func() time.Time

	mu   sync.Mutex
	cred credential
}

// credential is the cached bearer token. expiresAt already has the refresh margin applied.
type credential struct {
	token     string
	expiresAt time.Time
}

func (c credential) valid(now time.Time) bool {
	return c.token != "" && now.Before(c.expiresAt)
}

func NewMoMoGateway(cfg config.MoMoConfig, logger *zerolog.Logger) (*MoMoGateway, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("momo base url empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Currency == "" {
		cfg.Currency = "EUR"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &MoMoGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    logger.With().Str("component", "MoMoGateway").Logger(),
		now:    time.Now,
	}, nil
}

func (g *MoMoGateway) Name() string { return momoName }

// token returns a cached credential or fetches a new one. Concurrent callers wait on
// the same fetch.
func (g *MoMoGateway) token(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cred.valid(g.now()) {
		return g.cred.token, nil
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/collection/token/", nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	req.SetBasicAuth(g.cfg.APIUser, g.cfg.APIKey)
	req.Header.Set("Ocp-Apim-Subscription-Key", g.cfg.SubscriptionKey)

	resp, err := g.client.Do(req)
	if err != nil {
		metrics.IncTokenRefresh(momoName, "error")
		return "", fmt.Errorf("%w: token: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.IncTokenRefresh(momoName, "error")
		return "", fmt.Errorf("%w: token: http %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	}
	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.AccessToken == "" {
		metrics.IncTokenRefresh(momoName, "error")
		return "", fmt.Errorf("%w: token: malformed response", domain.ErrGatewayUnavailable)
	}

	lifetime := time.Duration(out.ExpiresIn)*time.Second - g.cfg.TokenRefresh
	if lifetime < 0 {
		lifetime = 0
	}
	g.cred = credential{token: out.AccessToken, expiresAt: g.now().Add(lifetime)}
	metrics.IncTokenRefresh(momoName, "ok")
	g.log.Debug().Dur("lifetime", lifetime).Msg("access token refreshed")
	return g.cred.token, nil
}

func (g *MoMoGateway) invalidate() {
	g.mu.Lock()
	g.cred = credential{}
	g.mu.Unlock()
}

// do sends one authenticated request. Non-2xx responses become *adapter.GatewayError.
func (g *MoMoGateway) do(ctx context.Context, op, method, path, referenceID string, body any, out any) (err error) {
	started := time.Now()
	defer func() { metrics.ObserveGatewayCall(momoName, op, started, err) }()

	token, err := g.token(ctx)
	if err != nil {
		return err
	}

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return &adapter.GatewayError{Op: op, Err: err}
		}
		rd = bytes.NewReader(b)
	}
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, method, g.cfg.BaseURL+path, rd)
	if err != nil {
		return &adapter.GatewayError{Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Target-Environment", g.cfg.TargetEnvironment)
	req.Header.Set("Ocp-Apim-Subscription-Key", g.cfg.SubscriptionKey)
	if referenceID != "" {
		req.Header.Set("X-Reference-Id", referenceID)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return &adapter.GatewayError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		g.invalidate()
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var pe struct {
			Code   string `json:"code"`
			Reason string `json:"reason"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&pe)
		status := pe.Code
		if status == "" {
			status = pe.Reason
		}
		return &adapter.GatewayError{Op: op, HTTPStatus: resp.StatusCode, ProviderStatus: status, Err: domain.ErrGateway}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &adapter.GatewayError{Op: op, HTTPStatus: resp.StatusCode, Err: err}
		}
	}
	return nil
}

type momoParty struct {
	PartyIDType string `json:"partyIdType"`
	PartyID     string `json:"partyId"`
}

type requestToPay struct {
	Amount       string    `json:"amount"`
	Currency     string    `json:"currency"`
	ExternalID   string    `json:"externalId"`
	Payer        momoParty `json:"payer"`
	PayerMessage string    `json:"payerMessage"`
	PayeeNote    string    `json:"payeeNote"`
}

// Initiate sends a request-to-pay. The provider answers 202 and settles asynchronously,
// so the result is always PENDING.
func (g *MoMoGateway) Initiate(ctx context.Context, identifier string, amount int64, packageRef string) (adapter.InitiateResult, error) {
	ref := uuid.NewString()
	body := requestToPay{
		Amount:       formatAmount(amount),
		Currency:     g.cfg.Currency,
		ExternalID:   ref,
		Payer:        momoParty{PartyIDType: "MSISDN", PartyID: strings.TrimPrefix(identifier, "+")},
		PayerMessage: fmt.Sprintf("Internet package %s purchase", packageRef),
		PayeeNote:    "Internet Portal Payment",
	}
	if err := g.do(ctx, "initiate", http.MethodPost, "/collection/v1_0/requesttopay", ref, body, nil); err != nil {
		return adapter.InitiateResult{}, err
	}
	return adapter.InitiateResult{ProviderID: ref, Status: adapter.ProviderPending}, nil
}

func (g *MoMoGateway) Verify(ctx context.Context, providerID string) (adapter.VerifyResult, error) {
	var out struct {
		Amount    string    `json:"amount"`
		Status    string    `json:"status"`
		Payer     momoParty `json:"payer"`
		CreatedAt string    `json:"createdAt"`
	}
	if err := g.do(ctx, "verify", http.MethodGet, "/collection/v1_0/requesttopay/"+providerID, "", nil, &out); err != nil {
		return adapter.VerifyResult{}, err
	}
	res := adapter.VerifyResult{
		ProviderID: providerID,
		Status:     normalizeStatus(out.Status),
	}
	if out.Payer.PartyID != "" {
		res.Identifier = "+" + out.Payer.PartyID
	}
	if amt, err := parseAmount(out.Amount); err == nil {
		res.Amount = amt
	}
	if ts, err := time.Parse(time.RFC3339, out.CreatedAt); err == nil {
		res.Timestamp = ts
	}
	return res, nil
}

type refundRequest struct {
	Amount              string `json:"amount"`
	Currency            string `json:"currency"`
	ExternalID          string `json:"externalId"`
	ReferenceIDToRefund string `json:"referenceIdToRefund"`
	PayerMessage        string `json:"payerMessage"`
	PayeeNote           string `json:"payeeNote"`
}

func (g *MoMoGateway) Refund(ctx context.Context, providerID string, amount int64) (adapter.RefundResult, error) {
	ref := uuid.NewString()
	body := refundRequest{
		Amount:              formatAmount(amount),
		Currency:            g.cfg.Currency,
		ExternalID:          ref,
		ReferenceIDToRefund: providerID,
		PayerMessage:        "Refund for failed transaction",
		PayeeNote:           "Internet Portal Refund",
	}
	if err := g.do(ctx, "refund", http.MethodPost, "/collection/v1_0/refund", ref, body, nil); err != nil {
		return adapter.RefundResult{}, err
	}
	return adapter.RefundResult{RefundID: ref, Status: adapter.ProviderRefunded}, nil
}

// normalizeStatus maps provider wording onto ProviderStatus. Unknown terminal
// states (REJECTED, TIMEOUT, ...) count as FAILED.
func normalizeStatus(s string) adapter.ProviderStatus {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SUCCESS", "SUCCESSFUL":
		return adapter.ProviderSuccessful
	case "PENDING", "CREATED", "ONGOING":
		return adapter.ProviderPending
	case "REFUNDED":
		return adapter.ProviderRefunded
	default:
		return adapter.ProviderFailed
	}
}

// formatAmount renders minor units as a decimal string ("50" -> "0.50").
func formatAmount(minor int64) string {
	sign := ""
	if minor < 0 {
		sign, minor = "-", -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}

// parseAmount reads a decimal major-unit string into minor units.
func parseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty amount")
	}
	whole, frac, _ := strings.Cut(s, ".")
	if len(frac) > 2 {
		frac = frac[:2]
	}
	for len(frac) < 2 {
		frac += "0"
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, err
	}
	if strings.HasPrefix(whole, "-") {
		return w*100 - f, nil
	}
	return w*100 + f, nil
}
