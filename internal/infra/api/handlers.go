package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"captive-portal/internal/domain"
	"captive-portal/internal/domain/model"
	"captive-portal/internal/domain/ports/adapter"
	"captive-portal/internal/infra/logging"
)

// ---- views ----

type packageView struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	DurationHours int    `json:"duration_hours"`
	Price         int64  `json:"price"`
}

type transactionView struct {
	TransactionID string     `json:"transaction_id"`
	PhoneNumber   string     `json:"phone_number"`
	PackageID     string     `json:"package_id"`
	Amount        int64      `json:"amount"`
	Status        string     `json:"status"`
	Expiry        *time.Time `json:"expiry,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

func toTransactionView(t *model.Transaction) transactionView {
	return transactionView{
		TransactionID: t.TransactionID,
		PhoneNumber:   t.PhoneNumber,
		PackageID:     t.PackageID,
		Amount:        t.Amount,
		Status:        string(t.Status),
		Expiry:        t.Expiry,
		CreatedAt:     t.CreatedAt,
		CompletedAt:   t.CompletedAt,
	}
}

func toTransactionViews(ts []*model.Transaction) []transactionView {
	out := make([]transactionView, 0, len(ts))
	for _, t := range ts {
		out = append(out, toTransactionView(t))
	}
	return out
}

type codeView struct {
	Code          string     `json:"code"`
	PlanID        string     `json:"plan_id"`
	DurationHours int        `json:"duration_hours"`
	Status        string     `json:"status"`
	MACAddress    *string    `json:"mac_address,omitempty"`
	Expiry        *time.Time `json:"expiry,omitempty"`
}

func toCodeView(c *model.AccessCode) codeView {
	return codeView{
		Code:          c.Code,
		PlanID:        c.PlanID,
		DurationHours: c.DurationHours,
		Status:        string(c.Status),
		MACAddress:    c.MACAddress,
		Expiry:        c.Expiry,
	}
}

type exclusionView struct {
	ID                    int64     `json:"id"`
	IdentifierType        string    `json:"identifier_type"`
	IdentifierValue       string    `json:"identifier_value"`
	Reason                string    `json:"reason"`
	ExcludeFromPayment    bool      `json:"exclude_from_payment"`
	ExcludeFromConnection bool      `json:"exclude_from_connection"`
	CreatedAt             time.Time `json:"created_at"`
}

func toExclusionView(e *model.Exclusion) exclusionView {
	return exclusionView{
		ID:                    e.ID,
		IdentifierType:        string(e.Type),
		IdentifierValue:       e.Value,
		Reason:                e.Reason,
		ExcludeFromPayment:    e.ExcludeFromPayment,
		ExcludeFromConnection: e.ExcludeFromConnection,
		CreatedAt:             e.CreatedAt,
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(v)
}

// clientMAC prefers the header the captive-portal gateway injects over a client-supplied value.
func clientMAC(r *http.Request, fallback string) string {
	if mac := strings.TrimSpace(r.Header.Get("X-Client-MAC")); mac != "" {
		return mac
	}
	return fallback
}

// logFailure logs server-side failures with their cause. Client errors are not logged.
func (s *Server) logFailure(r *http.Request, err error, msg string) {
	if StatusFor(domain.Code(err)) < 500 {
		return
	}
	l := logging.With(r.Context(), s.log)
	ev := l.Error().Err(err)
	var ge *adapter.GatewayError
	if errors.As(err, &ge) {
		ev = ev.Str("op", ge.Op).Int("http_status", ge.HTTPStatus).Str("provider_status", ge.ProviderStatus)
	}
	ev.Msg(msg)
}

// ---- payments ----

func (s *Server) handlePackages(w http.ResponseWriter, r *http.Request) {
	pkgs := s.transactions.Packages()
	out := make([]packageView, 0, len(pkgs))
	for _, p := range pkgs {
		out = append(out, packageView{ID: p.ID, Name: p.Name, DurationHours: p.DurationHours, Price: p.Price})
	}
	writeJSON(w, http.StatusOK, map[string]any{"packages": out})
}

type initiateRequest struct {
	PhoneNumber string `json:"phone_number"`
	PackageID   string `json:"package_id"`
}

func (s *Server) handleInitiate(w http.ResponseWriter, r *http.Request) {
	var req initiateRequest
	if err := decode(w, r, &req); err != nil {
		writeCode(w, CodeBadRequest)
		return
	}
	if !s.rate.allow(r.Context(), model.NormalizePhone(req.PhoneNumber), "initiate") {
		writeCode(w, CodeRateLimited)
		return
	}
	t, err := s.transactions.Initiate(r.Context(), req.PhoneNumber, req.PackageID)
	if err != nil {
		s.logFailure(r, err, "initiate failed")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionView(t))
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	t, err := s.transactions.Reconcile(r.Context(), chi.URLParam(r, "transactionID"))
	if err != nil {
		s.logFailure(r, err, "verify failed")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionView(t))
}

// callbackRequest is the provider's notification. Its status is ignored: the
// transaction is always re-verified with the provider.
type callbackRequest struct {
	ExternalID  string `json:"externalId"`
	ReferenceID string `json:"referenceId"`
}

func (s *Server) handleProviderCallback(w http.ResponseWriter, r *http.Request) {
	var req callbackRequest
	_ = decode(w, r, &req)
	id := r.Header.Get("X-Reference-Id")
	if id == "" {
		id = req.ReferenceID
	}
	if id == "" {
		id = req.ExternalID
	}
	if id == "" {
		writeError(w, domain.ErrInvalidArgument)
		return
	}
	t, err := s.transactions.Reconcile(r.Context(), id)
	if err != nil {
		s.logFailure(r, err, "callback reconcile failed")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"transaction_id": t.TransactionID, "status": string(t.Status)})
}

func (s *Server) handleCheckAccess(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	d, err := s.access.Decide(r.Context(), q.Get("phone_number"), clientMAC(r, q.Get("mac_address")))
	if err != nil {
		s.logFailure(r, err, "access check failed")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"access": d.Granted,
		"reason": d.Reason,
		"expiry": d.Expiry,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	ts, err := s.transactions.History(r.Context(), r.URL.Query().Get("phone_number"))
	if err != nil {
		s.logFailure(r, err, "history failed")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": toTransactionViews(ts)})
}

// ---- access codes ----

type generateRequest struct {
	PlanID   string `json:"plan_id"`
	Quantity int    `json:"quantity"`
}

func (s *Server) handleGenerateCodes(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decode(w, r, &req); err != nil {
		writeCode(w, CodeBadRequest)
		return
	}
	res, err := s.codes.GenerateBatch(r.Context(), requesterFrom(r.Context()), req.PlanID, req.Quantity)
	if err != nil && (res == nil || len(res.Codes) == 0) {
		s.logFailure(r, err, "code generation failed")
		writeError(w, err)
		return
	}
	codes := make([]string, 0, len(res.Codes))
	for _, c := range res.Codes {
		codes = append(codes, c.Code)
	}
	body := map[string]any{"codes": codes, "remaining": res.Remaining}
	status := http.StatusCreated
	if err != nil {
		// Partial batch: the committed codes are valid and must reach the operator.
		s.logFailure(r, err, "code generation stopped early")
		code := domain.Code(err)
		body["error"] = errorBody{Code: code, Message: messages[code]}
		status = StatusFor(code)
	}
	writeJSON(w, status, body)
}

type activateRequest struct {
	Code       string `json:"code"`
	MACAddress string `json:"mac_address"`
}

func (s *Server) handleActivateCode(w http.ResponseWriter, r *http.Request) {
	var req activateRequest
	if err := decode(w, r, &req); err != nil {
		writeCode(w, CodeBadRequest)
		return
	}
	mac := clientMAC(r, req.MACAddress)
	if !s.rate.allow(r.Context(), mac, "activate") {
		writeCode(w, CodeRateLimited)
		return
	}
	var (
		c   *model.AccessCode
		err error
	)
	if s.opts.DeferredActivation {
		c, err = s.codes.Bind(r.Context(), req.Code, mac)
	} else {
		c, err = s.codes.Activate(r.Context(), req.Code, mac)
	}
	if err != nil {
		s.logFailure(r, err, "activate code failed")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCodeView(c))
}

type startSessionRequest struct {
	Code string `json:"code"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := decode(w, r, &req); err != nil {
		writeCode(w, CodeBadRequest)
		return
	}
	c, err := s.codes.StartSession(r.Context(), req.Code)
	if err != nil {
		s.logFailure(r, err, "start session failed")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCodeView(c))
}

func (s *Server) handleCheckCodeAccess(w http.ResponseWriter, r *http.Request) {
	res, err := s.codes.CheckAccess(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		s.logFailure(r, err, "code access check failed")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"code":              res.Code,
		"status":            string(res.Status),
		"access":            res.Status == model.CodeAccessGranted,
		"remaining_seconds": int64(res.Remaining / time.Second),
		"expiry":            res.Expiry,
	})
}

// ---- admin ----

type exclusionRequest struct {
	IdentifierType        string `json:"identifier_type"`
	IdentifierValue       string `json:"identifier_value"`
	Reason                string `json:"reason"`
	ExcludeFromPayment    *bool  `json:"exclude_from_payment"`
	ExcludeFromConnection *bool  `json:"exclude_from_connection"`
}

func (s *Server) handleAddExclusion(w http.ResponseWriter, r *http.Request) {
	var req exclusionRequest
	if err := decode(w, r, &req); err != nil {
		writeCode(w, CodeBadRequest)
		return
	}
	fromPayment, fromConnection := true, true
	if req.ExcludeFromPayment != nil {
		fromPayment = *req.ExcludeFromPayment
	}
	if req.ExcludeFromConnection != nil {
		fromConnection = *req.ExcludeFromConnection
	}
	e, err := s.exclusions.Add(r.Context(), requesterFrom(r.Context()), model.IdentifierType(req.IdentifierType),
		req.IdentifierValue, req.Reason, fromPayment, fromConnection)
	if err != nil {
		s.logFailure(r, err, "add exclusion failed")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toExclusionView(e))
}

func (s *Server) handleListExclusions(w http.ResponseWriter, r *http.Request) {
	list, err := s.exclusions.List(r.Context(), requesterFrom(r.Context()))
	if err != nil {
		s.logFailure(r, err, "list exclusions failed")
		writeError(w, err)
		return
	}
	out := make([]exclusionView, 0, len(list))
	for _, e := range list {
		out = append(out, toExclusionView(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"exclusions": out})
}

func (s *Server) handleDeleteExclusion(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, domain.ErrInvalidArgument)
		return
	}
	e, err := s.exclusions.Delete(r.Context(), requesterFrom(r.Context()), id)
	if err != nil {
		s.logFailure(r, err, "delete exclusion failed")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toExclusionView(e))
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	ts, err := s.transactions.List(r.Context(), requesterFrom(r.Context()), limit, offset)
	if err != nil {
		s.logFailure(r, err, "list transactions failed")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": toTransactionViews(ts)})
}
