package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ipregistry/internal/domain"
	domip "github.com/kailas-cloud/ipregistry/internal/domain/ip"
	"github.com/kailas-cloud/ipregistry/internal/logger"
	accessuc "github.com/kailas-cloud/ipregistry/internal/usecase/access"
	"github.com/kailas-cloud/ipregistry/internal/usecase/dedup"
	healthuc "github.com/kailas-cloud/ipregistry/internal/usecase/health"
	ipuc "github.com/kailas-cloud/ipregistry/internal/usecase/ip"
)

const (
	maxBodyBytes        = 1 << 20
	noPhysicalAddress   = "Not provided"
	msgRegistered       = "IP registered successfully"
	msgTransferred      = "Ownership transferred successfully"
	msgAccessGranted    = "Access granted and recorded"
	msgAlreadyHasAccess = "Already has access"
)

// IPService is the IP use case surface the API needs.
type IPService interface {
	Register(ctx context.Context, p domip.Params, opts ipuc.RegisterOptions) (ipuc.Registration, error)
	CheckDuplicate(ctx context.Context, description string, threshold float64) (dedup.Verdict, error)
	ListAll(ctx context.Context) ([]domip.Record, error)
	GetByIndex(ctx context.Context, rawID string) (domip.Record, error)
	SearchByKeyword(ctx context.Context, keyword string) ([]domip.Record, error)
	ListByOwner(ctx context.Context, address string) ([]domip.Record, error)
	TransferOwnership(ctx context.Context, index int, newOwnerAddress string, owner domip.Owner) (domip.Record, error)
}

// AccessService is the access use case surface the API needs.
type AccessService interface {
	GrantAccess(ctx context.Context, userAddress string, index int, txHash string) (bool, error)
	LicensedIPs(ctx context.Context, userAddress string) ([]accessuc.Licensed, error)
}

// HealthService reports component health.
type HealthService interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the registry HTTP API.
type Server struct {
	ips           IPService
	access        AccessService
	health        HealthService
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(ips IPService, access AccessService, health HealthService, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		ips:    ips,
		access: access,
		health: health,
		logger: logger,
	}
	s.errorHandlers = []errorHandler{
		unsavedRegistrationHandler,
		duplicateHandler,
		sentinelHandler(domain.ErrInvalidAddress, http.StatusBadRequest, ErrorCodeInvalidAddress),
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, ErrorCodeNotFound),
		sentinelHandler(domain.ErrAlreadyExists, http.StatusConflict, ErrorCodeAlreadyExists),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, ErrorCodeRateLimited),
		sentinelHandler(domain.ErrCorpusUnavailable, http.StatusServiceUnavailable, ErrorCodeCorpusUnavailable),
		sentinelHandler(domain.ErrLedgerReadOnly, http.StatusNotImplemented, ErrorCodeLedgerReadOnly),
	}
	return s
}

// Mount registers all routes on r.
func (s *Server) Mount(r chi.Router) {
	r.Post("/register-ip", s.RegisterIP)
	r.Post("/check-duplicate", s.CheckDuplicate)
	r.Get("/get-all-ips", s.GetAllIPs)
	r.Get("/search-ip/{id}", s.SearchIP)
	r.Get("/search-ip-by-description/{keyword}", s.SearchIPByDescription)
	r.Post("/transfer-ownership", s.TransferOwnership)
	r.Post("/access-ip", s.AccessIP)
	r.Get("/get-ips-by-owner/{ownerAddress}", s.GetIPsByOwner)
	r.Get("/licensed-ips/{userAddress}", s.LicensedIPs)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// RegisterIP handles POST /register-ip.
func (s *Server) RegisterIP(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeBody(w, r, &req) {
		return
	}

	reg, err := s.ips.Register(r.Context(), paramsFromRequest(&req), ipuc.RegisterOptions{LedgerIndex: req.LedgerIndex})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, RegisterResponse{
		Message:    msgRegistered,
		ID:         reg.Record.Index(),
		TxHash:     reg.TxHash,
		Similarity: similarityToWire(reg.Verdict),
	})
}

// CheckDuplicate handles POST /check-duplicate.
func (s *Server) CheckDuplicate(w http.ResponseWriter, r *http.Request) {
	var req CheckDuplicateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var threshold float64
	if req.Threshold != nil {
		if *req.Threshold == 0 {
			writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "threshold must be in (0, 1]")
			return
		}
		threshold = *req.Threshold
	}

	v, err := s.ips.CheckDuplicate(r.Context(), req.Description, threshold)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, CheckDuplicateResponse{Similarity: similarityToWire(v)})
}

// GetAllIPs handles GET /get-all-ips.
func (s *Server) GetAllIPs(w http.ResponseWriter, r *http.Request) {
	recs, err := s.ips.ListAll(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ipsToWire(recs))
}

// SearchIP handles GET /search-ip/{id}.
func (s *Server) SearchIP(w http.ResponseWriter, r *http.Request) {
	rec, err := s.ips.GetByIndex(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ipToWire(&rec))
}

// SearchIPByDescription handles GET /search-ip-by-description/{keyword}.
func (s *Server) SearchIPByDescription(w http.ResponseWriter, r *http.Request) {
	recs, err := s.ips.SearchByKeyword(r.Context(), chi.URLParam(r, "keyword"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ipsToWire(recs))
}

// TransferOwnership handles POST /transfer-ownership.
func (s *Server) TransferOwnership(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ID == nil || req.NewOwnerAddress == "" {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed,
			"id, newOwnerAddress and newOwnerDetails are required")
		return
	}

	owner := domip.Owner{
		Name:            req.NewOwnerDetails.Name,
		Email:           req.NewOwnerDetails.Email,
		PhysicalAddress: req.NewOwnerDetails.PhysicalAddress,
	}
	rec, err := s.ips.TransferOwnership(r.Context(), *req.ID, req.NewOwnerAddress, owner)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	o := rec.Owner()
	physical := o.PhysicalAddress
	if physical == "" {
		physical = noPhysicalAddress
	}
	writeJSON(w, http.StatusOK, TransferResponse{
		Message: msgTransferred,
		NewOwner: NewOwner{
			Address:         rec.OwnerAddress(),
			Name:            o.Name,
			Email:           o.Email,
			PhysicalAddress: physical,
		},
	})
}

// AccessIP handles POST /access-ip.
func (s *Server) AccessIP(w http.ResponseWriter, r *http.Request) {
	var req AccessRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ID == nil || req.UserAddress == "" || req.TxHash == "" {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "id, userAddress and txHash are required")
		return
	}

	created, err := s.access.GrantAccess(r.Context(), req.UserAddress, *req.ID, req.TxHash)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	msg := msgAccessGranted
	if !created {
		msg = msgAlreadyHasAccess
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: msg})
}

// GetIPsByOwner handles GET /get-ips-by-owner/{ownerAddress}.
func (s *Server) GetIPsByOwner(w http.ResponseWriter, r *http.Request) {
	recs, err := s.ips.ListByOwner(r.Context(), chi.URLParam(r, "ownerAddress"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ipsToWire(recs))
}

// LicensedIPs handles GET /licensed-ips/{userAddress}.
func (s *Server) LicensedIPs(w http.ResponseWriter, r *http.Request) {
	items, err := s.access.LicensedIPs(r.Context(), chi.URLParam(r, "userAddress"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	out := make([]LicensedIP, len(items))
	for i := range items {
		out[i] = licensedToWire(&items[i].Grant, &items[i].Record)
	}
	writeJSON(w, http.StatusOK, out)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, HealthResponse{Status: string(report.Status), Checks: checks})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a client-safe message. Validation errors carry the
// offending field and are returned whole; everything else is reduced to its sentinel.
func safeDomainMessage(err error) string {
	if errors.Is(err, domain.ErrInvalidInput) || errors.Is(err, domain.ErrInvalidAddress) {
		return err.Error()
	}
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrAlreadyExists,
		domain.ErrDuplicateFound,
		domain.ErrCorpusUnavailable,
		domain.ErrLedgerReadOnly,
		domain.ErrRateLimited,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// duplicateHandler reports the matched record and its score.
func duplicateHandler(w http.ResponseWriter, err error, msg string) bool {
	if !errors.Is(err, domain.ErrDuplicateFound) {
		return false
	}
	var de *domain.DuplicateError
	if errors.As(err, &de) {
		writeJSON(w, http.StatusConflict, DuplicateResponse{
			Code:       ErrorCodeDuplicateFound,
			Message:    fmt.Sprintf("%s (id %d, similarity %.4f)", msg, de.Index, de.Score),
			MatchIndex: de.Index,
			Score:      de.Score,
		})
		return true
	}
	writeError(w, http.StatusConflict, ErrorCodeDuplicateFound, msg)
	return true
}

// unsavedRegistrationHandler echoes the ledger index so the client can finish the registration.
func unsavedRegistrationHandler(w http.ResponseWriter, err error, _ string) bool {
	var ue *ipuc.UnsavedRegistrationError
	if !errors.As(err, &ue) {
		return false
	}
	writeJSON(w, http.StatusInternalServerError, UnsavedRegistrationResponse{
		Code:        ErrorCodeMetadataNotSaved,
		Message:     fmt.Sprintf("record committed to the ledger at id %d but not saved; resend with ledgerIndex %d", ue.Index, ue.Index),
		LedgerIndex: ue.Index,
		TxHash:      ue.TxHash,
	})
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContextOr(r.Context(), s.logger)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
