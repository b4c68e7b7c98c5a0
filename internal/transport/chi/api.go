package chi

import (
	"time"

	domaccess "github.com/kailas-cloud/ipregistry/internal/domain/access"
	domip "github.com/kailas-cloud/ipregistry/internal/domain/ip"
	"github.com/kailas-cloud/ipregistry/internal/usecase/dedup"
)

// ErrorCode is the machine-readable error code of an ErrorResponse.
type ErrorCode string

// Error codes.
const (
	ErrorCodeBadRequest        ErrorCode = "bad_request"
	ErrorCodeValidationFailed  ErrorCode = "validation_failed"
	ErrorCodeInvalidAddress    ErrorCode = "invalid_address"
	ErrorCodeUnauthorized      ErrorCode = "unauthorized"
	ErrorCodeNotFound          ErrorCode = "not_found"
	ErrorCodeAlreadyExists     ErrorCode = "already_exists"
	ErrorCodeDuplicateFound    ErrorCode = "duplicate_found"
	ErrorCodeCorpusUnavailable ErrorCode = "corpus_unavailable"
	ErrorCodeLedgerReadOnly    ErrorCode = "ledger_read_only"
	ErrorCodeMetadataNotSaved  ErrorCode = "metadata_not_saved"
	ErrorCodeRateLimited       ErrorCode = "rate_limited"
	ErrorCodeInternalError     ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// DuplicateResponse is the 409 body of a rejected description.
type DuplicateResponse struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	MatchIndex int       `json:"matchIndex"`
	Score      float64   `json:"score"`
}

// UnsavedRegistrationResponse is the 500 body of a registration committed on-ledger
// whose metadata was not saved. Resending the request with ledgerIndex completes it.
type UnsavedRegistrationResponse struct {
	Code        ErrorCode `json:"code"`
	Message     string    `json:"message"`
	LedgerIndex int       `json:"ledgerIndex"`
	TxHash      string    `json:"txHash"`
}

// Owner is the owner identity on the wire.
type Owner struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	PhysicalAddress string `json:"physicalAddress"`
}

// OptionalFields is the type-specific metadata on the wire.
type OptionalFields struct {
	WorkType        string   `json:"workType,omitempty"`
	ClassOfGoods    string   `json:"classOfGoods,omitempty"`
	Inventors       []string `json:"inventors,omitempty"`
	DomainName      string   `json:"domainName,omitempty"`
	PublicationDate string   `json:"publicationDate,omitempty"`
}

// RegisterRequest is the body of POST /register-ip.
type RegisterRequest struct {
	Name               string         `json:"name"`
	Description        string         `json:"description"`
	Owner              Owner          `json:"owner"`
	OwnerAddress       string         `json:"ownerAddress"`
	IPType             string         `json:"ipType"`
	DateOfCreation     string         `json:"dateOfCreation"`
	DateOfRegistration string         `json:"dateOfRegistration"`
	License            []string       `json:"license"`
	LicenseIncentive   []float64      `json:"licenseIncentive"`
	Tags               []string       `json:"tags"`
	OptionalFields     OptionalFields `json:"optionalFields"`
	// LedgerIndex is set by clients that wrote the record on-ledger themselves.
	LedgerIndex *int `json:"ledgerIndex,omitempty"`
}

// Similarity reports how a description compared against the corpus.
type Similarity struct {
	Scanned   int     `json:"scanned"`
	BestIndex int     `json:"bestIndex"`
	BestScore float64 `json:"bestScore"`
}

// RegisterResponse is the body of a successful registration.
type RegisterResponse struct {
	Message    string     `json:"message"`
	ID         int        `json:"id"`
	TxHash     string     `json:"txHash,omitempty"`
	Similarity Similarity `json:"similarity"`
}

// CheckDuplicateRequest is the body of POST /check-duplicate.
type CheckDuplicateRequest struct {
	Description string   `json:"description"`
	Threshold   *float64 `json:"threshold,omitempty"`
}

// CheckDuplicateResponse is the body of an accepted description.
type CheckDuplicateResponse struct {
	Duplicate  bool       `json:"duplicate"`
	Similarity Similarity `json:"similarity"`
}

// IP is a registered record on the wire.
type IP struct {
	ID                 int            `json:"id"`
	Name               string         `json:"name"`
	Description        string         `json:"description"`
	Owner              Owner          `json:"owner"`
	OwnerAddress       string         `json:"ownerAddress,omitempty"`
	IPType             string         `json:"ipType"`
	DateOfCreation     string         `json:"dateOfCreation"`
	DateOfRegistration string         `json:"dateOfRegistration"`
	License            []string       `json:"license"`
	LicenseIncentive   []float64      `json:"licenseIncentive"`
	Tags               []string       `json:"tags"`
	OptionalFields     OptionalFields `json:"optionalFields"`
}

// LicensedIP is an IP the caller holds a grant for.
type LicensedIP struct {
	IP
	TxHash    string `json:"txHash"`
	GrantedAt string `json:"grantedAt"`
}

// TransferRequest is the body of POST /transfer-ownership.
type TransferRequest struct {
	ID              *int   `json:"id"`
	NewOwnerAddress string `json:"newOwnerAddress"`
	NewOwnerDetails Owner  `json:"newOwnerDetails"`
}

// NewOwner is the owner block of a TransferResponse.
type NewOwner struct {
	Address         string `json:"address"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	PhysicalAddress string `json:"physicalAddress"`
}

// TransferResponse is the body of a completed transfer.
type TransferResponse struct {
	Message  string   `json:"message"`
	NewOwner NewOwner `json:"newOwner"`
}

// AccessRequest is the body of POST /access-ip.
type AccessRequest struct {
	ID          *int   `json:"id"`
	UserAddress string `json:"userAddress"`
	TxHash      string `json:"txHash"`
}

// MessageResponse carries a human-readable outcome.
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func paramsFromRequest(req *RegisterRequest) domip.Params {
	return domip.Params{
		Name:        req.Name,
		Description: req.Description,
		Owner: domip.Owner{
			Name:            req.Owner.Name,
			Email:           req.Owner.Email,
			PhysicalAddress: req.Owner.PhysicalAddress,
		},
		OwnerAddress:       req.OwnerAddress,
		IPType:             req.IPType,
		DateOfCreation:     req.DateOfCreation,
		DateOfRegistration: req.DateOfRegistration,
		License:            req.License,
		LicenseIncentive:   req.LicenseIncentive,
		Tags:               req.Tags,
		OptionalFields: domip.OptionalFields{
			WorkType:        req.OptionalFields.WorkType,
			ClassOfGoods:    req.OptionalFields.ClassOfGoods,
			Inventors:       req.OptionalFields.Inventors,
			DomainName:      req.OptionalFields.DomainName,
			PublicationDate: req.OptionalFields.PublicationDate,
		},
	}
}

func ipToWire(r *domip.Record) IP {
	o := r.Owner()
	of := r.OptionalFields()
	return IP{
		ID:                 r.Index(),
		Name:               r.Name(),
		Description:        r.Description(),
		Owner:              Owner{Name: o.Name, Email: o.Email, PhysicalAddress: o.PhysicalAddress},
		OwnerAddress:       r.OwnerAddress(),
		IPType:             r.IPType(),
		DateOfCreation:     r.DateOfCreation(),
		DateOfRegistration: r.DateOfRegistration(),
		License:            nonNil(r.License()),
		LicenseIncentive:   nonNil(r.LicenseIncentive()),
		Tags:               nonNil(r.Tags()),
		OptionalFields: OptionalFields{
			WorkType:        of.WorkType,
			ClassOfGoods:    of.ClassOfGoods,
			Inventors:       of.Inventors,
			DomainName:      of.DomainName,
			PublicationDate: of.PublicationDate,
		},
	}
}

func ipsToWire(recs []domip.Record) []IP {
	out := make([]IP, len(recs))
	for i := range recs {
		out[i] = ipToWire(&recs[i])
	}
	return out
}

func licensedToWire(g *domaccess.Grant, r *domip.Record) LicensedIP {
	return LicensedIP{
		IP:        ipToWire(r),
		TxHash:    g.TxHash(),
		GrantedAt: g.CreatedAt().Format(time.RFC3339),
	}
}

func similarityToWire(v dedup.Verdict) Similarity {
	return Similarity{Scanned: v.Scanned, BestIndex: v.BestIndex, BestScore: v.BestScore}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
