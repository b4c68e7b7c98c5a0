package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kailas-cloud/ipregistry/internal/domain"
	domaccess "github.com/kailas-cloud/ipregistry/internal/domain/access"
	domip "github.com/kailas-cloud/ipregistry/internal/domain/ip"
	accessuc "github.com/kailas-cloud/ipregistry/internal/usecase/access"
	"github.com/kailas-cloud/ipregistry/internal/usecase/dedup"
	healthuc "github.com/kailas-cloud/ipregistry/internal/usecase/health"
	ipuc "github.com/kailas-cloud/ipregistry/internal/usecase/ip"
)

// --- Mocks ---

type mockIPs struct {
	registerFn func(ctx context.Context, p domip.Params, opts ipuc.RegisterOptions) (ipuc.Registration, error)
	checkFn    func(ctx context.Context, description string, threshold float64) (dedup.Verdict, error)
	listFn     func(ctx context.Context) ([]domip.Record, error)
	getFn      func(ctx context.Context, rawID string) (domip.Record, error)
	searchFn   func(ctx context.Context, keyword string) ([]domip.Record, error)
	ownerFn    func(ctx context.Context, address string) ([]domip.Record, error)
	transferFn func(ctx context.Context, index int, address string, owner domip.Owner) (domip.Record, error)
}

func (m *mockIPs) Register(ctx context.Context, p domip.Params, opts ipuc.RegisterOptions) (ipuc.Registration, error) {
	return m.registerFn(ctx, p, opts)
}

func (m *mockIPs) CheckDuplicate(ctx context.Context, description string, threshold float64) (dedup.Verdict, error) {
	return m.checkFn(ctx, description, threshold)
}

func (m *mockIPs) ListAll(ctx context.Context) ([]domip.Record, error) { return m.listFn(ctx) }

func (m *mockIPs) GetByIndex(ctx context.Context, rawID string) (domip.Record, error) {
	return m.getFn(ctx, rawID)
}

func (m *mockIPs) SearchByKeyword(ctx context.Context, keyword string) ([]domip.Record, error) {
	return m.searchFn(ctx, keyword)
}

func (m *mockIPs) ListByOwner(ctx context.Context, address string) ([]domip.Record, error) {
	return m.ownerFn(ctx, address)
}

func (m *mockIPs) TransferOwnership(
	ctx context.Context, index int, address string, owner domip.Owner,
) (domip.Record, error) {
	return m.transferFn(ctx, index, address, owner)
}

type mockAccess struct {
	grantFn    func(ctx context.Context, user string, index int, txHash string) (bool, error)
	licensedFn func(ctx context.Context, user string) ([]accessuc.Licensed, error)
}

func (m *mockAccess) GrantAccess(ctx context.Context, user string, index int, txHash string) (bool, error) {
	return m.grantFn(ctx, user, index, txHash)
}

func (m *mockAccess) LicensedIPs(ctx context.Context, user string) ([]accessuc.Licensed, error) {
	return m.licensedFn(ctx, user)
}

type mockHealth struct{ report healthuc.Report }

func (m *mockHealth) Check(_ context.Context) healthuc.Report { return m.report }

const ownerAddr = "0x52908400098527886E0F7030069857D2E4169EE7"

func sampleRecord(index int) domip.Record {
	return domip.Reconstruct(index, domip.Params{
		Name:         "Espresso machine",
		Description:  "A method for brewing coffee using pressure",
		Owner:        domip.Owner{Name: "Ada", Email: "ada@example.com"},
		OwnerAddress: ownerAddr,
		IPType:       "patent",
		License:      []string{"commercial"},
	})
}

func newTestRouter(ips IPService, access AccessService, health HealthService) http.Handler {
	r := chi.NewRouter()
	NewServer(ips, access, health, nil).Mount(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&e); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return e
}

// --- Register ---

func TestRegisterIP_OK(t *testing.T) {
	var got domip.Params
	ips := &mockIPs{registerFn: func(_ context.Context, p domip.Params, opts ipuc.RegisterOptions) (ipuc.Registration, error) {
		got = p
		if opts.LedgerIndex == nil || *opts.LedgerIndex != 4 {
			t.Errorf("ledger index not forwarded: %v", opts.LedgerIndex)
		}
		return ipuc.Registration{
			Record:  sampleRecord(4),
			TxHash:  "0xfeed",
			Verdict: dedup.Verdict{Scanned: 4, BestIndex: 1, BestScore: 0.31},
		}, nil
	}}
	h := newTestRouter(ips, nil, nil)

	body := `{"name":"Espresso machine","description":"coffee","owner":{"name":"Ada","email":"ada@example.com",
		"physicalAddress":"1 Main St"},"ownerAddress":"` + ownerAddr + `","license":["commercial"],
		"licenseIncentive":[1.5],"ledgerIndex":4}`
	rr := do(t, h, http.MethodPost, "/register-ip", body)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	var resp RegisterResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.ID != 4 || resp.TxHash != "0xfeed" || resp.Message != msgRegistered {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.Similarity.Scanned != 4 || resp.Similarity.BestIndex != 1 {
		t.Errorf("unexpected similarity %+v", resp.Similarity)
	}
	if got.Owner.PhysicalAddress != "1 Main St" || got.LicenseIncentive[0] != 1.5 {
		t.Errorf("params not mapped: %+v", got)
	}
}

func TestRegisterIP_InvalidBody(t *testing.T) {
	h := newTestRouter(&mockIPs{}, nil, nil)
	rr := do(t, h, http.MethodPost, "/register-ip", `{"name":`)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	if e := decodeError(t, rr); e.Code != ErrorCodeBadRequest {
		t.Errorf("code = %s", e.Code)
	}
}

func TestRegisterIP_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    ErrorCode
		message string
	}{
		{"validation", fmt.Errorf("license is required: %w", domain.ErrInvalidInput),
			http.StatusBadRequest, ErrorCodeValidationFailed, "license is required: invalid input"},
		{"address", fmt.Errorf("owner address %q: %w", "0x1", domain.ErrInvalidAddress),
			http.StatusBadRequest, ErrorCodeInvalidAddress, `owner address "0x1": invalid address`},
		{"conflict", fmt.Errorf("save record: %w", domain.ErrAlreadyExists),
			http.StatusConflict, ErrorCodeAlreadyExists, "already exists"},
		{"corpus", fmt.Errorf("duplicate check: read corpus: %w: %w", domain.ErrCorpusUnavailable, errors.New("dial tcp")),
			http.StatusServiceUnavailable, ErrorCodeCorpusUnavailable, "corpus unavailable"},
		{"rate limited", fmt.Errorf("append: %w", domain.ErrRateLimited),
			http.StatusTooManyRequests, ErrorCodeRateLimited, "rate limited"},
		{"read only", fmt.Errorf("append: %w", domain.ErrLedgerReadOnly),
			http.StatusNotImplemented, ErrorCodeLedgerReadOnly, "ledger is read-only"},
		{"internal", errors.New("redis: connection pool exhausted"),
			http.StatusInternalServerError, ErrorCodeInternalError, "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ips := &mockIPs{registerFn: func(context.Context, domip.Params, ipuc.RegisterOptions) (ipuc.Registration, error) {
				return ipuc.Registration{}, tt.err
			}}
			rr := do(t, newTestRouter(ips, nil, nil), http.MethodPost, "/register-ip", `{}`)

			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d", rr.Code, tt.status)
			}
			e := decodeError(t, rr)
			if e.Code != tt.code || e.Message != tt.message {
				t.Errorf("got %s %q, want %s %q", e.Code, e.Message, tt.code, tt.message)
			}
		})
	}
}

func TestRegisterIP_Duplicate(t *testing.T) {
	ips := &mockIPs{registerFn: func(context.Context, domip.Params, ipuc.RegisterOptions) (ipuc.Registration, error) {
		return ipuc.Registration{}, fmt.Errorf("duplicate check: %w", domain.NewDuplicate(3, 0.95))
	}}
	rr := do(t, newTestRouter(ips, nil, nil), http.MethodPost, "/register-ip", `{}`)

	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp DuplicateResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Code != ErrorCodeDuplicateFound || resp.MatchIndex != 3 || resp.Score != 0.95 {
		t.Errorf("unexpected response %+v", resp)
	}
	if !strings.Contains(resp.Message, "a similar IP already exists") {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestRegisterIP_UnsavedRegistration(t *testing.T) {
	ips := &mockIPs{registerFn: func(context.Context, domip.Params, ipuc.RegisterOptions) (ipuc.Registration, error) {
		return ipuc.Registration{}, &ipuc.UnsavedRegistrationError{
			Index: 5, TxHash: "0xfeed", Err: errors.New("JSON.SET: connection reset"),
		}
	}}
	rr := do(t, newTestRouter(ips, nil, nil), http.MethodPost, "/register-ip", `{}`)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp UnsavedRegistrationResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Code != ErrorCodeMetadataNotSaved || resp.LedgerIndex != 5 || resp.TxHash != "0xfeed" {
		t.Errorf("unexpected response %+v", resp)
	}
	if strings.Contains(resp.Message, "connection reset") {
		t.Errorf("internal cause leaked: %q", resp.Message)
	}
}

// --- CheckDuplicate ---

func TestCheckDuplicate(t *testing.T) {
	var gotThreshold float64
	ips := &mockIPs{checkFn: func(_ context.Context, _ string, threshold float64) (dedup.Verdict, error) {
		gotThreshold = threshold
		return dedup.Verdict{Scanned: 10, BestIndex: 2, BestScore: 0.4}, nil
	}}
	h := newTestRouter(ips, nil, nil)

	rr := do(t, h, http.MethodPost, "/check-duplicate", `{"description":"x","threshold":0.8}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp CheckDuplicateResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Duplicate || resp.Similarity.Scanned != 10 || gotThreshold != 0.8 {
		t.Errorf("unexpected response %+v, threshold %v", resp, gotThreshold)
	}

	rr = do(t, h, http.MethodPost, "/check-duplicate", `{"description":"x","threshold":0}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("explicit zero threshold: status = %d", rr.Code)
	}
}

// --- Queries ---

func TestGetAllIPs(t *testing.T) {
	ips := &mockIPs{listFn: func(context.Context) ([]domip.Record, error) {
		return []domip.Record{sampleRecord(0), sampleRecord(1)}, nil
	}}
	rr := do(t, newTestRouter(ips, nil, nil), http.MethodGet, "/get-all-ips", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var items []IP
	if err := json.NewDecoder(rr.Body).Decode(&items); err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 || items[1].ID != 1 || items[0].OwnerAddress != ownerAddr {
		t.Errorf("unexpected items %+v", items)
	}
	if items[0].Tags == nil || items[0].LicenseIncentive == nil {
		t.Error("empty lists must encode as []")
	}
}

func TestSearchIP(t *testing.T) {
	ips := &mockIPs{getFn: func(_ context.Context, rawID string) (domip.Record, error) {
		switch rawID {
		case "2":
			return sampleRecord(2), nil
		case "abc":
			return domip.Record{}, fmt.Errorf("invalid id %q: %w", rawID, domain.ErrInvalidInput)
		default:
			return domip.Record{}, fmt.Errorf("get ledger record: %w", domain.ErrNotFound)
		}
	}}
	h := newTestRouter(ips, nil, nil)

	rr := do(t, h, http.MethodGet, "/search-ip/2", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var item IP
	if err := json.NewDecoder(rr.Body).Decode(&item); err != nil {
		t.Fatal(err)
	}
	if item.ID != 2 || item.Name != "Espresso machine" {
		t.Errorf("unexpected item %+v", item)
	}

	if rr := do(t, h, http.MethodGet, "/search-ip/abc", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("abc: status = %d", rr.Code)
	}
	if rr := do(t, h, http.MethodGet, "/search-ip/9", ""); rr.Code != http.StatusNotFound {
		t.Errorf("9: status = %d", rr.Code)
	}
}

func TestSearchIPByDescription_Empty(t *testing.T) {
	var gotKeyword string
	ips := &mockIPs{searchFn: func(_ context.Context, keyword string) ([]domip.Record, error) {
		gotKeyword = keyword
		return []domip.Record{}, nil
	}}
	rr := do(t, newTestRouter(ips, nil, nil), http.MethodGet, "/search-ip-by-description/solar%20kiln", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Errorf("body = %q", rr.Body.String())
	}
	if gotKeyword != "solar kiln" && gotKeyword != "solar%20kiln" {
		t.Errorf("keyword = %q", gotKeyword)
	}
}

func TestGetIPsByOwner(t *testing.T) {
	ips := &mockIPs{ownerFn: func(_ context.Context, address string) ([]domip.Record, error) {
		if address == ownerAddr {
			return []domip.Record{sampleRecord(5)}, nil
		}
		if address == "bogus" {
			return nil, fmt.Errorf("%q: %w", address, domain.ErrInvalidAddress)
		}
		return nil, fmt.Errorf("no records: %w", domain.ErrNotFound)
	}}
	h := newTestRouter(ips, nil, nil)

	if rr := do(t, h, http.MethodGet, "/get-ips-by-owner/"+ownerAddr, ""); rr.Code != http.StatusOK {
		t.Errorf("owner: status = %d", rr.Code)
	}
	rr := do(t, h, http.MethodGet, "/get-ips-by-owner/bogus", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bogus: status = %d", rr.Code)
	}
	if e := decodeError(t, rr); e.Code != ErrorCodeInvalidAddress {
		t.Errorf("code = %s", e.Code)
	}
	if rr := do(t, h, http.MethodGet, "/get-ips-by-owner/0x0000000000000000000000000000000000000001", ""); rr.Code != http.StatusNotFound {
		t.Errorf("stranger: status = %d", rr.Code)
	}
}

// --- Transfer ---

func TestTransferOwnership(t *testing.T) {
	const newOwner = "0x8617E340B3D01FA5F11F306F4090FD50E238070D"
	ips := &mockIPs{transferFn: func(_ context.Context, index int, address string, owner domip.Owner) (domip.Record, error) {
		rec := sampleRecord(index)
		return rec.WithOwner(owner, address), nil
	}}
	h := newTestRouter(ips, nil, nil)

	rr := do(t, h, http.MethodPost, "/transfer-ownership",
		`{"id":0,"newOwnerAddress":"`+newOwner+`","newOwnerDetails":{"name":"Bob","email":"bob@example.com"}}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	var resp TransferResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Message != msgTransferred || resp.NewOwner.Address != newOwner || resp.NewOwner.Name != "Bob" {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.NewOwner.PhysicalAddress != "Not provided" {
		t.Errorf("physicalAddress = %q", resp.NewOwner.PhysicalAddress)
	}

	rr = do(t, h, http.MethodPost, "/transfer-ownership", `{"newOwnerAddress":"`+newOwner+`"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("missing id: status = %d", rr.Code)
	}
}

// --- Access ---

func TestAccessIP(t *testing.T) {
	seen := map[int]bool{}
	access := &mockAccess{grantFn: func(_ context.Context, _ string, index int, _ string) (bool, error) {
		if seen[index] {
			return false, nil
		}
		seen[index] = true
		return true, nil
	}}
	h := newTestRouter(nil, access, nil)
	body := `{"id":0,"userAddress":"` + ownerAddr + `","txHash":"0xtx"}`

	for _, want := range []string{msgAccessGranted, msgAlreadyHasAccess} {
		rr := do(t, h, http.MethodPost, "/access-ip", body)
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d", rr.Code)
		}
		var resp MessageResponse
		if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
			t.Fatal(err)
		}
		if resp.Message != want {
			t.Errorf("message = %q, want %q", resp.Message, want)
		}
	}

	if rr := do(t, h, http.MethodPost, "/access-ip", `{"id":0,"userAddress":"`+ownerAddr+`"}`); rr.Code != http.StatusBadRequest {
		t.Errorf("missing txHash: status = %d", rr.Code)
	}
}

func TestLicensedIPs(t *testing.T) {
	granted := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	access := &mockAccess{licensedFn: func(_ context.Context, user string) ([]accessuc.Licensed, error) {
		if user != ownerAddr {
			return nil, fmt.Errorf("no access records: %w", domain.ErrNotFound)
		}
		return []accessuc.Licensed{{
			Grant:  domaccess.Reconstruct(strings.ToLower(user), 1, "0xtx", granted),
			Record: sampleRecord(1),
		}}, nil
	}}
	h := newTestRouter(nil, access, nil)

	rr := do(t, h, http.MethodGet, "/licensed-ips/"+ownerAddr, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var items []LicensedIP
	if err := json.NewDecoder(rr.Body).Decode(&items); err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].ID != 1 || items[0].TxHash != "0xtx" || items[0].GrantedAt != "2024-05-01T12:00:00Z" {
		t.Errorf("unexpected items %+v", items)
	}

	if rr := do(t, h, http.MethodGet, "/licensed-ips/0x0000000000000000000000000000000000000001", ""); rr.Code != http.StatusNotFound {
		t.Errorf("stranger: status = %d", rr.Code)
	}
}

// --- Health ---

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		report healthuc.Report
		status int
	}{
		{healthuc.Report{Status: healthuc.Healthy, Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckOK}}, http.StatusOK},
		{healthuc.Report{Status: healthuc.Degraded, Checks: map[string]healthuc.CheckResult{"ledger": healthuc.CheckError}}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		rr := do(t, newTestRouter(nil, nil, &mockHealth{report: tt.report}), http.MethodGet, "/health", "")
		if rr.Code != tt.status {
			t.Errorf("%s: status = %d, want %d", tt.report.Status, rr.Code, tt.status)
		}
		var resp HealthResponse
		if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
			t.Fatal(err)
		}
		if resp.Status != string(tt.report.Status) {
			t.Errorf("status field = %q", resp.Status)
		}
	}
}
