// Package ip defines the intellectual-property record aggregate.
package ip

import (
	"fmt"
	"math"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kailas-cloud/ipregistry/internal/domain"
)

// MaxDescriptionSize is the maximum description size in bytes.
const MaxDescriptionSize = 16384

// Owner identifies the natural or legal person holding the IP.
type Owner struct {
	Name            string
	Email           string
	PhysicalAddress string
}

// OptionalFields carries type-specific metadata.
type OptionalFields struct {
	WorkType        string
	ClassOfGoods    string
	Inventors       []string
	DomainName      string
	PublicationDate string
}

// Params holds the user-supplied fields of a registration.
type Params struct {
	Name               string
	Description        string
	Owner              Owner
	OwnerAddress       string
	IPType             string
	DateOfCreation     string
	DateOfRegistration string
	License            []string
	LicenseIncentive   []float64
	Tags               []string
	OptionalFields     OptionalFields
}

// Record is a registered IP (immutable value object).
type Record struct {
	index  int
	params Params
}

// New validates a registration. The index is assigned later with WithIndex.
func New(p Params) (Record, error) {
	if strings.TrimSpace(p.Name) == "" {
		return Record{}, invalid("name is required")
	}
	if strings.TrimSpace(p.Description) == "" {
		return Record{}, invalid("description is required")
	}
	if len(p.Description) > MaxDescriptionSize {
		return Record{}, invalid(fmt.Sprintf("description too large (max %d bytes)", MaxDescriptionSize))
	}
	if err := validateOwner(p.Owner, true); err != nil {
		return Record{}, err
	}
	if err := ValidateAddress(p.OwnerAddress); err != nil {
		return Record{}, err
	}
	if strings.TrimSpace(p.IPType) == "" {
		return Record{}, invalid("ipType is required")
	}
	if p.DateOfCreation == "" || p.DateOfRegistration == "" {
		return Record{}, invalid("dateOfCreation and dateOfRegistration are required")
	}
	if len(p.License) == 0 {
		return Record{}, invalid("at least one license is required")
	}
	for _, l := range p.License {
		if strings.TrimSpace(l) == "" {
			return Record{}, invalid("license entries must not be empty")
		}
	}
	if len(p.LicenseIncentive) == 0 {
		return Record{}, invalid("at least one license incentive is required")
	}
	for _, v := range p.LicenseIncentive {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return Record{}, invalid(fmt.Sprintf("license incentive %v must be a non-negative number", v))
		}
	}

	return Record{index: -1, params: clone(p)}, nil
}

// Reconstruct creates a Record without validation (storage and ledger hydration).
func Reconstruct(index int, p Params) Record {
	return Record{index: index, params: p}
}

// ValidateAddress checks a 0x-prefixed 20-byte hex account address.
func ValidateAddress(addr string) error {
	if addr == "" {
		return fmt.Errorf("address is required: %w", domain.ErrInvalidAddress)
	}
	if !strings.HasPrefix(addr, "0x") && !strings.HasPrefix(addr, "0X") || !common.IsHexAddress(addr) {
		return fmt.Errorf("%q is not a valid account address: %w", addr, domain.ErrInvalidAddress)
	}
	return nil
}

// ValidateNewOwner checks the owner details of an ownership transfer.
// The physical address is optional there.
func ValidateNewOwner(o Owner) error {
	return validateOwner(o, false)
}

// SameAddress compares two account addresses ignoring hex case.
func SameAddress(a, b string) bool {
	return a != "" && strings.EqualFold(a, b)
}

// Index returns the ledger position, or -1 before assignment.
func (r *Record) Index() int { return r.index }

// Name returns the IP title.
func (r *Record) Name() string { return r.params.Name }

// Description returns the text compared by the duplicate gate.
func (r *Record) Description() string { return r.params.Description }

// Owner returns the owner details.
func (r *Record) Owner() Owner { return r.params.Owner }

// OwnerAddress returns the owner's account address.
func (r *Record) OwnerAddress() string { return r.params.OwnerAddress }

// IPType returns the IP category (patent, trademark, ...).
func (r *Record) IPType() string { return r.params.IPType }

// DateOfCreation returns the creation date as supplied.
func (r *Record) DateOfCreation() string { return r.params.DateOfCreation }

// DateOfRegistration returns the registration date as supplied.
func (r *Record) DateOfRegistration() string { return r.params.DateOfRegistration }

// License returns the license names.
func (r *Record) License() []string { return r.params.License }

// LicenseIncentive returns the license prices.
func (r *Record) LicenseIncentive() []float64 { return r.params.LicenseIncentive }

// Tags returns the free-form tags.
func (r *Record) Tags() []string { return r.params.Tags }

// OptionalFields returns type-specific metadata.
func (r *Record) OptionalFields() OptionalFields { return r.params.OptionalFields }

// Params returns a copy of all user-supplied fields.
func (r *Record) Params() Params { return clone(r.params) }

// WithIndex returns a copy positioned at index.
func (r *Record) WithIndex(index int) Record {
	return Record{index: index, params: r.params}
}

// WithOwner returns a copy transferred to a new owner.
func (r *Record) WithOwner(o Owner, address string) Record {
	p := r.params
	p.Owner = o
	p.OwnerAddress = address
	return Record{index: r.index, params: p}
}

func validateOwner(o Owner, requireAddress bool) error {
	if strings.TrimSpace(o.Name) == "" {
		return invalid("owner name is required")
	}
	if strings.TrimSpace(o.Email) == "" {
		return invalid("owner email is required")
	}
	if !strings.Contains(o.Email, "@") {
		return invalid(fmt.Sprintf("owner email %q is malformed", o.Email))
	}
	if requireAddress && strings.TrimSpace(o.PhysicalAddress) == "" {
		return invalid("owner physicalAddress is required")
	}
	return nil
}

func invalid(msg string) error {
	return fmt.Errorf("%s: %w", msg, domain.ErrInvalidInput)
}

func clone(p Params) Params {
	p.License = append([]string(nil), p.License...)
	p.LicenseIncentive = append([]float64(nil), p.LicenseIncentive...)
	p.Tags = append([]string(nil), p.Tags...)
	p.OptionalFields.Inventors = append([]string(nil), p.OptionalFields.Inventors...)
	return p
}
