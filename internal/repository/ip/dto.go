package ip

import (
	"encoding/json"
	"fmt"

	domip "github.com/kailas-cloud/ipregistry/internal/domain/ip"
)

// Doc is the stored JSON shape of a record. Field names follow the public API.
type Doc struct {
	Index              int         `json:"index"`
	Name               string      `json:"name"`
	Description        string      `json:"description"`
	Owner              ownerDoc    `json:"owner"`
	IPType             string      `json:"ipType"`
	DateOfCreation     string      `json:"dateOfCreation"`
	DateOfRegistration string      `json:"dateOfRegistration"`
	License            []string    `json:"license"`
	LicenseIncentive   []float64   `json:"licenseIncentive"`
	Tags               []string    `json:"tags"`
	OptionalFields     optionalDoc `json:"optionalFields"`
	OwnerAddress       string      `json:"ownerAddress"`
}

type ownerDoc struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	PhysicalAddress string `json:"physicalAddress"`
}

type optionalDoc struct {
	WorkType        string   `json:"workType,omitempty"`
	ClassOfGoods    string   `json:"classOfGoods,omitempty"`
	Inventors       []string `json:"inventors,omitempty"`
	DomainName      string   `json:"domainName,omitempty"`
	PublicationDate string   `json:"publicationDate,omitempty"`
}

// Encode serializes a record for JSON.SET.
func Encode(rec *domip.Record) ([]byte, error) {
	p := rec.Params()
	d := Doc{
		Index:       rec.Index(),
		Name:        p.Name,
		Description: p.Description,
		Owner: ownerDoc{
			Name:            p.Owner.Name,
			Email:           p.Owner.Email,
			PhysicalAddress: p.Owner.PhysicalAddress,
		},
		IPType:             p.IPType,
		DateOfCreation:     p.DateOfCreation,
		DateOfRegistration: p.DateOfRegistration,
		License:            nonNil(p.License),
		LicenseIncentive:   p.LicenseIncentive,
		Tags:               nonNil(p.Tags),
		OptionalFields: optionalDoc{
			WorkType:        p.OptionalFields.WorkType,
			ClassOfGoods:    p.OptionalFields.ClassOfGoods,
			Inventors:       p.OptionalFields.Inventors,
			DomainName:      p.OptionalFields.DomainName,
			PublicationDate: p.OptionalFields.PublicationDate,
		},
		OwnerAddress: p.OwnerAddress,
	}
	if d.LicenseIncentive == nil {
		d.LicenseIncentive = []float64{}
	}
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal record %d: %w", rec.Index(), err)
	}
	return data, nil
}

// Decode hydrates a record from a stored document. JSONPath replies wrapped in an
// array ("$" path) are unwrapped.
func Decode(raw []byte) (domip.Record, error) {
	if len(raw) > 0 && raw[0] == '[' {
		var arr []json.RawMessage
		if err := json.Unmarshal(raw, &arr); err != nil {
			return domip.Record{}, fmt.Errorf("unmarshal record array: %w", err)
		}
		if len(arr) == 0 {
			return domip.Record{}, fmt.Errorf("empty record array")
		}
		raw = arr[0]
	}

	var d Doc
	if err := json.Unmarshal(raw, &d); err != nil {
		return domip.Record{}, fmt.Errorf("unmarshal record: %w", err)
	}
	return domip.Reconstruct(d.Index, domip.Params{
		Name:        d.Name,
		Description: d.Description,
		Owner: domip.Owner{
			Name:            d.Owner.Name,
			Email:           d.Owner.Email,
			PhysicalAddress: d.Owner.PhysicalAddress,
		},
		OwnerAddress:       d.OwnerAddress,
		IPType:             d.IPType,
		DateOfCreation:     d.DateOfCreation,
		DateOfRegistration: d.DateOfRegistration,
		License:            d.License,
		LicenseIncentive:   d.LicenseIncentive,
		Tags:               d.Tags,
		OptionalFields: domip.OptionalFields{
			WorkType:        d.OptionalFields.WorkType,
			ClassOfGoods:    d.OptionalFields.ClassOfGoods,
			Inventors:       d.OptionalFields.Inventors,
			DomainName:      d.OptionalFields.DomainName,
			PublicationDate: d.OptionalFields.PublicationDate,
		},
	}), nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
