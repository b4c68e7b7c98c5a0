package ethereum

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"

	domip "github.com/kailas-cloud/ipregistry/internal/domain/ip"
)

// incentiveDecimals is the fixed-point scale of on-chain license incentives.
const incentiveDecimals = 18

// outputFields maps the unpacked outputs of a call to their solidity names.
// A single tuple output is flattened to its components.
func outputFields(args abi.Arguments, values []any) (map[string]json.RawMessage, error) {
	if len(args) == 1 && args[0].Type.T == abi.TupleTy {
		raw, err := json.Marshal(values[0])
		if err != nil {
			return nil, fmt.Errorf("marshal tuple: %w", err)
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("unmarshal tuple: %w", err)
		}
		return fields, nil
	}

	fields := make(map[string]json.RawMessage, len(args))
	for i, arg := range args {
		name := arg.Name
		if name == "" {
			name = "out" + strconv.Itoa(i)
		}
		raw, err := json.Marshal(values[i])
		if err != nil {
			return nil, fmt.Errorf("marshal output %s: %w", name, err)
		}
		fields[name] = raw
	}
	return fields, nil
}

// chainOwner accepts both an owner struct and a bare owner address.
type chainOwner struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	PhysicalAddress string `json:"physicalAddress"`
}

type chainOptional struct {
	WorkType        string   `json:"workType"`
	ClassOfGoods    string   `json:"classOfGoods"`
	Inventors       []string `json:"inventors"`
	DomainName      string   `json:"domainName"`
	PublicationDate string   `json:"publicationDate"`
}

// decodeRecord builds a record from getIPDetails outputs. Contracts differ in naming
// (index or id, dateOfCreation or creationDate), so lookups try each alias.
func decodeRecord(fallbackIndex int, f map[string]json.RawMessage) (domip.Record, error) {
	index := fallbackIndex
	if raw, ok := pick(f, "index", "id"); ok {
		n, err := decodeInt(raw)
		if err != nil {
			return domip.Record{}, fmt.Errorf("decode index: %w", err)
		}
		index = n
	}

	var p domip.Params
	if err := decodeString(f, &p.Name, "name"); err != nil {
		return domip.Record{}, err
	}
	if err := decodeString(f, &p.Description, "description"); err != nil {
		return domip.Record{}, err
	}
	if _, ok := f["description"]; !ok {
		return domip.Record{}, fmt.Errorf("record %d has no description output", fallbackIndex)
	}
	if err := decodeString(f, &p.IPType, "ipType"); err != nil {
		return domip.Record{}, err
	}
	if err := decodeString(f, &p.OwnerAddress, "ownerAddress"); err != nil {
		return domip.Record{}, err
	}

	if raw, ok := f["owner"]; ok {
		if err := decodeOwner(raw, &p); err != nil {
			return domip.Record{}, err
		}
	}

	var err error
	if p.DateOfCreation, err = decodeDate(f, "dateOfCreation", "creationDate"); err != nil {
		return domip.Record{}, err
	}
	if p.DateOfRegistration, err = decodeDate(f, "dateOfRegistration", "registrationDate"); err != nil {
		return domip.Record{}, err
	}

	if raw, ok := f["license"]; ok {
		if err := json.Unmarshal(raw, &p.License); err != nil {
			return domip.Record{}, fmt.Errorf("decode license: %w", err)
		}
	}
	if raw, ok := f["tags"]; ok {
		if err := json.Unmarshal(raw, &p.Tags); err != nil {
			return domip.Record{}, fmt.Errorf("decode tags: %w", err)
		}
	}
	if raw, ok := f["licenseIncentive"]; ok {
		if p.LicenseIncentive, err = decodeIncentive(raw); err != nil {
			return domip.Record{}, err
		}
	}
	if raw, ok := f["optionalFields"]; ok {
		var o chainOptional
		if err := json.Unmarshal(raw, &o); err != nil {
			return domip.Record{}, fmt.Errorf("decode optionalFields: %w", err)
		}
		p.OptionalFields = domip.OptionalFields(o)
	}

	return domip.Reconstruct(index, p), nil
}

func decodeOwner(raw json.RawMessage, p *domip.Params) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var addr string
		if err := json.Unmarshal(raw, &addr); err != nil {
			return fmt.Errorf("decode owner: %w", err)
		}
		if p.OwnerAddress == "" {
			p.OwnerAddress = addr
		}
		return nil
	}
	var o chainOwner
	if err := json.Unmarshal(raw, &o); err != nil {
		return fmt.Errorf("decode owner: %w", err)
	}
	p.Owner = domip.Owner(o)
	return nil
}

func pick(f map[string]json.RawMessage, names ...string) (json.RawMessage, bool) {
	for _, n := range names {
		if raw, ok := f[n]; ok {
			return raw, true
		}
	}
	return nil, false
}

func decodeString(f map[string]json.RawMessage, dst *string, name string) error {
	raw, ok := f[name]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

func decodeInt(raw json.RawMessage) (int, error) {
	n, ok := new(big.Int).SetString(string(bytes.TrimSpace(raw)), 10)
	if !ok || !n.IsInt64() {
		return 0, fmt.Errorf("not an integer: %s", raw)
	}
	return int(n.Int64()), nil
}

// decodeDate accepts a date string or unix seconds.
func decodeDate(f map[string]json.RawMessage, names ...string) (string, error) {
	raw, ok := pick(f, names...)
	if !ok {
		return "", nil
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("decode %s: %w", names[0], err)
		}
		return s, nil
	}
	secs, err := decodeInt(raw)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", names[0], err)
	}
	if secs == 0 {
		return "", nil
	}
	return time.Unix(int64(secs), 0).UTC().Format(time.RFC3339), nil
}

// decodeIncentive accepts a single fixed-point amount or a list of them.
func decodeIncentive(raw json.RawMessage) ([]float64, error) {
	raw = bytes.TrimSpace(raw)
	var amounts []json.RawMessage
	if len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &amounts); err != nil {
			return nil, fmt.Errorf("decode licenseIncentive: %w", err)
		}
	} else {
		amounts = []json.RawMessage{raw}
	}

	out := make([]float64, 0, len(amounts))
	for _, a := range amounts {
		v, err := formatUnits(a, incentiveDecimals)
		if err != nil {
			return nil, fmt.Errorf("decode licenseIncentive: %w", err)
		}
		out = append(out, v)
	}
	return out, nil
}

func formatUnits(raw json.RawMessage, decimals int) (float64, error) {
	n, ok := new(big.Int).SetString(string(bytes.TrimSpace(raw)), 10)
	if !ok {
		return 0, fmt.Errorf("not an integer amount: %s", raw)
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	v, _ := new(big.Float).Quo(new(big.Float).SetInt(n), new(big.Float).SetInt(scale)).Float64()
	return v, nil
}
