package ethereum

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Methods names the contract functions the ledger calls.
type Methods struct {
	Count    string // () returns (uint256)
	Details  string // (uint256) returns the record
	Register string // (string name, string description)
	// RegisteredEvent is an optional event carrying the new record's index as "id" or "index".
	RegisteredEvent string
}

// DefaultMethods matches the IPRegistry contract.
var DefaultMethods = Methods{
	Count:    "getTotalIPs",
	Details:  "getIPDetails",
	Register: "registerIP",
}

// LoadABI reads a contract ABI from a file holding either a bare ABI array or a
// Hardhat/Truffle artifact with an "abi" field.
func LoadABI(path string) (abi.ABI, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("read abi %s: %w", path, err)
	}
	return ParseABI(raw)
}

// ParseABI parses a bare ABI array or an artifact object.
func ParseABI(raw []byte) (abi.ABI, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '{' {
		var artifact struct {
			ABI json.RawMessage `json:"abi"`
		}
		if err := json.Unmarshal(raw, &artifact); err != nil {
			return abi.ABI{}, fmt.Errorf("parse artifact: %w", err)
		}
		if len(artifact.ABI) == 0 {
			return abi.ABI{}, fmt.Errorf("artifact has no abi field")
		}
		raw = artifact.ABI
	}

	parsed, err := abi.JSON(bytes.NewReader(raw))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse abi: %w", err)
	}
	return parsed, nil
}

func (m Methods) validate(a abi.ABI, writable bool) error {
	for _, name := range []string{m.Count, m.Details} {
		if _, ok := a.Methods[name]; !ok {
			return fmt.Errorf("abi has no method %q", name)
		}
	}
	if writable {
		if _, ok := a.Methods[m.Register]; !ok {
			return fmt.Errorf("abi has no method %q", m.Register)
		}
	}
	if m.RegisteredEvent != "" {
		if _, ok := a.Events[m.RegisteredEvent]; !ok {
			return fmt.Errorf("abi has no event %q", m.RegisteredEvent)
		}
	}
	return nil
}
