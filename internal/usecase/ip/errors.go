package ip

import "fmt"

// UnsavedRegistrationError reports a record committed to the ledger whose metadata
// could not be saved. Registering again with RegisterOptions.LedgerIndex set to Index
// completes it; without that the retry matches its own ledger record.
type UnsavedRegistrationError struct {
	Index  int
	TxHash string
	Err    error
}

func (e *UnsavedRegistrationError) Error() string {
	return fmt.Sprintf("save record %d (ledger tx %s): %v", e.Index, e.TxHash, e.Err)
}

func (e *UnsavedRegistrationError) Unwrap() error { return e.Err }
