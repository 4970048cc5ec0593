package ledger

import "github.com/google/uuid"

// NewID returns a fresh identifier for users and transactions.
func NewID() string {
	return uuid.NewString()
}

// CheckID rejects identifiers that could not have been issued by NewID.
func CheckID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrInvalidID
	}
	return nil
}
