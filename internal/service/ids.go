package service

import (
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

func newReservationID() string {
	return uuid.NewString()
}

// newPaymentToken returns an opaque token of the form PAY_<32 hex>.
func newPaymentToken() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing is unrecoverable; fall back to a uuid
		return "PAY_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	return "PAY_" + strings.ToUpper(hex.EncodeToString(b))
}
