// Package docno builds human-readable document numbers such as
// SALE20260118A1B2C3D4E5.
package docno

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	PrefixSale            = "SALE"
	PrefixPurchaseInvoice = "PI"
	PrefixHeldCart        = "HLD"
	PrefixTransfer        = "TRF"
)

// suffixBytes random bytes give a 10 character hex suffix (40 bits).
const suffixBytes = 5

// Generator returns a new document number for prefix at time now.
type Generator func(prefix string, now time.Time) string

// New is the default Generator: prefix + UTC date + random upper-case hex.
// Uniqueness is finally enforced by the storage unique index.
func New(prefix string, now time.Time) string {
	id := uuid.New()
	return prefix + now.UTC().Format("20060102") + strings.ToUpper(hex.EncodeToString(id[:suffixBytes]))
}
