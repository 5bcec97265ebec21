package docno

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew_Format(t *testing.T) {
	now := time.Date(2026, 1, 18, 23, 30, 0, 0, time.UTC)

	tests := []struct {
		prefix string
		want   *regexp.Regexp
	}{
		{PrefixSale, regexp.MustCompile(`^SALE20260118[0-9A-F]{10}$`)},
		{PrefixPurchaseInvoice, regexp.MustCompile(`^PI20260118[0-9A-F]{10}$`)},
		{PrefixHeldCart, regexp.MustCompile(`^HLD20260118[0-9A-F]{10}$`)},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			assert.Regexp(t, tt.want, New(tt.prefix, now))
		})
	}
}

func TestNew_UsesUTCDate(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*60*60)
	now := time.Date(2026, 1, 19, 3, 0, 0, 0, loc) // 2026-01-18 20:00 UTC

	assert.Regexp(t, `^SALE20260118`, New(PrefixSale, now))
}

func TestNew_Unique(t *testing.T) {
	now := time.Now()
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		n := New(PrefixSale, now)
		_, dup := seen[n]
		assert.False(t, dup, "duplicate document number %s", n)
		seen[n] = struct{}{}
	}
}
