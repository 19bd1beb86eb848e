package ledger

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidAddress(t *testing.T) {
	cases := []struct {
		name string
		addr string
		want bool
	}{
		{"well formed", "Df6yfrKC8kZE3KNkrHERKzAetSxbrWeniQfyJY4Jpump", true},
		{"all same char", strings.Repeat("A", 44), true},
		{"empty", "", false},
		{"too short", strings.Repeat("A", 43), false},
		{"too long", strings.Repeat("A", 45), false},
		{"contains zero", strings.Repeat("A", 43) + "0", false},
		{"contains capital O", strings.Repeat("A", 43) + "O", false},
		{"contains capital I", strings.Repeat("A", 43) + "I", false},
		{"contains lowercase l", strings.Repeat("A", 43) + "l", false},
		{"whitespace padded", " " + strings.Repeat("A", 42) + " ", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ValidAddress(tc.addr))
		})
	}
}

func TestTransferLamports(t *testing.T) {
	tr := Transfer{PreLamports: 500_000_000, PostLamports: 399_995_000}
	assert.Equal(t, int64(100_005_000), tr.Lamports())
}
