package common

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"50", "50.00"},
		{"2.002", "2.00"},
		{"6.8", "6.80"},
		{"0", "0.00"},
	}
	for _, tt := range tests {
		if got := FormatAmount(decimal.RequireFromString(tt.in)); got != tt.want {
			t.Errorf("FormatAmount(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBoxPrefix(t *testing.T) {
	if BoxPrefix(true) != "└  " || BoxPrefix(false) != "│  " {
		t.Error("unexpected list prefixes")
	}
	if BoxDetailPrefix(true) != "   " {
		t.Error("last detail prefix should be blank")
	}
}
