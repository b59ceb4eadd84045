package watcher

import (
	"fmt"
	"time"

	"referral-ledger-go/internal/models"
)

// ANSI color helpers for console output.
const (
	colorReset = "\033[0m"
	colorGreen = "\033[32m"
	colorCyan  = "\033[36m"
	colorGray  = "\033[90m"
)

// PrintUpdate writes one update to stdout
func PrintUpdate(update models.LiveUpdate) {
	amount := ""
	if update.Amount != nil {
		amount = fmt.Sprintf(" %s+%s%s", colorGreen, update.Amount.StringFixed(2), colorReset)
	}
	fmt.Printf("%s[%s]%s %s%s%s %s%s\n",
		colorGray, update.Timestamp.Local().Format(time.DateTime), colorReset,
		colorCyan, update.Type, colorReset,
		update.Message, amount)
}
