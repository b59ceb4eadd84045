package common

import (
	"fmt"
	"strings"

	"referral-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

const (
	// Default separator widths
	DefaultWidth = 80
	WideWidth    = 100
)

// PrintSeparator prints a separator line with the specified character and width
func PrintSeparator(char string, width int) {
	fmt.Println(strings.Repeat(char, width))
}

// PrintSeparatorNewline prints a separator with a newline before it
func PrintSeparatorNewline(char string, width int) {
	fmt.Println("\n" + strings.Repeat(char, width))
}

// PrintHeader prints a formatted header with title and separators
func PrintHeader(title string, width int) {
	PrintSeparatorNewline("=", width)
	fmt.Println(title)
	PrintSeparator("=", width)
}

// PrintFooter prints a formatted footer with message and separators
func PrintFooter(message string, width int) {
	PrintSeparatorNewline("=", width)
	fmt.Println(message)
	fmt.Println(strings.Repeat("=", width) + "\n")
}

// PrintBoxSeparator prints a box-drawing separator line (for sub-sections)
func PrintBoxSeparator(width int) {
	fmt.Println("├" + strings.Repeat("─", width))
}

// BoxPrefix returns the appropriate box-drawing prefix for list items
func BoxPrefix(isLast bool) string {
	if isLast {
		return "└  "
	}
	return "│  "
}

// BoxDetailPrefix returns the prefix for detail lines under list items
func BoxDetailPrefix(isLast bool) string {
	if isLast {
		return "   "
	}
	return "│  "
}

// FormatAmount renders a commission amount with two decimal places
func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

// PrintReferralTree prints a referral subtree with box-drawing prefixes
func PrintReferralTree(node *models.ReferralNode) {
	if node == nil {
		return
	}
	fmt.Printf("%s (%s) earned %s\n", node.Name, node.ReferralCode, FormatAmount(node.TotalEarnings))
	printChildren(node.Children, "")
}

func printChildren(children []*models.ReferralNode, indent string) {
	for i, child := range children {
		isLast := i == len(children)-1
		fmt.Printf("%s%s%s (%s) earned %s\n", indent, BoxPrefix(isLast), child.Name, child.ReferralCode,
			FormatAmount(child.TotalEarnings))
		printChildren(child.Children, indent+BoxDetailPrefix(isLast))
	}
}
