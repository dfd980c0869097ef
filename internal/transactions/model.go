package transactions

import (
	"fmt"
	"time"
)

// Currency of every voucher amount.
const Currency = "EUR"

// Transaction is a meal paid with the voucher card. Amounts are in cents.
type Transaction struct {
	ID         string
	CardID     string
	Restaurant string
	Amount     int64
	// When is the display label shown in the history ("2:30 PM", "Yesterday").
	When      string
	Verified  bool
	CreatedAt time.Time
}

// Samples are the meals shown on a freshly issued card.
var Samples = []Transaction{
	{Restaurant: "Subway Downtown", Amount: 1250, When: "2:30 PM", Verified: true},
	{Restaurant: "Starbucks Coffee", Amount: 875, When: "10:15 AM", Verified: true},
	{Restaurant: "Pizza Palace", Amount: 1825, When: "Yesterday", Verified: true},
	{Restaurant: "Green Salad Co.", Amount: 1400, When: "2 days ago", Verified: true},
	{Restaurant: "Burger King", Amount: 1000, When: "3 days ago", Verified: true},
}

// Total sums the amounts of txs.
func Total(txs []Transaction) int64 {
	var sum int64
	for _, tx := range txs {
		sum += tx.Amount
	}
	return sum
}

// FormatAmount renders cents as "€12.50".
func FormatAmount(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s€%d.%02d", sign, cents/100, cents%100)
}
