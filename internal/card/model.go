package card

import "time"

// Status of a voucher card.
type Status string

const (
	StatusActive Status = "active"
	StatusLocked Status = "locked"
)

// Card is the virtual meal voucher issued once a beneficiary is verified.
type Card struct {
	ID          string
	ProfileID   string
	Last4       string
	ExpiryMonth int
	ExpiryYear  int
	Allowance   int64
	Currency    string
	Status      Status
	DeviceID    string
	IssuedAt    time.Time
	LastUsedAt  *time.Time
}

// DeviceBound reports whether the card is tied to a handset.
func (c Card) DeviceBound() bool { return c.DeviceID != "" }

// Locked reports whether payments are blocked.
func (c Card) Locked() bool { return c.Status == StatusLocked }

// Balance summarises a card's allowance. Available counts all spending;
// SpentThisMonth only what was spent since the start of the month of AsOf.
type Balance struct {
	CardID         string
	Allowance      int64
	Spent          int64
	SpentThisMonth int64
	Available      int64
	AsOf           time.Time
}
