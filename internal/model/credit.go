package model

import "time"

// PackageStatus is the state of a client package.
type PackageStatus string

const (
	PackageActive    PackageStatus = "active"
	PackageExpired   PackageStatus = "expired"
	PackageExhausted PackageStatus = "exhausted"
)

// ClientPackage is a bundle of session credits owned by one client.
// SessionsUsed only changes through credit usage rows; the remaining
// balance is derived and never stored independently.
//
// Fields:
//  ID            – client_packages.id
//  ClientID      – owner of the credits.
//  PackageID     – catalogue package that was purchased or granted.
//  SessionsTotal – credits granted.
//  SessionsUsed  – credits consumed so far.
//  ExpiresAt     – optional expiry; checked lazily at consumption time.
//  Status        – active, expired or exhausted.
type ClientPackage struct {
	ID            string        `json:"id"`
	ClientID      string        `json:"client_id"`
	PackageID     string        `json:"package_id"`
	SessionsTotal int           `json:"sessions_total"`
	SessionsUsed  int           `json:"sessions_used"`
	ExpiresAt     *time.Time    `json:"expires_at"`
	Status        PackageStatus `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
}

// SessionsRemaining is SessionsTotal - SessionsUsed, floored at zero.
func (p ClientPackage) SessionsRemaining() int {
	if r := p.SessionsTotal - p.SessionsUsed; r > 0 {
		return r
	}
	return 0
}

// ExpiredAt reports whether the package has an expiry at or before now.
func (p ClientPackage) ExpiredAt(now time.Time) bool {
	return p.ExpiresAt != nil && !p.ExpiresAt.After(now)
}

// CreditUsage is the immutable audit row of one deduction.  There is at
// most one row per booking.
type CreditUsage struct {
	ID              string    `json:"id"`
	ClientPackageID string    `json:"client_package_id"`
	BookingID       string    `json:"booking_id"`
	CreditsUsed     int       `json:"credits_used"`
	CreatedAt       time.Time `json:"created_at"`
}
