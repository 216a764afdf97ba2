package model

import "time"

// Issuer is the company or entity that issued the certificate or declaration
// being qualified. Issuers are unique by tax id.
type Issuer struct {
	CreatedAt    time.Time `json:"created_at"`
	Name         string    `json:"name"`
	TaxID        string    `json:"tax_id"`
	ContactEmail string    `json:"contact_email"`
	ID           int64     `json:"id"`
}

// String renders the issuer the way listings and exports show it.
func (i Issuer) String() string {
	return i.Name + " (" + i.TaxID + ")"
}
