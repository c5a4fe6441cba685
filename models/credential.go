package models

import "time"

// Credential holds a registered user's mailbox credential. Secret is stored
// encrypted; it only contains the plaintext app password in memory after a
// store lookup.
type Credential struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Secret    string    `json:"-"` // Never expose in JSON
	CreatedAt time.Time `json:"created_at"`
}
