// Package model contains the domain types shared by the relay packages.
package model

import "time"

// Account is one registered credential. An address may own any number of
// accounts; neither address nor username is unique.
type Account struct {
	Address      string    `yaml:"ip_addr" json:"ip_addr"`
	PasswordHash string    `yaml:"password" json:"password"` // bcrypt hash
	Username     string    `yaml:"username" json:"username"`
	CreatedAt    time.Time `yaml:"created_at,omitempty" json:"created_at,omitempty"`
}
