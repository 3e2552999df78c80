package model

import (
	"strings"

	"github.com/google/uuid"
)

// AuthorizedIP is one allow-list entry. IPAddress is compared as a trimmed
// string and is never parsed, so "192.168.1.1" and "192.168.001.001" differ.
type AuthorizedIP struct {
	ID          string `json:"id"`
	IPAddress   string `json:"ip_address"`
	Description string `json:"description,omitempty"`
	Active      *bool  `json:"active,omitempty"`
}

func NewAuthorizedIP(ipAddress, description string) AuthorizedIP {
	active := true
	return AuthorizedIP{
		ID:          uuid.NewString(),
		IPAddress:   strings.TrimSpace(ipAddress),
		Description: description,
		Active:      &active,
	}
}

// IsActive reports whether the entry takes part in authorization.
// A missing flag counts as active.
func (a AuthorizedIP) IsActive() bool {
	return a.Active == nil || *a.Active
}

func (a *AuthorizedIP) SetActive(active bool) {
	a.Active = &active
}

// NormalizeIP returns the key used to compare client addresses against the
// allow-list.
func NormalizeIP(ip string) string {
	return strings.ToLower(strings.TrimSpace(ip))
}
