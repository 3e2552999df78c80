package model

import "fmt"

type Mode string

const (
	ModeRestricted Mode = "restricted" // IP allow-list + brokered backend sessions
	ModeOpen       Mode = "open"       // serves the document to anyone
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeRestricted, ModeOpen:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown mode %q", s)
	}
}

// ServerConfig describes one listener. BackendToken and OrgID are only used by
// restricted listeners and must never be sent to a client.
type ServerConfig struct {
	Port         int    `yaml:"port" validate:"gte=0,lte=65535"`
	Mode         Mode   `yaml:"mode" validate:"required,oneof=restricted open"`
	Name         string `yaml:"name" validate:"required"`
	BackendToken string `yaml:"backend_token"`
	OrgID        string `yaml:"org_id"`
}

// ServerInfo is the client-visible description of a running listener.
type ServerInfo struct {
	Port int    `json:"port"`
	Mode Mode   `json:"mode"`
	Name string `json:"name"`
	URL  string `json:"url"`
}
