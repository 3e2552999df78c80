package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"lan-gateway/gateway/internal/model"
)

// ServersFile is the on-disk listener configuration. Top-level backend_token
// and org_id are applied to restricted entries that leave them empty.
type ServersFile struct {
	BackendToken string               `yaml:"backend_token"`
	OrgID        string               `yaml:"org_id"`
	Servers      []model.ServerConfig `yaml:"servers"`
}

// LoadServers reads the listener list. Per-entry problems are left for the
// manager to report so one bad entry does not block the others.
func LoadServers(path string) ([]model.ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read servers file: %w", err)
	}
	return ParseServers(data)
}

func ParseServers(data []byte) ([]model.ServerConfig, error) {
	var f ServersFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse servers file: %w", err)
	}
	if len(f.Servers) == 0 {
		return nil, errors.New("servers file lists no servers")
	}

	out := make([]model.ServerConfig, 0, len(f.Servers))
	for _, s := range f.Servers {
		s.Name = strings.TrimSpace(s.Name)
		s.Mode = model.Mode(strings.ToLower(strings.TrimSpace(string(s.Mode))))
		if s.Mode == model.ModeRestricted {
			if s.BackendToken == "" {
				s.BackendToken = f.BackendToken
			}
			if s.OrgID == "" {
				s.OrgID = f.OrgID
			}
		}
		out = append(out, s)
	}
	return out, nil
}
