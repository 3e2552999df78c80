package credstore

import (
	"fmt"
	"strings"

	"lan-gateway/gateway/internal/model"
)

// Edits below always rewrite the whole list. An unreadable file loads as
// empty, so editing it replaces the old contents.

func (s *Store) Add(ipAddress, description string) (model.AuthorizedIP, error) {
	ipAddress = strings.TrimSpace(ipAddress)
	if ipAddress == "" {
		return model.AuthorizedIP{}, fmt.Errorf("ip address is required")
	}
	entries := s.Load()
	entry := model.NewAuthorizedIP(ipAddress, description)
	entries = append(entries, entry)
	if err := s.Save(entries); err != nil {
		return model.AuthorizedIP{}, err
	}
	return entry, nil
}

// Remove deletes every entry whose id or address matches ref.
func (s *Store) Remove(ref string) (int, error) {
	entries := s.Load()
	kept := entries[:0]
	removed := 0
	for _, e := range entries {
		if matches(e, ref) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, s.Save(kept)
}

// SetActive toggles every entry whose id or address matches ref.
func (s *Store) SetActive(ref string, active bool) (int, error) {
	entries := s.Load()
	changed := 0
	for i := range entries {
		if matches(entries[i], ref) {
			entries[i].SetActive(active)
			changed++
		}
	}
	if changed == 0 {
		return 0, nil
	}
	return changed, s.Save(entries)
}

func matches(e model.AuthorizedIP, ref string) bool {
	ref = strings.TrimSpace(ref)
	return e.ID == ref || strings.TrimSpace(e.IPAddress) == ref
}
