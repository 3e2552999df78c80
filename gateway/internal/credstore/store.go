// Package credstore keeps the allow-list of client addresses encrypted on
// disk. The key is derived from the installation directory, so a copied file
// cannot be read from another installation.
package credstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"lan-gateway/gateway/internal/logging"
	"lan-gateway/gateway/internal/model"
)

const FileName = "authorized_ips.enc"

type Store struct {
	dir    string
	logger *log.Logger
}

// New returns a store rooted at installationPath, which is both the directory
// holding the file and the key derivation input.
func New(installationPath string, logger *log.Logger) *Store {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Store{
		dir:    installationPath,
		logger: logger.With("component", "credstore"),
	}
}

func (s *Store) Path() string {
	return filepath.Join(s.dir, FileName)
}

// Load returns the persisted list. Any failure, including a missing file or a
// tag mismatch, yields an empty list so that nobody is authorized.
func (s *Store) Load() []model.AuthorizedIP {
	entries, err := s.load()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug("no allow-list file", "path", s.Path())
		} else {
			s.logger.Error("failed to load allow-list", "path", s.Path(), "error", err)
		}
		return []model.AuthorizedIP{}
	}
	return entries
}

func (s *Store) load() ([]model.AuthorizedIP, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		return nil, err
	}
	key, err := deriveKey(s.dir)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	plain, err := open(key, data)
	if err != nil {
		return nil, err
	}
	var entries []model.AuthorizedIP
	if err := json.Unmarshal(plain, &entries); err != nil {
		return nil, fmt.Errorf("decode allow-list: %w", err)
	}
	if entries == nil {
		entries = []model.AuthorizedIP{}
	}
	return entries, nil
}

// Save replaces the whole persisted list. A nil list is stored as empty.
func (s *Store) Save(entries []model.AuthorizedIP) error {
	if entries == nil {
		entries = []model.AuthorizedIP{}
	}
	plain, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode allow-list: %w", err)
	}
	key, err := deriveKey(s.dir)
	if err != nil {
		return fmt.Errorf("derive key: %w", err)
	}
	data, err := seal(key, plain)
	if err != nil {
		return err
	}
	if err := writeAtomic(s.Path(), data); err != nil {
		s.logger.Error("failed to save allow-list", "path", s.Path(), "error", err)
		return err
	}
	s.logger.Info("allow-list saved", "entries", len(entries))
	return nil
}

// ActiveIPs returns the trimmed addresses of every entry not explicitly
// disabled.
func (s *Store) ActiveIPs() []string {
	return ActiveIPs(s.Load())
}

func ActiveIPs(entries []model.AuthorizedIP) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsActive() {
			continue
		}
		ip := strings.TrimSpace(e.IPAddress)
		if ip == "" {
			continue
		}
		out = append(out, ip)
	}
	return out
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("ensure store dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "authorized_ips.*.tmp")
	if err != nil {
		return fmt.Errorf("create temp store: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp store: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp store: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace store: %w", err)
	}
	return nil
}
