package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"lan-gateway/gateway/internal/logging"
)

const (
	AppDirName        = "lan-gateway"
	DefaultAssetsDir  = "dist"
	DefaultServerFile = "servers.yaml"
)

type Env struct {
	DataDir     string
	AssetsDir   string
	ServersFile string
	LogLevel    string

	BackendURL string
	BackendKey string
}

// LoadDotEnv loads .env files if present. Existing variables win.
func LoadDotEnv(paths ...string) {
	if len(paths) == 0 {
		_ = godotenv.Load()
		return
	}
	for _, p := range paths {
		_ = godotenv.Load(p)
	}
}

func LoadEnv() (Env, error) {
	env := Env{
		DataDir:     strings.TrimSpace(os.Getenv("GATEWAY_DATA_DIR")),
		AssetsDir:   strings.TrimSpace(os.Getenv("GATEWAY_ASSETS_DIR")),
		ServersFile: strings.TrimSpace(os.Getenv("GATEWAY_SERVERS_FILE")),
		LogLevel:    strings.TrimSpace(os.Getenv("GATEWAY_LOG_LEVEL")),
		BackendURL:  strings.TrimSpace(os.Getenv("GATEWAY_BACKEND_URL")),
		BackendKey:  strings.TrimSpace(os.Getenv("GATEWAY_BACKEND_KEY")),
	}

	if env.DataDir == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return Env{}, fmt.Errorf("GATEWAY_DATA_DIR: %w", err)
		}
		env.DataDir = filepath.Join(dir, AppDirName)
	}
	if env.AssetsDir == "" {
		env.AssetsDir = DefaultAssetsDir
	}
	if env.ServersFile == "" {
		env.ServersFile = filepath.Join(env.DataDir, DefaultServerFile)
	}
	if env.LogLevel == "" {
		env.LogLevel = logging.DefaultLevel
	}

	var errs []string
	if _, err := log.ParseLevel(env.LogLevel); err != nil {
		errs = append(errs, "GATEWAY_LOG_LEVEL must be one of debug, info, warn, error, fatal")
	}
	if env.BackendURL != "" {
		u, err := url.Parse(env.BackendURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, "GATEWAY_BACKEND_URL must be an http(s) URL")
		}
	}
	if (env.BackendURL == "") != (env.BackendKey == "") {
		errs = append(errs, "GATEWAY_BACKEND_URL and GATEWAY_BACKEND_KEY must be set together")
	}
	if len(errs) > 0 {
		return Env{}, errors.New(strings.Join(errs, "; "))
	}

	return env, nil
}

// BackendConfigured reports whether restricted listeners can reach the backend.
func (e Env) BackendConfigured() bool {
	return e.BackendURL != "" && e.BackendKey != ""
}
