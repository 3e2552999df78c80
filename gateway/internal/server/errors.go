package server

import "errors"

var (
	ErrAssetsMissing        = errors.New("static asset directory not found")
	ErrPortInUse            = errors.New("port already in use by this process")
	ErrBackendNotConfigured = errors.New("backend connection not configured")
	ErrSessionNotFound      = errors.New("invalid or expired session")
	ErrUnauthorizedIP       = errors.New("ip not authorized")
)
