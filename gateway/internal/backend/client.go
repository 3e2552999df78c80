// Package backend is the boundary to the hosted backend. Everything behind it
// is reached through named remote procedures and treated as opaque.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	pathRPC = "/rest/v1/rpc/"

	procListProducts  = "lan_list_products"
	procRegisterMerma = "lan_register_merma"
)

// RPC is what listeners need from the backend.
type RPC interface {
	ListProducts(ctx context.Context, creds Credentials) ([]Product, error)
	RegisterMerma(ctx context.Context, creds Credentials, m Merma) error
}

// Credentials are the listener secrets used to reach the backend. They stay in
// the process and are never serialized to clients.
type Credentials struct {
	Token string
	OrgID string
}

func (c Credentials) Complete() bool {
	return strings.TrimSpace(c.Token) != "" && strings.TrimSpace(c.OrgID) != ""
}

// Product is one row of the product query, passed through as-is.
type Product map[string]any

// Merma is a waste record registered from the LAN page.
type Merma struct {
	ProductID string  `json:"p_product_id"`
	Quantity  float64 `json:"p_quantity"`
	Motivo    string  `json:"p_motivo"`
	Fecha     string  `json:"p_fecha"`
}

// Error carries the message reported by the backend.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

type Client struct {
	resty *resty.Client
}

func NewClient(baseURL, apiKey string) *Client {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(15*time.Second).
		SetHeader("apikey", apiKey).
		SetAuthToken(apiKey)
	return &Client{resty: client}
}

type credentialParams struct {
	Token string `json:"p_token"`
	OrgID string `json:"p_org_id"`
}

type mermaParams struct {
	credentialParams
	Merma
}

func (c *Client) ListProducts(ctx context.Context, creds Credentials) ([]Product, error) {
	var out []Product
	if err := c.call(ctx, procListProducts, credentialParams{Token: creds.Token, OrgID: creds.OrgID}, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []Product{}
	}
	return out, nil
}

func (c *Client) RegisterMerma(ctx context.Context, creds Credentials, m Merma) error {
	params := mermaParams{
		credentialParams: credentialParams{Token: creds.Token, OrgID: creds.OrgID},
		Merma:            m,
	}
	return c.call(ctx, procRegisterMerma, params, nil)
}

func (c *Client) call(ctx context.Context, procedure string, params any, dst any) error {
	req := c.resty.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(params)
	if dst != nil {
		req.SetResult(dst)
	}
	resp, err := req.Post(pathRPC + procedure)
	if err != nil {
		return fmt.Errorf("rpc %s: %w", procedure, err)
	}
	if resp.IsError() {
		return &Error{Status: resp.StatusCode(), Message: errorMessage(resp.Body(), resp.Status())}
	}
	return nil
}

func errorMessage(body []byte, status string) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	if msg := strings.TrimSpace(string(body)); msg != "" {
		return msg
	}
	return status
}

// IsBackendError reports whether err came back from the backend itself rather
// than from the transport.
func IsBackendError(err error) bool {
	var e *Error
	return errors.As(err, &e)
}
