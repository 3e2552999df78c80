package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"lan-gateway/gateway/internal/backend"
	"lan-gateway/gateway/internal/model"
)

var validate = validator.New()

// --- Request/Response types ---

type ProductsOutput struct {
	CacheControl string `header:"Cache-Control"`
	Body         []backend.Product
}

// MermaRequest holds the validated fields of POST /api/merma. The body is
// taken raw so the session check runs before any field is looked at.
type MermaRequest struct {
	ProductID string   `validate:"required"`
	Quantity  *float64 `validate:"required,gt=0"`
	Motivo    string   `validate:"required"`
	Fecha     string   `validate:"omitempty,datetime=2006-01-02"`
}

// MermaInput accepts any JSON value; fields are checked by decodeMerma.
type MermaInput struct {
	Body *json.RawMessage
}

type MermaOutput struct {
	Body struct {
		Success bool `json:"success"`
	}
}

// --- Register routes ---

func apiConfig(name string) huma.Config {
	cfg := huma.DefaultConfig(name+" LAN API", "1.0.0")
	// The catch-all document route owns every other path.
	cfg.OpenAPIPath = ""
	cfg.DocsPath = ""
	cfg.SchemasPath = ""
	cfg.CreateHooks = nil
	return cfg
}

func (l *listener) registerAPI(r chi.Router) {
	api := humachi.New(r, apiConfig(l.cfg.Name))
	api.UseMiddleware(l.apiGate(api))

	huma.Register(api, huma.Operation{
		OperationID: "list-products",
		Method:      http.MethodGet,
		Path:        "/api/products",
		Summary:     "List products through the listener credentials",
	}, l.listProducts)
	huma.Register(api, huma.Operation{
		OperationID: "register-merma",
		Method:      http.MethodPost,
		Path:        "/api/merma",
		Summary:     "Register a waste record for a brokered session",
	}, l.registerMerma)
}

// apiGate runs before any input is parsed: 403 for callers outside the
// allow-list, then 503 when the listener cannot reach the backend. Allowed
// calls are recorded with the status the handler wrote.
func (l *listener) apiGate(api huma.API) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		ip := ClientIPFromContext(ctx.Context())
		if !l.isAuthorized(ip) {
			l.record(ctx.Context(), ip, ctx.Method(), ctx.URL().Path, model.DecisionDenied, http.StatusForbidden)
			_ = huma.WriteErr(api, ctx, http.StatusForbidden, ErrUnauthorizedIP.Error())
			return
		}
		if !l.backendConfigured() {
			l.record(ctx.Context(), ip, ctx.Method(), ctx.URL().Path, model.DecisionError, http.StatusServiceUnavailable)
			_ = huma.WriteErr(api, ctx, http.StatusServiceUnavailable, ErrBackendNotConfigured.Error())
			return
		}
		next(ctx)
		l.record(ctx.Context(), ip, ctx.Method(), ctx.URL().Path, model.DecisionAllowed, ctx.Status())
	}
}

// --- Handlers ---

func (l *listener) listProducts(ctx context.Context, input *struct{}) (*ProductsOutput, error) {
	products, err := l.backend.ListProducts(ctx, l.credentials())
	if err != nil {
		l.logger.Error("list products failed", "error", err)
		return nil, toHumaError(err)
	}
	return &ProductsOutput{CacheControl: "no-store", Body: products}, nil
}

func (l *listener) registerMerma(ctx context.Context, input *MermaInput) (*MermaOutput, error) {
	var fields map[string]json.RawMessage
	if input.Body != nil {
		_ = json.Unmarshal(*input.Body, &fields)
	}
	sess, ok := l.sessions.lookup(strings.TrimSpace(stringField(fields, "session_id")))
	if !ok {
		return nil, toHumaError(ErrSessionNotFound)
	}
	req, err := decodeMerma(fields)
	if err != nil {
		return nil, toHumaError(err)
	}

	fecha := req.Fecha
	if fecha == "" {
		fecha = time.Now().Format(time.DateOnly)
	}
	err = l.backend.RegisterMerma(ctx, sess.Credentials, backend.Merma{
		ProductID: req.ProductID,
		Quantity:  *req.Quantity,
		Motivo:    req.Motivo,
		Fecha:     fecha,
	})
	if err != nil {
		l.logger.Error("register merma failed", "session", sess.ID, "error", err)
		return nil, toHumaError(err)
	}
	l.logger.Info("merma registered", "product_id", req.ProductID, "quantity", *req.Quantity)

	resp := &MermaOutput{}
	resp.Body.Success = true
	return resp, nil
}

// --- Body decoding ---

// stringField returns fields[name] when it is a JSON string, else "".
func stringField(fields map[string]json.RawMessage, name string) string {
	var v string
	if raw, ok := fields[name]; ok {
		_ = json.Unmarshal(raw, &v)
	}
	return v
}

// decodeMerma type-checks each field by hand. Wrongly typed fields are
// reported together with missing ones.
func decodeMerma(fields map[string]json.RawMessage) (MermaRequest, error) {
	var (
		req     MermaRequest
		invalid []string
	)
	decode := func(name string, dst any) {
		raw, ok := fields[name]
		if !ok || string(raw) == "null" {
			return
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			invalid = append(invalid, name)
		}
	}
	decode("product_id", &req.ProductID)
	decode("quantity", &req.Quantity)
	decode("motivo", &req.Motivo)
	decode("fecha", &req.Fecha)
	req.ProductID = strings.TrimSpace(req.ProductID)
	req.Motivo = strings.TrimSpace(req.Motivo)
	req.Fecha = strings.TrimSpace(req.Fecha)

	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return MermaRequest{}, ValidationError{Msg: err.Error()}
		}
		for _, fe := range verrs {
			name := jsonFieldName(fe.Field())
			if !slices.Contains(invalid, name) {
				invalid = append(invalid, name)
			}
		}
	}
	if len(invalid) > 0 {
		return MermaRequest{}, ValidationError{Msg: "missing or invalid fields: " + strings.Join(invalid, ", ")}
	}
	return req, nil
}

// --- Errors ---

type ValidationError struct {
	Msg string
}

func (e ValidationError) Error() string {
	return e.Msg
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return ValidationError{Msg: err.Error()}
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, jsonFieldName(fe.Field()))
	}
	return ValidationError{Msg: "missing or invalid fields: " + strings.Join(fields, ", ")}
}

func jsonFieldName(field string) string {
	switch field {
	case "ProductID":
		return "product_id"
	case "Quantity":
		return "quantity"
	case "Motivo":
		return "motivo"
	case "Fecha":
		return "fecha"
	default:
		return strings.ToLower(field)
	}
}

func toHumaError(err error) error {
	var verr ValidationError
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return huma.Error401Unauthorized(err.Error())
	case errors.Is(err, ErrUnauthorizedIP):
		return huma.Error403Forbidden(err.Error())
	case errors.Is(err, ErrBackendNotConfigured):
		return huma.Error503ServiceUnavailable(err.Error())
	case errors.As(err, &verr):
		return huma.Error400BadRequest(err.Error())
	}
	return huma.Error500InternalServerError(err.Error())
}
