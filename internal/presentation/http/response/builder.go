package response

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Additional-Code/menudesk/pkg/errorbank"
)

// Builder helps construct consistent HTTP responses.
type Builder struct {
	ctx    echo.Context
	status int
	data   any
	err    error
	meta   map[string]any
}

// HeaderRequestID correlates a response with client and server logs.
const HeaderRequestID = "X-Request-ID"

// New instantiates a Builder for the provided request context. The request id
// is echoed from the request header or generated, and always sent back.
func New(ctx echo.Context) *Builder {
	b := &Builder{ctx: ctx, status: http.StatusOK}
	id := ctx.Request().Header.Get(HeaderRequestID)
	if id == "" {
		id = uuid.NewString()
	}
	ctx.Response().Header().Set(HeaderRequestID, id)
	return b.WithMeta("request_id", id)
}

// WithSource records which order store served the data.
func (b *Builder) WithSource(source string) *Builder {
	if source == "" {
		return b
	}
	return b.WithMeta("source", source)
}

// WithStatus overrides the response status code.
func (b *Builder) WithStatus(status int) *Builder {
	if status > 0 {
		b.status = status
	}
	return b
}

// WithData attaches a success payload.
func (b *Builder) WithData(data any) *Builder {
	b.data = data
	return b
}

// WithError records an error to be rendered.
func (b *Builder) WithError(err error) *Builder {
	b.err = err
	return b
}

// WithMeta appends auxiliary metadata to the response.
func (b *Builder) WithMeta(key string, value any) *Builder {
	if key == "" {
		return b
	}
	if b.meta == nil {
		b.meta = make(map[string]any)
	}
	b.meta[key] = value
	return b
}

// NoStore marks the response as uncacheable; order lists change every poll.
func (b *Builder) NoStore() *Builder {
	b.ctx.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return b
}

// Envelope is the body of every JSON response.
type Envelope struct {
	Success bool           `json:"success"`
	Data    any            `json:"data,omitempty"`
	Error   *ErrorBody     `json:"error,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Kind    errorbank.Kind `json:"kind"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Build writes the response.
func (b *Builder) Build() error {
	if b.err == nil {
		return b.ctx.JSON(b.status, Envelope{Success: true, Data: b.data, Meta: b.meta})
	}

	appErr := toAppError(b.err)
	status := b.status
	if status < http.StatusBadRequest {
		status = appErr.StatusCode()
	}
	body := &ErrorBody{Kind: appErr.Kind(), Message: appErr.Message()}
	if appErr.Kind().Public() {
		body.Details = appErr.Details()
	}
	return b.ctx.JSON(status, Envelope{Error: body, Meta: b.meta})
}

// toAppError also understands echo's own errors, such as a body that fails
// to bind.
func toAppError(err error) *errorbank.AppError {
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) && httpErr.Code < http.StatusInternalServerError {
		msg := http.StatusText(httpErr.Code)
		if m, ok := httpErr.Message.(string); ok && m != "" {
			msg = m
		}
		switch httpErr.Code {
		case http.StatusNotFound:
			return errorbank.NotFound(msg, errorbank.WithCause(err))
		case http.StatusConflict:
			return errorbank.Conflict(msg, errorbank.WithCause(err))
		case http.StatusUnprocessableEntity:
			return errorbank.Unprocessable(msg, errorbank.WithCause(err))
		default:
			return errorbank.BadRequest(msg, errorbank.WithCause(err))
		}
	}
	return errorbank.From(err)
}
