package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	dErrors "bulwark/pkg/domain-errors"
)

// MaxAdminBodyBytes bounds admin request bodies.
const MaxAdminBodyBytes = 64 * 1024

var validate = validator.New(validator.WithRequiredStructEnabled())

// Normalizable is implemented by request types that trim or canonicalize input
// before validation.
type Normalizable interface {
	Normalize()
}

// DecodeAndValidate decodes a bounded JSON body into T, normalizes it when T
// implements Normalizable, then validates `validate:` struct tags.
// On failure it writes the error response and returns nil, false.
//
// Usage:
//
//	req, ok := httputil.DecodeAndValidate[models.BlockRequest](w, r, h.logger)
//	if !ok {
//	    return
//	}
func DecodeAndValidate[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*T, bool) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, MaxAdminBodyBytes)

	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logWarn(ctx, logger, "failed to decode request body", err)
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return nil, false
	}

	if n, ok := any(&req).(Normalizable); ok {
		n.Normalize()
	}

	if err := validate.Struct(&req); err != nil {
		logWarn(ctx, logger, "invalid request", err)
		WriteError(w, dErrors.New(dErrors.CodeValidation, describeValidation(err)))
		return nil, false
	}

	return &req, true
}

// describeValidation flattens validator errors into "field: rule" pairs.
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s: %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(parts, ", ")
}

func logWarn(ctx context.Context, logger *slog.Logger, msg string, err error) {
	if logger == nil {
		return
	}
	logger.WarnContext(ctx, msg, "error", err)
}
