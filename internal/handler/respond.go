package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-orders/internal/domain/order"
	"github.com/xenking/kart-orders/internal/domain/payment"
	"github.com/xenking/kart-orders/internal/wire"
)

// maxBodySize bounds request bodies.
const maxBodySize = 64 << 10

var errForbidden = errors.New("operator access required")

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encode(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeAPIError(w http.ResponseWriter, apiErr *wire.Error) {
	writeJSON(w, apiErr.Code, apiErr.Encode)
}

// writeError maps domain errors to status codes. Unexpected errors are logged
// and reported as 500 without details.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	writeAPIError(w, toAPIError(ctx, err))
}

func toAPIError(ctx context.Context, err error) *wire.Error {
	var (
		verr     *order.ValidationError
		declined *payment.DeclinedError
		terr     *order.InvalidTransitionError
	)
	switch {
	case errors.As(err, &verr):
		return &wire.Error{Code: http.StatusBadRequest, Message: verr.Message, Field: verr.Field}
	case errors.As(err, &declined):
		apiErr := &wire.Error{Code: http.StatusPaymentRequired, Message: "payment declined"}
		for _, f := range declined.Fields {
			apiErr.Reasons = append(apiErr.Reasons, wire.ErrorReason{
				Field:   f.Field,
				Reason:  string(f.Reason),
				Message: f.Message,
			})
		}
		return apiErr
	case errors.As(err, &terr):
		return &wire.Error{Code: http.StatusConflict, Message: terr.Error()}
	case errors.Is(err, order.ErrConflict):
		return &wire.Error{Code: http.StatusConflict, Message: order.ErrConflict.Error()}
	case errors.Is(err, order.ErrNotFound):
		return &wire.Error{Code: http.StatusNotFound, Message: order.ErrNotFound.Error()}
	case errors.Is(err, errForbidden):
		return &wire.Error{Code: http.StatusForbidden, Message: errForbidden.Error()}
	default:
		zctx.From(ctx).Error("Request failed", zap.Error(err))
		return &wire.Error{Code: http.StatusInternalServerError, Message: "internal server error"}
	}
}

// readBody reads a bounded request body. Decode failures are reported as
// validation errors on "body".
func readBody[T any](r *http.Request, decode func(d *jx.Decoder) (T, error)) (T, error) {
	var zero T
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		return zero, &order.ValidationError{Field: "body", Message: "cannot read request body"}
	}
	if len(data) > maxBodySize {
		return zero, &order.ValidationError{Field: "body", Message: "request body too large"}
	}
	if len(data) == 0 {
		return zero, &order.ValidationError{Field: "body", Message: "request body is required"}
	}
	v, err := decode(jx.DecodeBytes(data))
	if err != nil {
		return zero, &order.ValidationError{Field: "body", Message: err.Error()}
	}
	return v, nil
}
