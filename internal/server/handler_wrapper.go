package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"

	jsoniter "github.com/json-iterator/go"

	apierrors "github.com/maruel/bibliodb/internal/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Wrap wraps a handler function to work as an http.Handler.
//
// The function must have signature: func(context.Context, In) (*Out, error)
// where In can be unmarshalled from JSON and Out is serializable to JSON.
// Struct fields tagged `path:"name"` or `query:"name"` are filled from the
// URL; string and int fields are supported.
//
// Example:
//
//	type GetLoanRequest struct {
//	    ID int `path:"id"`
//	}
//
//	func (h *LoanHandler) GetLoan(ctx context.Context, req GetLoanRequest) (*models.Loan, error)
func Wrap[In any, Out any](fn func(context.Context, In) (*Out, error)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		body, err := io.ReadAll(r.Body)
		if err2 := r.Body.Close(); err == nil {
			err = err2
		}
		if err != nil {
			slog.ErrorContext(ctx, "Failed to read request body", "err", err)
			writeError(ctx, w, apierrors.BadRequest("Failed to read request body"))
			return
		}
		var input In
		if len(bytes.TrimSpace(body)) > 0 {
			d := json.NewDecoder(bytes.NewReader(body))
			d.DisallowUnknownFields()
			if err := d.Decode(&input); err != nil {
				slog.WarnContext(ctx, "Failed to decode request body", "err", err)
				writeError(ctx, w, apierrors.BadRequest("Invalid request body").Wrap(err))
				return
			}
		}
		if err := populateParams(&input, "path", r.PathValue); err != nil {
			writeError(ctx, w, err)
			return
		}
		query := r.URL.Query()
		if err := populateParams(&input, "query", query.Get); err != nil {
			writeError(ctx, w, err)
			return
		}

		output, err := fn(ctx, input)
		if err != nil {
			writeError(ctx, w, err)
			return
		}
		writeJSON(ctx, w, http.StatusOK, output)
	})
}

// populateParams sets the fields of input tagged with tag to the value
// returned by get for the tag's name. Empty values are left alone.
func populateParams(input any, tag string, get func(string) string) error {
	elem := reflect.ValueOf(input).Elem()
	if elem.Kind() != reflect.Struct {
		return nil
	}
	typ := elem.Type()
	for i := range typ.NumField() {
		field := typ.Field(i)
		name := field.Tag.Get(tag)
		if name == "" {
			continue
		}
		v := get(name)
		if v == "" {
			continue
		}
		//nolint:exhaustive // Only string and int parameters are used.
		switch field.Type.Kind() {
		case reflect.String:
			elem.Field(i).SetString(v)
		case reflect.Int:
			n, err := strconv.Atoi(v)
			if err != nil {
				return apierrors.InvalidFormat(name, err)
			}
			elem.Field(i).SetInt(int64(n))
		default:
		}
	}
	return nil
}

// writeError writes err as a JSON error response. Errors that do not carry a
// status are reported as 500.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	var ews apierrors.ErrorWithStatus
	if !errors.As(err, &ews) {
		ews = apierrors.InternalWithError("Internal error", err)
	}
	statusCode := ews.StatusCode()
	code := ews.Code()
	details := ews.Details()
	if statusCode >= http.StatusInternalServerError {
		slog.ErrorContext(ctx, "Handler error", "id", RequestID(ctx), "err", err, "statusCode", statusCode, "code", code)
	} else {
		slog.InfoContext(ctx, "Request refused", "id", RequestID(ctx), "err", err, "statusCode", statusCode, "code", code)
	}
	response := map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": ews.Error(),
		},
	}
	if len(details) > 0 {
		response["details"] = details
	}
	writeJSON(ctx, w, statusCode, response)
}

func writeJSON(ctx context.Context, w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(ctx, "Failed to encode response", "err", err)
	}
}
