package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ideaforge/engine/api"
	"github.com/ideaforge/engine/types"
)

// Response and ErrorInfo are aliases onto the canonical envelope in
// api/types.go.
type Response = api.Response
type ErrorInfo = api.ErrorInfo

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, Response{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
	})
}

// WriteError translates a types.Error into the HTTP status taxonomy in §7
// and writes it as a Response envelope.
func WriteError(w http.ResponseWriter, err error, logger *zap.Logger) {
	e, ok := err.(*types.Error)
	if !ok {
		e = types.NewError(types.Internal, "%v", err)
	}
	status := e.HTTPStatus
	if status == 0 {
		status = httpStatusForCode(e.Code)
	}

	if logger != nil {
		logger.Error("api error",
			zap.String("code", string(e.Code)),
			zap.String("message", e.Message),
			zap.Int("status", status))
	}

	WriteJSON(w, status, Response{
		Success: false,
		Error: &ErrorInfo{
			Code:      string(e.Code),
			Message:   e.Message,
			Retryable: types.IsRetryable(e),
		},
		Timestamp: time.Now(),
	})
}

func httpStatusForCode(code types.ErrorCode) int {
	switch code {
	case types.ArgumentInvalid, types.InstructionInvalid:
		return http.StatusBadRequest
	case types.AuthFailure:
		return http.StatusUnauthorized
	case types.NotFound:
		return http.StatusNotFound
	case types.PrerequisiteMissing:
		return http.StatusUnprocessableEntity
	case types.AlreadyInProgress, types.ReviewConflict:
		return http.StatusConflict
	case types.RateLimited, types.ProviderBusy:
		return http.StatusTooManyRequests
	case types.Timeout:
		return http.StatusGatewayTimeout
	case types.ProviderUnavailable:
		return http.StatusServiceUnavailable
	case types.ProviderError, types.TransportError, types.ParseError:
		return http.StatusBadGateway
	case types.Cancelled:
		return http.StatusRequestTimeout
	case types.OutOfRange:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// DecodeJSONBody decodes a JSON request body into dst, limiting body size
// to 1 MiB against abuse.
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst any, logger *zap.Logger) error {
	if r.Body == nil {
		err := types.NewError(types.ArgumentInvalid, "request body is empty")
		WriteError(w, err, logger)
		return err
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		apiErr := types.NewError(types.ArgumentInvalid, "invalid JSON body: %v", err)
		WriteError(w, apiErr, logger)
		return apiErr
	}
	return nil
}

func parseID(w http.ResponseWriter, raw string, logger *zap.Logger) (types.ID, bool) {
	id, err := types.ParseID(raw)
	if err != nil {
		WriteError(w, err, logger)
		return types.NilID, false
	}
	return id, true
}
