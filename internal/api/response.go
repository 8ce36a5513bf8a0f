package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/lzjever/lgu-integrity/internal/core"
)

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse is the failure envelope of every endpoint.
type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   ErrorBody `json:"error"`
}

func WriteError(w http.ResponseWriter, err *core.AppError) {
	WriteJSON(w, err.Code.HTTPStatus(), ErrorResponse{
		Error: ErrorBody{Code: string(err.Code), Message: err.Message},
	})
}

func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteSuccess writes fields with "success": true added.
func WriteSuccess(w http.ResponseWriter, status int, fields map[string]interface{}) {
	body := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		body[k] = v
	}
	body["success"] = true
	WriteJSON(w, status, body)
}

// fail writes err as an AppError. Errors that are not AppErrors are logged
// and reported as internal errors with msg.
func (a *API) fail(w http.ResponseWriter, err error, msg string) {
	appErr := core.AsAppError(err, core.ErrInternal, msg)
	if appErr.Code == core.ErrInternal {
		a.log.Error(msg, zap.Error(err))
	}
	WriteError(w, appErr)
}

// decodeBody decodes an optional JSON body into v. An empty body leaves v
// untouched.
func decodeBody(r *http.Request, v interface{}) *core.AppError {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return core.NewAppError(core.ErrBadRequest, "invalid JSON body")
}
