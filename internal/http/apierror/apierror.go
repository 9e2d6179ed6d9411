// apierror стандартизирует ответы об ошибках служебного HTTP-слоя.
// На вход принимает ошибку сервиса, на выход даёт HTTP-статус
// и краткое безопасное сообщение без утечки деталей.
package apierror

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pribylovaa/news-etl/internal/service"
)

// APIError — единый формат ошибки.
// Code — короткий стабильный код, Message — безопасное описание,
// RequestID — из X-Request-Id, если есть.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse — корневой объект в ответе.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// ToHTTP конвертирует ошибку сервиса в HTTP-статус и тело ответа.
//
// Поведение:
//   - service.ErrInvalidArgument → 400/invalid_argument;
//   - service.ErrRunInProgress → 409/run_in_progress;
//   - остальное, включая nil, → 500/internal.
func ToHTTP(err error) (int, ErrorResponse) {
	switch {
	case errors.Is(err, service.ErrInvalidArgument):
		return http.StatusBadRequest, ErrorResponse{Error: APIError{
			Code:    "invalid_argument",
			Message: "invalid argument",
		}}
	case errors.Is(err, service.ErrRunInProgress):
		return http.StatusConflict, ErrorResponse{Error: APIError{
			Code:    "run_in_progress",
			Message: "another run is in progress",
		}}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: APIError{
			Code:    "internal",
			Message: "internal error",
		}}
	}
}

// Write пишет статус и тело ошибки, добавляя requestID, если он есть.
func Write(w http.ResponseWriter, requestID string, err error) {
	status, resp := ToHTTP(err)
	resp.Error.RequestID = requestID

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
