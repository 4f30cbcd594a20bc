package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/nodecraft/identity-gateway/internal/apperr"
	"github.com/nodecraft/identity-gateway/internal/player"
)

type successEnvelope struct {
	Success bool        `json:"success"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    successData `json:"data"`
}

type successData struct {
	Player *player.Profile `json:"player"`
}

type failureEnvelope struct {
	Success bool   `json:"success"`
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// writeSuccess writes the 200 player.found envelope and returns the bytes
// written.
func writeSuccess(w http.ResponseWriter, profile *player.Profile) []byte {
	body, _ := json.Marshal(successEnvelope{
		Success: true,
		Code:    "player.found",
		Message: "player found",
		Data:    successData{Player: profile},
	})
	writeJSON(w, http.StatusOK, "public, max-age=432000", body)
	return body
}

// writeFailure writes the error envelope for err, mapping its status per
// apperr.HTTPStatus, and returns the bytes written.
func writeFailure(w http.ResponseWriter, err error) (int, []byte) {
	status := apperr.HTTPStatus(err)
	appErr, ok := apperr.As(err)

	code := string(apperr.CodeUnknownError)
	message := "an unexpected error occurred"
	var data any
	isError := true
	if ok {
		code = string(appErr.Code)
		message = appErr.Message
		data = appErr.Data
		isError = appErr.Kind == apperr.KindInternal
	}

	body, _ := json.Marshal(failureEnvelope{
		Success: false,
		Error:   isError,
		Code:    code,
		Message: message,
		Data:    data,
	})
	writeJSON(w, status, "public, max-age=300", body)
	return status, body
}

func writeJSON(w http.ResponseWriter, status int, cacheControl string, body []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Cache-Control", cacheControl)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
