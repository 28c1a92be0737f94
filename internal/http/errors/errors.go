// Package errors define el formato de error JSON de la API HTTP.
package errors

import (
	"encoding/json"
	"net/http"
)

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteError escribe la respuesta de error. Maneja *AppError y errores genéricos;
// la causa interna nunca se escribe al cliente.
func WriteError(w http.ResponseWriter, err error) {
	appErr := FromError(err)

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(appErr.HTTPStatus)

	_ = json.NewEncoder(w).Encode(errorResponse{
		Error:            appErr.Code,
		ErrorDescription: appErr.Description,
	})
}
