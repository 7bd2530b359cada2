package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/akhramovs/tempora/internal/common"
)

// envelope is the uniform response shape. Success responses carry data;
// failures carry a message and, for rejected request bodies, a form flag.
type envelope struct {
	Success     bool   `json:"success"`
	Message     string `json:"message,omitempty"`
	Data        any    `json:"data,omitempty"`
	IsFormError bool   `json:"isFormError,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "ok", Data: data})
}

// writeError maps domain errors onto HTTP statuses. Unknown errors become
// opaque 500s so internal details never leak to clients.
func writeError(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		writeJSON(w, http.StatusBadRequest, envelope{
			Message:     formErrorMessage(verrs),
			IsFormError: true,
		})
		return
	}

	switch {
	case errors.Is(err, common.ErrNotFound):
		writeJSON(w, http.StatusNotFound, envelope{Message: "not found"})
	case errors.Is(err, common.ErrUnauthorized), errors.Is(err, common.ErrInvalidToken):
		writeJSON(w, http.StatusUnauthorized, envelope{Message: "unauthorized"})
	case errors.Is(err, common.ErrValidation):
		writeJSON(w, http.StatusBadRequest, envelope{Message: err.Error(), IsFormError: true})
	case errors.Is(err, common.ErrInsufficientCredits):
		writeJSON(w, http.StatusPaymentRequired, envelope{Message: "insufficient credits"})
	case errors.Is(err, common.ErrVectorNotConfigured):
		writeJSON(w, http.StatusBadRequest, envelope{Message: "search is not available for this resource"})
	default:
		writeJSON(w, http.StatusInternalServerError, envelope{Message: "internal error"})
	}
}

func formErrorMessage(verrs validator.ValidationErrors) string {
	msg := "invalid request"
	for _, fe := range verrs {
		msg += "; " + fe.Field() + " failed " + fe.Tag()
	}
	return msg
}

// decodeBody parses and validates a JSON request body into dst.
func decodeBody(r *http.Request, validate *validator.Validate, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return common.ErrValidation
	}
	if err := validate.Struct(dst); err != nil {
		return err
	}
	return nil
}
