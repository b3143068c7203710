package responses

import (
	"encoding/json"
	"net/http"

	"github.com/karimndoye/sunumarket-backend/pkg/errors"
	"github.com/karimndoye/sunumarket-backend/pkg/types"
)

// JSON writes data inside the success envelope.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.SuccessEnvelope{Data: data})
}

// Error maps an error onto the error envelope using the code metadata table.
// Unknown errors surface as opaque internal errors.
func Error(w http.ResponseWriter, err error) {
	code := errors.CodeInternal
	message := ""
	var details any

	if typed := errors.As(err); typed != nil {
		code = typed.Code()
		message = typed.Message()
		details = typed.Details()
	}

	meta := errors.MetadataFor(code)
	if message == "" {
		message = meta.PublicMessage
	}
	if !meta.DetailsAllowed {
		details = nil
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(meta.HTTPStatus)
	_ = json.NewEncoder(w).Encode(types.ErrorEnvelope{
		Error: types.APIError{
			Code:    string(code),
			Message: message,
			Details: details,
		},
	})
}

// NotFound writes a bare 404 envelope.
func NotFound(w http.ResponseWriter, message string) {
	Error(w, errors.New(errors.CodeNotFound, message))
}
