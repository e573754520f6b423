package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"slices"
	"strings"

	"github.com/elowen/skin-coach-bfa-go/internal/domain"

	"github.com/go-playground/validator/v10"
)

// maxJSONBody bounds every JSON request body.
const maxJSONBody = 64 << 10

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("skintype", func(fl validator.FieldLevel) bool {
		return domain.SkinType(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("concern", func(fl validator.FieldLevel) bool {
		return slices.Contains(domain.Concerns, fl.Field().String())
	})
	_ = v.RegisterValidation("lifestyle", func(fl validator.FieldLevel) bool {
		return slices.Contains(domain.LifestyleFactors, fl.Field().String())
	})
	return v
}

// decodeJSON reads a bounded JSON body into dst and validates it.
// An empty body decodes as an empty object.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return validate.Struct(dst)
}

// toDetails converts decoding and validation errors into field messages.
func toDetails(err error) map[string]string {
	if err == nil {
		return nil
	}

	var (
		se   *json.SyntaxError
		ute  *json.UnmarshalTypeError
		mbe  *http.MaxBytesError
		verr validator.ValidationErrors
	)
	switch {
	case errors.As(err, &mbe):
		return map[string]string{"payload": "body too large"}
	case errors.As(err, &se), errors.As(err, &ute), errors.Is(err, io.ErrUnexpectedEOF):
		return map[string]string{"payload": "invalid json"}
	case errors.As(err, &verr):
		out := make(map[string]string, len(verr))
		for _, fe := range verr {
			out[fe.Field()] = formatFieldError(fe)
		}
		return out
	}
	return map[string]string{"payload": "invalid payload"}
}

func formatFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		if fe.Kind() == reflect.String {
			return "must be at most " + fe.Param() + " characters"
		}
		return "must be at most " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "skintype":
		return "must be one of Dry, Oily, Combination, Normal, Sensitive"
	case "concern":
		return "must be one of " + strings.Join(domain.Concerns, ", ")
	case "lifestyle":
		return "must be one of " + strings.Join(domain.LifestyleFactors, ", ")
	}
	return "is invalid"
}
