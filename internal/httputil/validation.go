package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"campusnotify/internal/model"
)

// ErrCodeValidation is returned for bodies that fail validation.
const ErrCodeValidation = model.CodeValidation

// Validator wraps go-playground validator with the service's custom rules.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New()

	// Report json names rather than Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("clocktime", validateClockTime); err != nil {
		panic(err)
	}

	return &Validator{validate: v}
}

// Validate validates a struct
func (v *Validator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

// DecodeAndValidate reads a JSON body into dst and validates it. On failure
// the error response is already written and false is returned.
func (v *Validator) DecodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteBadRequest(w, "Invalid request body")
		return false
	}
	if err := v.Validate(dst); err != nil {
		WriteValidationError(w, FieldErrors(err))
		return false
	}
	return true
}

// FieldErrors flattens validator errors into field -> message.
func FieldErrors(err error) map[string]string {
	fields := map[string]string{}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		fields["body"] = err.Error()
		return fields
	}
	for _, fe := range verrs {
		fields[fe.Field()] = fieldMessage(fe)
	}
	return fields
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required", fe.Field())
	case "min":
		return fmt.Sprintf("The %s field must have at least %s items", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("The %s field must not exceed %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("The %s field must be one of: %s", fe.Field(), fe.Param())
	case "gt":
		return fmt.Sprintf("The %s field must be greater than %s", fe.Field(), fe.Param())
	case "clocktime":
		return fmt.Sprintf("The %s field must be a time of day in HH:mm format", fe.Field())
	}
	return fmt.Sprintf("The %s field is invalid", fe.Field())
}

func validateClockTime(fl validator.FieldLevel) bool {
	_, err := model.ParseClockTime(fl.Field().String())
	return err == nil
}
