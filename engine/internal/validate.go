package internal

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/adhocore/gronx"
	"github.com/gclaussn/go-bpmn-core/engine"
	"github.com/go-playground/validator/v10"
)

var (
	RegexpVariableName = regexp.MustCompile("^[a-zA-Z_][a-zA-Z0-9_]*$")

	validate = newValidate()
)

func newValidate() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("json"), ",", 2)[0] // e.g. `json:"businessKey,omitempty"` -> businessKey
	})

	validate.RegisterValidation("variable_name", func(fl validator.FieldLevel) bool {
		return RegexpVariableName.MatchString(fl.Field().String())
	})
	validate.RegisterValidation("time_cycle", func(fl validator.FieldLevel) bool {
		return gronx.IsValid(fl.Field().String())
	})
	validate.RegisterValidation("time_duration", func(fl validator.FieldLevel) bool {
		_, err := engine.NewISO8601Duration(fl.Field().String())
		return err == nil
	})

	return validate
}

// validateCmd validates a command struct. Violations are returned as causes of an [engine.ErrorValidation].
func validateCmd(title string, cmd any) error {
	err := validate.Struct(cmd)
	if err == nil {
		return nil
	}

	fieldErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return engine.Error{
			Type:   engine.ErrorValidation,
			Title:  title,
			Detail: err.Error(),
		}
	}

	causes := make([]engine.ErrorCause, len(fieldErrors))
	for i, fieldError := range fieldErrors {
		var detail string
		switch fieldError.Tag() {
		case "gte":
			detail = fmt.Sprintf("must be greater than or equal to %s", fieldError.Param())
		case "lte":
			detail = fmt.Sprintf("must be less than or equal to %s", fieldError.Param())
		case "max":
			detail = fmt.Sprintf("exceeds a maximum of %s", fieldError.Param())
		case "required":
			detail = "is required"
		case "variable_name":
			detail = fmt.Sprintf("must match regex %s", RegexpVariableName)
		default:
			detail = fmt.Sprintf("violates %s", fieldError.Tag())
		}

		causes[i] = engine.ErrorCause{
			Pointer: fieldPointer(fieldError.Namespace()),
			Type:    fieldError.Tag(),
			Detail:  detail,
		}
	}

	return engine.Error{
		Type:   engine.ErrorValidation,
		Title:  title,
		Detail: "command is invalid",
		Causes: causes,
	}
}

// fieldPointer converts a validator namespace into a JSON pointer, e.g. Cmd.variables[a-b] -> #/variables/a-b
func fieldPointer(namespace string) string {
	_, path, ok := strings.Cut(namespace, ".")
	if !ok {
		return "#"
	}

	path = strings.NewReplacer(".", "/", "[", "/", "]", "").Replace(path)
	return "#/" + path
}
