package api

import (
	"errors"
	"reflect"
	"strings"

	playgroundvalidator "github.com/go-playground/validator/v10"

	"github.com/olegiv/svcportal/internal/model"
)

var validate = newValidator()

func newValidator() *playgroundvalidator.Validate {
	v := playgroundvalidator.New(playgroundvalidator.WithRequiredStructEnabled())

	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	mustRegister(v, "decision", func(fl playgroundvalidator.FieldLevel) bool {
		_, err := model.ParseDecision(fl.Field().String())
		return err == nil
	})
	mustRegister(v, "post_type", func(fl playgroundvalidator.FieldLevel) bool {
		return model.PostType(fl.Field().String()).Valid()
	})
	mustRegister(v, "inquiry_status", func(fl playgroundvalidator.FieldLevel) bool {
		return model.InquiryStatus(fl.Field().String()).Valid()
	})
	mustRegister(v, "role", func(fl playgroundvalidator.FieldLevel) bool {
		return model.Role(fl.Field().String()).Valid()
	})
	mustRegister(v, "service_status", func(fl playgroundvalidator.FieldLevel) bool {
		return model.ServiceStatus(fl.Field().String()).Valid()
	})
	return v
}

func mustRegister(v *playgroundvalidator.Validate, tag string, fn playgroundvalidator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic("registering validation " + tag + ": " + err.Error())
	}
}

// validateStruct runs the validate tags of s and returns one message per
// failing field, keyed by JSON name.
func validateStruct(s any) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrors playgroundvalidator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return map[string]string{"request": err.Error()}
	}

	out := make(map[string]string, len(fieldErrors))
	for _, fe := range fieldErrors {
		out[fe.Field()] = fieldMessage(fe)
	}
	return out
}

func fieldMessage(fe playgroundvalidator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		if fe.Kind() == reflect.Slice {
			return "must contain at least " + fe.Param() + " item(s)"
		}
		return "must be at least " + fe.Param() + " characters"
	case "max":
		if fe.Kind() == reflect.Slice {
			return "must contain at most " + fe.Param() + " items"
		}
		return "must be at most " + fe.Param() + " characters"
	case "gt":
		return "must be greater than " + fe.Param()
	case "decision":
		return "must be approved or rejected"
	case "post_type":
		return "must be faq, notice or inquiry"
	case "inquiry_status":
		return "must be pending, in_progress, completed or not_applicable"
	case "role":
		return "must be admin or member"
	case "service_status":
		return "must be running or stopped"
	default:
		return "is invalid"
	}
}
