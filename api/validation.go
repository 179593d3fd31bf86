package api

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mrsingh-rishi/meeting-report/apperr"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report json names so errors match the request fields
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// validateBody maps validation failures onto MissingInput for absent
// required fields and InvalidInput for everything else.
func validateBody(v *validator.Validate, body any) error {
	err := v.Struct(body)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperr.InvalidInput("The request body is invalid.", err)
	}
	first := fieldErrs[0]
	if first.Tag() == "required" {
		return apperr.MissingInput(first.Field())
	}
	return apperr.InvalidInput(first.Field()+" must be one of: "+first.Param(), err)
}
