package users

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// Input carries the fields of a create or a partial update, nil means the
// field was not sent
type Input struct {
	Name     *string `json:"name" form:"name"`
	Email    *string `json:"email" form:"email"`
	Password *string `json:"password" form:"password"`
	Configs  *string `json:"configs" form:"configs"`
}

// ValidationErrors maps a field name to its error message
type ValidationErrors map[string]string

func (ve ValidationErrors) Error() string {
	fields := make([]string, 0, len(ve))
	for f := range ve {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	msgs := make([]string, 0, len(fields))
	for _, f := range fields {
		msgs = append(msgs, f+": "+ve[f])
	}

	return "validation failed: " + strings.Join(msgs, "; ")
}

const (
	nameRules     = "required,min=5,max=32"
	emailRules    = "required,email,max=255"
	passwordRules = "required,min=8,max=72,maxbytes=72"
	configsRules  = "omitempty,jsonobject"
)

func newValidator() *validator.Validate {
	v := validator.New()

	if err := v.RegisterValidation("jsonobject", isJSONObject); err != nil {
		panic(err)
	}

	if err := v.RegisterValidation("maxbytes", maxBytes); err != nil {
		panic(err)
	}

	return v
}

func isJSONObject(fl validator.FieldLevel) bool {
	var obj map[string]interface{}
	return json.Unmarshal([]byte(fl.Field().String()), &obj) == nil && obj != nil
}

// maxBytes limits the encoded length, bcrypt rejects passwords over 72 bytes
func maxBytes(fl validator.FieldLevel) bool {
	limit, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}

	return len(fl.Field().String()) <= limit
}

type fieldCheck struct {
	field string
	value *string
	rules string
}

// validateInput checks every present field, with partial set to false the
// required fields must all be present
func validateInput(v *validator.Validate, in Input, partial bool) ValidationErrors {
	checks := []fieldCheck{
		{field: "name", value: in.Name, rules: nameRules},
		{field: "email", value: in.Email, rules: emailRules},
		{field: "password", value: in.Password, rules: passwordRules},
		{field: "configs", value: in.Configs, rules: configsRules},
	}

	errs := make(ValidationErrors)

	for _, c := range checks {
		if c.value == nil {
			if partial || strings.HasPrefix(c.rules, "omitempty") {
				continue
			}

			errs[c.field] = message(c.field, "required", "")
			continue
		}

		if err := v.Var(*c.value, c.rules); err != nil {
			var fieldErrs validator.ValidationErrors
			if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
				errs[c.field] = message(c.field, fieldErrs[0].Tag(), fieldErrs[0].Param())
			} else {
				errs[c.field] = err.Error()
			}
		}
	}

	if len(errs) == 0 {
		return nil
	}

	return errs
}

func message(field, tag, param string) string {
	switch tag {
	case "required":
		return fmt.Sprintf("The %s field is required.", field)
	case "min":
		return fmt.Sprintf("The %s field requires %s or more characters.", field, param)
	case "max":
		return fmt.Sprintf("The %s field requires %s or less characters.", field, param)
	case "maxbytes":
		return fmt.Sprintf("The %s field requires %s or less bytes.", field, param)
	case "email":
		return fmt.Sprintf("The %s field requires a valid email address.", field)
	case "jsonobject":
		return fmt.Sprintf("The %s field requires a valid JSON object.", field)
	case "unique":
		return fmt.Sprintf("The %s field is not registered as unique.", field)
	}

	return fmt.Sprintf("The %s field is invalid.", field)
}
