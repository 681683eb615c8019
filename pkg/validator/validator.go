package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var grades = map[string]struct{}{
	"Form I": {}, "Form II": {}, "Form III": {}, "Form IV": {},
}

// Register installs the portal's custom tags on gin's validator engine.
func Register() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected binding validator engine")
	}
	return RegisterOn(v)
}

func RegisterOn(v *validator.Validate) error {
	if err := v.RegisterValidation("grade", func(fl validator.FieldLevel) bool {
		_, ok := grades[fl.Field().String()]
		return ok
	}); err != nil {
		return err
	}
	if err := v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	}); err != nil {
		return err
	}
	return v.RegisterValidation("reaction_kind", func(fl validator.FieldLevel) bool {
		k := fl.Field().String()
		return k == "like" || k == "dislike"
	})
}

func FormatValidationError(err error) string {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, fieldError := range validationErrors {
			messages = append(messages, getFieldErrorMessage(fieldError))
		}
		return strings.Join(messages, "; ")
	}
	return err.Error()
}

func getFieldErrorMessage(fe validator.FieldError) string {
	field := getFieldName(fe.Field())

	switch fe.Tag() {
	case "required", "notblank":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "min":
		if fe.Type().String() == "string" {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Type().String() == "string" {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "eqfield":
		return fmt.Sprintf("%s does not match", field)
	case "grade":
		return fmt.Sprintf("%s must be one of Form I, Form II, Form III, Form IV", field)
	case "reaction_kind":
		return fmt.Sprintf("%s must be like or dislike", field)
	case "uuid", "uuid4":
		return fmt.Sprintf("%s must be a valid id", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

func getFieldName(field string) string {
	fieldNames := map[string]string{
		"Name":            "Name",
		"Email":           "Email",
		"Password":        "Password",
		"ConfirmPassword": "Password confirmation",
		"Role":            "Role",
		"IndexNo":         "Index number",
		"FirstName":       "First name",
		"LastName":        "Last name",
		"Grade":           "Grade",
		"ClassID":         "Class",
		"ParentID":        "Parent",
		"Title":           "Title",
		"Content":         "Content",
		"Visibility":      "Visibility",
		"Kind":            "Reaction",
		"ReceiverID":      "Recipient",
		"Subject":         "Subject",
		"Message":         "Message",
		"Decision":        "Decision",
	}

	if name, ok := fieldNames[field]; ok {
		return name
	}
	return field
}
