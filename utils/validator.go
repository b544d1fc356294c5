package utils

import (
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	validate = newValidator()
	vinRegex = regexp.MustCompile(`(?i)^[A-HJ-NPR-Z0-9]{17}$`)
)

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("usphone", func(fl validator.FieldLevel) bool {
		return ValidPhone(fl.Field().String())
	})
	_ = v.RegisterValidation("vin", func(fl validator.FieldLevel) bool {
		return ValidVIN(fl.Field().String())
	})
	return v
}

// ValidPhone accepts US numbers: exactly 10 digits once formatting is removed.
func ValidPhone(phone string) bool {
	return len(DigitsOnly(phone)) == 10
}

// ValidVIN checks length and alphabet (I, O and Q never appear in a VIN).
func ValidVIN(vin string) bool {
	return vinRegex.MatchString(vin)
}

func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	// Format validation errors
	var messages []string
	for _, fe := range validationErrors {
		field := lowerFirst(fe.Field())
		tag := fe.Tag()
		param := fe.Param()

		switch tag {
		case "required":
			messages = append(messages, field+" is required")
		case "min":
			messages = append(messages, field+" must be at least "+param+" characters")
		case "max":
			messages = append(messages, field+" must be at most "+param+" characters")
		case "email":
			messages = append(messages, field+" must be a valid email")
		case "usphone":
			messages = append(messages, field+" must be a 10-digit phone number")
		case "vin":
			messages = append(messages, field+" must be a 17-character VIN")
		case "oneof":
			messages = append(messages, field+" must be one of "+param)
		default:
			messages = append(messages, field+" is invalid")
		}
	}

	return errors.New(strings.Join(messages, ", "))
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
