package attendance

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInactiveUser       = errors.New("user is inactive")
	ErrNotStudent         = errors.New("user is not a student")
	ErrNotTeacher         = errors.New("user is not a teacher")
	ErrNotCourseTeacher   = errors.New("teacher does not teach this course")
	ErrSessionInactive    = errors.New("course session is not active")
	ErrTokenInvalid       = errors.New("access token does not match")
	ErrTokenExpired       = errors.New("access token expired")
)

// ValidationError reports input rejected before anything is written.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		switch name {
		case "-":
			return ""
		case "":
			return strings.ToLower(f.Name)
		}
		return name
	})
	return v
}

// validateStruct runs struct tag validation and folds the first failure into
// a ValidationError.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return invalid(field, "must be set")
	case "oneof":
		return invalid(field, "must be one of %s", fe.Param())
	case "max":
		return invalid(field, "must be at most %s", fe.Param())
	case "min", "gte":
		return invalid(field, "must be at least %s", fe.Param())
	default:
		return invalid(field, "failed %s validation", fe.Tag())
	}
}
