package artifacts

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrNotFound is returned when no artifact has the requested id
	ErrNotFound = errors.New("artifact not found")

	// ErrInvalidID is returned when an id is not a well-formed uuid
	ErrInvalidID = errors.New("artifact id is malformed")

	// ErrMissingPrompt is returned when the prompt is empty
	ErrMissingPrompt = errors.New("prompt is required")

	// ErrInvalidRequest wraps field validation failures
	ErrInvalidRequest = errors.New("invalid artifact request")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func invalidRequest(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, fe.Field()+" failed "+fe.Tag())
	}
	return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(fields, ", "))
}
