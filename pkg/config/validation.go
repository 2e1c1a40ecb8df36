package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/XiaoConstantine/ramanujan-go/pkg/errors"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Tag     string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	switch e.Tag {
	case "required":
		return fmt.Sprintf("%s is required", e.Field)
	case "min":
		return fmt.Sprintf("%s is below the allowed minimum", e.Field)
	case "max":
		return fmt.Sprintf("%s is above the allowed maximum", e.Field)
	case "oneof":
		return fmt.Sprintf("%s must be one of the allowed values", e.Field)
	default:
		return fmt.Sprintf("%s failed validation", e.Field)
	}
}

// ValidationErrors represents multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var messages []string
	for _, err := range e {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

var validate = validator.New()

// Validate checks a configuration against its struct tags plus the
// cross-field constraints the tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs ValidationErrors
		if fieldErrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range fieldErrs {
				verrs = append(verrs, ValidationError{
					Field: fe.Namespace(),
					Tag:   fe.Tag(),
					Value: fe.Value(),
				})
			}
			return errors.Wrap(verrs, errors.ValidationFailed, "invalid configuration")
		}
		return errors.Wrap(err, errors.ValidationFailed, "invalid configuration")
	}

	// The LLM API key is deliberately not validated here: it may come from
	// the environment at producer construction time.
	if cfg.Swarm.Explorers+cfg.Swarm.Mutators+cfg.Swarm.Hybrids == 0 {
		return errors.New(errors.ValidationFailed, "swarm must register at least one producer")
	}
	return nil
}
