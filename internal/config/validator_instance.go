package config

import (
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate

	taskIDPattern = regexp.MustCompile(`^[a-z0-9_-]+$`)
)

// validatorInstance configures and returns the shared validator used across
// the config package.
func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()

		_ = v.RegisterValidation("task_id", func(fl validator.FieldLevel) bool {
			return taskIDPattern.MatchString(fl.Field().String())
		})

		_ = v.RegisterValidation("layer_type", func(fl validator.FieldLevel) bool {
			_, ok := KnownLayerTypes[fl.Field().String()]
			return ok
		})

		validateInst = v
	})

	return validateInst
}

// GetValidator returns the configured validator for use outside this package.
func GetValidator() *validator.Validate {
	return validatorInstance()
}
