package validate

import "github.com/go-playground/validator/v10"

var shared = New()

// New returns the validator used for request structs.
func New() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func Email(s string) bool {
	return shared.Var(s, "required,email,max=254") == nil
}
