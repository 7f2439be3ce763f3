package dto

import (
	"errors"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/Jeffmuturi45/EVENTIFY/internal/domain"
)

// TagPhone validates a Kenyan mobile number in any accepted shape
const TagPhone = "kephone"

var registerOnce sync.Once

// RegisterValidators adds the custom tags to gin's validator. Safe to call more than once.
func RegisterValidators() error {
	var err error
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			err = errors.New("unexpected binding validator engine")
			return
		}
		err = v.RegisterValidation(TagPhone, validatePhone)
	})
	return err
}

func validatePhone(fl validator.FieldLevel) bool {
	_, err := domain.NormalizePhone(fl.Field().String())
	return err == nil
}

// FieldErrors flattens validation errors into field -> failed tag
func FieldErrors(err error) (map[string]string, bool) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, false
	}
	details := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		details[fe.Field()] = fe.Tag()
	}
	return details, true
}
