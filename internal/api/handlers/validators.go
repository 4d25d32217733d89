package handlers

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"ecotrack-api-server/internal/models"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// custom validation tags
const (
	notBlankTag  = "notblank"
	wasteTypeTag = "wastetype"
	roleTag      = "role"
)

var registerOnce sync.Once

// RegisterValidators adds the custom binding tags to gin's validator.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin validator engine is not go-playground/validator")
	}

	var err error
	registerOnce.Do(func() {
		// Use JSON tag names for errors instead of Go struct names.
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		err = errors.Join(
			v.RegisterValidation(notBlankTag, notBlankValidation),
			v.RegisterValidation(wasteTypeTag, wasteTypeValidation),
			v.RegisterValidation(roleTag, roleValidation),
		)
	})
	return err
}

func notBlankValidation(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func wasteTypeValidation(fl validator.FieldLevel) bool {
	return models.WasteType(fl.Field().String()).Valid()
}

func roleValidation(fl validator.FieldLevel) bool {
	return models.ValidRole(fl.Field().String())
}
