package handlers

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/yungbote/certification-backend/internal/domain/certification"
)

var registerOnce sync.Once

// RegisterValidators installs the workflow binding tags on gin's validator.
func RegisterValidators() error {
	var err error
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			err = errors.New("gin validator engine is not go-playground/validator")
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
		if err = v.RegisterValidation("cert_outcome", func(fl validator.FieldLevel) bool {
			_, ok := certification.ParseOutcome(fl.Field().String())
			return ok
		}); err != nil {
			return
		}
		err = v.RegisterValidation("cert_recommendation", func(fl validator.FieldLevel) bool {
			_, ok := certification.ParseRecommendation(fl.Field().String())
			return ok
		})
	})
	return err
}

// bindOptionalJSON binds a body the client may leave out. An empty body,
// sized or chunked, leaves dst untouched.
func bindOptionalJSON(c *gin.Context, dst any) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// bindingMessage turns validator output into one actionable sentence.
func bindingMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "malformed request body: " + err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			parts = append(parts, field+" is required")
		case "uuid":
			parts = append(parts, field+" must be a UUID")
		case "cert_outcome":
			parts = append(parts, field+" must be one of APPROVE, REJECT, REQUEST_COMPLEMENT")
		case "cert_recommendation":
			parts = append(parts, field+" must be one of APPROVE, REJECT, REQUEST_COMPLEMENT, IN_PROGRESS")
		case "max", "lte":
			parts = append(parts, fmt.Sprintf("%s must be at most %s", field, fe.Param()))
		case "min", "gte":
			parts = append(parts, fmt.Sprintf("%s must be at least %s", field, fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
