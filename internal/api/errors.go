package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"storefront/internal/service"
	"storefront/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func init() {
	// report validation failures under the JSON field name
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return f.Name
		})
	}
}

func statusFor(kind service.Kind) int {
	switch kind {
	case service.KindUnauthenticated:
		return http.StatusUnauthorized
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as a JSON body. Internal causes are logged under
// tag and never sent to the client.
func respondError(c *gin.Context, tag string, err error) {
	var svcErr *service.Error
	if !errors.As(err, &svcErr) {
		svcErr = service.InternalError(err)
	}

	status := statusFor(svcErr.Kind)
	if status == http.StatusInternalServerError {
		util.GetLogger().Error("["+tag+"] request failed",
			zap.String("request_id", c.GetString("request_id")),
			zap.Error(err))
	}

	if svcErr.Kind == service.KindValidation && len(svcErr.Fields) > 0 {
		c.JSON(status, gin.H{"error": svcErr.Message, "errors": svcErr.Fields})
		return
	}
	c.JSON(status, gin.H{"error": svcErr.Message})
}

// bindError converts a gin binding failure into a validation error.
func bindError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fieldPath(fe)] = fieldMessage(fe)
		}
		return service.ValidationError(fields)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return service.ValidationError(map[string]string{typeErr.Field: "has the wrong type"})
	}
	return service.Errorf(service.KindValidation, "malformed request body")
}

// fieldPath drops the top-level struct name from the namespace, so
// "CreateOrderRequest.items[0].quantity" becomes "items[0].quantity".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.String {
			return "must be at least " + fe.Param() + " characters"
		}
		if fe.Kind() == reflect.Slice {
			return "must contain at least " + fe.Param() + " item(s)"
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return "must be at most " + fe.Param() + " characters"
		}
		return "must be at most " + fe.Param()
	case "email":
		return "must be a valid email"
	case "uuid":
		return "must be a valid UUID"
	case "url":
		return "must be a valid URL"
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "is invalid"
	}
}

// pathID parses the :id route parameter.
func pathID(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, service.ValidationError(map[string]string{"id": "must be a valid UUID"})
	}
	return id, nil
}
