package middleware

import (
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/wms-platform/task-engine/pkg/errors"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

var customValidations = map[string]validator.Func{
	"task_type":     validateTaskType,
	"task_priority": validateTaskPriority,
	"bin_code":      validateBinCode,
	"abc_threshold": validateABCThreshold,
	"safe_string":   validateSafeString,
}

// InitValidator initializes the validator with custom validators and
// registers the same tags on gin's binding engine.
func InitValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		register(validate)

		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			register(v)
		}
	})

	return validate
}

func register(v *validator.Validate) {
	for tag, fn := range customValidations {
		_ = v.RegisterValidation(tag, fn)
	}

	// Use JSON tag names for error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
}

// GetValidator returns the singleton validator instance
func GetValidator() *validator.Validate {
	return InitValidator()
}

var (
	binCodeRegex    = regexp.MustCompile(`^[A-Z]\d+-[A-Z]\d+(-[A-Z0-9]+)*$`)
	safeStringRegex = regexp.MustCompile(`^[^\x00<>]*$`)
)

func validateTaskType(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "PICK", "PUTAWAY", "COUNT", "REPLENISH":
		return true
	}
	return false
}

func validateTaskPriority(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "URGENT", "HIGH", "NORMAL", "LOW":
		return true
	}
	return false
}

func validateBinCode(fl validator.FieldLevel) bool {
	return binCodeRegex.MatchString(fl.Field().String())
}

// abc_threshold accepts a cumulative fraction in (0, 1].
func validateABCThreshold(fl validator.FieldLevel) bool {
	v := fl.Field().Float()
	return v > 0 && v <= 1
}

func validateSafeString(fl validator.FieldLevel) bool {
	return safeStringRegex.MatchString(fl.Field().String())
}

// ValidationErrorFormatter formats validation errors into a map
func ValidationErrorFormatter(err error) map[string]string {
	fields := make(map[string]string)

	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrors {
			fields[e.Field()] = formatValidationError(e)
		}
	}

	return fields
}

func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + e.Param()
	case "max":
		return "must be at most " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "gt":
		return "must be greater than " + e.Param()
	case "lte":
		return "must be less than or equal to " + e.Param()
	case "task_type":
		return "must be one of: PICK, PUTAWAY, COUNT, REPLENISH"
	case "task_priority":
		return "must be one of: URGENT, HIGH, NORMAL, LOW"
	case "bin_code":
		return "must be a valid bin code (format: A1-B2-C3)"
	case "abc_threshold":
		return "must be a fraction greater than 0 and at most 1"
	case "safe_string":
		return "contains invalid characters"
	case "oneof":
		return "must be one of: " + e.Param()
	default:
		return "is invalid"
	}
}

// BindAndValidate binds request body and validates it
func BindAndValidate(c *gin.Context, obj interface{}) *errors.AppError {
	if err := c.ShouldBindJSON(obj); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			return errors.ErrValidationWithFields("validation failed", ValidationErrorFormatter(validationErrors))
		}
		return errors.ErrBadRequest("invalid request body: " + err.Error())
	}
	return nil
}

// ValidateStruct validates a struct using the validator
func ValidateStruct(obj interface{}) *errors.AppError {
	if err := GetValidator().Struct(obj); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			return errors.ErrValidationWithFields("validation failed", ValidationErrorFormatter(validationErrors))
		}
		return errors.ErrBadRequest("validation failed: " + err.Error())
	}
	return nil
}
