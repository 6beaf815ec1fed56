package utils

import (
	"errors"
	"fmt"
	"reflect"
	"safegate/models"

	"github.com/go-playground/validator/v10"
)

type ValidationService struct {
	validator *validator.Validate
}

// FieldError describes one failed struct tag.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

func NewValidationService() *ValidationService {
	v := validator.New()

	v.RegisterValidation("emergency_type", validateEmergencyType)
	v.RegisterValidation("report_status", validateReportStatus)
	v.RegisterValidation("latitude", validateLatitude)
	v.RegisterValidation("longitude", validateLongitude)

	return &ValidationService{
		validator: v,
	}
}

func (vs *ValidationService) ValidateStruct(s interface{}) []FieldError {
	var fieldErrors []FieldError

	err := vs.validator.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return []FieldError{{Message: err.Error()}}
	}

	for _, fe := range validationErrors {
		fieldErrors = append(fieldErrors, FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Value:   fmt.Sprintf("%v", fe.Value()),
			Message: vs.getErrorMessage(fe),
		})
	}

	return fieldErrors
}

func (vs *ValidationService) getErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters long", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "latitude":
		return "Latitude must be between -90 and 90"
	case "longitude":
		return "Longitude must be between -180 and 180"
	case "emergency_type":
		return "Invalid emergency type"
	case "report_status":
		return "Status must be one of: active, assigned, resolved"
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

func validateEmergencyType(fl validator.FieldLevel) bool {
	return models.EmergencyType(fl.Field().String()).IsValid()
}

func validateReportStatus(fl validator.FieldLevel) bool {
	return models.ReportStatus(fl.Field().String()).IsValid()
}

func validateLatitude(fl validator.FieldLevel) bool {
	lat, ok := floatField(fl.Field())
	return ok && lat >= -90 && lat <= 90
}

func validateLongitude(fl validator.FieldLevel) bool {
	lng, ok := floatField(fl.Field())
	return ok && lng >= -180 && lng <= 180
}

func floatField(field reflect.Value) (float64, bool) {
	switch field.Kind() {
	case reflect.Float32, reflect.Float64:
		return field.Float(), true
	}
	return 0, false
}
