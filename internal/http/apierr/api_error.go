package apierr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3filter"
	govalidator "github.com/go-playground/validator/v10"

	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/http/dto"
	"github.com/tuanvumaihuynh/pharmacy-inventory/pkg/validator"
	"github.com/tuanvumaihuynh/pharmacy-inventory/pkg/zerror"
)

const validationErrorCode = "VALIDATION_FAILED"

// ErrorResponse is the error response for the API.
type ErrorResponse struct {
	dto.ErrorResponse

	// StatusCode is the status code for the error response.
	StatusCode int `json:"-"`
}

func New(err error) ErrorResponse {
	return errorToErrorResponse(err)
}

var InternalServerErr = ErrorResponse{
	ErrorResponse: dto.ErrorResponse{
		Code:    "INTERNAL_SERVER_ERROR",
		Message: "an unknown error occurred",
	},
	StatusCode: http.StatusInternalServerError,
}

// InvalidParamError is a path or query parameter that could not be bound.
type InvalidParamError struct {
	Name string
	Err  error
}

func (e *InvalidParamError) Error() string {
	return fmt.Sprintf("invalid format for parameter %s: %v", e.Name, e.Err)
}

func (e *InvalidParamError) Unwrap() error { return e.Err }

func errorToErrorResponse(err error) ErrorResponse {
	var zErr zerror.ZError
	if errors.As(err, &zErr) {
		return ErrorResponse{
			ErrorResponse: dto.ErrorResponse{
				Code:    zErr.Code(),
				Message: zErr.Msg(),
				Details: fieldErrors(err),
			},
			StatusCode: ZErrorStatusToHTTPStatus(zErr.Status()),
		}
	}

	if details := fieldErrors(err); details != nil {
		return ErrorResponse{
			ErrorResponse: dto.ErrorResponse{
				Code:    validationErrorCode,
				Message: "validation error",
				Details: details,
			},
			StatusCode: http.StatusBadRequest,
		}
	}

	if isRequestErr(err) {
		return ErrorResponse{
			ErrorResponse: dto.ErrorResponse{
				Code:    validationErrorCode,
				Message: err.Error(),
			},
			StatusCode: http.StatusBadRequest,
		}
	}

	return InternalServerErr
}

func fieldErrors(err error) *[]dto.FieldError {
	var validationErrs govalidator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return nil
	}

	details := make([]dto.FieldError, len(validationErrs))
	for i, fe := range validationErrs {
		details[i] = dto.FieldError{
			Field:   fe.Field(),
			Message: validator.ValidationErrorMessage(fe),
		}
	}
	return &details
}

func ZErrorStatusToHTTPStatus(status zerror.Status) int {
	switch status {
	case zerror.StatusNotFound:
		return http.StatusNotFound
	case zerror.StatusUnprocessableEntity:
		return http.StatusUnprocessableEntity
	case zerror.StatusConflict:
		return http.StatusConflict
	case zerror.StatusBadRequest:
		return http.StatusBadRequest
	case zerror.StatusValidationFailed:
		return http.StatusBadRequest
	case zerror.StatusUnknown, zerror.StatusInternalServerError:
		return http.StatusInternalServerError
	case zerror.StatusServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func isRequestErr(err error) bool {
	var (
		e1 *InvalidParamError
		e2 *openapi3filter.RequestError
		e3 *openapi3filter.ValidationError
	)

	return errors.As(err, &e1) ||
		errors.As(err, &e2) ||
		errors.As(err, &e3)
}
