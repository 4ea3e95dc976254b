package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/MrEthical07/authsvc"
)

const msgInternal = "Internal Server Error"

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// statusMap overrides the default status of an error kind for one route.
type statusMap map[authsvc.ErrorKind]int

var defaultStatus = statusMap{
	authsvc.KindValidation:     http.StatusBadRequest,
	authsvc.KindAuthentication: http.StatusUnauthorized,
	authsvc.KindAuthorization:  http.StatusForbidden,
	authsvc.KindConflict:       http.StatusConflict,
	authsvc.KindNotFound:       http.StatusNotFound,
	authsvc.KindRateLimited:    http.StatusTooManyRequests,
	authsvc.KindDependency:     http.StatusInternalServerError,
	authsvc.KindInternal:       http.StatusInternalServerError,
}

func ok(c *gin.Context, status int, message string, fields gin.H) {
	body := gin.H{"success": true, "message": message}
	for k, v := range fields {
		body[k] = v
	}
	c.JSON(status, body)
}

// fail writes err using the route's overrides on top of defaultStatus.
func (h *handler) fail(c *gin.Context, err error, overrides statusMap) {
	kind := authsvc.KindOf(err)

	status, found := overrides[kind]
	if !found {
		status = defaultStatus[kind]
	}

	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		h.log.ErrorContext(c.Request.Context(), "request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"kind", kind.String(),
			"error", err.Error(),
		)
		c.AbortWithStatusJSON(status, gin.H{"success": false, "message": msgInternal})
		return
	}

	body := gin.H{"success": false, "message": publicMessage(err)}
	if kind == authsvc.KindValidation {
		body["message"] = "Validation failed"
		body["errors"] = fieldErrors(err)
	}
	c.AbortWithStatusJSON(status, body)
}

// publicMessage returns the sentinel text for err so that wrapped causes
// never reach the client.
func publicMessage(err error) string {
	for _, sentinel := range []error{
		authsvc.ErrInvalidCredentials,
		authsvc.ErrInvalidToken,
		authsvc.ErrInvalidOrExpiredCode,
		authsvc.ErrEmailNotVerified,
		authsvc.ErrTOTPRequired,
		authsvc.ErrTOTPInvalid,
		authsvc.ErrTOTPAlreadyEnabled,
		authsvc.ErrTOTPNotConfigured,
		authsvc.ErrTOTPNotEnabled,
		authsvc.ErrForbidden,
		authsvc.ErrEmailTaken,
		authsvc.ErrAlreadyVerified,
		authsvc.ErrUserNotFound,
		authsvc.ErrRateLimited,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return msgInternal
}

func fieldErrors(err error) []fieldError {
	var many authsvc.ValidationErrors
	if errors.As(err, &many) {
		out := make([]fieldError, 0, len(many))
		for _, e := range many {
			out = append(out, fieldError{Field: e.Field, Message: e.Reason})
		}
		return out
	}
	var one *authsvc.ValidationError
	if errors.As(err, &one) {
		return []fieldError{{Field: one.Field, Message: one.Reason}}
	}
	return nil
}

// bindJSON decodes the request body into dst. Decoding and binding-tag
// failures are returned as authsvc validation errors.
func bindJSON(c *gin.Context, dst any) error {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := make(authsvc.ValidationErrors, 0, len(verrs))
		for _, fe := range verrs {
			out = append(out, &authsvc.ValidationError{Field: fe.Field(), Reason: bindingReason(fe)})
		}
		return out
	}
	return &authsvc.ValidationError{Field: "body", Reason: "must be a valid JSON object"}
}

func bindingReason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "numeric":
		return "must contain only digits"
	case "len":
		return "must be exactly " + fe.Param() + " characters"
	default:
		return "is invalid"
	}
}
