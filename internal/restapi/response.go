package restapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/synapsegraph/synapse/pkg/errs"
)

// Response is the envelope every route responds with.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// SuccessResponse sends a 200 response.
func SuccessResponse(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, &Response{Success: true, Message: message, Data: data})
}

// CreatedResponse sends a 201 response.
func CreatedResponse(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusCreated, &Response{Success: true, Message: message, Data: data})
}

// ErrorResponse sends an error response with the given status code.
func ErrorResponse(c *gin.Context, code int, message string) {
	c.JSON(code, &Response{Success: false, Message: message})
}

// BadRequestError sends a 400.
func BadRequestError(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusBadRequest, message)
}

// NotFoundError sends a 404.
func NotFoundError(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusNotFound, message)
}

// UnauthorizedError sends a 401.
func UnauthorizedError(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusUnauthorized, message)
}

// TooManyRequestsError sends a 429.
func TooManyRequestsError(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusTooManyRequests, message)
}

// PayloadTooLargeError sends a 413.
func PayloadTooLargeError(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusRequestEntityTooLarge, message)
}

// InternalError sends a 500.
func InternalError(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusInternalServerError, message)
}

// errorStatus maps a closed errs.Kind to the HTTP status a route should
// answer with, so every handler funnels facade errors through one place
// instead of re-deriving the mapping per route.
func errorStatus(kind errs.Kind) int {
	switch kind {
	case errs.MemoryNotFound:
		return http.StatusNotFound
	case errs.DanglingEndpoint, errs.ConfigurationError:
		return http.StatusBadRequest
	case errs.NotInitialized:
		return http.StatusServiceUnavailable
	case errs.Cancelled:
		return http.StatusRequestTimeout
	case errs.EmbeddingUnavailable, errs.StoreUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// RespondError writes err through the Response envelope, mapping the
// facade's closed error-kind set to an HTTP status where available.
func RespondError(c *gin.Context, op string, err error) {
	kind, ok := errs.KindOf(err)
	if !ok {
		InternalError(c, op+": "+err.Error())
		return
	}
	ErrorResponse(c, errorStatus(kind), op+": "+err.Error())
}
