package server

import (
	"errors"
	"net/http"

	"referral-ledger-go/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

func errorBody(code, message string) errorResponse {
	return errorResponse{Error: apiError{Code: code, Message: message}}
}

// statusFor maps store sentinels onto HTTP statuses
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, store.ErrInvalidAmount):
		return http.StatusBadRequest, "INVALID_AMOUNT"
	case errors.Is(err, store.ErrInvalidInput):
		return http.StatusBadRequest, "VALIDATION_ERROR"
	case errors.Is(err, store.ErrReferralCodeNotFound):
		return http.StatusBadRequest, "REFERRAL_CODE_NOT_FOUND"
	case errors.Is(err, store.ErrUserNotFound):
		return http.StatusNotFound, "USER_NOT_FOUND"
	case errors.Is(err, store.ErrPurchaseNotFound):
		return http.StatusNotFound, "PURCHASE_NOT_FOUND"
	case errors.Is(err, store.ErrDuplicateCode):
		return http.StatusConflict, "DUPLICATE_CODE"
	case errors.Is(err, store.ErrDuplicateEmail):
		return http.StatusConflict, "DUPLICATE_EMAIL"
	case errors.Is(err, store.ErrCyclicReferral):
		return http.StatusConflict, "CYCLIC_REFERRAL"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

func respondError(c *gin.Context, err error) {
	status, code := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		zap.L().Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
		message = "internal server error"
	}
	c.AbortWithStatusJSON(status, errorBody(code, message))
}

func respondBadRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorBody("VALIDATION_ERROR", message))
}
