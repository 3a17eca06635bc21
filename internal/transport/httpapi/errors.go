package httpapi

import (
	"errors"
	"strings"

	"github.com/Freeeeeet/paybook/internal/apperrors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// fail отдаёт ошибку в формате AppError. Причина внутренних ошибок остаётся в логах.
func (h *Handler) fail(c *gin.Context, err error) {
	appErr := apperrors.AsAppError(err)

	if appErr.HTTPStatus >= 500 {
		h.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", appErr.HTTPStatus),
			zap.Error(err),
		)
	}

	c.AbortWithStatusJSON(appErr.HTTPStatus, appErr)
}

// bindError превращает ошибки валидации тела в InvalidInput с полями
func bindError(err error) *apperrors.AppError {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make(map[string]any, len(verrs))
		for _, fe := range verrs {
			details[strings.ToLower(fe.Field())] = fe.Tag()
		}
		return apperrors.InvalidInput("validation failed").WithDetails(details)
	}
	return apperrors.InvalidInput("malformed request")
}
