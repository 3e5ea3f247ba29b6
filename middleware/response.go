package middleware

import (
	"net/http"

	"PPChat/logger"
	"PPChat/tools/errs"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HTTPStatus 错误码 -> HTTP 状态码
func HTTPStatus(err error) int {
	switch errs.Code(err) {
	case errs.ArgsError, errs.UserExistsError, errs.CredentialsError:
		return http.StatusBadRequest
	case errs.TokenMissingError, errs.TokenInvalidError, errs.TokenExpiredError:
		return http.StatusUnauthorized
	case errs.NoPermissionError:
		return http.StatusForbidden
	case errs.RecordNotFoundError:
		return http.StatusNotFound
	case errs.StoreUnavailableError:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Fail 统一错误输出 {code,msg,detail}；非业务错误不向客户端暴露细节
func Fail(c *gin.Context, err error) {
	status := HTTPStatus(err)
	ce := errs.AsCode(err)
	if ce == nil {
		ce = errs.ErrServerInternal
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", RequestID(c)),
			zap.Error(err))
	}
	c.AbortWithStatusJSON(status, ce)
}
