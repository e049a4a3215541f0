package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sshcollectorpro/rosconnector/internal/routeros"
	"github.com/sshcollectorpro/rosconnector/internal/service"
	"github.com/sshcollectorpro/rosconnector/pkg/logger"
	"github.com/sshcollectorpro/rosconnector/pkg/ssh"
)

// ErrorResponse 错误响应
type ErrorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// SuccessResponse 成功响应
type SuccessResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func success(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, SuccessResponse{Code: "SUCCESS", Message: message, Data: data})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Code: "INVALID_PARAMS", Message: message})
}

// errorStatus 将工作流错误映射为 HTTP 状态码与错误码
func errorStatus(err error) (int, string, interface{}) {
	var (
		country      *routeros.InvalidCountryError
		precondition *routeros.PreconditionError
		failure      *routeros.CommandFailure
		transfer     *routeros.TransferError
		parse        *routeros.ParseError
		conn         *routeros.ConnectionError
	)
	switch {
	case errors.Is(err, service.ErrDeviceNotFound):
		return http.StatusNotFound, "DEVICE_NOT_FOUND", nil
	case errors.Is(err, service.ErrTaskNotFound):
		return http.StatusNotFound, "TASK_NOT_FOUND", nil
	case errors.Is(err, service.ErrDeviceExists):
		return http.StatusConflict, "DEVICE_EXISTS", nil
	case errors.As(err, &country):
		return http.StatusBadRequest, "INVALID_COUNTRY", gin.H{"country": country.Country}
	case errors.As(err, &precondition):
		var details interface{}
		if len(precondition.Candidates) > 0 {
			details = gin.H{"workflow": precondition.Workflow, "candidates": precondition.Candidates}
		}
		return http.StatusConflict, "PRECONDITION_FAILED", details
	case errors.As(err, &failure):
		return http.StatusUnprocessableEntity, "COMMAND_FAILED", gin.H{"command": failure.Command}
	case errors.As(err, &transfer):
		switch transfer.Kind {
		case routeros.TransferNotFound:
			return http.StatusNotFound, "TRANSFER_NOT_FOUND", gin.H{"path": transfer.Path}
		case routeros.TransferPermissionDenied:
			return http.StatusForbidden, "TRANSFER_PERMISSION_DENIED", gin.H{"path": transfer.Path}
		}
		return http.StatusBadGateway, "TRANSFER_FAILED", gin.H{"path": transfer.Path}
	case errors.As(err, &parse):
		return http.StatusBadGateway, "PARSE_ERROR", gin.H{"kind": parse.Kind, "line": parse.Line}
	case errors.As(err, &conn):
		return http.StatusBadGateway, "CONNECTION_FAILED", nil
	case errors.Is(err, ssh.ErrCommandTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "TIMEOUT", nil
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR", nil
}

func respondError(c *gin.Context, err error) {
	status, code, details := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logger.WithError(err).Warnf("%s %s: %s", c.Request.Method, c.Request.URL.Path, code)
	}
	c.JSON(status, ErrorResponse{Code: code, Message: err.Error(), Details: details})
}
