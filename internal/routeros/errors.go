package routeros

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

// ConnectionError 连接或认证失败，会话不可继续使用
type ConnectionError struct {
	Host string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s failed: %v", e.Host, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// CommandFailure 设备返回了诊断信息
type CommandFailure struct {
	Command string
	Message string
}

func (e *CommandFailure) Error() string {
	if e.Command == "" {
		return e.Message
	}
	return fmt.Sprintf("command %q failed: %s", e.Command, e.Message)
}

// PreconditionError 工作流前置条件不满足，通常需要调用方补充参数
type PreconditionError struct {
	Workflow   string
	Message    string
	Candidates []string
}

func (e *PreconditionError) Error() string {
	if len(e.Candidates) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (candidates: %s)", e.Message, strings.Join(e.Candidates, ", "))
}

// TransferKind 文件传输失败类型
type TransferKind string

const (
	TransferNotFound         TransferKind = "not_found"
	TransferPermissionDenied TransferKind = "permission_denied"
	TransferOther            TransferKind = "other"
)

// TransferError 文件传输失败
type TransferError struct {
	Op   string
	Path string
	Kind TransferKind
	Err  error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Path, e.Kind, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// NewTransferError 根据底层错误判断失败类型
func NewTransferError(op, path string, err error) *TransferError {
	var te *TransferError
	if errors.As(err, &te) {
		return &TransferError{Op: op, Path: path, Kind: te.Kind, Err: te.Err}
	}
	return &TransferError{Op: op, Path: path, Kind: transferKindOf(err), Err: err}
}

func transferKindOf(err error) TransferKind {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return TransferNotFound
	case errors.Is(err, fs.ErrPermission):
		return TransferPermissionDenied
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "no such file"), strings.Contains(msg, "not found"), strings.Contains(msg, "does not exist"):
		return TransferNotFound
	case strings.Contains(msg, "permission denied"):
		return TransferPermissionDenied
	}
	return TransferOther
}

// ParseError 输出格式无法可靠解析（列偏移或缺失字段）
type ParseError struct {
	Kind   string
	Line   int
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: line %d: %s: %q", e.Kind, e.Line, e.Reason, e.Text)
}

// InvalidCountryError 无线配置时设备拒绝了国家代码
type InvalidCountryError struct {
	Country string
	Message string
}

func (e *InvalidCountryError) Error() string {
	return fmt.Sprintf("invalid country %q: %s", e.Country, e.Message)
}
