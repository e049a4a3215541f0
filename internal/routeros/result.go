package routeros

import (
	"regexp"
	"strings"
)

// Result 命令执行结果：成功或携带设备诊断信息的失败
type Result struct {
	ok      bool
	message string
	command string
}

// Success 成功结果
func Success() Result { return Result{ok: true} }

// Failure 失败结果
func Failure(message string) Result { return Result{message: message} }

// OK 是否成功
func (r Result) OK() bool { return r.ok }

// Message 失败信息（成功时为空）
func (r Result) Message() string { return r.message }

// Err 失败时返回 *CommandFailure，成功时返回 nil
func (r Result) Err() error {
	if r.ok {
		return nil
	}
	return &CommandFailure{Command: r.command, Message: r.message}
}

func (r Result) withCommand(cmd string) Result {
	r.command = cmd
	return r
}

func (r Result) String() string {
	if r.ok {
		return "success"
	}
	return "failure: " + r.message
}

var multiSpace = regexp.MustCompile(` +`)

// Classify 判断写操作输出：首个非空行即为失败信息，没有则成功
// RouterOS 成功时不输出任何内容，失败时输出单行诊断
func Classify(raw string) Result {
	for _, line := range splitLines(raw) {
		msg := strings.TrimSpace(multiSpace.ReplaceAllString(line, " "))
		if msg != "" {
			return Failure(msg)
		}
	}
	return Success()
}
