package logger

import (
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
)

// OutputLines 命令输出的头部和尾部行
type OutputLines struct {
	Total int      `json:"total"`
	Head  []string `json:"head"`
	Tail  []string `json:"tail,omitempty"`
}

// SummarizeOutput 提取输出的前后各 maxLines 行，行数不超过 maxLines 时 Tail 为空
func SummarizeOutput(output string, maxLines int) OutputLines {
	if maxLines <= 0 {
		maxLines = 5
	}
	output = strings.ReplaceAll(output, "\r\n", "\n")
	output = strings.TrimRight(output, "\n")
	if output == "" {
		return OutputLines{}
	}
	lines := strings.Split(output, "\n")
	if len(lines) <= maxLines {
		return OutputLines{Total: len(lines), Head: lines}
	}
	head := make([]string, maxLines)
	copy(head, lines[:maxLines])
	start := len(lines) - maxLines
	if start < maxLines {
		start = maxLines
	}
	tail := make([]string, len(lines)-start)
	copy(tail, lines[start:])
	return OutputLines{Total: len(lines), Head: head, Tail: tail}
}

// String 日志格式：head [a ⟩ b], tail [c ⟩ d]
func (o OutputLines) String() string {
	if o.Total == 0 {
		return ""
	}
	s := "head [" + strings.Join(o.Head, " ⟩ ") + "]"
	if len(o.Tail) > 0 {
		s += ", tail [" + strings.Join(o.Tail, " ⟩ ") + "]"
	}
	return s
}

// DebugCommandOutput 在 debug 级别记录命令输出摘要
func DebugCommandOutput(command string, output string, maxLines int) {
	if GetLogger().Level < logrus.DebugLevel {
		return
	}
	lines := SummarizeOutput(output, maxLines)
	if lines.Total == 0 {
		return
	}
	GetLogger().WithField("lines", lines.Total).Debugf("reply [%s]: %s", command, lines)
}

var secretArg = regexp.MustCompile(`((?:password|wpa2-pre-shared-key|wpa-pre-shared-key|passphrase)=)("(?:[^"\\]|\\.)*"|\S+)`)

// Redact 隐藏命令中的口令参数
func Redact(command string) string {
	return secretArg.ReplaceAllString(command, "${1}***")
}
