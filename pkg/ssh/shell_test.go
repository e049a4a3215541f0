package ssh

import (
	"bytes"
	"io"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func sanitize(s string) string {
	var sc screen
	sc.Write([]byte(s))
	return sc.String()
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "[admin@R1] > ", sanitize("\x1b[9999B[admin@R1] > "))
	assert.Equal(t, "a\nb\n", sanitize("a\r\nb\r\n"))
	assert.Equal(t, "ab", sanitize("a\x07b"), "控制字符应被移除")
	assert.Equal(t, "x\ty", sanitize("x\ty"))
}

func TestScreenAcrossChunks(t *testing.T) {
	var sc screen
	for _, chunk := range []string{"\x1b[99", "99B[admin@R1] > /ip", " route print\r", "\n 0 ADS\x1b", "[K dst-address=0.0.0.0/0\r\n"} {
		sc.Write([]byte(chunk))
	}
	assert.Equal(t, "[admin@R1] > /ip route print\n 0 ADS dst-address=0.0.0.0/0\n", sc.String(), "跨块截断的转义序列与 \\r\\n 应被正确清理")
	assert.Equal(t, len(sc.String()), sc.Len())
}

func TestEchoEnd(t *testing.T) {
	// 回显行之前的残留提示符被跳过
	text := "\n[admin@R1] > /system identity print\n  name: R1\n[admin@R1] > "
	n := echoEnd(text, "/system identity print")
	require.GreaterOrEqual(t, n, 0)
	assert.Equal(t, "  name: R1\n[admin@R1] > ", text[n:])

	assert.Equal(t, -1, echoEnd("[admin@R1] > /system ident", "/system identity print"), "回显未完成")
	assert.Equal(t, -1, echoEnd("[admin@R1] > /system identity print", "/system identity print"), "回显行未换行")
}

func TestAutoRespondNewOutputOnly(t *testing.T) {
	var sent bytes.Buffer
	s := &Shell{stdin: nopWriteCloser{&sent}, opts: ShellOptions{AutoInteractions: DefaultAutoInteractions()}}
	answered := map[int]bool{}

	text := "Do you want to see the soft"
	s.autoRespond(text, 0, answered)
	assert.Empty(t, sent.String())

	from := len(text)
	text += "ware license? [Y/n]: "
	s.autoRespond(text, from, answered)
	assert.Equal(t, "n", sent.String(), "跨块的匹配同样触发")

	s.autoRespond(text+"\n", len(text), answered)
	assert.Equal(t, "n", sent.String(), "同一规则只触发一次")
}

func TestTrimPrompt(t *testing.T) {
	assert.Equal(t, "  name: R1", trimPrompt("  name: R1\n[admin@R1] > "))
	assert.Equal(t, "", trimPrompt("[admin@R1] > "))
	assert.Equal(t, "a\n", trimPrompt("a\n\n[admin@R1] > "))
}

func TestAtPrompt(t *testing.T) {
	s := &Shell{prompt: regexp.MustCompile(DefaultPromptPattern)}

	assert.True(t, s.atPrompt("output\n[admin@MikroTik] > "))
	assert.True(t, s.atPrompt("[admin@r1] /ip address> "))
	assert.False(t, s.atPrompt("[admin@MikroTik] > \nmore output"))
	assert.False(t, s.atPrompt("Do you want to see the software license? [Y/n]: "))
}

func TestShellOptionsDefaults(t *testing.T) {
	o := ShellOptions{}.withDefaults()
	assert.Equal(t, DefaultPromptPattern, o.PromptPattern)
	assert.Equal(t, 4098, o.Width)
	assert.Equal(t, 511, o.Height)
	assert.Len(t, o.AutoInteractions, 2)

	o = ShellOptions{AutoInteractions: []AutoInteraction{}}.withDefaults()
	assert.Empty(t, o.AutoInteractions, "显式设置为空时不使用默认规则")
}
