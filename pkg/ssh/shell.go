package ssh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/sshcollectorpro/rosconnector/internal/util"
)

// DefaultPromptPattern RouterOS 提示符，如 [admin@MikroTik] > 或 [admin@r1] /ip address>
const DefaultPromptPattern = `\[[^\[\]]+@[^\[\]]+\][^>]*>\s*$`

// ErrCommandTimeout 在超时时间内没有等到提示符
var ErrCommandTimeout = errors.New("command timeout")

// ErrShellClosed 会话已关闭
var ErrShellClosed = errors.New("shell closed")

// AutoInteraction 自动交互对
// 当输出包含 ExpectOutput（大小写不敏感）时，自动发送 AutoSend
type AutoInteraction struct {
	ExpectOutput string `mapstructure:"expect_output"`
	AutoSend     string `mapstructure:"auto_send"`
}

// DefaultAutoInteractions 首次登录的许可证询问与分页提示
func DefaultAutoInteractions() []AutoInteraction {
	return []AutoInteraction{
		{ExpectOutput: "see the software license? [Y/n]", AutoSend: "n"},
		{ExpectOutput: "-- [Q quit|D dump|down]", AutoSend: "D"},
	}
}

// ShellOptions 交互会话选项
type ShellOptions struct {
	PromptPattern    string
	CommandTimeout   time.Duration // 单条命令的基础等待时间，乘以 delayFactor
	ReadyTimeout     time.Duration // 等待首个提示符
	AutoInteractions []AutoInteraction
	Width, Height    int
	Charset          string // 非 UTF-8 输出的 codepage，见 util.DecodeBytes
}

func (o ShellOptions) withDefaults() ShellOptions {
	if o.PromptPattern == "" {
		o.PromptPattern = DefaultPromptPattern
	}
	if o.CommandTimeout <= 0 {
		o.CommandTimeout = 10 * time.Second
	}
	if o.ReadyTimeout <= 0 {
		o.ReadyTimeout = 15 * time.Second
	}
	if o.AutoInteractions == nil {
		o.AutoInteractions = DefaultAutoInteractions()
	}
	if o.Width <= 0 {
		o.Width = 4098
	}
	if o.Height <= 0 {
		o.Height = 511
	}
	return o
}

// Shell 单个 PTY 交互会话，Send 串行执行
type Shell struct {
	mu      sync.Mutex
	session *ssh.Session
	stdin   io.WriteCloser
	prompt  *regexp.Regexp
	opts    ShellOptions

	chunks chan []byte
	closed bool
}

// OpenShell 在已建立的连接上打开 PTY 会话并等待首个提示符
func (c *Client) OpenShell(ctx context.Context, opts ShellOptions) (*Shell, error) {
	opts = opts.withDefaults()
	prompt, err := regexp.Compile(opts.PromptPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid prompt pattern: %w", err)
	}

	session, err := c.newSessionWithRetry(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	var ptyErr error
	for _, term := range []string{"vt100", "xterm", "dumb"} {
		if ptyErr = session.RequestPty(term, opts.Height, opts.Width, modes); ptyErr == nil {
			break
		}
	}
	if ptyErr != nil {
		session.Close()
		return nil, fmt.Errorf("failed to request pty: %w", ptyErr)
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to get stdin: %w", err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to get stdout: %w", err)
	}
	if err := session.Shell(); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to start shell: %w", err)
	}

	sh := &Shell{
		session: session,
		stdin:   stdin,
		prompt:  prompt,
		opts:    opts,
		chunks:  make(chan []byte, 256),
	}
	go sh.readLoop(stdout)

	if err := sh.waitReady(ctx); err != nil {
		sh.Close()
		return nil, err
	}
	return sh, nil
}

func (s *Shell) readLoop(r io.Reader) {
	defer close(s.chunks)
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			b := make([]byte, n)
			copy(b, buf[:n])
			s.chunks <- b
		}
		if err != nil {
			return
		}
	}
}

// waitReady 登录横幅之后等待提示符，期间周期性发送回车
func (s *Shell) waitReady(ctx context.Context) error {
	deadline := time.NewTimer(s.opts.ReadyTimeout)
	defer deadline.Stop()
	nudge := time.NewTicker(time.Second)
	defer nudge.Stop()

	var sc screen
	answered := map[int]bool{}
	_, _ = s.stdin.Write([]byte("\r\n"))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("no prompt within %s: %w", s.opts.ReadyTimeout, ErrCommandTimeout)
		case <-nudge.C:
			_, _ = s.stdin.Write([]byte("\r\n"))
		case b, ok := <-s.chunks:
			if !ok {
				return ErrShellClosed
			}
			scanned := sc.Len()
			sc.Write(b)
			text := sc.String()
			s.autoRespond(text, scanned, answered)
			if s.atPrompt(text) {
				return nil
			}
		}
	}
}

// autoRespond 每条规则在一次读取周期内只触发一次
// 只检查 from 之后新增的输出，并回退规则长度以覆盖跨块的匹配
func (s *Shell) autoRespond(text string, from int, answered map[int]bool) {
	if len(answered) >= len(s.opts.AutoInteractions) {
		return
	}
	longest := 0
	for _, ai := range s.opts.AutoInteractions {
		longest = max(longest, len(ai.ExpectOutput))
	}
	lower := strings.ToLower(text[max(0, from-longest+1):])
	for i, ai := range s.opts.AutoInteractions {
		if answered[i] || ai.ExpectOutput == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(ai.ExpectOutput)) {
			_, _ = s.stdin.Write([]byte(ai.AutoSend))
			answered[i] = true
		}
	}
}

// atPrompt 最后一行（提示符后没有换行）匹配提示符
func (s *Shell) atPrompt(text string) bool {
	last := text
	if i := strings.LastIndex(text, "\n"); i >= 0 {
		last = text[i+1:]
	}
	return s.prompt.MatchString(last)
}

// Send 发送命令并读取到下一个提示符，返回去掉回显行与提示符的输出
func (s *Shell) Send(ctx context.Context, command string, delayFactor float64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrShellClosed
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if delayFactor <= 0 {
		delayFactor = 1
	}
	s.drain()

	if _, err := s.stdin.Write([]byte(command + "\r\n")); err != nil {
		return "", fmt.Errorf("failed to write command: %w", err)
	}

	timeout := time.Duration(float64(s.opts.CommandTimeout) * delayFactor)
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var sc screen
	answered := map[int]bool{}
	echo := -1
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
			return "", fmt.Errorf("%q after %s: %w", command, timeout, ErrCommandTimeout)
		case b, ok := <-s.chunks:
			if !ok {
				return "", ErrShellClosed
			}
			scanned := sc.Len()
			sc.Write(b)
			text := sc.String()
			s.autoRespond(text, scanned, answered)
			// 先等到命令回显，回显之后出现的提示符才表示命令结束
			if echo < 0 {
				from := strings.LastIndex(text[:scanned], "\n") + 1
				if n := echoEnd(text[from:], command); n >= 0 {
					echo = from + n
				}
			}
			if echo >= 0 && s.atPrompt(text[echo:]) {
				return util.Decode(trimPrompt(text[echo:]), s.opts.Charset), nil
			}
		}
	}
}

// drain 丢弃上一条命令之后残留的输出
func (s *Shell) drain() {
	for {
		select {
		case _, ok := <-s.chunks:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

// echoEnd 回显行之后内容的起始偏移；尚未收到完整回显行时返回 -1
func echoEnd(text, command string) int {
	i := strings.Index(text, strings.TrimSpace(command))
	if i < 0 {
		return -1
	}
	nl := strings.Index(text[i:], "\n")
	if nl < 0 {
		return -1
	}
	return i + nl + 1
}

// trimPrompt 去掉末行提示符
func trimPrompt(reply string) string {
	if i := strings.LastIndex(reply, "\n"); i >= 0 {
		return reply[:i]
	}
	return ""
}

// Close 退出并关闭会话
func (s *Shell) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	_, _ = s.stdin.Write([]byte("/quit\r\n"))
	_ = s.stdin.Close()
	if err := s.session.Close(); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// screen 逐块累积终端输出，写入时移除 ANSI 转义序列与控制字符（含 \r）
// 跨块截断的转义序列由 skip 状态延续
type screen struct {
	buf  strings.Builder
	skip bool
}

func (sc *screen) Write(p []byte) {
	for _, ch := range p {
		if sc.skip {
			// CSI 序列以字母结尾
			if (ch >= 'A' && ch <= 'Z') || (ch >= 'a' && ch <= 'z') {
				sc.skip = false
			}
			continue
		}
		if ch == 0x1b {
			sc.skip = true
			continue
		}
		if ch < 0x20 && ch != '\n' && ch != '\t' {
			continue
		}
		sc.buf.WriteByte(ch)
	}
}

func (sc *screen) Len() int       { return sc.buf.Len() }
func (sc *screen) String() string { return sc.buf.String() }

