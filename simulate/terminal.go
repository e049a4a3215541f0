package simulate

import (
	"bufio"
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/sshcollectorpro/rosconnector/pkg/logger"
)

const licenseQuestion = "Do you want to see the software license? [Y/n]: "

// terminal 交互式会话：回显输入行，输出后打印 [user@identity] > 提示符（不换行）
type terminal struct {
	ch   ssh.Channel
	user string
	dev  *deviceState
	opts ServerOptions
}

func newTerminal(ch ssh.Channel, user string, dev *deviceState, opts ServerOptions) *terminal {
	return &terminal{ch: ch, user: user, dev: dev, opts: opts}
}

func (t *terminal) write(s string) {
	_, _ = t.ch.Write([]byte(s))
}

func (t *terminal) prompt() string {
	t.dev.mu.Lock()
	defer t.dev.mu.Unlock()
	return fmt.Sprintf("[%s@%s] > ", t.user, t.dev.identity)
}

func (t *terminal) run() {
	var idle *time.Timer
	if t.opts.IdleSeconds > 0 {
		d := time.Duration(t.opts.IdleSeconds) * time.Second
		idle = time.AfterFunc(d, func() {
			t.write("\r\nSession closed due to idle timeout.\r\n")
			_ = t.ch.Close()
		})
		defer idle.Stop()
	}

	reader := bufio.NewReader(t.ch)
	t.write("\r\n\r\n  MikroTik RouterOS (simulated)\r\n\r\n")

	t.dev.mu.Lock()
	licensed := t.dev.licensed
	t.dev.mu.Unlock()
	if !licensed {
		t.write(licenseQuestion)
		answer, err := readAnswer(reader)
		if err != nil {
			return
		}
		if answer == 'y' || answer == 'Y' {
			t.write("\r\nMIKROTIK SOFTWARE END USER LICENSE AGREEMENT\r\n")
		}
		t.dev.mu.Lock()
		t.dev.licensed = true
		t.dev.mu.Unlock()
	}
	t.write("\r\n" + t.prompt())

	lines := newLineReader(reader)
	for {
		line, err := lines.next()
		if err != nil {
			logger.Debugf("Simulate: session for %s ended: %v", t.user, err)
			return
		}
		cmd := strings.TrimSpace(line)
		if cmd == "" {
			t.write("\r\n" + t.prompt())
			continue
		}
		if idle != nil {
			idle.Reset(time.Duration(t.opts.IdleSeconds) * time.Second)
		}

		t.write(cmd + "\r\n")
		out, quit := execute(t.dev, t.user, t.opts.Outputs, cmd)
		if quit {
			t.write("\r\n")
			return
		}
		t.write(ensureCRLF(out) + t.prompt())
	}
}

// readAnswer 读取单个非换行字符
func readAnswer(r *bufio.Reader) (byte, error) {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		if b != '\r' && b != '\n' {
			return b, nil
		}
	}
}

// lineReader 按 CR、LF 或 CRLF 切分输入行
type lineReader struct {
	r      *bufio.Reader
	skipLF bool
}

func newLineReader(r *bufio.Reader) *lineReader {
	return &lineReader{r: r}
}

func (l *lineReader) next() (string, error) {
	var sb strings.Builder
	for {
		b, err := l.r.ReadByte()
		if err != nil {
			return "", err
		}
		if b == '\n' && l.skipLF {
			l.skipLF = false
			continue
		}
		l.skipLF = false
		switch b {
		case '\r':
			l.skipLF = true
			return sb.String(), nil
		case '\n':
			return sb.String(), nil
		}
		sb.WriteByte(b)
	}
}

var (
	nameParam = regexp.MustCompile(`(?:^|\s)name=("(?:[^"\\]|\\.)*"|\S+)`)
	fileParam = regexp.MustCompile(`\s+file=("(?:[^"\\]|\\.)*"|\S+)`)
	removeArg = regexp.MustCompile(`^/file remove\s+("(?:[^"\\]|\\.)*"|\S+)$`)
)

func unquote(v string) string {
	if len(v) >= 2 && strings.HasPrefix(v, `"`) && strings.HasSuffix(v, `"`) {
		v = v[1 : len(v)-1]
		v = strings.ReplaceAll(v, `\"`, `"`)
		v = strings.ReplaceAll(v, `\\`, `\`)
	}
	return v
}

// execute 执行单条命令，返回输出以及是否退出会话
// 备份、导出与 print file= 会在设备文件系统中生成对应文件
func execute(dev *deviceState, user string, outputs Outputs, command string) (string, bool) {
	cmd := strings.TrimSpace(command)
	dev.mu.Lock()
	dev.received = append(dev.received, cmd)
	identity := dev.identity
	dev.mu.Unlock()

	switch {
	case cmd == "/quit" || cmd == "quit":
		return "", true

	case cmd == "/system identity print":
		return "  name: " + identity, false

	case strings.HasPrefix(cmd, "/system identity set "):
		if m := nameParam.FindStringSubmatch(cmd); m != nil {
			dev.mu.Lock()
			dev.identity = unquote(m[1])
			dev.mu.Unlock()
		}
		return "", false

	case strings.HasPrefix(cmd, "/system backup save"):
		name := "backup"
		if m := nameParam.FindStringSubmatch(cmd); m != nil {
			name = unquote(m[1])
		}
		dev.files.WriteFile(name+".backup", []byte("ROSBACKUP "+identity+"\n"))
		return "Configuration backup saved", false

	case strings.HasPrefix(cmd, "/file remove"):
		m := removeArg.FindStringSubmatch(cmd)
		if m == nil || !dev.files.Remove(unquote(m[1])) {
			return "no such item", false
		}
		return "", false
	}

	if m := fileParam.FindStringSubmatch(cmd); m != nil {
		base := strings.TrimSpace(fileParam.ReplaceAllString(cmd, ""))
		out := lookup(outputs, user, identity, base)
		file := unquote(m[1])
		ext := ".txt"
		if strings.HasPrefix(base, "/export") {
			ext = ".rsc"
		}
		dev.files.WriteFile(file+ext, []byte(out))
		return "", false
	}

	if out, ok := outputs.Lookup(user, cmd); ok {
		return out, false
	}
	if strings.HasPrefix(cmd, "/export") {
		return defaultExport(identity), false
	}
	if !strings.HasPrefix(cmd, "/") && !strings.HasPrefix(cmd, ":") {
		word, _, _ := strings.Cut(cmd, " ")
		return fmt.Sprintf("bad command name %s (line 1 column 1)", word), false
	}
	return "", false
}

func lookup(outputs Outputs, user, identity, cmd string) string {
	if out, ok := outputs.Lookup(user, cmd); ok {
		return out
	}
	if strings.HasPrefix(cmd, "/export") {
		return defaultExport(identity)
	}
	return ""
}

func defaultExport(identity string) string {
	return "# RouterOS 7.13\n/system identity\nset name=" + identity + "\n"
}
