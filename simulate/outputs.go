package simulate

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sshcollectorpro/rosconnector/pkg/logger"
)

// Outputs 模拟命令输出来源
type Outputs interface {
	Lookup(device, command string) (string, bool)
}

// DirOutputs 从 <base>/<device>/<name>.txt 读取输出，name 由命令规范化得到
// 例如 /ip address print without-paging -> ip_address_print_without-paging.txt
type DirOutputs string

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._=-]+`)

// OutputFileName 命令对应的输出文件名
func OutputFileName(command string) string {
	name := strings.TrimPrefix(strings.TrimSpace(command), "/")
	name = unsafeName.ReplaceAllString(name, "_")
	return strings.Trim(name, "_") + ".txt"
}

func (d DirOutputs) Lookup(device, command string) (string, bool) {
	p := filepath.Join(string(d), device, OutputFileName(command))
	bs, err := os.ReadFile(p)
	if err != nil {
		logger.Debugf("Simulate: no output for %q (%s)", command, p)
		return "", false
	}
	return string(bs), true
}

// MapOutputs 按命令原文匹配，所有设备共用
type MapOutputs map[string]string

func (m MapOutputs) Lookup(_ string, command string) (string, bool) {
	out, ok := m[strings.TrimSpace(command)]
	return out, ok
}

func ensureCRLF(s string) string {
	if s == "" {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\n", "\r\n")
	if !strings.HasSuffix(s, "\r\n") {
		s += "\r\n"
	}
	return s
}
