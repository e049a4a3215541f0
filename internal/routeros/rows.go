package routeros

import (
	"regexp"
	"strconv"
	"strings"
)

// Bounds 各类列表允许的最大行号
// 数值来自 RouterOS 实测的最大显示行号，并非协议限制，可通过配置覆盖
type Bounds struct {
	Interfaces  int `mapstructure:"interfaces" json:"interfaces"`
	IPAddresses int `mapstructure:"ip_addresses" json:"ip_addresses"`
	Routes      int `mapstructure:"routes" json:"routes"`
	Services    int `mapstructure:"services" json:"services"`
	Users       int `mapstructure:"users" json:"users"`
	Networks    int `mapstructure:"networks" json:"networks"`
	Wireless    int `mapstructure:"wireless" json:"wireless"`
}

// DefaultBounds 默认行号上限
func DefaultBounds() Bounds {
	return Bounds{
		Interfaces:  8192,
		IPAddresses: 8192,
		Routes:      8000000,
		Services:    29,
		Users:       29,
		Networks:    8192,
		Wireless:    8192,
	}
}

// withDefaults 未设置（<=0）的字段回退到默认值
func (b Bounds) withDefaults() Bounds {
	d := DefaultBounds()
	if b.Interfaces <= 0 {
		b.Interfaces = d.Interfaces
	}
	if b.IPAddresses <= 0 {
		b.IPAddresses = d.IPAddresses
	}
	if b.Routes <= 0 {
		b.Routes = d.Routes
	}
	if b.Services <= 0 {
		b.Services = d.Services
	}
	if b.Users <= 0 {
		b.Users = d.Users
	}
	if b.Networks <= 0 {
		b.Networks = d.Networks
	}
	if b.Wireless <= 0 {
		b.Wireless = d.Wireless
	}
	return b
}

// row 一条列表记录：行号 + 合并续行、去掉注释后的规范化文本
// raw 保留引号内的原始空白，供 quotedValue 使用
type row struct {
	index  int
	line   int
	text   string
	raw    string
	tokens []string
}

func splitLines(raw string) []string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")
	return strings.Split(raw, "\n")
}

// normalizeLine 折叠空白并去掉首尾空格
func normalizeLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// stripComment 去掉 ";;; 注释" 直到行尾
func stripComment(s string) string {
	if i := strings.Index(s, ";;;"); i >= 0 {
		return s[:i]
	}
	return s
}

// parseRowIndex 判断 token 是否为行号（纯数字）
func parseRowIndex(token string) (int, bool) {
	if token == "" || len(token) > 9 {
		return 0, false
	}
	for i := 0; i < len(token); i++ {
		if token[i] < '0' || token[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(token)
	if err != nil {
		return 0, false
	}
	return n, true
}

// collectRows 按行号切分输出，缩进的续行并入当前记录
// 空行、表头（Flags:/Columns:/#）结束当前记录
func collectRows(raw string) []row {
	var rows []row
	var cur *row
	flush := func() {
		if cur != nil {
			cur.text = normalizeLine(cur.text)
			cur.tokens = strings.Fields(cur.text)
			rows = append(rows, *cur)
			cur = nil
		}
	}
	for i, physical := range splitLines(raw) {
		kept := strings.TrimSpace(stripComment(physical))
		clean := normalizeLine(kept)
		if strings.TrimSpace(physical) == "" {
			flush()
			continue
		}
		first, _, _ := strings.Cut(clean, " ")
		if idx, ok := parseRowIndex(first); ok {
			flush()
			cur = &row{index: idx, line: i + 1, text: clean, raw: kept}
			continue
		}
		indented := physical[0] == ' ' || physical[0] == '\t'
		if cur != nil && indented {
			if clean != "" {
				cur.text += " " + clean
				cur.raw += " " + kept
			}
			continue
		}
		flush()
	}
	flush()
	return rows
}

var (
	anyFlags      = regexp.MustCompile(`^[A-Z]+$`)
	serviceFlags  = regexp.MustCompile(`^[XI]+$`)
	userFlags     = regexp.MustCompile(`^X$`)
	keyValueToken = regexp.MustCompile(`^[a-z0-9-]+=`)
)

// flagShift 列偏移判断：tokens[pos] 为状态标志字母时，后续列整体右移一位
// 返回偏移量和标志文本
func flagShift(tokens []string, pos int, flags *regexp.Regexp) (int, string) {
	if pos >= len(tokens) {
		return 0, ""
	}
	if flags.MatchString(tokens[pos]) {
		return 1, tokens[pos]
	}
	return 0, ""
}

// quotedValue 读取 key="value"，key 必须位于 token 起始处；支持 \" 与 \\ 转义
func quotedValue(text, key string) (string, bool) {
	re := quotedPattern(key)
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return unescapeQuoted(m[1]), true
}

func unescapeQuoted(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

// plainValue 读取 key=value，值截止到下一个空白
func plainValue(text, key string) (string, bool) {
	re := plainPattern(key)
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.Trim(m[1], `"`), true
}

var (
	quotedCache = map[string]*regexp.Regexp{}
	plainCache  = map[string]*regexp.Regexp{}
)

func init() {
	for _, k := range []string{"name", "default-name", "type", "ssid"} {
		quotedCache[k] = regexp.MustCompile(quotedExpr(k))
	}
	for _, k := range []string{"actual-mtu", "mac-address", "dst-address", "gateway", "distance", "frequency", "band", "disabled", "address", "interface", "name"} {
		plainCache[k] = regexp.MustCompile(`(?:^|\s)` + regexp.QuoteMeta(k) + `=(\S+)`)
	}
}

func quotedPattern(key string) *regexp.Regexp {
	if re, ok := quotedCache[key]; ok {
		return re
	}
	return regexp.MustCompile(quotedExpr(key))
}

func quotedExpr(key string) string {
	return `(?:^|\s)` + regexp.QuoteMeta(key) + `="((?:[^"\\]|\\.)*)"`
}

func plainPattern(key string) *regexp.Regexp {
	if re, ok := plainCache[key]; ok {
		return re
	}
	return regexp.MustCompile(`(?:^|\s)` + regexp.QuoteMeta(key) + `=(\S+)`)
}
