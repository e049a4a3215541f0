package util

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
)

// DefaultCharset RouterOS 终端未设置 codepage 时的输出编码
const DefaultCharset = "windows-1252"

// charsets RouterOS 设备常见的非 UTF-8 codepage
var charsets = map[string]encoding.Encoding{
	"windows-1250": charmap.Windows1250,
	"windows-1251": charmap.Windows1251,
	"windows-1252": charmap.Windows1252,
	"iso-8859-1":   charmap.ISO8859_1,
	"iso-8859-5":   charmap.ISO8859_5,
	"koi8-r":       charmap.KOI8R,
	"gbk":          simplifiedchinese.GBK,
	"gb18030":      simplifiedchinese.GB18030,
}

// KnownCharset 是否为支持的 codepage 名称
func KnownCharset(name string) bool {
	_, ok := charsets[normalizeCharset(name)]
	return ok
}

func normalizeCharset(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, "_", "-")
	if strings.HasPrefix(name, "cp125") {
		name = "windows-" + strings.TrimPrefix(name, "cp")
	}
	return name
}

// DecodeBytes 将设备输出转为 UTF-8。已是合法 UTF-8 时原样返回；
// 否则按 charset 解码，charset 为空或未知时使用 DefaultCharset
func DecodeBytes(b []byte, charset string) string {
	if len(b) == 0 {
		return ""
	}
	if utf8.Valid(b) {
		return string(b)
	}
	enc, ok := charsets[normalizeCharset(charset)]
	if !ok {
		enc = charsets[DefaultCharset]
	}
	decoded, err := enc.NewDecoder().Bytes(b)
	if err != nil || !utf8.Valid(decoded) {
		return strings.ToValidUTF8(string(b), "�")
	}
	return string(decoded)
}

// Decode 同 DecodeBytes，输入为字符串
func Decode(s, charset string) string {
	return DecodeBytes([]byte(s), charset)
}
