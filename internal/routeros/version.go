package routeros

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/mod/semver"
)

// RouterOS 版本形如 7.12.1、7.13、7.13beta2、6.49.10 (long-term)
var rosVersion = regexp.MustCompile(`^(\d+)(?:\.(\d+))?(?:\.(\d+))?(?:(alpha|beta|rc)(\d+))?`)

// NormalizeVersion 将 RouterOS 版本转换为 semver（v 前缀、三段数字、预发布后缀）
func NormalizeVersion(v string) (string, error) {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "v")
	m := rosVersion.FindStringSubmatch(v)
	if m == nil {
		return "", fmt.Errorf("invalid RouterOS version %q", v)
	}
	minor, patch := m[2], m[3]
	if minor == "" {
		minor = "0"
	}
	if patch == "" {
		patch = "0"
	}
	out := fmt.Sprintf("v%s.%s.%s", m[1], minor, patch)
	if m[4] != "" {
		out += "-" + m[4] + "." + m[5]
	}
	if !semver.IsValid(out) {
		return "", fmt.Errorf("invalid RouterOS version %q", v)
	}
	return out, nil
}

// CompareVersions 比较两个 RouterOS 版本，返回 -1/0/1
func CompareVersions(a, b string) (int, error) {
	na, err := NormalizeVersion(a)
	if err != nil {
		return 0, err
	}
	nb, err := NormalizeVersion(b)
	if err != nil {
		return 0, err
	}
	return semver.Compare(na, nb), nil
}
