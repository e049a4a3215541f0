package routeros

import (
	"regexp"
	"sort"
	"time"
)

// DelayTier 行数档位与响应等待系数
type DelayTier struct {
	MaxRows     int     `mapstructure:"max_rows" json:"max_rows"` // <=0 表示不设上限
	DelayFactor float64 `mapstructure:"delay_factor" json:"delay_factor"`
}

// DefaultDelayTiers 默认档位：<=500、<=1500、<=2500、>2500
func DefaultDelayTiers() []DelayTier {
	return []DelayTier{
		{MaxRows: 500, DelayFactor: 4},
		{MaxRows: 1500, DelayFactor: 8},
		{MaxRows: 2500, DelayFactor: 16},
		{MaxRows: 0, DelayFactor: 32},
	}
}

// DelayForRows 按行数选择等待系数，超过所有上限时使用最后（最长）一档
func DelayForRows(tiers []DelayTier, rows int) float64 {
	if len(tiers) == 0 {
		tiers = DefaultDelayTiers()
	}
	sorted := make([]DelayTier, len(tiers))
	copy(sorted, tiers)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].MaxRows, sorted[j].MaxRows
		if a <= 0 {
			return false
		}
		if b <= 0 {
			return true
		}
		return a < b
	})
	for _, t := range sorted {
		if t.MaxRows <= 0 || rows <= t.MaxRows {
			return t.DelayFactor
		}
	}
	return sorted[len(sorted)-1].DelayFactor
}

// fileTimestampLayout 备份/导出文件名中的时间格式（日-月-年_时-分-秒）
const fileTimestampLayout = "02-01-2006_15-04-05"

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// DeviceFileName 生成 <name>_<identity>_<timestamp>，identity 中的空白等字符替换为 _
func DeviceFileName(name, identity string, t time.Time) string {
	return name + "_" + unsafeFileChars.ReplaceAllString(identity, "_") + "_" + t.Format(fileTimestampLayout)
}
