package routeros

import "strings"

// InterfaceStatus 接口状态（由 print detail 的状态码解码）
type InterfaceStatus string

const (
	StatusRunning             InterfaceStatus = "running"
	StatusDisabled            InterfaceStatus = "disabled"
	StatusDynamic             InterfaceStatus = "dynamic"
	StatusSlave               InterfaceStatus = "slave"
	StatusRunningSlave        InterfaceStatus = "running-slave"
	StatusDisabledSlave       InterfaceStatus = "disabled-slave"
	StatusDynamicRunningSlave InterfaceStatus = "dynamic-running-slave"
	StatusNotConnected        InterfaceStatus = "not-connected"
)

// interfaceStatusCodes 状态码查找表
var interfaceStatusCodes = map[string]InterfaceStatus{
	"R":   StatusRunning,
	"X":   StatusDisabled,
	"D":   StatusDynamic,
	"S":   StatusSlave,
	"RS":  StatusRunningSlave,
	"XS":  StatusDisabledSlave,
	"DRS": StatusDynamicRunningSlave,
}

// Interface 接口记录
type Interface struct {
	Status      InterfaceStatus `json:"status"`
	Name        string          `json:"name"`
	DefaultName string          `json:"default_name,omitempty"`
	Type        string          `json:"type"`
	MTU         string          `json:"mtu"`
	MACAddress  string          `json:"mac_address"`
}

// IPAddress IP 地址记录
type IPAddress struct {
	Flags     string `json:"flags,omitempty"`
	Address   string `json:"address"`
	Network   string `json:"network"`
	Interface string `json:"interface"`
}

// IP 返回去掉前缀长度的地址部分
func (a IPAddress) IP() string {
	ip, _, _ := strings.Cut(a.Address, "/")
	return ip
}

// Prefix 返回前缀长度（无前缀时为空）
func (a IPAddress) Prefix() string {
	_, prefix, _ := strings.Cut(a.Address, "/")
	return prefix
}

// Route 路由记录
type Route struct {
	Flags       string `json:"flags"`
	Destination string `json:"destination"`
	Gateway     string `json:"gateway"`
	Distance    string `json:"distance"`
}

// Service IP 服务记录
type Service struct {
	Flags   string `json:"flags,omitempty"`
	Name    string `json:"name"`
	Port    string `json:"port"`
	Address string `json:"address,omitempty"`
}

// User 用户记录
type User struct {
	Flags    string `json:"flags,omitempty"`
	Username string `json:"username"`
	Group    string `json:"group"`
}

// Resources 系统资源（key -> 规范化后的 value）
type Resources map[string]string

// Get 读取资源字段，不存在时返回空串
func (r Resources) Get(key string) string {
	return r[key]
}

// DHCPNetwork DHCP 网络记录
type DHCPNetwork struct {
	Address string `json:"address"`
	Gateway string `json:"gateway,omitempty"`
}

// WirelessInterface 无线接口记录
type WirelessInterface struct {
	Index     int    `json:"index"`
	Name      string `json:"name"`
	Frequency string `json:"frequency"`
	BandSpec  string `json:"band"`
	Disabled  bool   `json:"disabled"`
}

// PackageUpdate 软件包更新状态
type PackageUpdate struct {
	Channel          string `json:"channel"`
	InstalledVersion string `json:"installed_version"`
	LatestVersion    string `json:"latest_version"`
	Status           string `json:"status"`
}

// FileHandle 设备文件句柄（备份或导出）
type FileHandle struct {
	Name       string `json:"name"`
	RemotePath string `json:"remote_path"`
	LocalPath  string `json:"local_path,omitempty"`
}
