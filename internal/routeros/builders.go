package routeros

import (
	"strconv"
	"strings"
)

// Builder 可生成单条 RouterOS 命令的参数结构
type Builder interface {
	Command() string
}

// Ptr 构造可选参数
func Ptr[T any](v T) *T { return &v }

// YesNo RouterOS 的 yes/no 取值
func YesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// cmdBuilder 按固定顺序追加 key=value 子句
type cmdBuilder struct {
	sb strings.Builder
}

func newCmd(verb string) *cmdBuilder {
	b := &cmdBuilder{}
	b.sb.WriteString(verb)
	return b
}

func (b *cmdBuilder) raw(s string) *cmdBuilder {
	b.sb.WriteByte(' ')
	b.sb.WriteString(s)
	return b
}

func (b *cmdBuilder) kv(key, value string) *cmdBuilder {
	return b.raw(key + "=" + value)
}

func (b *cmdBuilder) quoted(key, value string) *cmdBuilder {
	return b.raw(key + "=" + quote(value))
}

// text 自由文本取值，含空格或特殊字符时加引号
func (b *cmdBuilder) text(key, value string) *cmdBuilder {
	return b.raw(key + "=" + quoteIfNeeded(value))
}

func (b *cmdBuilder) opt(key string, value *string) *cmdBuilder {
	if value != nil {
		b.kv(key, *value)
	}
	return b
}

func (b *cmdBuilder) optText(key string, value *string) *cmdBuilder {
	if value != nil {
		b.text(key, *value)
	}
	return b
}

func (b *cmdBuilder) String() string { return b.sb.String() }

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// quoteIfNeeded 仅由安全字符组成的取值保持原样
func quoteIfNeeded(s string) string {
	if s == "" {
		return quote(s)
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case strings.ContainsRune("-_.:/,@+", r):
		default:
			return quote(s)
		}
	}
	return s
}

// findBy 生成 [find key="value"] 过滤表达式
func findBy(key, value string) string {
	return "[find " + key + "=" + quote(value) + "]"
}

// AddressPoolCreate /ip pool add
type AddressPoolCreate struct {
	Name     string  `json:"name"`
	Ranges   string  `json:"ranges"`
	NextPool *string `json:"next_pool,omitempty"` // 默认 none
}

func (p AddressPoolCreate) Command() string {
	next := "none"
	if p.NextPool != nil {
		next = *p.NextPool
	}
	return newCmd("/ip pool add").kv("name", p.Name).kv("ranges", p.Ranges).kv("next-pool", next).String()
}

// AddressPoolUpdate /ip pool set
type AddressPoolUpdate struct {
	Pool     string  `json:"pool"`
	NewName  *string `json:"new_name,omitempty"`
	Ranges   *string `json:"ranges,omitempty"`
	NextPool *string `json:"next_pool,omitempty"`
}

func (p AddressPoolUpdate) Command() string {
	return newCmd("/ip pool set").raw(p.Pool).
		opt("name", p.NewName).
		opt("ranges", p.Ranges).
		opt("next-pool", p.NextPool).
		String()
}

// DHCPClientCreate /ip dhcp-client add
type DHCPClientCreate struct {
	Interface       string `json:"interface"`
	Disabled        *bool  `json:"disabled,omitempty"`          // 默认 no
	AddDefaultRoute *bool  `json:"add_default_route,omitempty"` // 默认 yes
	RouteDistance   *int   `json:"route_distance,omitempty"`    // 默认 1
	UsePeerDNS      *bool  `json:"use_peer_dns,omitempty"`      // 默认 yes
	UsePeerNTP      *bool  `json:"use_peer_ntp,omitempty"`      // 默认 yes
}

func (p DHCPClientCreate) Command() string {
	return newCmd("/ip dhcp-client add").
		quoted("interface", p.Interface).
		kv("disabled", YesNo(boolOr(p.Disabled, false))).
		kv("add-default-route", YesNo(boolOr(p.AddDefaultRoute, true))).
		kv("default-route-distance", strconv.Itoa(intOr(p.RouteDistance, 1))).
		kv("use-peer-dns", YesNo(boolOr(p.UsePeerDNS, true))).
		kv("use-peer-ntp", YesNo(boolOr(p.UsePeerNTP, true))).
		String()
}

// DHCPClientUpdate /ip dhcp-client set，按接口选择
type DHCPClientUpdate struct {
	Interface       string `json:"interface"`
	Disabled        *bool  `json:"disabled,omitempty"`
	AddDefaultRoute *bool  `json:"add_default_route,omitempty"`
	RouteDistance   *int   `json:"route_distance,omitempty"`
	UsePeerDNS      *bool  `json:"use_peer_dns,omitempty"`
	UsePeerNTP      *bool  `json:"use_peer_ntp,omitempty"`
}

func (p DHCPClientUpdate) Command() string {
	return newCmd("/ip dhcp-client set").
		kv("numbers", findBy("interface", p.Interface)).
		opt("disabled", yesNoPtr(p.Disabled)).
		opt("add-default-route", yesNoPtr(p.AddDefaultRoute)).
		opt("default-route-distance", itoaPtr(p.RouteDistance)).
		opt("use-peer-dns", yesNoPtr(p.UsePeerDNS)).
		opt("use-peer-ntp", yesNoPtr(p.UsePeerNTP)).
		String()
}

// DHCPServerCreate /ip dhcp-server add
type DHCPServerCreate struct {
	Interface   string  `json:"interface"`
	Disabled    *bool   `json:"disabled,omitempty"`     // 默认 no
	Name        *string `json:"name,omitempty"`         // 默认 dhcp_server
	AddressPool *string `json:"address_pool,omitempty"` // 默认 static-only
	LeaseTime   *string `json:"lease_time,omitempty"`   // 默认 00:10:00
	DNSServer   *string `json:"dns_server,omitempty"`   // 网络行使用，默认 1.1.1.1,9.9.9.9
}

func (p DHCPServerCreate) Command() string {
	return newCmd("/ip dhcp-server add").
		kv("disabled", YesNo(boolOr(p.Disabled, false))).
		quoted("interface", p.Interface).
		kv("name", stringOr(p.Name, "dhcp_server")).
		kv("address-pool", stringOr(p.AddressPool, "static-only")).
		kv("lease-time", stringOr(p.LeaseTime, "00:10:00")).
		String()
}

// DHCPServerUpdate /ip dhcp-server set，按接口选择
type DHCPServerUpdate struct {
	Interface   string  `json:"interface"`
	Disabled    *bool   `json:"disabled,omitempty"`
	Name        *string `json:"name,omitempty"`
	LeaseTime   *string `json:"lease_time,omitempty"`
	AddressPool *string `json:"address_pool,omitempty"`
}

func (p DHCPServerUpdate) Command() string {
	return newCmd("/ip dhcp-server set").
		kv("numbers", findBy("interface", p.Interface)).
		opt("disabled", yesNoPtr(p.Disabled)).
		opt("name", p.Name).
		opt("lease-time", p.LeaseTime).
		opt("address-pool", p.AddressPool).
		String()
}

// DHCPNetworkCreate /ip dhcp-server network add
type DHCPNetworkCreate struct {
	Address   string `json:"address"`
	Gateway   string `json:"gateway"`
	DNSServer string `json:"dns_server"`
}

func (p DHCPNetworkCreate) Command() string {
	return newCmd("/ip dhcp-server network add").
		kv("address", p.Address).
		kv("gateway", p.Gateway).
		kv("dns-server", p.DNSServer).
		String()
}

// DHCPNetworkUpdate /ip dhcp-server network set，按地址选择
type DHCPNetworkUpdate struct {
	Address   string  `json:"address"`
	Gateway   *string `json:"gateway,omitempty"`
	Netmask   *string `json:"netmask,omitempty"`
	DNSServer *string `json:"dns_server,omitempty"`
	NTPServer *string `json:"ntp_server,omitempty"`
}

func (p DHCPNetworkUpdate) Command() string {
	return newCmd("/ip dhcp-server network set").
		kv("numbers", findBy("address", p.Address)).
		opt("gateway", p.Gateway).
		opt("netmask", p.Netmask).
		opt("dns-server", p.DNSServer).
		opt("ntp-server", p.NTPServer).
		String()
}

// IdentityUpdate /system identity set
type IdentityUpdate struct {
	Name string `json:"name"`
}

func (p IdentityUpdate) Command() string {
	return newCmd("/system identity set").text("name", p.Name).String()
}

// IPAddressCreate /ip address add
type IPAddressCreate struct {
	Address   string `json:"address"`
	Interface string `json:"interface"`
}

func (p IPAddressCreate) Command() string {
	return newCmd("/ip address add").kv("address", p.Address).quoted("interface", p.Interface).String()
}

// IPAddressUpdate /ip address set，按接口选择
type IPAddressUpdate struct {
	Interface string `json:"interface"`
	Address   string `json:"address"`
	Disabled  *bool  `json:"disabled,omitempty"` // 默认 no
}

func (p IPAddressUpdate) Command() string {
	return newCmd("/ip address set").
		kv("address", p.Address).
		kv("disabled", YesNo(boolOr(p.Disabled, false))).
		raw(findBy("interface", p.Interface)).
		String()
}

// RouteCreate /ip route add
type RouteCreate struct {
	DstAddress string `json:"dst_address"`
	Gateway    string `json:"gateway"`
	Distance   int    `json:"distance"`
	Disabled   bool   `json:"disabled"`
}

func (p RouteCreate) Command() string {
	return newCmd("/ip route add").
		kv("dst-address", p.DstAddress).
		kv("gateway", p.Gateway).
		kv("distance", strconv.Itoa(p.Distance)).
		kv("disabled", YesNo(p.Disabled)).
		String()
}

// ServiceUpdate /ip service set
type ServiceUpdate struct {
	Service  string  `json:"service"`
	Disabled bool    `json:"disabled"`
	Port     *int    `json:"port,omitempty"`
	Address  *string `json:"address,omitempty"`
}

func (p ServiceUpdate) Command() string {
	return newCmd("/ip service set").raw(p.Service).
		kv("disabled", YesNo(p.Disabled)).
		opt("port", itoaPtr(p.Port)).
		opt("address", p.Address).
		String()
}

// UserCreate /user add
type UserCreate struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Group    string `json:"group"`
}

func (p UserCreate) Command() string {
	return newCmd("/user add").text("name", p.Username).text("password", p.Password).text("group", p.Group).String()
}

// UserUpdate /user set
type UserUpdate struct {
	Username string  `json:"username"`
	Password *string `json:"password,omitempty"`
	Group    *string `json:"group,omitempty"`
}

func (p UserUpdate) Command() string {
	return newCmd("/user set").raw(quoteIfNeeded(p.Username)).optText("password", p.Password).optText("group", p.Group).String()
}

// BackupSave /system backup save
type BackupSave struct {
	Name        string  `json:"name"`
	Password    *string `json:"password,omitempty"`
	Encryption  *string `json:"encryption,omitempty"`   // 默认 aes-sha256
	DontEncrypt *bool   `json:"dont_encrypt,omitempty"` // 默认 yes
}

func (p BackupSave) Command() string {
	return newCmd("/system backup save").
		text("name", p.Name).
		optText("password", p.Password).
		kv("encryption", stringOr(p.Encryption, "aes-sha256")).
		kv("dont-encrypt", YesNo(boolOr(p.DontEncrypt, true))).
		String()
}

// ExportToFile /export terse file=
type ExportToFile struct {
	Name string `json:"name"`
}

func (p ExportToFile) Command() string {
	return newCmd("/export terse").text("file", p.Name).String()
}

// FileRemove /file remove
type FileRemove struct {
	Name string `json:"name"`
}

func (p FileRemove) Command() string {
	return newCmd("/file remove").raw(quote(p.Name)).String()
}

// SecurityProfileRemove 删除同名无线安全配置
type SecurityProfileRemove struct {
	Name string `json:"name"`
}

func (p SecurityProfileRemove) Command() string {
	return newCmd("/interface wireless security-profiles remove").raw(findBy("name", p.Name)).String()
}

// SecurityProfileCreate 固定 WPA2-PSK 参数的安全配置
type SecurityProfileCreate struct {
	Name       string `json:"name"`
	Passphrase string `json:"passphrase"`
}

func (p SecurityProfileCreate) Command() string {
	return newCmd("/interface wireless security-profiles add").
		quoted("name", p.Name).
		kv("mode", "dynamic-keys").
		kv("authentication-types", "wpa2-psk").
		kv("unicast-ciphers", "aes-ccm").
		kv("group-ciphers", "aes-ccm").
		quoted("wpa2-pre-shared-key", p.Passphrase).
		String()
}

// WirelessBandSet 单频段无线接口配置
type WirelessBandSet struct {
	Index           int    `json:"index"`
	Band            string `json:"band"`
	Mode            string `json:"mode"`
	SSID            string `json:"ssid"`
	SecurityProfile string `json:"security_profile"`
	Country         string `json:"country"`
}

func (p WirelessBandSet) Command() string {
	band, width := "2ghz-b/g/n", "20/40mhz-XX"
	if p.Band == Band5G {
		band, width = "5ghz-a/n/ac", "20/40/80mhz-XXXX"
	}
	return newCmd("/interface wireless set").
		kv("numbers", strconv.Itoa(p.Index)).
		kv("mode", p.Mode).
		kv("band", band).
		kv("channel-width", width).
		kv("frequency", "auto").
		quoted("ssid", p.SSID).
		quoted("security-profile", p.SecurityProfile).
		quoted("country", p.Country).
		kv("disabled", "no").
		String()
}

// PackageChannelSet /system package update set channel=
type PackageChannelSet struct {
	Channel string `json:"channel"`
}

func (p PackageChannelSet) Command() string {
	return newCmd("/system package update set").kv("channel", p.Channel).String()
}

// RouteFileDump 将路由明细输出到设备文件
type RouteFileDump struct {
	File string `json:"file"`
}

func (p RouteFileDump) Command() string {
	return newCmd("/ip route print detail without-paging").kv("file", p.File).String()
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func stringOr(v *string, def string) string {
	if v == nil {
		return def
	}
	return *v
}

func yesNoPtr(v *bool) *string {
	if v == nil {
		return nil
	}
	s := YesNo(*v)
	return &s
}

func itoaPtr(v *int) *string {
	if v == nil {
		return nil
	}
	s := strconv.Itoa(*v)
	return &s
}
