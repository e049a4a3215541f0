package routeros

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const interfacesDetail = `Flags: D - dynamic, X - disabled, R - running, S - slave
 0  R  name="ether1" default-name="ether1" type="ether" mtu=1500 actual-mtu=1500 l2mtu=1598 max-l2mtu=4064
       mac-address=64:D1:54:00:00:01 last-link-up-time=jan/02/2024 10:00:00 link-downs=0

 1  RS name="ether2" default-name="ether2" type="ether" mtu=1500 actual-mtu=1500 l2mtu=1598
       mac-address=64:D1:54:00:00:02

 2     name="ether3" default-name="ether3" type="ether" mtu=1500 actual-mtu=1500
       mac-address=64:D1:54:00:00:03

 3  X  ;;; guest radio
       name="wlan1" default-name="wlan1" type="wlan" mtu=1500 actual-mtu=1500
       mac-address=64:D1:54:00:00:10

 4  DRS name="vlan-dyn" type="vlan" mtu=1500

 5  R  name="bridge" type="bridge" mtu=auto actual-mtu=1500 mac-address=64:D1:54:00:00:01
`

func TestParseInterfaces(t *testing.T) {
	got, err := ParseInterfaces(interfacesDetail, Bounds{})
	require.NoError(t, err)
	require.Len(t, got, 6, "每个带行号的记录应解析为一条")

	assert.Equal(t, Interface{
		Status: StatusRunning, Name: "ether1", DefaultName: "ether1", Type: "ether",
		MTU: "1500", MACAddress: "64:D1:54:00:00:01",
	}, got[0])
	assert.Equal(t, StatusRunningSlave, got[1].Status)
	assert.Equal(t, StatusNotConnected, got[2].Status, "无状态码的行应识别为未连接")
	assert.Equal(t, "ether3", got[2].Name)
	assert.Equal(t, StatusDisabled, got[3].Status)
	assert.Equal(t, "wlan1", got[3].Name, "注释行之后的续行应并入记录")
	assert.Equal(t, "64:D1:54:00:00:10", got[3].MACAddress)
	assert.Equal(t, StatusDynamicRunningSlave, got[4].Status)
	assert.Empty(t, got[4].MTU, "actual-mtu 缺失时为空")
	assert.Empty(t, got[4].DefaultName)
	assert.Equal(t, "bridge", got[5].Name)

	valid := map[InterfaceStatus]bool{}
	for _, s := range interfaceStatusCodes {
		valid[s] = true
	}
	valid[StatusNotConnected] = true
	assert.Len(t, valid, 8)
	for _, iface := range got {
		assert.True(t, valid[iface.Status], "状态必须是八种枚举之一: %s", iface.Status)
	}
}

func TestParseInterfacesErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"unknown status", ` 0  Q  name="ether1" type="ether"`},
		{"missing name", ` 0  R  type="ether" actual-mtu=1500`},
		{"missing type", ` 0  R  name="ether1" actual-mtu=1500`},
		{"only index", ` 0`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseInterfaces(tt.raw, Bounds{})
			var pe *ParseError
			require.True(t, errors.As(err, &pe), "应返回 ParseError: %v", err)
			assert.Equal(t, "interface", pe.Kind)
			assert.Equal(t, 1, pe.Line)
		})
	}
}

func TestParseInterfacesBounds(t *testing.T) {
	raw := " 0  R  name=\"ether1\" type=\"ether\"\n 9  R  name=\"ether10\" type=\"ether\"\n"
	got, err := ParseInterfaces(raw, Bounds{Interfaces: 5})
	require.NoError(t, err)
	require.Len(t, got, 1, "超过上限的行号应被跳过")
	assert.Equal(t, "ether1", got[0].Name)
}

func TestParseInterfacesEmpty(t *testing.T) {
	got, err := ParseInterfaces("Flags: D - dynamic, X - disabled, R - running, S - slave\n", Bounds{})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
}

const ipAddresses = `Flags: X - disabled, I - invalid, D - dynamic
 #   ADDRESS            NETWORK         INTERFACE
 0   192.168.88.1/24    192.168.88.0    bridge
 1 D 10.0.0.15/24       10.0.0.0        ether1
 2 X ;;; old uplink
     172.16.0.1/16      172.16.0.0      ether2
 3 XI 10.9.9.1/30       10.9.9.0        ether9
`

func TestParseIPAddresses(t *testing.T) {
	got, err := ParseIPAddresses(ipAddresses, Bounds{})
	require.NoError(t, err)
	require.Len(t, got, 4)

	assert.Equal(t, IPAddress{Address: "192.168.88.1/24", Network: "192.168.88.0", Interface: "bridge"}, got[0])
	assert.Equal(t, IPAddress{Flags: "D", Address: "10.0.0.15/24", Network: "10.0.0.0", Interface: "ether1"}, got[1],
		"标志字母存在时地址、网络、接口三列都应右移")
	assert.Equal(t, IPAddress{Flags: "X", Address: "172.16.0.1/16", Network: "172.16.0.0", Interface: "ether2"}, got[2])
	assert.Equal(t, "XI", got[3].Flags)
	assert.Equal(t, "10.9.9.1", got[3].IP())
	assert.Equal(t, "30", got[3].Prefix())
}

func TestParseIPAddressesErrors(t *testing.T) {
	for _, raw := range []string{
		" 0 D 10.0.0.15/24 10.0.0.0",
		" 0 10.0.0.15 10.0.0.0 ether1",
	} {
		_, err := ParseIPAddresses(raw, Bounds{})
		var pe *ParseError
		assert.True(t, errors.As(err, &pe), "列不完整或地址非 CIDR 时应报错: %q", raw)
	}
}

const routesDetail = `Flags: X - disabled, A - active, D - dynamic, C - connect, S - static, r - rip, b - bgp, o - ospf, m - mme,
B - blackhole, U - unreachable, P - prohibit
 0 ADS  dst-address=0.0.0.0/0 gateway=10.0.0.1 gateway-status=10.0.0.1 reachable via  ether1 distance=1 scope=30
        target-scope=10 vrf-interface=ether1

 1 ADC  dst-address=10.0.0.0/24 pref-src=10.0.0.15 gateway=ether1 gateway-status=ether1 reachable distance=0
        scope=10

 2  S   ;;; blackhole for lab
        dst-address=192.168.100.0/24 type=blackhole distance=1 scope=30 target-scope=10

 3      dst-address=192.168.200.0/24 gateway=10.0.0.254 distance=5 scope=30 target-scope=10
`

func TestParseRoutes(t *testing.T) {
	got, err := ParseRoutes(routesDetail, 0)
	require.NoError(t, err)
	require.Len(t, got, 4)

	assert.Equal(t, Route{Flags: "ADS", Destination: "0.0.0.0/0", Gateway: "10.0.0.1", Distance: "1"}, got[0])
	assert.Equal(t, Route{Flags: "ADC", Destination: "10.0.0.0/24", Gateway: "ether1", Distance: "0"}, got[1])
	assert.Equal(t, Route{Flags: "S", Destination: "192.168.100.0/24", Distance: "1"}, got[2], "无网关路由的 gateway 为空")
	assert.Equal(t, "", got[3].Flags, "无标志时 flags 为空")
	assert.Equal(t, "10.0.0.254", got[3].Gateway)
}

func TestParseRoutesCeiling(t *testing.T) {
	got, err := ParseRoutes(routesDetail, 1)
	require.NoError(t, err)
	assert.Len(t, got, 2, "行号超过上限后停止解析")
}

func TestParseRoutesMissingDistance(t *testing.T) {
	_, err := ParseRoutes(" 0 ADS dst-address=0.0.0.0/0 gateway=10.0.0.1", 0)
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "missing distance", pe.Reason)
}

const services = `Flags: X - disabled, I - invalid
 #   NAME                                                   PORT ADDRESS                                       CERTIFICATE
 0   telnet                                                   23
 1 XI ftp                                                      21
 2   www                                                      80 192.168.88.0/24,10.0.0.0/8
 3   ssh                                                      22
 4 X www-ssl                                                 443                                               none
 5   api                                                    8728
`

func TestParseServices(t *testing.T) {
	got, err := ParseServices(services, Bounds{})
	require.NoError(t, err)
	require.Len(t, got, 6)

	assert.Equal(t, Service{Name: "telnet", Port: "23"}, got[0])
	assert.Equal(t, Service{Flags: "XI", Name: "ftp", Port: "21"}, got[1])
	assert.Equal(t, Service{Name: "www", Port: "80", Address: "192.168.88.0/24,10.0.0.0/8"}, got[2])
	assert.Equal(t, Service{Flags: "X", Name: "www-ssl", Port: "443"}, got[4], "证书列不应被当作地址")
	assert.Equal(t, "8728", got[5].Port)
}

func TestParseServicesBounds(t *testing.T) {
	got, err := ParseServices(" 0 telnet 23\n 30 custom 9999\n", Bounds{})
	require.NoError(t, err)
	assert.Len(t, got, 1, "默认服务行号上限为 29")
}

func TestParseServicesBadPort(t *testing.T) {
	_, err := ParseServices(" 0 X telnet", Bounds{})
	assert.Error(t, err)
	_, err = ParseServices(" 0 telnet twentythree", Bounds{})
	assert.Error(t, err)
}

const users = `Flags: X - disabled
 #   NAME                                 GROUP                                ADDRESS            LAST-LOGGED-IN
 0   ;;; system default user
     admin                                full                                                    jan/02/2024 10:00:00
 1 X guest                                read
 2   ops                                  write
`

func TestParseUsers(t *testing.T) {
	got, err := ParseUsers(users, Bounds{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, User{Username: "admin", Group: "full"}, got[0])
	assert.Equal(t, User{Flags: "X", Username: "guest", Group: "read"}, got[1])
	assert.Equal(t, User{Username: "ops", Group: "write"}, got[2])
}

const resources = `                   uptime: 1w2d3h4m5s
                  version: 6.49.10 (long-term)
               build-time: Jan/02/2024 10:20:30
              free-memory: 200.5MiB
             total-memory: 256.0MiB
                      cpu: MIPS 24Kc V7.4
                cpu-count: 1
            cpu-frequency: 650MHz
                 cpu-load: 3%
               board-name: hAP lite
`

func TestParseResources(t *testing.T) {
	got := ParseResources(resources)
	assert.Equal(t, "1w 2d 3h 4m 5s", got.Get("uptime"), "时长单位之间应插入空格")
	assert.Equal(t, "Jan/02/2024 10:20:30", got.Get("build-time"), "build-time 中的冒号应保持完整")
	assert.Equal(t, "6.49.10 (long-term)", got.Get("version"))
	assert.Equal(t, "200.5 MiB", got.Get("free-memory"))
	assert.Equal(t, "650 MHz", got.Get("cpu-frequency"))
	assert.Equal(t, "3 %", got.Get("cpu-load"))
	assert.Equal(t, "hAP lite", got.Get("board-name"))
	assert.Equal(t, "", got.Get("missing"))
}

func TestParseResourcesUptimeMillis(t *testing.T) {
	got := ParseResources("uptime: 5m30s120ms\n")
	assert.Equal(t, "5m 30s 120ms", got.Get("uptime"))
}

func TestParseIdentity(t *testing.T) {
	name, err := ParseIdentity("  name: Core Router\r\n")
	require.NoError(t, err)
	assert.Equal(t, "CoreRouter", name)

	name, err = ParseIdentity("  name: my  core   01\r\n")
	require.NoError(t, err)
	assert.Equal(t, "mycore01", name)

	_, err = ParseIdentity("\r\n")
	assert.Error(t, err)
	_, err = ParseIdentity("  name: \r\n")
	assert.Error(t, err)
}

func TestParseDHCPNetworks(t *testing.T) {
	raw := ` # ADDRESS            GATEWAY         DNS-SERVER      WINS-SERVER     DOMAIN
 0 192.168.88.0/24    192.168.88.1    1.1.1.1
 1 10.1.0.0/24
`
	got, err := ParseDHCPNetworks(raw, Bounds{})
	require.NoError(t, err)
	assert.Equal(t, []DHCPNetwork{
		{Address: "192.168.88.0/24", Gateway: "192.168.88.1"},
		{Address: "10.1.0.0/24"},
	}, got)
}

const wireless = `Flags: X - disabled, R - running
 0    name="wlan1" mtu=1500 l2mtu=1600 mac-address=64:D1:54:00:00:10 arp=enabled
      interface-type=Atheros AR9300 mode=ap-bridge ssid="MikroTik" frequency=2412 band=2ghz-b/g/n
      channel-width=20/40mhz-XX

 1 X  name="wlan2" mtu=1500 mac-address=64:D1:54:00:00:11 mode=ap-bridge ssid="MikroTik-5"
      frequency=auto band=5ghz-a/n/ac
`

func TestParseWirelessInterfaces(t *testing.T) {
	got, err := ParseWirelessInterfaces(wireless, Bounds{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, WirelessInterface{Index: 0, Name: "wlan1", Frequency: "2412", BandSpec: "2ghz-b/g/n"}, got[0])
	assert.True(t, got[1].Disabled)
	assert.Equal(t, Band2G, got[0].Band())
	assert.Equal(t, Band5G, got[1].Band(), "频率为 auto 时按 band 参数判断")
}

func TestWirelessBand(t *testing.T) {
	tests := []struct {
		freq, band, want string
	}{
		{"2000", "", Band2G},
		{"2999", "", Band2G},
		{"5000", "", Band5G},
		{"5999", "", Band5G},
		{"3000", "", ""},
		{"auto", "2ghz-onlyn", Band2G},
		{"", "5ghz-onlyac", Band5G},
		{"", "", ""},
	}
	for _, tt := range tests {
		w := WirelessInterface{Frequency: tt.freq, BandSpec: tt.band}
		assert.Equal(t, tt.want, w.Band(), "freq=%s band=%s", tt.freq, tt.band)
	}
}

func TestParseLicenseLevel(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{"  software-id: ABCD-1234\n       nlevel: 4\n     features:\n", 4, false},
		{"  software-id: ABCD-1234\n        level: 6\n", 6, false},
		{"  system-id: abc\n        level: p1\n", 0, false},
		{"  software-id: ABCD-1234\n", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseLicenseLevel(tt.raw)
		if tt.wantErr {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestParsePackageUpdate(t *testing.T) {
	got := ParsePackageUpdate(`            channel: stable
  installed-version: 6.48.6
     latest-version: 6.49.10
             status: New version is available
`)
	assert.Equal(t, PackageUpdate{
		Channel: "stable", InstalledVersion: "6.48.6", LatestVersion: "6.49.10", Status: "New version is available",
	}, got)
}

func TestParseCount(t *testing.T) {
	n, err := ParseCount("\r\n 2731\r\n")
	require.NoError(t, err)
	assert.Equal(t, 2731, n)

	_, err = ParseCount("")
	assert.Error(t, err)
	_, err = ParseCount("expected end of command")
	assert.Error(t, err)
}

func TestFlagShift(t *testing.T) {
	tokens := []string{"0", "XI", "ftp", "21"}
	shift, flags := flagShift(tokens, 1, serviceFlags)
	assert.Equal(t, 1, shift)
	assert.Equal(t, "XI", flags)

	shift, flags = flagShift(tokens, 1, userFlags)
	assert.Equal(t, 0, shift)
	assert.Empty(t, flags)

	shift, _ = flagShift(tokens, 9, anyFlags)
	assert.Equal(t, 0, shift)
}

func TestCollectRows(t *testing.T) {
	raw := "Flags: X - disabled\n 0 a b\n    c ;;; note\n\n 1 d\nnot a row\n    orphan\n 2 e"
	rows := collectRows(raw)
	require.Len(t, rows, 3)
	assert.Equal(t, "0 a b c", rows[0].text)
	assert.Equal(t, 2, rows[0].line)
	assert.Equal(t, []string{"1", "d"}, rows[1].tokens)
	assert.Equal(t, 2, rows[2].index)
}

func TestQuotedValuesKeepSpacing(t *testing.T) {
	raw := " 0  R  name=\"my  if\" default-name=\"ether1\" type=\"ether\"\n" +
		" 1     name=\"say \\\"hi\\\"\" type=\"ether\"\n" +
		" 2     name=\"c:\\\\tmp\" type=\"ether\"\n"
	got, err := ParseInterfaces(raw, Bounds{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "my  if", got[0].Name, "引号内的连续空格保持原样")
	assert.Equal(t, `say "hi"`, got[1].Name)
	assert.Equal(t, `c:\tmp`, got[2].Name)

	rows := collectRows(" 0 name=\"a  b\"\n    type=\"x\"")
	require.Len(t, rows, 1)
	assert.Equal(t, `0 name="a b" type="x"`, rows[0].text)
	assert.Equal(t, `0 name="a  b" type="x"`, rows[0].raw)
}
