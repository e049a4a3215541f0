package routeros

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuilders(t *testing.T) {
	tests := []struct {
		name string
		b    Builder
		want string
	}{
		{
			"pool add defaults",
			AddressPoolCreate{Name: "lan", Ranges: "192.168.10.10-192.168.10.100"},
			"/ip pool add name=lan ranges=192.168.10.10-192.168.10.100 next-pool=none",
		},
		{
			"pool set none",
			AddressPoolUpdate{Pool: "lan"},
			"/ip pool set lan",
		},
		{
			"pool set all",
			AddressPoolUpdate{Pool: "lan", NewName: Ptr("lan2"), Ranges: Ptr("10.0.0.2-10.0.0.9"), NextPool: Ptr("spare")},
			"/ip pool set lan name=lan2 ranges=10.0.0.2-10.0.0.9 next-pool=spare",
		},
		{
			"dhcp client add defaults",
			DHCPClientCreate{Interface: "ether1"},
			`/ip dhcp-client add interface="ether1" disabled=no add-default-route=yes default-route-distance=1 use-peer-dns=yes use-peer-ntp=yes`,
		},
		{
			"dhcp client add explicit",
			DHCPClientCreate{Interface: "ether1", Disabled: Ptr(true), AddDefaultRoute: Ptr(false), RouteDistance: Ptr(5), UsePeerDNS: Ptr(false), UsePeerNTP: Ptr(false)},
			`/ip dhcp-client add interface="ether1" disabled=yes add-default-route=no default-route-distance=5 use-peer-dns=no use-peer-ntp=no`,
		},
		{
			"dhcp client set none",
			DHCPClientUpdate{Interface: "ether1"},
			`/ip dhcp-client set numbers=[find interface="ether1"]`,
		},
		{
			"dhcp client set all",
			DHCPClientUpdate{Interface: "ether1", Disabled: Ptr(false), AddDefaultRoute: Ptr(true), RouteDistance: Ptr(2), UsePeerDNS: Ptr(true), UsePeerNTP: Ptr(false)},
			`/ip dhcp-client set numbers=[find interface="ether1"] disabled=no add-default-route=yes default-route-distance=2 use-peer-dns=yes use-peer-ntp=no`,
		},
		{
			"dhcp server add defaults",
			DHCPServerCreate{Interface: "bridge"},
			`/ip dhcp-server add disabled=no interface="bridge" name=dhcp_server address-pool=static-only lease-time=00:10:00`,
		},
		{
			"dhcp server add explicit",
			DHCPServerCreate{Interface: "bridge", Disabled: Ptr(true), Name: Ptr("lan"), AddressPool: Ptr("pool1"), LeaseTime: Ptr("1d"), DNSServer: Ptr("8.8.8.8")},
			`/ip dhcp-server add disabled=yes interface="bridge" name=lan address-pool=pool1 lease-time=1d`,
		},
		{
			"dhcp server set all",
			DHCPServerUpdate{Interface: "bridge", Disabled: Ptr(true), Name: Ptr("lan"), LeaseTime: Ptr("1h"), AddressPool: Ptr("pool2")},
			`/ip dhcp-server set numbers=[find interface="bridge"] disabled=yes name=lan lease-time=1h address-pool=pool2`,
		},
		{
			"dhcp network add",
			DHCPNetworkCreate{Address: "192.168.10.0/24", Gateway: "192.168.10.1", DNSServer: "1.1.1.1,9.9.9.9"},
			"/ip dhcp-server network add address=192.168.10.0/24 gateway=192.168.10.1 dns-server=1.1.1.1,9.9.9.9",
		},
		{
			"dhcp network set none",
			DHCPNetworkUpdate{Address: "192.168.10.0/24"},
			`/ip dhcp-server network set numbers=[find address="192.168.10.0/24"]`,
		},
		{
			"dhcp network set all",
			DHCPNetworkUpdate{Address: "192.168.10.0/24", Gateway: Ptr("192.168.10.254"), Netmask: Ptr("24"), DNSServer: Ptr("1.1.1.1"), NTPServer: Ptr("10.0.0.1")},
			`/ip dhcp-server network set numbers=[find address="192.168.10.0/24"] gateway=192.168.10.254 netmask=24 dns-server=1.1.1.1 ntp-server=10.0.0.1`,
		},
		{
			"identity",
			IdentityUpdate{Name: "core-01"},
			"/system identity set name=core-01",
		},
		{
			"identity with spaces",
			IdentityUpdate{Name: "core router"},
			`/system identity set name="core router"`,
		},
		{
			"address add",
			IPAddressCreate{Address: "10.0.0.1/24", Interface: "ether2"},
			`/ip address add address=10.0.0.1/24 interface="ether2"`,
		},
		{
			"address set",
			IPAddressUpdate{Interface: "ether2", Address: "10.0.0.2/24"},
			`/ip address set address=10.0.0.2/24 disabled=no [find interface="ether2"]`,
		},
		{
			"route add",
			RouteCreate{DstAddress: "10.8.0.0/16", Gateway: "10.0.0.254", Distance: 3},
			"/ip route add dst-address=10.8.0.0/16 gateway=10.0.0.254 distance=3 disabled=no",
		},
		{
			"service set none",
			ServiceUpdate{Service: "telnet", Disabled: true},
			"/ip service set telnet disabled=yes",
		},
		{
			"service set all",
			ServiceUpdate{Service: "ssh", Port: Ptr(2222), Address: Ptr("10.0.0.0/8")},
			"/ip service set ssh disabled=no port=2222 address=10.0.0.0/8",
		},
		{
			"user add",
			UserCreate{Username: "ops", Password: "pw", Group: "write"},
			"/user add name=ops password=pw group=write",
		},
		{
			"user set all",
			UserUpdate{Username: "ops", Password: Ptr("pw2"), Group: Ptr("read")},
			"/user set ops password=pw2 group=read",
		},
		{
			"user add free text",
			UserCreate{Username: "ops", Password: "a b;c", Group: "write"},
			`/user add name=ops password="a b;c" group=write`,
		},
		{
			"user set free text",
			UserUpdate{Username: "night ops", Password: Ptr(`p"w`)},
			`/user set "night ops" password="p\"w"`,
		},
		{
			"backup defaults",
			BackupSave{Name: "backup_r1_02-01-2024_10-20-30"},
			"/system backup save name=backup_r1_02-01-2024_10-20-30 encryption=aes-sha256 dont-encrypt=yes",
		},
		{
			"backup encrypted",
			BackupSave{Name: "b", Password: Ptr("secret"), Encryption: Ptr("rc4"), DontEncrypt: Ptr(false)},
			"/system backup save name=b password=secret encryption=rc4 dont-encrypt=no",
		},
		{
			"export to file",
			ExportToFile{Name: "export_r1"},
			"/export terse file=export_r1",
		},
		{
			"file remove",
			FileRemove{Name: "routes.txt"},
			`/file remove "routes.txt"`,
		},
		{
			"security profile add",
			SecurityProfileCreate{Name: "home", Passphrase: `pa"ss`},
			`/interface wireless security-profiles add name="home" mode=dynamic-keys authentication-types=wpa2-psk unicast-ciphers=aes-ccm group-ciphers=aes-ccm wpa2-pre-shared-key="pa\"ss"`,
		},
		{
			"security profile remove",
			SecurityProfileRemove{Name: "home"},
			`/interface wireless security-profiles remove [find name="home"]`,
		},
		{
			"wireless 2g",
			WirelessBandSet{Index: 0, Band: Band2G, Mode: "ap-bridge", SSID: "Home", SecurityProfile: "home", Country: "latvia"},
			`/interface wireless set numbers=0 mode=ap-bridge band=2ghz-b/g/n channel-width=20/40mhz-XX frequency=auto ssid="Home" security-profile="home" country="latvia" disabled=no`,
		},
		{
			"wireless 5g",
			WirelessBandSet{Index: 1, Band: Band5G, Mode: "bridge", SSID: "Home 5", SecurityProfile: "home", Country: "latvia"},
			`/interface wireless set numbers=1 mode=bridge band=5ghz-a/n/ac channel-width=20/40/80mhz-XXXX frequency=auto ssid="Home 5" security-profile="home" country="latvia" disabled=no`,
		},
		{
			"package channel",
			PackageChannelSet{Channel: "long-term"},
			"/system package update set channel=long-term",
		},
		{
			"route dump",
			RouteFileDump{File: "routes_x"},
			"/ip route print detail without-paging file=routes_x",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.b.Command())
		})
	}
}

func TestQuote(t *testing.T) {
	assert.Equal(t, `"a\\b\"c"`, quote(`a\b"c`))
	assert.Equal(t, `""`, quote(""))
}

func TestQuoteIfNeeded(t *testing.T) {
	assert.Equal(t, "core-01", quoteIfNeeded("core-01"))
	assert.Equal(t, "10.0.0.1/24", quoteIfNeeded("10.0.0.1/24"))
	assert.Equal(t, `""`, quoteIfNeeded(""))
	assert.Equal(t, `"a b"`, quoteIfNeeded("a b"))
	assert.Equal(t, `"a;b"`, quoteIfNeeded("a;b"))
	assert.Equal(t, `"\\$x"`, quoteIfNeeded(`\$x`))
}
