package routeros

import (
	"regexp"
	"strconv"
	"strings"
)

// ParseInterfaces 解析 /interface print detail without-paging
func ParseInterfaces(raw string, bounds Bounds) ([]Interface, error) {
	bounds = bounds.withDefaults()
	out := []Interface{}
	for _, r := range collectRows(raw) {
		if r.index > bounds.Interfaces {
			continue
		}
		if len(r.tokens) < 2 {
			return nil, &ParseError{Kind: "interface", Line: r.line, Text: r.text, Reason: "missing fields"}
		}
		code := r.tokens[1]
		var status InterfaceStatus
		if strings.Contains(code, "name=") {
			// 未打印状态字母，字段整体左移
			status = StatusNotConnected
		} else {
			s, ok := interfaceStatusCodes[code]
			if !ok {
				return nil, &ParseError{Kind: "interface", Line: r.line, Text: r.text, Reason: "unknown status code " + code}
			}
			status = s
		}

		iface := Interface{Status: status}
		name, ok := quotedValue(r.raw, "name")
		if !ok || name == "" {
			return nil, &ParseError{Kind: "interface", Line: r.line, Text: r.text, Reason: "missing name"}
		}
		iface.Name = name
		if v, ok := quotedValue(r.raw, "default-name"); ok {
			iface.DefaultName = v
		}
		typ, ok := quotedValue(r.raw, "type")
		if !ok {
			return nil, &ParseError{Kind: "interface", Line: r.line, Text: r.text, Reason: "missing type"}
		}
		iface.Type = typ
		if v, ok := plainValue(r.text, "actual-mtu"); ok {
			iface.MTU = v
		}
		if v, ok := plainValue(r.text, "mac-address"); ok {
			iface.MACAddress = v
		}
		out = append(out, iface)
	}
	return out, nil
}

// ParseIPAddresses 解析 /ip address print without-paging
func ParseIPAddresses(raw string, bounds Bounds) ([]IPAddress, error) {
	bounds = bounds.withDefaults()
	out := []IPAddress{}
	for _, r := range collectRows(raw) {
		if r.index > bounds.IPAddresses {
			continue
		}
		shift, flags := flagShift(r.tokens, 1, anyFlags)
		if len(r.tokens) < 4+shift {
			return nil, &ParseError{Kind: "ip address", Line: r.line, Text: r.text, Reason: "expected address, network and interface columns"}
		}
		addr := IPAddress{
			Flags:     flags,
			Address:   r.tokens[1+shift],
			Network:   r.tokens[2+shift],
			Interface: r.tokens[3+shift],
		}
		if !strings.Contains(addr.Address, "/") {
			return nil, &ParseError{Kind: "ip address", Line: r.line, Text: r.text, Reason: "address column is not CIDR"}
		}
		out = append(out, addr)
	}
	return out, nil
}

// ParseRoutes 解析 /ip route print detail without-paging
// 行号超过 ceiling 视为表尾，停止解析
func ParseRoutes(raw string, ceiling int) ([]Route, error) {
	if ceiling <= 0 {
		ceiling = DefaultBounds().Routes
	}
	out := []Route{}
	for _, r := range collectRows(raw) {
		if r.index > ceiling {
			break
		}
		route := Route{}
		if len(r.tokens) > 1 && !keyValueToken.MatchString(r.tokens[1]) {
			route.Flags = r.tokens[1]
		}
		dst, ok := plainValue(r.text, "dst-address")
		if !ok {
			return nil, &ParseError{Kind: "route", Line: r.line, Text: r.text, Reason: "missing dst-address"}
		}
		route.Destination = dst
		if gw, ok := plainValue(r.text, "gateway"); ok {
			route.Gateway = gw
		}
		dist, ok := plainValue(r.text, "distance")
		if !ok {
			return nil, &ParseError{Kind: "route", Line: r.line, Text: r.text, Reason: "missing distance"}
		}
		route.Distance = dist
		out = append(out, route)
	}
	return out, nil
}

var addressList = regexp.MustCompile(`^[0-9a-fA-F.:/,]+$`)

// ParseServices 解析 /ip service print without-paging
func ParseServices(raw string, bounds Bounds) ([]Service, error) {
	bounds = bounds.withDefaults()
	out := []Service{}
	for _, r := range collectRows(raw) {
		if r.index > bounds.Services {
			continue
		}
		shift, flags := flagShift(r.tokens, 1, serviceFlags)
		if len(r.tokens) < 3+shift {
			return nil, &ParseError{Kind: "service", Line: r.line, Text: r.text, Reason: "expected name and port columns"}
		}
		svc := Service{
			Flags: flags,
			Name:  r.tokens[1+shift],
			Port:  r.tokens[2+shift],
		}
		if _, err := strconv.Atoi(svc.Port); err != nil {
			return nil, &ParseError{Kind: "service", Line: r.line, Text: r.text, Reason: "port column is not numeric"}
		}
		if len(r.tokens) > 3+shift && addressList.MatchString(r.tokens[3+shift]) {
			svc.Address = r.tokens[3+shift]
		}
		out = append(out, svc)
	}
	return out, nil
}

// ParseUsers 解析 /user print
func ParseUsers(raw string, bounds Bounds) ([]User, error) {
	bounds = bounds.withDefaults()
	out := []User{}
	for _, r := range collectRows(raw) {
		if r.index > bounds.Users {
			continue
		}
		shift, flags := flagShift(r.tokens, 1, userFlags)
		if len(r.tokens) < 3+shift {
			return nil, &ParseError{Kind: "user", Line: r.line, Text: r.text, Reason: "expected name and group columns"}
		}
		out = append(out, User{
			Flags:    flags,
			Username: r.tokens[1+shift],
			Group:    r.tokens[2+shift],
		})
	}
	return out, nil
}

var (
	unitSuffix    = regexp.MustCompile(`(\d)(KiB|MiB|GiB|MHz|%)`)
	uptimeSegment = regexp.MustCompile(`(\d+(?:ms|[ywdhms]))`)
)

// parseKeyValues 解析 "key: value" 形式的输出，按第一个冒号切分
func parseKeyValues(raw string) map[string]string {
	out := map[string]string{}
	for _, line := range splitLines(raw) {
		key, value, ok := strings.Cut(strings.TrimSpace(line), ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" || strings.Contains(key, " ") {
			continue
		}
		out[key] = strings.TrimSpace(value)
	}
	return out
}

// ParseResources 解析 /system resource print
func ParseResources(raw string) Resources {
	res := Resources{}
	for key, value := range parseKeyValues(raw) {
		switch key {
		case "uptime":
			value = normalizeLine(uptimeSegment.ReplaceAllString(value, "$1 "))
		case "build-time":
			// 值本身带冒号，按第一个冒号切分后保持完整
		default:
			value = unitSuffix.ReplaceAllString(value, "$1 $2")
		}
		res[key] = value
	}
	return res
}

// ParseIdentity 解析 /system identity print，名称中的空格全部去除
func ParseIdentity(raw string) (string, error) {
	for i, line := range splitLines(raw) {
		key, value, ok := strings.Cut(strings.ReplaceAll(line, " ", ""), ":")
		if !ok || strings.TrimSpace(key) != "name" {
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" {
			return "", &ParseError{Kind: "identity", Line: i + 1, Text: line, Reason: "empty name"}
		}
		return value, nil
	}
	return "", &ParseError{Kind: "identity", Text: strings.TrimSpace(raw), Reason: "name line not found"}
}

// ParseDHCPNetworks 解析 /ip dhcp-server network print
func ParseDHCPNetworks(raw string, bounds Bounds) ([]DHCPNetwork, error) {
	bounds = bounds.withDefaults()
	out := []DHCPNetwork{}
	for _, r := range collectRows(raw) {
		if r.index > bounds.Networks {
			continue
		}
		shift, _ := flagShift(r.tokens, 1, anyFlags)
		if len(r.tokens) < 2+shift {
			return nil, &ParseError{Kind: "dhcp network", Line: r.line, Text: r.text, Reason: "missing address column"}
		}
		n := DHCPNetwork{Address: r.tokens[1+shift]}
		if len(r.tokens) > 2+shift && addressList.MatchString(r.tokens[2+shift]) {
			n.Gateway = r.tokens[2+shift]
		}
		out = append(out, n)
	}
	return out, nil
}

// ParseWirelessInterfaces 解析 /interface wireless print detail without-paging
func ParseWirelessInterfaces(raw string, bounds Bounds) ([]WirelessInterface, error) {
	bounds = bounds.withDefaults()
	out := []WirelessInterface{}
	for _, r := range collectRows(raw) {
		if r.index > bounds.Wireless {
			continue
		}
		name, ok := quotedValue(r.raw, "name")
		if !ok || name == "" {
			return nil, &ParseError{Kind: "wireless", Line: r.line, Text: r.text, Reason: "missing name"}
		}
		w := WirelessInterface{Index: r.index, Name: name}
		if len(r.tokens) > 1 && strings.Contains(r.tokens[1], "X") && !keyValueToken.MatchString(r.tokens[1]) {
			w.Disabled = true
		}
		if v, ok := plainValue(r.text, "frequency"); ok {
			w.Frequency = v
		}
		if v, ok := plainValue(r.text, "band"); ok {
			w.BandSpec = v
		}
		out = append(out, w)
	}
	return out, nil
}

// Band 根据频率判断频段（2000-2999 为 2g，5000-5999 为 5g），频率未知时回退到 band 参数
func (w WirelessInterface) Band() string {
	if mhz, err := strconv.Atoi(w.Frequency); err == nil {
		switch {
		case mhz >= 2000 && mhz <= 2999:
			return Band2G
		case mhz >= 5000 && mhz <= 5999:
			return Band5G
		}
	}
	switch {
	case strings.HasPrefix(w.BandSpec, "2ghz"):
		return Band2G
	case strings.HasPrefix(w.BandSpec, "5ghz"):
		return Band5G
	}
	return ""
}

// ParseLicenseLevel 解析 /system license print 中的 level 或 nlevel
func ParseLicenseLevel(raw string) (int, error) {
	kv := parseKeyValues(raw)
	for _, key := range []string{"nlevel", "level"} {
		v, ok := kv[key]
		if !ok {
			continue
		}
		// CHR 的 level 形如 p1/free，按 0 处理
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, nil
		}
		return n, nil
	}
	return 0, &ParseError{Kind: "license", Text: strings.TrimSpace(raw), Reason: "level not found"}
}

// ParsePackageUpdate 解析 /system package update print
func ParsePackageUpdate(raw string) PackageUpdate {
	kv := parseKeyValues(raw)
	return PackageUpdate{
		Channel:          kv["channel"],
		InstalledVersion: kv["installed-version"],
		LatestVersion:    kv["latest-version"],
		Status:           kv["status"],
	}
}

// ParseCount 解析 count-only 输出
func ParseCount(raw string) (int, error) {
	for i, line := range splitLines(raw) {
		s := strings.TrimSpace(line)
		if s == "" {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, &ParseError{Kind: "count", Line: i + 1, Text: s, Reason: "not a number"}
		}
		return n, nil
	}
	return 0, &ParseError{Kind: "count", Reason: "empty output"}
}
