package routeros

import (
	"context"
	"fmt"
)

const defaultDHCPDNS = "1.1.1.1,9.9.9.9"

// DHCPServerResult DHCP 服务创建结果
type DHCPServerResult struct {
	Server  string      `json:"server"`
	Network DHCPNetwork `json:"network"`
	Source  IPAddress   `json:"source"`
}

// CreateDHCPServer 在接口上创建 DHCP 服务，并按接口地址推导网络行
// 接口有多个地址时必须通过 networkAddress 指定，否则返回 PreconditionError
func (d *Device) CreateDHCPServer(ctx context.Context, p DHCPServerCreate, networkAddress *string) (DHCPServerResult, error) {
	if p.Interface == "" {
		return DHCPServerResult{}, &PreconditionError{Workflow: "dhcp-server", Message: "interface is required"}
	}
	if err := d.run(ctx, p, 1); err != nil {
		return DHCPServerResult{}, err
	}

	addrs, err := d.IPAddresses(ctx)
	if err != nil {
		return DHCPServerResult{}, err
	}
	var onIface []IPAddress
	for _, a := range addrs {
		if a.Interface == p.Interface {
			onIface = append(onIface, a)
		}
	}

	src, err := pickDHCPSource(p.Interface, onIface, networkAddress)
	if err != nil {
		return DHCPServerResult{}, err
	}

	network := DHCPNetworkCreate{
		Address:   src.Network + "/" + src.Prefix(),
		Gateway:   src.IP(),
		DNSServer: stringOr(p.DNSServer, defaultDHCPDNS),
	}
	if err := d.run(ctx, network, 1); err != nil {
		return DHCPServerResult{}, err
	}
	d.log().Infof("dhcp server created on %s, network %s", p.Interface, network.Address)
	return DHCPServerResult{
		Server:  stringOr(p.Name, "dhcp_server"),
		Network: DHCPNetwork{Address: network.Address, Gateway: network.Gateway},
		Source:  src,
	}, nil
}

// pickDHCPSource 选择用于推导网络行的接口地址
func pickDHCPSource(iface string, addrs []IPAddress, networkAddress *string) (IPAddress, error) {
	if len(addrs) == 0 {
		return IPAddress{}, &PreconditionError{
			Workflow: "dhcp-server",
			Message:  fmt.Sprintf("there is no IP address assigned to interface %s", iface),
		}
	}
	candidates := make([]string, 0, len(addrs))
	for _, a := range addrs {
		candidates = append(candidates, a.Address)
	}
	if networkAddress == nil || *networkAddress == "" {
		if len(addrs) == 1 {
			return addrs[0], nil
		}
		return IPAddress{}, &PreconditionError{
			Workflow:   "dhcp-server",
			Message:    fmt.Sprintf("interface %s has more than one IP address, pass network_address to choose one", iface),
			Candidates: candidates,
		}
	}
	want := *networkAddress
	for _, a := range addrs {
		if want == a.Address || want == a.IP() || want == a.Network || want == a.Network+"/"+a.Prefix() {
			return a, nil
		}
	}
	return IPAddress{}, &PreconditionError{
		Workflow:   "dhcp-server",
		Message:    fmt.Sprintf("network address %s is not assigned to interface %s", want, iface),
		Candidates: candidates,
	}
}

// UpdateDHCPNetwork 修改已存在的 DHCP 网络行
func (d *Device) UpdateDHCPNetwork(ctx context.Context, p DHCPNetworkUpdate) error {
	if p.Address == "" {
		return &PreconditionError{Workflow: "dhcp-network", Message: "network address is required"}
	}
	networks, err := d.DHCPNetworks(ctx)
	if err != nil {
		return err
	}
	if len(networks) == 0 {
		return &PreconditionError{Workflow: "dhcp-network", Message: "there is no DHCP network, create it first"}
	}
	found := false
	candidates := make([]string, 0, len(networks))
	for _, n := range networks {
		candidates = append(candidates, n.Address)
		if n.Address == p.Address {
			found = true
		}
	}
	if !found {
		return &PreconditionError{
			Workflow:   "dhcp-network",
			Message:    fmt.Sprintf("there is no DHCP network with address %s", p.Address),
			Candidates: candidates,
		}
	}
	return d.run(ctx, p, 1)
}
