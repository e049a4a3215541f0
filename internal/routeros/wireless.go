package routeros

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// 无线频段
const (
	Band2G   = "2g"
	Band5G   = "5g"
	BandBoth = "both"
)

// WirelessParams 无线配置参数
type WirelessParams struct {
	Band       string `json:"band"`
	SSID       string `json:"ssid"`
	Passphrase string `json:"passphrase"`
	Country    string `json:"country"`
	Profile    string `json:"profile,omitempty"`
}

// WirelessBand 已配置的单个频段
type WirelessBand struct {
	Band      string `json:"band"`
	Interface string `json:"interface"`
	Index     int    `json:"index"`
}

// WirelessResult 无线配置结果；Skipped 为 both 模式下缺失而跳过的频段
type WirelessResult struct {
	Mode         string         `json:"mode"`
	LicenseLevel int            `json:"license_level"`
	Configured   []WirelessBand `json:"configured"`
	Skipped      []string       `json:"skipped,omitempty"`
}

// ConfigureWireless 重建安全配置并按频段配置无线接口
func (d *Device) ConfigureWireless(ctx context.Context, p WirelessParams) (WirelessResult, error) {
	wanted, err := wantedBands(p.Band)
	if err != nil {
		return WirelessResult{}, err
	}
	if p.SSID == "" {
		return WirelessResult{}, &PreconditionError{Workflow: "wireless", Message: "ssid is required"}
	}
	if len(p.Passphrase) < 8 {
		return WirelessResult{}, &PreconditionError{Workflow: "wireless", Message: "passphrase must be at least 8 characters"}
	}
	profile := p.Profile
	if profile == "" {
		profile = d.opts.WirelessProfile
	}

	if err := d.run(ctx, SecurityProfileRemove{Name: profile}, 1); err != nil {
		return WirelessResult{}, err
	}
	if err := d.run(ctx, SecurityProfileCreate{Name: profile, Passphrase: p.Passphrase}, 1); err != nil {
		return WirelessResult{}, err
	}
	reset, err := d.exec(ctx, "/interface wireless reset-configuration [find]", 2)
	if err != nil {
		return WirelessResult{}, err
	}
	if err := reset.Err(); err != nil {
		return WirelessResult{}, err
	}

	out, err := d.send(ctx, "/interface wireless print detail without-paging", 1)
	if err != nil {
		return WirelessResult{}, err
	}
	ifaces, err := ParseWirelessInterfaces(out, d.opts.Bounds)
	if err != nil {
		return WirelessResult{}, err
	}
	out, err = d.send(ctx, "/system license print", 1)
	if err != nil {
		return WirelessResult{}, err
	}
	level, err := ParseLicenseLevel(out)
	if err != nil {
		return WirelessResult{}, err
	}

	res := WirelessResult{Mode: "bridge", LicenseLevel: level}
	if level >= d.opts.WirelessThreshold {
		res.Mode = "ap-bridge"
	}

	byBand := firstInterfacePerBand(ifaces)
	var targets []WirelessBand
	for _, band := range wanted {
		w, ok := byBand[band]
		if !ok {
			if p.Band == BandBoth {
				res.Skipped = append(res.Skipped, band)
				continue
			}
			return WirelessResult{}, &PreconditionError{
				Workflow: "wireless",
				Message:  fmt.Sprintf("no %s wireless interface found", band),
			}
		}
		targets = append(targets, WirelessBand{Band: band, Interface: w.Name, Index: w.Index})
	}
	if len(targets) == 0 {
		return WirelessResult{}, &PreconditionError{Workflow: "wireless", Message: "no wireless interface found"}
	}

	for _, t := range targets {
		set := WirelessBandSet{
			Index:           t.Index,
			Band:            t.Band,
			Mode:            res.Mode,
			SSID:            p.SSID,
			SecurityProfile: profile,
			Country:         p.Country,
		}
		if err := d.run(ctx, set, 1); err != nil {
			return WirelessResult{}, countryError(p.Country, err)
		}
		res.Configured = append(res.Configured, t)
		d.log().Infof("wireless %s configured on %s (mode %s)", t.Band, t.Interface, res.Mode)
	}
	for _, band := range res.Skipped {
		d.log().Warnf("wireless %s skipped, no interface", band)
	}
	return res, nil
}

func wantedBands(band string) ([]string, error) {
	switch band {
	case Band2G:
		return []string{Band2G}, nil
	case Band5G:
		return []string{Band5G}, nil
	case BandBoth:
		return []string{Band2G, Band5G}, nil
	}
	return nil, &PreconditionError{
		Workflow:   "wireless",
		Message:    fmt.Sprintf("unsupported band %q", band),
		Candidates: []string{Band2G, Band5G, BandBoth},
	}
}

// firstInterfacePerBand 每个频段取行号最小的接口
func firstInterfacePerBand(ifaces []WirelessInterface) map[string]WirelessInterface {
	sorted := make([]WirelessInterface, len(ifaces))
	copy(sorted, ifaces)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })
	out := map[string]WirelessInterface{}
	for _, w := range sorted {
		band := w.Band()
		if band == "" {
			continue
		}
		if _, ok := out[band]; !ok {
			out[band] = w
		}
	}
	return out
}

func countryError(country string, err error) error {
	var cf *CommandFailure
	if errors.As(err, &cf) && strings.Contains(strings.ToLower(cf.Message), "country") {
		return &InvalidCountryError{Country: country, Message: cf.Message}
	}
	return err
}
