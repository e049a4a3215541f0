package routeros

import (
	"context"
	"fmt"
)

// FirmwareParams 固件检查参数；Install 为 false 时只检查不安装
type FirmwareParams struct {
	Channel string `json:"channel"`
	Install bool   `json:"install"`
}

// FirmwareResult 固件检查结果
type FirmwareResult struct {
	Channel          string `json:"channel"`
	InstalledVersion string `json:"installed_version"`
	LatestVersion    string `json:"latest_version"`
	UpdateAvailable  bool   `json:"update_available"`
	Installing       bool   `json:"installing"`
	Status           string `json:"status,omitempty"`
}

// CheckFirmware 设置更新通道、开启 routerboard 自动升级，比较版本后按需安装
func (d *Device) CheckFirmware(ctx context.Context, p FirmwareParams) (FirmwareResult, error) {
	channel := p.Channel
	if channel == "" {
		channel = "stable"
	}
	if err := d.run(ctx, PackageChannelSet{Channel: channel}, 1); err != nil {
		return FirmwareResult{}, err
	}
	res, err := d.exec(ctx, "/system routerboard settings set auto-upgrade=yes", 1)
	if err != nil {
		return FirmwareResult{}, err
	}
	if err := res.Err(); err != nil {
		return FirmwareResult{}, err
	}

	out, err := d.send(ctx, "/system package update print", 1)
	if err != nil {
		return FirmwareResult{}, err
	}
	before := ParsePackageUpdate(out)
	if before.InstalledVersion == "" {
		return FirmwareResult{}, &ParseError{Kind: "package update", Text: out, Reason: "installed-version not found"}
	}

	// check-for-updates 的输出为进度信息，不做分类
	if _, err := d.send(ctx, "/system package update check-for-updates", 4); err != nil {
		return FirmwareResult{}, err
	}
	if err := d.opts.Sleep(ctx, d.opts.FirmwarePause); err != nil {
		return FirmwareResult{}, err
	}
	out, err = d.send(ctx, "/system package update print", 1)
	if err != nil {
		return FirmwareResult{}, err
	}
	after := ParsePackageUpdate(out)
	result := FirmwareResult{
		Channel:          channel,
		InstalledVersion: before.InstalledVersion,
		LatestVersion:    after.LatestVersion,
		Status:           after.Status,
	}
	if after.LatestVersion == "" {
		return result, &PreconditionError{
			Workflow: "firmware",
			Message:  fmt.Sprintf("latest version not available (status: %s)", after.Status),
		}
	}
	cmp, err := CompareVersions(after.LatestVersion, before.InstalledVersion)
	if err != nil {
		return result, &PreconditionError{Workflow: "firmware", Message: err.Error()}
	}
	result.UpdateAvailable = cmp > 0
	if !result.UpdateAvailable || !p.Install {
		d.log().Infof("firmware %s, latest %s, install skipped", result.InstalledVersion, result.LatestVersion)
		return result, nil
	}

	// 安装后设备重启，会话可能在返回前断开
	if _, err := d.send(ctx, "/system package update install", 4); err != nil {
		d.log().WithError(err).Warn("session closed while installing firmware")
	}
	result.Installing = true
	d.log().Infof("firmware %s -> %s installing", result.InstalledVersion, result.LatestVersion)
	return result, nil
}
