package routeros

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sshcollectorpro/rosconnector/pkg/logger"
)

// Shell 已登录的 RouterOS 交互会话
// Send 发送单条命令，返回去掉回显与提示符后的输出；delayFactor 放大单条命令的等待时间
type Shell interface {
	Send(ctx context.Context, command string, delayFactor float64) (string, error)
}

// FileTransfer 设备文件传输通道（SFTP）
type FileTransfer interface {
	Get(ctx context.Context, remotePath string) ([]byte, error)
	Put(ctx context.Context, localPath, remotePath string) error
}

// Options 设备工作流参数
type Options struct {
	Host              string
	Bounds            Bounds
	RouteCeiling      int           // 交互式读取路由时的行号上限
	DelayTiers        []DelayTier   // 大表读取的等待档位
	WirelessThreshold int           // license level 达到该值时使用 ap-bridge
	WirelessProfile   string        // 默认安全配置名
	FirmwarePause     time.Duration // check-for-updates 后等待
	DNSPause          time.Duration // 启用 cloud DNS 后等待
	TempDir           string
	Charset           string // 下载文件的 codepage
	Now               func() time.Time
	Sleep             func(ctx context.Context, d time.Duration) error
}

const (
	defaultRouteCeiling      = 1000
	defaultWirelessThreshold = 4
	defaultWirelessProfile   = "rosconnector"
	defaultFirmwarePause     = 2 * time.Second
	defaultDNSPause          = 2 * time.Second
	outputLogLines           = 5
)

func (o Options) withDefaults() Options {
	o.Bounds = o.Bounds.withDefaults()
	if o.RouteCeiling <= 0 {
		o.RouteCeiling = defaultRouteCeiling
	}
	if len(o.DelayTiers) == 0 {
		o.DelayTiers = DefaultDelayTiers()
	}
	if o.WirelessThreshold <= 0 {
		o.WirelessThreshold = defaultWirelessThreshold
	}
	if o.WirelessProfile == "" {
		o.WirelessProfile = defaultWirelessProfile
	}
	if o.FirmwarePause < 0 {
		o.FirmwarePause = 0
	} else if o.FirmwarePause == 0 {
		o.FirmwarePause = defaultFirmwarePause
	}
	if o.DNSPause < 0 {
		o.DNSPause = 0
	} else if o.DNSPause == 0 {
		o.DNSPause = defaultDNSPause
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Sleep == nil {
		o.Sleep = sleepContext
	}
	return o
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Device 单台 RouterOS 设备上的查询与配置工作流
// 同一 Device 上的调用串行执行，会话不支持并发命令
type Device struct {
	shell Shell
	files FileTransfer
	opts  Options

	mu         sync.Mutex
	lastBackup string
	lastExport string
}

// NewDevice 基于已建立的会话创建设备
func NewDevice(shell Shell, files FileTransfer, opts Options) *Device {
	return &Device{shell: shell, files: files, opts: opts.withDefaults()}
}

// LastBackup 本会话最近一次创建的备份名
func (d *Device) LastBackup() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastBackup
}

// LastExport 本会话最近一次创建的导出名
func (d *Device) LastExport() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastExport
}

func (d *Device) log() *logrus.Entry {
	return logger.WithFields(logrus.Fields{"host": d.opts.Host, "component": "routeros"})
}

// send 发送命令并记录输出摘要
func (d *Device) send(ctx context.Context, command string, delayFactor float64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	start := time.Now()
	out, err := d.shell.Send(ctx, command, delayFactor)
	safe := logger.Redact(command)
	if err != nil {
		d.log().WithError(err).Warnf("command failed: %s", safe)
		return "", fmt.Errorf("send %q: %w", safe, err)
	}
	d.log().WithField("elapsed", time.Since(start).String()).Debugf("command sent: %s", safe)
	logger.DebugCommandOutput(safe, out, outputLogLines)
	return out, nil
}

// run 执行写命令并分类结果
func (d *Device) run(ctx context.Context, b Builder, delayFactor float64) error {
	res, err := d.exec(ctx, b.Command(), delayFactor)
	if err != nil {
		return err
	}
	return res.Err()
}

func (d *Device) exec(ctx context.Context, command string, delayFactor float64) (Result, error) {
	out, err := d.send(ctx, command, delayFactor)
	if err != nil {
		return Result{}, err
	}
	return Classify(out).withCommand(logger.Redact(command)), nil
}

// Apply 执行任意写命令，返回分类结果；error 仅表示会话/传输错误
func (d *Device) Apply(ctx context.Context, b Builder) (Result, error) {
	return d.exec(ctx, b.Command(), 1)
}

// Identity 设备名称
func (d *Device) Identity(ctx context.Context) (string, error) {
	out, err := d.send(ctx, "/system identity print", 1)
	if err != nil {
		return "", err
	}
	return ParseIdentity(out)
}

// Interfaces 接口列表
func (d *Device) Interfaces(ctx context.Context) ([]Interface, error) {
	out, err := d.send(ctx, "/interface print detail without-paging", 1)
	if err != nil {
		return nil, err
	}
	return ParseInterfaces(out, d.opts.Bounds)
}

// IPAddresses 地址列表
func (d *Device) IPAddresses(ctx context.Context) ([]IPAddress, error) {
	out, err := d.send(ctx, "/ip address print without-paging", 1)
	if err != nil {
		return nil, err
	}
	return ParseIPAddresses(out, d.opts.Bounds)
}

// Routes 交互式读取路由表，行号超过 RouteCeiling 的部分被截断；大表使用 RoutesLarge
func (d *Device) Routes(ctx context.Context) ([]Route, error) {
	out, err := d.send(ctx, "/ip route print detail without-paging", 1)
	if err != nil {
		return nil, err
	}
	return ParseRoutes(out, d.opts.RouteCeiling)
}

// Services IP 服务列表
func (d *Device) Services(ctx context.Context) ([]Service, error) {
	out, err := d.send(ctx, "/ip service print without-paging", 1)
	if err != nil {
		return nil, err
	}
	return ParseServices(out, d.opts.Bounds)
}

// Users 用户列表
func (d *Device) Users(ctx context.Context) ([]User, error) {
	out, err := d.send(ctx, "/user print without-paging", 1)
	if err != nil {
		return nil, err
	}
	return ParseUsers(out, d.opts.Bounds)
}

// Resources 系统资源
func (d *Device) Resources(ctx context.Context) (Resources, error) {
	out, err := d.send(ctx, "/system resource print", 1)
	if err != nil {
		return nil, err
	}
	return ParseResources(out), nil
}

// DHCPNetworks DHCP 网络列表
func (d *Device) DHCPNetworks(ctx context.Context) ([]DHCPNetwork, error) {
	out, err := d.send(ctx, "/ip dhcp-server network print without-paging", 1)
	if err != nil {
		return nil, err
	}
	return ParseDHCPNetworks(out, d.opts.Bounds)
}

// SendCommand 发送任意命令，返回去掉空行的原始输出
func (d *Device) SendCommand(ctx context.Context, command string) (string, error) {
	out, err := d.send(ctx, command, 8)
	if err != nil {
		return "", err
	}
	return stripEmptyLines(out), nil
}

// ExportConfiguration 读取 /export terse 输出
func (d *Device) ExportConfiguration(ctx context.Context) (string, error) {
	return d.SendCommand(ctx, "/export terse")
}

// EnableCloudDNS 启用 IP Cloud DDNS 并返回分配的域名
func (d *Device) EnableCloudDNS(ctx context.Context) (string, error) {
	res, err := d.exec(ctx, "/ip cloud set ddns-enabled=yes", 1)
	if err != nil {
		return "", err
	}
	if err := res.Err(); err != nil {
		return "", err
	}
	if err := d.opts.Sleep(ctx, d.opts.DNSPause); err != nil {
		return "", err
	}
	out, err := d.send(ctx, ":put [/ip cloud get dns-name]", 1)
	if err != nil {
		return "", err
	}
	name := strings.TrimSpace(stripEmptyLines(out))
	if name == "" {
		return "", &PreconditionError{Workflow: "cloud-dns", Message: "device did not report a DNS name yet"}
	}
	return name, nil
}

func stripEmptyLines(s string) string {
	var kept []string
	for _, line := range splitLines(s) {
		if strings.TrimSpace(line) != "" {
			kept = append(kept, strings.TrimRight(line, " \t"))
		}
	}
	return strings.Join(kept, "\n")
}
