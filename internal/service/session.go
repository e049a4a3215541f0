package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/sshcollectorpro/rosconnector/internal/config"
	"github.com/sshcollectorpro/rosconnector/internal/model"
	"github.com/sshcollectorpro/rosconnector/internal/routeros"
	"github.com/sshcollectorpro/rosconnector/pkg/logger"
	"github.com/sshcollectorpro/rosconnector/pkg/ssh"
)

// DeviceRunner 在设备会话内执行工作流
type DeviceRunner interface {
	WithDevice(ctx context.Context, dev *model.Device, fn func(*routeros.Device) error) error
}

// SessionManager 按设备获取交互会话与文件传输通道，用完即释放
type SessionManager struct {
	cfg  *config.Config
	pool *ssh.Pool
}

// NewSessionManager 创建会话管理器
func NewSessionManager(cfg *config.Config) *SessionManager {
	pc := cfg.SSH.Pool
	pc.SSHConfig = cfg.SSHClientConfig()
	return &SessionManager{cfg: cfg, pool: ssh.NewPool(&pc)}
}

// connectionInfo 设备连接参数
func connectionInfo(dev *model.Device) *ssh.ConnectionInfo {
	return &ssh.ConnectionInfo{
		Host:     dev.Host,
		Port:     dev.Port,
		Username: dev.Username,
		Password: dev.Password,
		KeyFile:  dev.KeyFile,
	}
}

// WithDevice 建立会话并执行 fn；会话级错误后连接被关闭，否则归还连接池
func (m *SessionManager) WithDevice(ctx context.Context, dev *model.Device, fn func(*routeros.Device) error) error {
	info := connectionInfo(dev)
	log := logger.WithFields(logrus.Fields{"host": dev.Host, "device_id": dev.ID})

	client, err := m.pool.GetConnection(ctx, info)
	if err != nil {
		return &routeros.ConnectionError{Host: dev.Host, Err: err}
	}
	shell, err := client.OpenShell(ctx, m.cfg.RouterOS.ShellOptions())
	if err != nil {
		if cerr := m.pool.CloseConnection(info); cerr != nil {
			log.WithError(cerr).Warnf("close connection failed")
		}
		return &routeros.ConnectionError{Host: dev.Host, Err: err}
	}

	files := &lazyTransfer{cfg: m.cfg.SSHClientConfig(), info: info}
	ferr := fn(routeros.NewDevice(shell, files, m.cfg.RouterOS.DeviceOptions(dev.Host)))

	if err := files.Close(); err != nil {
		log.WithError(err).Warnf("close sftp failed")
	}
	if err := shell.Close(); err != nil {
		log.WithError(err).Warnf("close shell failed")
	}

	if errors.Is(ferr, ssh.ErrShellClosed) {
		ferr = &routeros.ConnectionError{Host: dev.Host, Err: ferr}
	}
	var connErr *routeros.ConnectionError
	if errors.As(ferr, &connErr) || !client.IsConnected() {
		if err := m.pool.CloseConnection(info); err != nil {
			log.WithError(err).Warnf("close connection failed")
		}
	} else {
		m.pool.ReleaseConnection(info)
	}
	return ferr
}

// TestConnection 通过 exec 通道读取设备名与版本
func (m *SessionManager) TestConnection(ctx context.Context, dev *model.Device) (identity, version string, err error) {
	info := connectionInfo(dev)
	res, err := m.pool.ExecuteCommand(ctx, info, "/system identity print")
	if err != nil {
		return "", "", &routeros.ConnectionError{Host: dev.Host, Err: err}
	}
	identity, err = routeros.ParseIdentity(res.Output)
	if err != nil {
		return "", "", err
	}
	res, err = m.pool.ExecuteCommand(ctx, info, "/system resource print")
	if err != nil {
		return identity, "", &routeros.ConnectionError{Host: dev.Host, Err: err}
	}
	return identity, routeros.ParseResources(res.Output).Get("version"), nil
}

// Stats 连接池统计
func (m *SessionManager) Stats() ssh.PoolStats {
	return m.pool.Stats()
}

// Close 关闭所有连接
func (m *SessionManager) Close() error {
	return m.pool.Close()
}

// lazyTransfer 首次使用时才建立 SFTP 连接
type lazyTransfer struct {
	cfg  *ssh.Config
	info *ssh.ConnectionInfo

	mu     sync.Mutex
	client *ssh.SFTPClient
}

func (t *lazyTransfer) open(ctx context.Context) (*ssh.SFTPClient, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client != nil {
		return t.client, nil
	}
	c, err := ssh.NewSFTPClient(ctx, t.cfg, t.info)
	if err != nil {
		return nil, fmt.Errorf("open sftp to %s: %w", t.info.Address(), err)
	}
	t.client = c
	return c, nil
}

func (t *lazyTransfer) Get(ctx context.Context, remotePath string) ([]byte, error) {
	c, err := t.open(ctx)
	if err != nil {
		return nil, err
	}
	return c.Get(ctx, remotePath)
}

func (t *lazyTransfer) Put(ctx context.Context, localPath, remotePath string) error {
	c, err := t.open(ctx)
	if err != nil {
		return err
	}
	return c.Put(ctx, localPath, remotePath)
}

func (t *lazyTransfer) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	t.client = nil
	return err
}
