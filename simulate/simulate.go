package simulate

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
	"golang.org/x/crypto/ssh"

	"github.com/sshcollectorpro/rosconnector/pkg/logger"
)

// Config simulate.yaml 配置结构
type Config struct {
	Password   string                      `mapstructure:"password"`
	HostKey    string                      `mapstructure:"host_key"`
	Namespace  map[string]NamespaceConfig  `mapstructure:"namespace"`
	DeviceName map[string]DeviceNameConfig `mapstructure:"device_name"`
}

// NamespaceConfig 每个 namespace 独立端口
type NamespaceConfig struct {
	Port        int `mapstructure:"port"`
	IdleSeconds int `mapstructure:"idle_seconds"`
	MaxConn     int `mapstructure:"max_conn"`
}

// DeviceNameConfig 按登录用户名匹配的模拟设备
type DeviceNameConfig struct {
	Identity      string `mapstructure:"identity"`
	LicensePrompt bool   `mapstructure:"license_prompt"` // 首次登录询问是否查看许可证
}

// Manager 管理多个 namespace 的 RouterOS 模拟服务
// 每个 namespace 在独立端口运行，命令输出来自 simulate/namespace/<ns>/<user>/
type Manager struct {
	cfg     *Config
	servers map[string]*Server
	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
}

// LoadConfig 读取 simulate/simulate.yaml
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(path)
	v.SetDefault("password", defaultPassword)
	v.SetDefault("host_key", filepath.Join("simulate", "_hostkey_rsa.pem"))
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read simulate config: %w", err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal simulate config: %w", err)
	}
	return &cfg, nil
}

// EnsureDirs 按 namespace 与 device_name 创建输出目录
// simulate/namespace/<ns>/<device_name>
func EnsureDirs(simCfg *Config) error {
	base := filepath.Join("simulate", "namespace")
	if err := os.MkdirAll(base, 0o755); err != nil {
		return fmt.Errorf("failed to create base namespace directory: %w", err)
	}
	for ns := range simCfg.Namespace {
		for dev := range simCfg.DeviceName {
			dir := filepath.Join(base, ns, dev)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create dir %s: %w", dir, err)
			}
		}
	}
	return nil
}

// Start 启动所有 namespace 的模拟服务，单个 namespace 失败不影响其它
func Start(simCfg *Config) (*Manager, error) {
	ctx, cancel := context.WithCancel(context.Background())
	servers, err := startServers(simCfg)
	if err != nil {
		cancel()
		return nil, err
	}
	return &Manager{cfg: simCfg, servers: servers, ctx: ctx, cancel: cancel}, nil
}

// Reload 按新配置重启全部 namespace，Manager 指针保持不变
func (m *Manager) Reload(simCfg *Config) error {
	servers, err := startServersAfter(simCfg, m.stopServers)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.cfg = simCfg
	m.servers = servers
	m.mu.Unlock()
	return nil
}

func (m *Manager) stopServers() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for ns, srv := range m.servers {
		srv.Stop()
		logger.Infof("Simulate: namespace %s stopped", ns)
	}
	m.servers = map[string]*Server{}
}

func startServers(simCfg *Config) (map[string]*Server, error) {
	return startServersAfter(simCfg, nil)
}

// startServersAfter 校验配置后先执行 before（释放旧端口），再逐个启动
func startServersAfter(simCfg *Config, before func()) (map[string]*Server, error) {
	if err := EnsureDirs(simCfg); err != nil {
		return nil, err
	}
	// 所有 namespace 共用持久化 host key，避免客户端指纹频繁变化
	signer, err := loadOrCreateHostKey(simCfg.HostKey)
	if err != nil {
		return nil, err
	}
	if before != nil {
		before()
	}

	servers := make(map[string]*Server, len(simCfg.Namespace))
	for ns, nsCfg := range simCfg.Namespace {
		srv, err := NewServer(ServerOptions{
			Addr:        fmt.Sprintf(":%d", nsCfg.Port),
			Password:    simCfg.Password,
			HostKey:     signer,
			Outputs:     DirOutputs(filepath.Join("simulate", "namespace", ns)),
			Devices:     simCfg.DeviceName,
			IdleSeconds: nsCfg.IdleSeconds,
			MaxConn:     nsCfg.MaxConn,
		})
		if err != nil {
			logger.Errorf("Simulate: init namespace %s failed: %v", ns, err)
			continue
		}
		if err := srv.Start(); err != nil {
			logger.Errorf("Simulate: start namespace %s on port %d failed: %v", ns, nsCfg.Port, err)
			continue
		}
		servers[ns] = srv
		logger.Infof("Simulate: namespace %s listening on %s", ns, srv.Addr())
	}
	return servers, nil
}

// Stop 停止所有模拟服务
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.stopServers()
}

// Server 返回 namespace 对应的服务
func (m *Manager) Server(ns string) (*Server, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	srv, ok := m.servers[ns]
	return srv, ok
}

// Namespaces 运行中的 namespace 与监听地址
func (m *Manager) Namespaces() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.servers))
	for ns, srv := range m.servers {
		out[ns] = srv.Addr()
	}
	return out
}

// loadOrCreateHostKey 加载持久化 host key（RSA 2048），不存在时生成；path 为空时使用临时 ed25519 key
func loadOrCreateHostKey(path string) (ssh.Signer, error) {
	if path == "" {
		return ephemeralHostKey()
	}
	if bs, err := os.ReadFile(path); err == nil {
		signer, err := ssh.ParsePrivateKey(bs)
		if err == nil {
			logger.Debugf("Simulate: host key loaded from %s", path)
			return signer, nil
		}
		logger.Warnf("Simulate: host key parse failed, regenerating: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to ensure host key dir: %w", err)
	}
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("failed to generate host key: %w", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	if err := os.WriteFile(path, pemBytes, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write host key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse generated host key: %w", err)
	}
	logger.Infof("Simulate: host key generated at %s", path)
	return signer, nil
}

func ephemeralHostKey() (ssh.Signer, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate host key: %w", err)
	}
	return ssh.NewSignerFromKey(priv)
}
