package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/sshcollectorpro/rosconnector/internal/routeros"
	"github.com/sshcollectorpro/rosconnector/internal/util"
	"github.com/sshcollectorpro/rosconnector/pkg/logger"
	"github.com/sshcollectorpro/rosconnector/pkg/ssh"
)

// Config 应用配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	SSH      SSHConfig      `mapstructure:"ssh"`
	Log      logger.Config  `mapstructure:"log"`
	Backup   BackupConfig   `mapstructure:"backup"`
	RouterOS RouterOSConfig `mapstructure:"routeros"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Mode           string        `mapstructure:"mode"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	SimulateEnable bool          `mapstructure:"simulate_enable"`
	SimulateConfig string        `mapstructure:"simulate_config"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	SQLite SQLiteConfig `mapstructure:"sqlite"`
}

// SQLiteConfig SQLite配置
type SQLiteConfig struct {
	Path            string        `mapstructure:"path"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// StorageConfig 备份文件对象存储
type StorageConfig struct {
	Minio MinioConfig `mapstructure:"minio"`
}

// MinioConfig 对象存储配置
type MinioConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Secure    bool   `mapstructure:"secure"`
}

// SSHConfig SSH配置
type SSHConfig struct {
	Timeout           time.Duration  `mapstructure:"timeout"`
	KeepAliveInterval time.Duration  `mapstructure:"keep_alive_interval"`
	Pool              ssh.PoolConfig `mapstructure:"pool"`
}

// BackupConfig 批量备份配置
type BackupConfig struct {
	// StorageBackend 默认存储后端：local | minio
	StorageBackend string            `mapstructure:"storage_backend"`
	Prefix         string            `mapstructure:"prefix"`
	Local          LocalBackupConfig `mapstructure:"local"`
	IncludeExport  bool              `mapstructure:"include_export"` // 备份同时下载 /export terse
	Concurrency    int               `mapstructure:"concurrency"`
	// ConnectRate 每秒新建设备会话数，ConnectBurst 为突发上限
	ConnectRate  float64 `mapstructure:"connect_rate"`
	ConnectBurst int     `mapstructure:"connect_burst"`
}

// LocalBackupConfig 本地存储配置
type LocalBackupConfig struct {
	BaseDir        string `mapstructure:"base_dir"`
	MkdirIfMissing bool   `mapstructure:"mkdir_if_missing"`
}

// RouterOSConfig 会话与工作流参数
type RouterOSConfig struct {
	LoginSuffix       string                `mapstructure:"login_suffix"`
	PromptPattern     string                `mapstructure:"prompt_pattern"`
	CommandTimeout    time.Duration         `mapstructure:"command_timeout"`
	ReadyTimeout      time.Duration         `mapstructure:"ready_timeout"`
	AutoInteractions  []ssh.AutoInteraction `mapstructure:"auto_interactions"`
	Bounds            routeros.Bounds       `mapstructure:"bounds"`
	RouteCeiling      int                   `mapstructure:"route_ceiling"`
	DelayTiers        []routeros.DelayTier  `mapstructure:"delay_tiers"`
	WirelessThreshold int                   `mapstructure:"wireless_threshold"`
	WirelessProfile   string                `mapstructure:"wireless_profile"`
	FirmwarePause     time.Duration         `mapstructure:"firmware_pause"`
	DNSPause          time.Duration         `mapstructure:"dns_pause"`
	TempDir           string                `mapstructure:"temp_dir"`
	Charset           string                `mapstructure:"charset"`
}

// ShellOptions 交互会话参数
func (c RouterOSConfig) ShellOptions() ssh.ShellOptions {
	return ssh.ShellOptions{
		PromptPattern:    c.PromptPattern,
		CommandTimeout:   c.CommandTimeout,
		ReadyTimeout:     c.ReadyTimeout,
		AutoInteractions: c.AutoInteractions,
		Charset:          c.Charset,
	}
}

// DeviceOptions 设备工作流参数
func (c RouterOSConfig) DeviceOptions(host string) routeros.Options {
	return routeros.Options{
		Host:              host,
		Bounds:            c.Bounds,
		RouteCeiling:      c.RouteCeiling,
		DelayTiers:        c.DelayTiers,
		WirelessThreshold: c.WirelessThreshold,
		WirelessProfile:   c.WirelessProfile,
		FirmwarePause:     c.FirmwarePause,
		DNSPause:          c.DNSPause,
		TempDir:           c.TempDir,
		Charset:           c.Charset,
	}
}

var (
	globalConfig *Config
	globalMu     sync.RWMutex
)

// Load 加载配置文件；configPath 为空时按 ./configs、../configs 查找 config.yaml
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath("../configs")
		v.AddConfigPath("../../configs")
	}

	v.SetEnvPrefix("ROS_CONNECTOR")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		// 未指定路径且未找到配置文件时使用默认值
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.Storage.Minio.SecretKey = expandEnv(config.Storage.Minio.SecretKey)
	config.Storage.Minio.AccessKey = expandEnv(config.Storage.Minio.AccessKey)

	globalMu.Lock()
	globalConfig = &config
	globalMu.Unlock()
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 18080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 60*time.Second)
	v.SetDefault("server.write_timeout", 300*time.Second)
	v.SetDefault("server.simulate_enable", false)
	v.SetDefault("server.simulate_config", "simulate/simulate.yaml")

	v.SetDefault("database.sqlite.path", "./data/rosconnector.db")
	v.SetDefault("database.sqlite.max_idle_conns", 5)
	v.SetDefault("database.sqlite.max_open_conns", 1)
	v.SetDefault("database.sqlite.conn_max_lifetime", time.Hour)

	v.SetDefault("ssh.timeout", 10*time.Second)
	v.SetDefault("ssh.keep_alive_interval", 30*time.Second)
	v.SetDefault("ssh.pool.max_idle", 10)
	v.SetDefault("ssh.pool.max_active", 100)
	v.SetDefault("ssh.pool.idle_timeout", 5*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "console")
	v.SetDefault("log.file_path", "./logs/rosconnector.log")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age", 30)

	v.SetDefault("backup.storage_backend", "local")
	v.SetDefault("backup.prefix", "routeros")
	v.SetDefault("backup.local.base_dir", "./data/backups")
	v.SetDefault("backup.local.mkdir_if_missing", true)
	v.SetDefault("backup.include_export", true)
	v.SetDefault("backup.concurrency", 8)
	v.SetDefault("backup.connect_rate", 5.0)
	v.SetDefault("backup.connect_burst", 5)

	v.SetDefault("routeros.login_suffix", "+ct511w4098h")
	v.SetDefault("routeros.prompt_pattern", ssh.DefaultPromptPattern)
	v.SetDefault("routeros.command_timeout", 10*time.Second)
	v.SetDefault("routeros.ready_timeout", 15*time.Second)
	v.SetDefault("routeros.route_ceiling", 1000)
	v.SetDefault("routeros.wireless_threshold", 4)
	v.SetDefault("routeros.wireless_profile", "rosconnector")
	v.SetDefault("routeros.firmware_pause", 2*time.Second)
	v.SetDefault("routeros.dns_pause", 2*time.Second)
	v.SetDefault("routeros.charset", util.DefaultCharset)
	b := routeros.DefaultBounds()
	v.SetDefault("routeros.bounds.interfaces", b.Interfaces)
	v.SetDefault("routeros.bounds.ip_addresses", b.IPAddresses)
	v.SetDefault("routeros.bounds.routes", b.Routes)
	v.SetDefault("routeros.bounds.services", b.Services)
	v.SetDefault("routeros.bounds.users", b.Users)
	v.SetDefault("routeros.bounds.networks", b.Networks)
	v.SetDefault("routeros.bounds.wireless", b.Wireless)
}

// Validate 检查取值范围
func (c *Config) Validate() error {
	switch c.Backup.StorageBackend {
	case "local", "minio":
	default:
		return fmt.Errorf("backup.storage_backend must be local or minio, got %q", c.Backup.StorageBackend)
	}
	if c.RouterOS.Charset != "" && !util.KnownCharset(c.RouterOS.Charset) {
		return fmt.Errorf("routeros.charset %q is not supported", c.RouterOS.Charset)
	}
	if c.Backup.Concurrency <= 0 {
		return fmt.Errorf("backup.concurrency must be positive")
	}
	for i, t := range c.RouterOS.DelayTiers {
		if t.DelayFactor <= 0 {
			return fmt.Errorf("routeros.delay_tiers[%d].delay_factor must be positive", i)
		}
	}
	return nil
}

// Get 获取全局配置
func Get() *Config {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalConfig
}

// expandEnv 支持 ${VAR} 形式的密钥配置
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		if value := os.Getenv(strings.TrimSuffix(strings.TrimPrefix(s, "${"), "}")); value != "" {
			return value
		}
	}
	return s
}

// GetServerAddr 获取服务器地址
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// SSHClientConfig 连接参数
func (c *Config) SSHClientConfig() *ssh.Config {
	return &ssh.Config{
		Timeout:     c.SSH.Timeout,
		KeepAlive:   c.SSH.KeepAliveInterval,
		LoginSuffix: c.RouterOS.LoginSuffix,
	}
}
