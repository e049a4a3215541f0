package ssh

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
)

// Config SSH配置
type Config struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	KeepAlive   time.Duration `mapstructure:"keep_alive"`
	LoginSuffix string        `mapstructure:"login_suffix"` // 追加到用户名，RouterOS 用于关闭颜色并设置终端尺寸
}

// Client SSH客户端
type Client struct {
	config     *Config
	connection *ssh.Client
	mutex      sync.RWMutex
	// 保存最近一次成功连接的参数，用于在会话创建失败（如 EOF）时自动重连
	info *ConnectionInfo
	stop chan struct{}
}

// ConnectionInfo SSH连接信息
type ConnectionInfo struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	KeyFile  string `json:"key_file,omitempty"`
}

// Address host:port
func (i *ConnectionInfo) Address() string {
	port := i.Port
	if port == 0 {
		port = 22
	}
	return net.JoinHostPort(i.Host, fmt.Sprintf("%d", port))
}

// CommandResult 命令执行结果
type CommandResult struct {
	Command  string        `json:"command"`
	Output   string        `json:"output"`
	Error    string        `json:"error"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration"`
}

// NewClient 创建SSH客户端
func NewClient(config *Config) *Client {
	if config == nil {
		config = &Config{Timeout: 30 * time.Second}
	}
	return &Client{config: config}
}

// clientConfig 构建握手配置，保留旧版 RouterOS 仍在使用的算法
func (c *Client) clientConfig(info *ConnectionInfo) (*ssh.ClientConfig, error) {
	cfg := &ssh.ClientConfig{
		User:            info.Username + c.config.LoginSuffix,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         c.config.Timeout,
		Config: ssh.Config{
			KeyExchanges: []string{
				"curve25519-sha256",
				"curve25519-sha256@libssh.org",
				"diffie-hellman-group14-sha256",
				"diffie-hellman-group14-sha1",
				"diffie-hellman-group1-sha1",
				"diffie-hellman-group-exchange-sha256",
				"diffie-hellman-group-exchange-sha1",
				"ecdh-sha2-nistp256",
				"ecdh-sha2-nistp384",
				"ecdh-sha2-nistp521",
			},
			Ciphers: []string{
				"aes128-ctr",
				"aes192-ctr",
				"aes256-ctr",
				"aes128-gcm@openssh.com",
				"aes256-gcm@openssh.com",
				"aes128-cbc",
				"aes192-cbc",
				"aes256-cbc",
				"3des-cbc",
			},
			MACs: []string{
				"hmac-sha2-256-etm@openssh.com",
				"hmac-sha2-256",
				"hmac-sha1",
				"hmac-sha1-96",
			},
		},
		HostKeyAlgorithms: []string{
			"ssh-ed25519",
			"rsa-sha2-256",
			"rsa-sha2-512",
			"ssh-rsa",
			"ecdsa-sha2-nistp256",
			"ecdsa-sha2-nistp384",
			"ecdsa-sha2-nistp521",
		},
	}

	if info.KeyFile != "" {
		pem, err := os.ReadFile(info.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("read key file: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			return nil, fmt.Errorf("parse key file: %w", err)
		}
		cfg.Auth = append(cfg.Auth, ssh.PublicKeys(signer))
	}
	if info.Password != "" {
		cfg.Auth = append(cfg.Auth,
			ssh.Password(info.Password),
			ssh.KeyboardInteractive(func(user, instruction string, questions []string, echos []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range questions {
					answers[i] = info.Password
				}
				return answers, nil
			}),
		)
	}
	return cfg, nil
}

// Connect 连接SSH服务器
func (c *Client) Connect(ctx context.Context, info *ConnectionInfo) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.connectLocked(ctx, info)
}

func (c *Client) connectLocked(ctx context.Context, info *ConnectionInfo) error {
	c.info = info

	sshConfig, err := c.clientConfig(info)
	if err != nil {
		return err
	}

	address := info.Address()
	dialer := &net.Dialer{Timeout: c.config.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("failed to dial: %w", err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, sshConfig)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create SSH connection: %w", err)
	}

	c.connection = ssh.NewClient(sshConn, chans, reqs)
	c.stop = make(chan struct{})
	go c.keepAlive(c.connection, c.stop)
	return nil
}

// newSessionWithRetry 创建会话（带重试）
// RouterOS 在登录后立即打开通道时偶尔返回 "open failed" 或 EOF，短延迟重试
func (c *Client) newSessionWithRetry(ctx context.Context) (*ssh.Session, error) {
	backoffs := []time.Duration{0, 200 * time.Millisecond, 500 * time.Millisecond, 1 * time.Second, 2 * time.Second}
	var lastErr error
	for _, d := range backoffs {
		if d > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(d):
			}
		}
		c.mutex.RLock()
		conn := c.connection
		c.mutex.RUnlock()
		if conn == nil {
			lastErr = fmt.Errorf("SSH connection not established")
		} else {
			sess, err := conn.NewSession()
			if err == nil {
				return sess, nil
			}
			lastErr = err
		}
		msg := strings.ToLower(lastErr.Error())
		if (strings.Contains(msg, "eof") || conn == nil) && c.info != nil {
			// 连接已失效，按保存的参数重连一次后继续退避
			c.mutex.Lock()
			c.closeLocked()
			rctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
			_ = c.connectLocked(rctx, c.info)
			cancel()
			c.mutex.Unlock()
		}
	}
	return nil, lastErr
}

// ExecuteCommand 通过 exec 通道执行单个命令
func (c *Client) ExecuteCommand(ctx context.Context, command string) (*CommandResult, error) {
	startTime := time.Now()
	result := &CommandResult{Command: command}

	session, err := c.newSessionWithRetry(ctx)
	if err != nil {
		result.Error = fmt.Sprintf("failed to create session: %v", err)
		result.ExitCode = -1
		return result, err
	}
	defer session.Close()

	type reply struct {
		out []byte
		err error
	}
	done := make(chan reply, 1)
	go func() {
		out, err := session.CombinedOutput(command)
		done <- reply{out, err}
	}()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGTERM)
		result.Duration = time.Since(startTime)
		result.Error = "command timeout"
		result.ExitCode = -1
		return result, ctx.Err()
	case r := <-done:
		result.Duration = time.Since(startTime)
		result.Output = string(r.out)
		if r.err != nil {
			result.Error = r.err.Error()
			if exitError, ok := r.err.(*ssh.ExitError); ok {
				result.ExitCode = exitError.ExitStatus()
			} else {
				result.ExitCode = -1
			}
			return result, r.err
		}
		return result, nil
	}
}

// Close 关闭SSH连接
func (c *Client) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.closeLocked()
}

func (c *Client) closeLocked() error {
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
	if c.connection != nil {
		err := c.connection.Close()
		c.connection = nil
		return err
	}
	return nil
}

// IsConnected 检查连接状态
func (c *Client) IsConnected() bool {
	c.mutex.RLock()
	conn := c.connection
	c.mutex.RUnlock()
	if conn == nil {
		return false
	}
	// 发送 keepalive 请求而不创建会话，避免占用设备会话数
	_, _, err := conn.SendRequest("keepalive@openssh.com", false, nil)
	return err == nil
}

// keepAlive 保持连接活跃
func (c *Client) keepAlive(conn *ssh.Client, stop <-chan struct{}) {
	if c.config.KeepAlive <= 0 {
		return
	}

	ticker := time.NewTicker(c.config.KeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, _, err := conn.SendRequest("keepalive@openssh.com", false, nil); err != nil {
				// 连接已断开，置空以便连接池清理
				c.mutex.Lock()
				if c.connection == conn {
					_ = c.connection.Close()
					c.connection = nil
				}
				c.mutex.Unlock()
				return
			}
		}
	}
}

// raw 底层连接，供 SFTP 子系统复用
func (c *Client) raw() *ssh.Client {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.connection
}
