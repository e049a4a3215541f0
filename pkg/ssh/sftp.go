package ssh

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pkg/sftp"
)

// SFTPClient 设备文件传输，独立于交互会话的 SSH 连接
type SFTPClient struct {
	client *Client
	sftp   *sftp.Client
	owned  bool
}

// NewSFTPClient 新建连接并打开 sftp 子系统；登录后缀不用于文件传输
func NewSFTPClient(ctx context.Context, config *Config, info *ConnectionInfo) (*SFTPClient, error) {
	cfg := Config{}
	if config != nil {
		cfg = *config
	}
	cfg.LoginSuffix = ""
	c := NewClient(&cfg)
	if err := c.Connect(ctx, info); err != nil {
		return nil, err
	}
	s, err := OpenSFTP(c)
	if err != nil {
		c.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// OpenSFTP 在已有连接上打开 sftp 子系统
func OpenSFTP(c *Client) (*SFTPClient, error) {
	conn := c.raw()
	if conn == nil {
		return nil, fmt.Errorf("SSH connection not established")
	}
	sc, err := sftp.NewClient(conn)
	if err != nil {
		return nil, fmt.Errorf("failed to start sftp subsystem: %w", err)
	}
	return &SFTPClient{client: c, sftp: sc}, nil
}

// Get 读取远程文件
func (s *SFTPClient) Get(ctx context.Context, remotePath string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := s.sftp.Open(remotePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(&ctxReader{ctx: ctx, r: f})
}

// Put 上传本地文件
func (s *SFTPClient) Put(ctx context.Context, localPath, remotePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := s.sftp.Create(remotePath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, &ctxReader{ctx: ctx, r: src}); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

// Remove 删除远程文件
func (s *SFTPClient) Remove(ctx context.Context, remotePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.sftp.Remove(remotePath)
}

// Close 关闭 sftp 子系统，自建的连接一并关闭
func (s *SFTPClient) Close() error {
	err := s.sftp.Close()
	if s.owned {
		if cerr := s.client.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// ctxReader 每次读取前检查取消
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
