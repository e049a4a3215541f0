package simulate

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/sshcollectorpro/rosconnector/pkg/logger"
)

const defaultPassword = "nova"

// ServerOptions 单个模拟服务参数
type ServerOptions struct {
	Addr        string
	Password    string
	HostKey     ssh.Signer // 为空时生成临时 key
	Outputs     Outputs
	Devices     map[string]DeviceNameConfig
	IdleSeconds int
	MaxConn     int
}

// Server RouterOS SSH 模拟服务
// 登录用户名（去掉 + 之后的终端参数）选择设备；交互会话与 sftp 共用设备的内存文件系统
type Server struct {
	opts     ServerOptions
	listener net.Listener
	hostKey  ssh.Signer

	mu      sync.Mutex
	active  int
	conns   map[net.Conn]struct{}
	devices map[string]*deviceState
	wg      sync.WaitGroup
}

// deviceState 同一用户名的多个会话共享
type deviceState struct {
	mu       sync.Mutex
	identity string
	files    *MemFS
	licensed bool
	received []string
}

// NewServer 创建模拟服务，调用 Start 后开始监听
func NewServer(opts ServerOptions) (*Server, error) {
	if opts.Password == "" {
		opts.Password = defaultPassword
	}
	if opts.Outputs == nil {
		opts.Outputs = MapOutputs{}
	}
	signer := opts.HostKey
	if signer == nil {
		var err error
		if signer, err = ephemeralHostKey(); err != nil {
			return nil, err
		}
	}
	return &Server{opts: opts, hostKey: signer, conns: make(map[net.Conn]struct{}), devices: make(map[string]*deviceState)}, nil
}

// Start 开始监听
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	s.listener = ln

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				var ne net.Error
				if errors.As(err, &ne) && ne.Timeout() {
					time.Sleep(200 * time.Millisecond)
					continue
				}
				// listener closed
				return
			}
			s.mu.Lock()
			if s.opts.MaxConn > 0 && s.active >= s.opts.MaxConn {
				s.mu.Unlock()
				_ = conn.Close()
				logger.Warnf("Simulate: reject %s, max_conn exceeded", conn.RemoteAddr())
				continue
			}
			s.active++
			s.conns[conn] = struct{}{}
			s.mu.Unlock()

			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.handleConn(c)
				s.mu.Lock()
				s.active--
				delete(s.conns, c)
				s.mu.Unlock()
			}(conn)
		}
	}()
	return nil
}

// Addr 实际监听地址
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.opts.Addr
	}
	return s.listener.Addr().String()
}

// Port 实际监听端口
func (s *Server) Port() int {
	if s.listener == nil {
		return 0
	}
	if addr, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}

// Stop 关闭监听与所有连接并等待退出
func (s *Server) Stop() {
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.mu.Lock()
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Files 设备的内存文件系统
func (s *Server) Files(user string) *MemFS {
	return s.device(user).files
}

// Received 设备收到的命令（按顺序）
func (s *Server) Received(user string) []string {
	d := s.device(user)
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.received...)
}

// device 用户名去掉 RouterOS 登录参数后查找设备
func (s *Server) device(user string) *deviceState {
	name, _, _ := strings.Cut(user, "+")
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.devices[name]; ok {
		return d
	}
	cfg := s.opts.Devices[name]
	identity := cfg.Identity
	if identity == "" {
		identity = "MikroTik"
	}
	d := &deviceState{identity: identity, files: NewMemFS(), licensed: !cfg.LicensePrompt}
	s.devices[name] = d
	return d
}

func (s *Server) handleConn(nc net.Conn) {
	srvCfg := &ssh.ServerConfig{
		PasswordCallback: func(meta ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
			if string(password) == s.opts.Password {
				return nil, nil
			}
			logger.Debugf("Simulate: auth failed for %s", meta.User())
			return nil, fmt.Errorf("access denied")
		},
		KeyboardInteractiveCallback: func(meta ssh.ConnMetadata, challenge ssh.KeyboardInteractiveChallenge) (*ssh.Permissions, error) {
			answers, err := challenge(meta.User(), "Authentication", []string{"Password:"}, []bool{false})
			if err != nil {
				return nil, err
			}
			if len(answers) > 0 && answers[0] == s.opts.Password {
				return nil, nil
			}
			return nil, fmt.Errorf("access denied")
		},
	}
	srvCfg.AddHostKey(s.hostKey)

	conn, chans, reqs, err := ssh.NewServerConn(nc, srvCfg)
	if err != nil {
		logger.Debugf("Simulate: handshake with %s failed: %v", nc.RemoteAddr(), err)
		_ = nc.Close()
		return
	}
	defer conn.Close()
	go ssh.DiscardRequests(reqs)

	user, _, _ := strings.Cut(conn.User(), "+")
	var sessions sync.WaitGroup
	for ch := range chans {
		if ch.ChannelType() != "session" {
			_ = ch.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		channel, requests, err := ch.Accept()
		if err != nil {
			logger.Debugf("Simulate: channel accept failed: %v", err)
			continue
		}
		sessions.Add(1)
		go func() {
			defer sessions.Done()
			s.handleSession(channel, requests, user)
		}()
	}
	sessions.Wait()
}

func (s *Server) handleSession(channel ssh.Channel, requests <-chan *ssh.Request, user string) {
	defer channel.Close()
	dev := s.device(user)

	for req := range requests {
		switch req.Type {
		case "pty-req", "env", "window-change":
			_ = req.Reply(req.Type == "pty-req", nil)
		case "shell":
			_ = req.Reply(true, nil)
			go ssh.DiscardRequests(requests)
			newTerminal(channel, user, dev, s.opts).run()
			return
		case "exec":
			var payload struct{ Command string }
			if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
				_ = req.Reply(false, nil)
				return
			}
			_ = req.Reply(true, nil)
			go ssh.DiscardRequests(requests)
			out, _ := execute(dev, user, s.opts.Outputs, payload.Command)
			_, _ = channel.Write([]byte(ensureCRLF(out)))
			_, _ = channel.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{0}))
			return
		case "subsystem":
			var payload struct{ Name string }
			if err := ssh.Unmarshal(req.Payload, &payload); err != nil || payload.Name != "sftp" {
				_ = req.Reply(false, nil)
				continue
			}
			_ = req.Reply(true, nil)
			go ssh.DiscardRequests(requests)
			server := sftp.NewRequestServer(channel, dev.files.Handlers())
			if err := server.Serve(); err != nil && !errors.Is(err, io.EOF) {
				logger.Debugf("Simulate: sftp session for %s ended: %v", user, err)
			}
			_ = server.Close()
			return
		default:
			_ = req.Reply(false, nil)
		}
	}
}
