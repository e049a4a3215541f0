package ssh

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Pool SSH连接池，同一设备同一时刻只借出一个连接
type Pool struct {
	config      *Config
	connections map[string]*pooledConnection
	mutex       sync.Mutex
	maxIdle     int
	maxActive   int
	idleTimeout time.Duration
	stop        chan struct{}
	stopOnce    sync.Once
}

// pooledConnection 池化的连接
type pooledConnection struct {
	client   *Client
	lastUsed time.Time
	inUse    bool
	created  time.Time
}

// PoolConfig 连接池配置
type PoolConfig struct {
	MaxIdle     int           `mapstructure:"max_idle"`
	MaxActive   int           `mapstructure:"max_active"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
	SSHConfig   *Config       `mapstructure:"-"`
}

// PoolStats 连接池统计
type PoolStats struct {
	Total     int `json:"total_connections"`
	Active    int `json:"active_connections"`
	Idle      int `json:"idle_connections"`
	MaxIdle   int `json:"max_idle"`
	MaxActive int `json:"max_active"`
}

// NewPool 创建SSH连接池
func NewPool(config *PoolConfig) *Pool {
	pool := &Pool{
		config:      config.SSHConfig,
		connections: make(map[string]*pooledConnection),
		maxIdle:     config.MaxIdle,
		maxActive:   config.MaxActive,
		idleTimeout: config.IdleTimeout,
		stop:        make(chan struct{}),
	}
	if pool.maxActive <= 0 {
		pool.maxActive = 100
	}
	if pool.maxIdle <= 0 {
		pool.maxIdle = 10
	}
	if pool.idleTimeout <= 0 {
		pool.idleTimeout = 5 * time.Minute
	}

	go pool.cleanup()
	return pool
}

// GetConnection 获取SSH连接，用完后必须 ReleaseConnection
func (p *Pool) GetConnection(ctx context.Context, info *ConnectionInfo) (*Client, error) {
	key := connectionKey(info)

	p.mutex.Lock()
	if conn, exists := p.connections[key]; exists {
		if conn.inUse {
			p.mutex.Unlock()
			return nil, fmt.Errorf("connection %s is in use", key)
		}
		if conn.client.IsConnected() {
			conn.inUse = true
			conn.lastUsed = time.Now()
			p.mutex.Unlock()
			return conn.client, nil
		}
		conn.client.Close()
		delete(p.connections, key)
	}
	if active := p.activeCount(); active >= p.maxActive {
		p.mutex.Unlock()
		return nil, fmt.Errorf("connection pool is full, active connections: %d", active)
	}
	// 占位，拨号期间不持锁
	placeholder := &pooledConnection{client: NewClient(p.config), inUse: true, created: time.Now()}
	p.connections[key] = placeholder
	p.mutex.Unlock()

	if err := placeholder.client.Connect(ctx, info); err != nil {
		p.mutex.Lock()
		delete(p.connections, key)
		p.mutex.Unlock()
		return nil, err
	}

	p.mutex.Lock()
	placeholder.lastUsed = time.Now()
	p.mutex.Unlock()
	return placeholder.client, nil
}

// ReleaseConnection 归还连接
func (p *Pool) ReleaseConnection(info *ConnectionInfo) {
	key := connectionKey(info)

	p.mutex.Lock()
	defer p.mutex.Unlock()

	if conn, exists := p.connections[key]; exists {
		conn.inUse = false
		conn.lastUsed = time.Now()
	}
}

// CloseConnection 关闭指定连接（会话异常后调用，不再复用）
func (p *Pool) CloseConnection(info *ConnectionInfo) error {
	key := connectionKey(info)

	p.mutex.Lock()
	defer p.mutex.Unlock()

	if conn, exists := p.connections[key]; exists {
		delete(p.connections, key)
		return conn.client.Close()
	}
	return nil
}

// ExecuteCommand 通过连接池在 exec 通道执行命令
func (p *Pool) ExecuteCommand(ctx context.Context, info *ConnectionInfo, command string) (*CommandResult, error) {
	client, err := p.GetConnection(ctx, info)
	if err != nil {
		return nil, err
	}
	defer p.ReleaseConnection(info)

	return client.ExecuteCommand(ctx, command)
}

// Close 关闭连接池
func (p *Pool) Close() error {
	p.stopOnce.Do(func() { close(p.stop) })

	p.mutex.Lock()
	defer p.mutex.Unlock()

	var lastErr error
	for key, conn := range p.connections {
		if err := conn.client.Close(); err != nil {
			lastErr = err
		}
		delete(p.connections, key)
	}
	return lastErr
}

// Stats 获取连接池统计信息
func (p *Pool) Stats() PoolStats {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	active := p.activeCount()
	return PoolStats{
		Total:     len(p.connections),
		Active:    active,
		Idle:      len(p.connections) - active,
		MaxIdle:   p.maxIdle,
		MaxActive: p.maxActive,
	}
}

func connectionKey(info *ConnectionInfo) string {
	return fmt.Sprintf("%s@%s", info.Username, info.Address())
}

func (p *Pool) activeCount() int {
	count := 0
	for _, conn := range p.connections {
		if conn.inUse {
			count++
		}
	}
	return count
}

// cleanup 定期清理过期连接
func (p *Pool) cleanup() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.cleanupExpiredConnections()
		}
	}
}

func (p *Pool) cleanupExpiredConnections() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	now := time.Now()
	for key, conn := range p.connections {
		if conn.inUse {
			continue
		}
		if now.Sub(conn.lastUsed) > p.idleTimeout || !conn.client.IsConnected() {
			conn.client.Close()
			delete(p.connections, key)
		}
	}

	excess := (len(p.connections) - p.activeCount()) - p.maxIdle
	for key, conn := range p.connections {
		if excess <= 0 {
			break
		}
		if !conn.inUse {
			conn.client.Close()
			delete(p.connections, key)
			excess--
		}
	}
}

// Health 健康检查
func (p *Pool) Health() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if len(p.connections) == 0 {
		return nil
	}
	for _, conn := range p.connections {
		if conn.inUse || conn.client.IsConnected() {
			return nil
		}
	}
	return fmt.Errorf("all connections are disconnected")
}
