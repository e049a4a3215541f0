package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sshcollectorpro/rosconnector/internal/database"
	"github.com/sshcollectorpro/rosconnector/pkg/ssh"
	"github.com/sshcollectorpro/rosconnector/simulate"
)

// PoolStatser 连接池统计
type PoolStatser interface {
	Stats() ssh.PoolStats
}

// SimulatorProvider 返回当前运行的模拟器，未启用时返回 nil
type SimulatorProvider func() *simulate.Manager

// SystemHandler 健康检查与模拟器信息
type SystemHandler struct {
	pool      PoolStatser
	simulator SimulatorProvider
}

// NewSystemHandler simulator 可为 nil
func NewSystemHandler(pool PoolStatser, simulator SimulatorProvider) *SystemHandler {
	return &SystemHandler{pool: pool, simulator: simulator}
}

func (h *SystemHandler) manager(c *gin.Context) *simulate.Manager {
	var mgr *simulate.Manager
	if h.simulator != nil {
		mgr = h.simulator()
	}
	if mgr == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Code: "SIMULATE_DISABLED", Message: "模拟器未启用"})
	}
	return mgr
}

// Health 健康检查
// @Router /api/v1/health [get]
func (h *SystemHandler) Health(c *gin.Context) {
	if err := database.Health(); err != nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Code: "SERVICE_UNAVAILABLE", Message: "数据库不可用: " + err.Error()})
		return
	}
	success(c, http.StatusOK, "服务正常", gin.H{
		"ssh_pool": h.pool.Stats(),
		"database": database.GetStats(),
	})
}

// SimulateNamespaces 运行中的模拟器 namespace
// @Router /api/v1/simulate/namespaces [get]
func (h *SystemHandler) SimulateNamespaces(c *gin.Context) {
	mgr := h.manager(c)
	if mgr == nil {
		return
	}
	success(c, http.StatusOK, "获取模拟器信息成功", mgr.Namespaces())
}

// SimulateReceived 模拟设备收到的命令
// @Router /api/v1/simulate/{namespace}/received/{user} [get]
func (h *SystemHandler) SimulateReceived(c *gin.Context) {
	mgr := h.manager(c)
	if mgr == nil {
		return
	}
	srv, ok := mgr.Server(c.Param("namespace"))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Code: "NAMESPACE_NOT_FOUND", Message: "namespace 不存在"})
		return
	}
	success(c, http.StatusOK, "获取命令记录成功", srv.Received(c.Param("user")))
}
