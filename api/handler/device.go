package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sshcollectorpro/rosconnector/internal/model"
	"github.com/sshcollectorpro/rosconnector/internal/service"
)

// DeviceHandler 设备处理器
type DeviceHandler struct {
	svc *service.DeviceService
}

// NewDeviceHandler 创建设备处理器
func NewDeviceHandler(svc *service.DeviceService) *DeviceHandler {
	return &DeviceHandler{svc: svc}
}

// hidePassword 响应中不返回密码
func hidePassword(d model.Device) model.Device {
	d.Password = ""
	return d
}

// CreateDevice 创建设备
// @Router /api/v1/devices [post]
func (h *DeviceHandler) CreateDevice(c *gin.Context) {
	var req service.DeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "设备参数无效: "+err.Error())
		return
	}
	dev, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		if status, _, _ := errorStatus(err); status == http.StatusInternalServerError {
			badRequest(c, err.Error())
			return
		}
		respondError(c, err)
		return
	}
	success(c, http.StatusCreated, "设备创建成功", hidePassword(*dev))
}

// GetDevice 获取设备信息
// @Router /api/v1/devices/{id} [get]
func (h *DeviceHandler) GetDevice(c *gin.Context) {
	dev, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	success(c, http.StatusOK, "获取设备信息成功", hidePassword(*dev))
}

// ListDevices 设备列表
// @Router /api/v1/devices [get]
func (h *DeviceHandler) ListDevices(c *gin.Context) {
	devices, err := h.svc.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]model.Device, 0, len(devices))
	for _, d := range devices {
		out = append(out, hidePassword(d))
	}
	success(c, http.StatusOK, "获取设备列表成功", gin.H{"total": len(out), "items": out})
}

// UpdateDevice 更新设备信息
// @Router /api/v1/devices/{id} [put]
func (h *DeviceHandler) UpdateDevice(c *gin.Context) {
	var req service.DeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "更新参数无效: "+err.Error())
		return
	}
	dev, err := h.svc.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	success(c, http.StatusOK, "设备更新成功", hidePassword(*dev))
}

// DeleteDevice 删除设备
// @Router /api/v1/devices/{id} [delete]
func (h *DeviceHandler) DeleteDevice(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	success(c, http.StatusOK, "设备删除成功", nil)
}

// TestConnection 测试设备连接
// @Router /api/v1/devices/{id}/test [post]
func (h *DeviceHandler) TestConnection(c *gin.Context) {
	dev, err := h.svc.Test(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	success(c, http.StatusOK, "连接测试成功", hidePassword(*dev))
}
