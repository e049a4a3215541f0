package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sshcollectorpro/rosconnector/internal/routeros"
	"github.com/sshcollectorpro/rosconnector/internal/service"
)

// RouterOSHandler 单台设备的查询与配置工作流
type RouterOSHandler struct {
	devices *service.DeviceService
	runner  service.DeviceRunner
}

// NewRouterOSHandler 创建设备工作流处理器
func NewRouterOSHandler(devices *service.DeviceService, runner service.DeviceRunner) *RouterOSHandler {
	return &RouterOSHandler{devices: devices, runner: runner}
}

type deviceFunc func(ctx context.Context, d *routeros.Device) (interface{}, error)

// run 在设备会话内执行 fn 并输出 JSON
func (h *RouterOSHandler) run(c *gin.Context, message string, fn deviceFunc) {
	ctx := c.Request.Context()
	dev, err := h.devices.Get(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	var data interface{}
	err = h.runner.WithDevice(ctx, dev, func(d *routeros.Device) error {
		var ferr error
		data, ferr = fn(ctx, d)
		return ferr
	})
	if err != nil {
		respondError(c, err)
		return
	}
	success(c, http.StatusOK, message, data)
}

var queries = map[string]deviceFunc{
	"identity": func(ctx context.Context, d *routeros.Device) (interface{}, error) {
		name, err := d.Identity(ctx)
		return gin.H{"name": name}, err
	},
	"interfaces": func(ctx context.Context, d *routeros.Device) (interface{}, error) {
		return d.Interfaces(ctx)
	},
	"ip-addresses": func(ctx context.Context, d *routeros.Device) (interface{}, error) {
		return d.IPAddresses(ctx)
	},
	"routes": func(ctx context.Context, d *routeros.Device) (interface{}, error) {
		return d.Routes(ctx)
	},
	"routes-large": func(ctx context.Context, d *routeros.Device) (interface{}, error) {
		return d.RoutesLarge(ctx)
	},
	"services": func(ctx context.Context, d *routeros.Device) (interface{}, error) {
		return d.Services(ctx)
	},
	"users": func(ctx context.Context, d *routeros.Device) (interface{}, error) {
		return d.Users(ctx)
	},
	"resources": func(ctx context.Context, d *routeros.Device) (interface{}, error) {
		return d.Resources(ctx)
	},
	"dhcp-networks": func(ctx context.Context, d *routeros.Device) (interface{}, error) {
		return d.DHCPNetworks(ctx)
	},
	"export": func(ctx context.Context, d *routeros.Device) (interface{}, error) {
		text, err := d.ExportConfiguration(ctx)
		return gin.H{"export": text}, err
	},
}

// Query 只读查询，resource 见 queries
// @Router /api/v1/devices/{id}/query/{resource} [get]
func (h *RouterOSHandler) Query(c *gin.Context) {
	resource := c.Param("resource")
	if resource == "routes" && c.Query("large") == "true" {
		resource = "routes-large"
	}
	fn, ok := queries[resource]
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Code: "UNKNOWN_RESOURCE", Message: "未知查询: " + resource})
		return
	}
	h.run(c, "查询成功", fn)
}

var builders = map[string]func() routeros.Builder{
	"address-pool-create":     func() routeros.Builder { return &routeros.AddressPoolCreate{} },
	"address-pool-update":     func() routeros.Builder { return &routeros.AddressPoolUpdate{} },
	"dhcp-client-create":      func() routeros.Builder { return &routeros.DHCPClientCreate{} },
	"dhcp-client-update":      func() routeros.Builder { return &routeros.DHCPClientUpdate{} },
	"dhcp-server-update":      func() routeros.Builder { return &routeros.DHCPServerUpdate{} },
	"dhcp-network-create":     func() routeros.Builder { return &routeros.DHCPNetworkCreate{} },
	"identity-update":         func() routeros.Builder { return &routeros.IdentityUpdate{} },
	"ip-address-create":       func() routeros.Builder { return &routeros.IPAddressCreate{} },
	"ip-address-update":       func() routeros.Builder { return &routeros.IPAddressUpdate{} },
	"route-create":            func() routeros.Builder { return &routeros.RouteCreate{} },
	"service-update":          func() routeros.Builder { return &routeros.ServiceUpdate{} },
	"user-create":             func() routeros.Builder { return &routeros.UserCreate{} },
	"user-update":             func() routeros.Builder { return &routeros.UserUpdate{} },
	"security-profile-create": func() routeros.Builder { return &routeros.SecurityProfileCreate{} },
	"package-channel-set":     func() routeros.Builder { return &routeros.PackageChannelSet{} },
}

// BuilderKinds 可通过 apply 下发的命令类型
func BuilderKinds() []string {
	kinds := make([]string, 0, len(builders))
	for k := range builders {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// ApplyRequest 下发单条配置命令
type ApplyRequest struct {
	Kind   string          `json:"kind" binding:"required"`
	Params json.RawMessage `json:"params"`
}

// Apply 下发单条配置命令并返回分类结果
// @Router /api/v1/devices/{id}/apply [post]
func (h *RouterOSHandler) Apply(c *gin.Context) {
	var req ApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	newBuilder, ok := builders[req.Kind]
	if !ok {
		badRequest(c, fmt.Sprintf("unknown kind %q, expected one of: %s", req.Kind, strings.Join(BuilderKinds(), ", ")))
		return
	}
	b := newBuilder()
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, b); err != nil {
			badRequest(c, "params: "+err.Error())
			return
		}
	}
	h.run(c, "命令已下发", func(ctx context.Context, d *routeros.Device) (interface{}, error) {
		res, err := d.Apply(ctx, b)
		if err != nil {
			return nil, err
		}
		return nil, res.Err()
	})
}

// DHCPServerRequest 创建 DHCP 服务
type DHCPServerRequest struct {
	routeros.DHCPServerCreate
	NetworkAddress *string `json:"network_address,omitempty"`
}

// CreateDHCPServer 创建 DHCP 服务
// @Router /api/v1/devices/{id}/dhcp-server [post]
func (h *RouterOSHandler) CreateDHCPServer(c *gin.Context) {
	var req DHCPServerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	h.run(c, "DHCP 服务创建成功", func(ctx context.Context, d *routeros.Device) (interface{}, error) {
		return d.CreateDHCPServer(ctx, req.DHCPServerCreate, req.NetworkAddress)
	})
}

// UpdateDHCPNetwork 更新 DHCP 网络
// @Router /api/v1/devices/{id}/dhcp-network [put]
func (h *RouterOSHandler) UpdateDHCPNetwork(c *gin.Context) {
	var req routeros.DHCPNetworkUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	h.run(c, "DHCP 网络更新成功", func(ctx context.Context, d *routeros.Device) (interface{}, error) {
		return nil, d.UpdateDHCPNetwork(ctx, req)
	})
}

// ConfigureWireless 无线配置
// @Router /api/v1/devices/{id}/wireless [post]
func (h *RouterOSHandler) ConfigureWireless(c *gin.Context) {
	var req routeros.WirelessParams
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	h.run(c, "无线配置成功", func(ctx context.Context, d *routeros.Device) (interface{}, error) {
		return d.ConfigureWireless(ctx, req)
	})
}

// CheckFirmware 固件检查与升级
// @Router /api/v1/devices/{id}/firmware [post]
func (h *RouterOSHandler) CheckFirmware(c *gin.Context) {
	var req routeros.FirmwareParams
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	h.run(c, "固件检查完成", func(ctx context.Context, d *routeros.Device) (interface{}, error) {
		return d.CheckFirmware(ctx, req)
	})
}

// Reboot 上传重启脚本
// @Router /api/v1/devices/{id}/reboot [post]
func (h *RouterOSHandler) Reboot(c *gin.Context) {
	h.run(c, "重启脚本已上传", func(ctx context.Context, d *routeros.Device) (interface{}, error) {
		return nil, d.Reboot(ctx)
	})
}

// EnableCloudDNS 启用 IP Cloud
// @Router /api/v1/devices/{id}/cloud-dns [post]
func (h *RouterOSHandler) EnableCloudDNS(c *gin.Context) {
	h.run(c, "Cloud DNS 已启用", func(ctx context.Context, d *routeros.Device) (interface{}, error) {
		name, err := d.EnableCloudDNS(ctx)
		return gin.H{"dns_name": name}, err
	})
}

// CommandRequest 任意命令
type CommandRequest struct {
	Command string `json:"command" binding:"required"`
}

// SendCommand 发送任意命令并返回原始输出
// @Router /api/v1/devices/{id}/command [post]
func (h *RouterOSHandler) SendCommand(c *gin.Context) {
	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	h.run(c, "命令执行完成", func(ctx context.Context, d *routeros.Device) (interface{}, error) {
		out, err := d.SendCommand(ctx, req.Command)
		return gin.H{"output": out}, err
	})
}

// MakeBackup 在设备上创建备份
// @Router /api/v1/devices/{id}/backup [post]
func (h *RouterOSHandler) MakeBackup(c *gin.Context) {
	var req routeros.BackupOptions
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
	}
	h.run(c, "备份已创建", func(ctx context.Context, d *routeros.Device) (interface{}, error) {
		return d.MakeBackup(ctx, req)
	})
}

// MakeExport 在设备上生成导出文件
// @Router /api/v1/devices/{id}/export [post]
func (h *RouterOSHandler) MakeExport(c *gin.Context) {
	prefix := c.Query("name")
	h.run(c, "导出已创建", func(ctx context.Context, d *routeros.Device) (interface{}, error) {
		return d.MakeExport(ctx, prefix)
	})
}

// DownloadFile 下载备份或导出文件；name 为空时在设备上新建
// @Router /api/v1/devices/{id}/files/{kind} [get]
func (h *RouterOSHandler) DownloadFile(c *gin.Context) {
	kind := c.Param("kind")
	if kind != "backup" && kind != "export" {
		badRequest(c, "kind must be backup or export")
		return
	}
	ctx := c.Request.Context()
	dev, err := h.devices.Get(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	var (
		handle routeros.FileHandle
		data   []byte
		ext    string
	)
	err = h.runner.WithDevice(ctx, dev, func(d *routeros.Device) error {
		var ferr error
		if kind == "backup" {
			handle, data, ferr = d.FetchBackup(ctx, c.Query("name"))
			ext = ".backup"
		} else {
			handle, data, ferr = d.FetchExport(ctx, c.Query("name"))
			ext = ".rsc"
		}
		return ferr
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", handle.Name+ext))
	c.Data(http.StatusOK, "application/octet-stream", data)
}
