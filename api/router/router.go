package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sshcollectorpro/rosconnector/api/handler"
	"github.com/sshcollectorpro/rosconnector/internal/service"
	"github.com/sshcollectorpro/rosconnector/pkg/logger"
)

// Services 路由依赖
type Services struct {
	Devices   *service.DeviceService
	Sessions  *service.SessionManager
	Backup    *service.BackupService
	Simulator handler.SimulatorProvider // 可为 nil
	LogPath   string
}

// SetupRouter 设置路由
func SetupRouter(s Services) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(CORSMiddleware())
	r.Use(RequestIDMiddleware())
	r.Use(LoggingMiddleware())

	deviceHandler := handler.NewDeviceHandler(s.Devices)
	rosHandler := handler.NewRouterOSHandler(s.Devices, s.Sessions)
	backupHandler := handler.NewBackupHandler(s.Backup)
	systemHandler := handler.NewSystemHandler(s.Sessions, s.Simulator)
	logsHandler := handler.NewLogsHandler(s.LogPath)

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"name":    "RouterOS Connector",
			"version": "1.0.0",
			"status":  "running",
		})
	})

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", systemHandler.Health)
		v1.GET("/logs", logsHandler.TailLogs)

		devices := v1.Group("/devices")
		{
			devices.POST("", deviceHandler.CreateDevice)
			devices.GET("", deviceHandler.ListDevices)
			devices.GET("/:id", deviceHandler.GetDevice)
			devices.PUT("/:id", deviceHandler.UpdateDevice)
			devices.DELETE("/:id", deviceHandler.DeleteDevice)
			devices.POST("/:id/test", deviceHandler.TestConnection)

			devices.GET("/:id/query/:resource", rosHandler.Query)
			devices.POST("/:id/apply", rosHandler.Apply)
			devices.POST("/:id/command", rosHandler.SendCommand)
			devices.POST("/:id/dhcp-server", rosHandler.CreateDHCPServer)
			devices.PUT("/:id/dhcp-network", rosHandler.UpdateDHCPNetwork)
			devices.POST("/:id/wireless", rosHandler.ConfigureWireless)
			devices.POST("/:id/firmware", rosHandler.CheckFirmware)
			devices.POST("/:id/reboot", rosHandler.Reboot)
			devices.POST("/:id/cloud-dns", rosHandler.EnableCloudDNS)
			devices.POST("/:id/backup", rosHandler.MakeBackup)
			devices.POST("/:id/export", rosHandler.MakeExport)
			devices.GET("/:id/files/:kind", rosHandler.DownloadFile)
		}

		v1.POST("/backup/batch", backupHandler.BatchBackup)

		tasks := v1.Group("/tasks")
		{
			tasks.GET("", backupHandler.ListTasks)
			tasks.GET("/:task_id", backupHandler.GetTask)
			tasks.GET("/:task_id/logs", backupHandler.TaskLogs)
			tasks.GET("/:task_id/files", backupHandler.TaskFiles)
		}

		sim := v1.Group("/simulate")
		{
			sim.GET("/namespaces", systemHandler.SimulateNamespaces)
			sim.GET("/:namespace/received/:user", systemHandler.SimulateReceived)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    "NOT_FOUND",
			"message": "接口不存在",
			"path":    c.Request.URL.Path,
		})
	})

	return r
}

// CORSMiddleware 跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RequestIDMiddleware 请求ID中间件
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)
		c.Next()
	}
}

// LoggingMiddleware 日志中间件
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		entry := logger.WithFields(logrus.Fields{
			"request_id": c.GetString("request_id"),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"duration":   time.Since(start).String(),
			"client_ip":  c.ClientIP(),
		})
		if status >= http.StatusInternalServerError {
			entry.Warn("HTTP Error")
			return
		}
		entry.Info("HTTP Request")
	}
}
