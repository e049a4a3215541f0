package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sshcollectorpro/rosconnector/api/router"
	"github.com/sshcollectorpro/rosconnector/internal/config"
	"github.com/sshcollectorpro/rosconnector/internal/database"
	"github.com/sshcollectorpro/rosconnector/internal/service"
	"github.com/sshcollectorpro/rosconnector/pkg/logger"
	"github.com/sshcollectorpro/rosconnector/simulate"
)

const debounceInterval = 300 * time.Millisecond

func main() {
	configPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	if err := logger.Init(cfg.Log); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.Infof("Starting RouterOS Connector, version 1.0.0")

	// 初始化数据库
	if err := database.InitSQLite(cfg.Database.SQLite); err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	sessions := service.NewSessionManager(cfg)
	devices := service.NewDeviceService(database.GetDB(), sessions)
	backup := service.NewBackupService(cfg, database.GetDB(), sessions, devices, service.NewStorageWriter(cfg))

	// 启动模拟服务（可选）
	sim := &simulator{path: cfg.Server.SimulateConfig}
	if cfg.Server.SimulateEnable {
		sim.start()
	}
	defer sim.stop()

	logPath := ""
	if cfg.Log.Output == "file" || cfg.Log.Output == "both" {
		logPath = cfg.Log.FilePath
	}
	r := router.SetupRouter(router.Services{
		Devices:   devices,
		Sessions:  sessions,
		Backup:    backup,
		Simulator: sim.manager,
		LogPath:   logPath,
	})

	server := &http.Server{
		Addr:           cfg.GetServerAddr(),
		Handler:        r,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	go func() {
		logger.Infof("Server starting on %s (mode=%s)", server.Addr, cfg.Server.Mode)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// 配置文件热更新：仅刷新日志级别与模拟服务开关
	go watchFile(*configPath, "Config", func() {
		newCfg, err := config.Load(*configPath)
		if err != nil {
			logger.Warnf("Config reload failed: %v", err)
			return
		}
		logger.SetLevel(newCfg.Log.Level)
		logger.Infof("Config reloaded, log level %s", newCfg.Log.Level)
		if newCfg.Server.SimulateEnable {
			sim.start()
		} else {
			sim.stop()
		}
	})
	if _, err := os.Stat(sim.path); err == nil {
		go watchFile(sim.path, "Simulate", sim.reload)
	}

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Infof("Server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}
	backup.Wait()
	if err := sessions.Close(); err != nil {
		logger.Warnf("Close ssh pool: %v", err)
	}
	logger.Infof("Server shutdown complete")
}

// simulator 持有可热启停的模拟服务
type simulator struct {
	path string
	mu   sync.Mutex
	mgr  *simulate.Manager
}

func (s *simulator) manager() *simulate.Manager {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mgr
}

func (s *simulator) start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mgr != nil {
		return
	}
	sc, err := simulate.LoadConfig(s.path)
	if err != nil {
		logger.Warnf("Simulate: failed to load %s: %v", s.path, err)
		return
	}
	mgr, err := simulate.Start(sc)
	if err != nil {
		logger.Warnf("Simulate: failed to start: %v", err)
		return
	}
	s.mgr = mgr
	logger.Infof("Simulate: started %d namespaces", len(sc.Namespace))
}

func (s *simulator) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mgr != nil {
		s.mgr.Stop()
		s.mgr = nil
		logger.Infof("Simulate: stopped")
	}
}

func (s *simulator) reload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mgr == nil {
		logger.Infof("Simulate: reload ignored, simulate disabled")
		return
	}
	sc, err := simulate.LoadConfig(s.path)
	if err != nil {
		logger.Warnf("Simulate: reload %s failed: %v", s.path, err)
		return
	}
	if err := s.mgr.Reload(sc); err != nil {
		logger.Warnf("Simulate: hot reload failed: %v", err)
		return
	}
	logger.Infof("Simulate: hot reload success")
}

// watchFile 监听文件变更，去抖后执行 onChange
func watchFile(path, name string, onChange func()) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warnf("%s watch init failed: %v", name, err)
		return
	}
	defer watcher.Close()
	if err := watcher.Add(path); err != nil {
		logger.Warnf("%s watch add failed: %v", name, err)
		return
	}
	var debounce *time.Timer
	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(debounceInterval, onChange)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warnf("%s watch error: %v", name, err)
		}
	}
}
