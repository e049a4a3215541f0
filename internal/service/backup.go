package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/sshcollectorpro/rosconnector/internal/config"
	"github.com/sshcollectorpro/rosconnector/internal/database"
	"github.com/sshcollectorpro/rosconnector/internal/model"
	"github.com/sshcollectorpro/rosconnector/internal/routeros"
	"github.com/sshcollectorpro/rosconnector/pkg/logger"
)

// ErrTaskNotFound 任务不存在
var ErrTaskNotFound = errors.New("task not found")

// BackupService 批量备份：每台设备独立会话，备份与导出下载后写入存储
type BackupService struct {
	cfg     *config.Config
	db      *gorm.DB
	runner  DeviceRunner
	devices *DeviceService
	storage StorageWriter
	limiter *rate.Limiter

	wg sync.WaitGroup
}

// NewBackupService 创建备份服务
func NewBackupService(cfg *config.Config, db *gorm.DB, runner DeviceRunner, devices *DeviceService, storage StorageWriter) *BackupService {
	limit := rate.Inf
	if cfg.Backup.ConnectRate > 0 {
		limit = rate.Limit(cfg.Backup.ConnectRate)
	}
	burst := cfg.Backup.ConnectBurst
	if burst <= 0 {
		burst = 1
	}
	return &BackupService{
		cfg:     cfg,
		db:      db,
		runner:  runner,
		devices: devices,
		storage: storage,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// StartBatch 创建任务并在后台执行，立即返回任务
func (s *BackupService) StartBatch(ctx context.Context, req BackupBatchRequest) (*model.Task, error) {
	task, devices, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.execute(context.WithoutCancel(ctx), task, devices, req)
	}()
	return task, nil
}

// RunBatch 同步执行批量备份
func (s *BackupService) RunBatch(ctx context.Context, req BackupBatchRequest) (*BackupBatchResponse, error) {
	task, devices, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, task, devices, req), nil
}

// Wait 等待后台任务结束
func (s *BackupService) Wait() {
	s.wg.Wait()
}

func (s *BackupService) backend(req BackupBatchRequest) string {
	if b := strings.ToLower(strings.TrimSpace(req.StorageBackend)); b != "" {
		return b
	}
	return s.cfg.Backup.StorageBackend
}

func (s *BackupService) prepare(ctx context.Context, req BackupBatchRequest) (*model.Task, []model.Device, error) {
	if len(req.DeviceIDs) == 0 {
		return nil, nil, fmt.Errorf("device_ids is required")
	}
	switch s.backend(req) {
	case "local", "minio":
	default:
		return nil, nil, fmt.Errorf("unsupported storage backend %q", req.StorageBackend)
	}
	devices, err := s.devices.GetMany(ctx, req.DeviceIDs)
	if err != nil {
		return nil, nil, err
	}
	task := &model.Task{
		ID:        uuid.NewString(),
		Type:      model.TaskTypeBackup,
		Status:    model.TaskStatusRunning,
		Backend:   s.backend(req),
		Total:     len(devices),
		StartTime: time.Now(),
	}
	err = database.RetryOn(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		return tx.Create(task).Error
	}, writeAttempts, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("create task: %w", err)
	}
	return task, devices, nil
}

func (s *BackupService) execute(ctx context.Context, task *model.Task, devices []model.Device, req BackupBatchRequest) *BackupBatchResponse {
	results := make([]DeviceBackupResponse, len(devices))

	var g errgroup.Group
	g.SetLimit(s.cfg.Backup.Concurrency)
	for i := range devices {
		i := i
		g.Go(func() error {
			results[i] = s.backupDevice(ctx, task, &devices[i], req)
			return nil
		})
	}
	_ = g.Wait()

	resp := &BackupBatchResponse{TaskID: task.ID, Total: len(devices), Data: results}
	var failures []string
	for _, r := range results {
		if r.Success {
			resp.Succeeded++
		} else {
			resp.Failed++
			failures = append(failures, fmt.Sprintf("%s: %s", r.Host, r.Error))
		}
	}
	switch {
	case resp.Failed == 0:
		resp.Status = model.TaskStatusSuccess
	case resp.Succeeded == 0:
		resp.Status = model.TaskStatusFailed
	default:
		resp.Status = model.TaskStatusPartial
	}

	end := time.Now()
	updates := map[string]interface{}{
		"status":    resp.Status,
		"succeeded": resp.Succeeded,
		"failed":    resp.Failed,
		"error_msg": strings.Join(failures, "; "),
		"end_time":  end,
		"duration":  end.Sub(task.StartTime).Milliseconds(),
	}
	err := database.RetryOn(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		return tx.Model(&model.Task{}).Where("id = ?", task.ID).Updates(updates).Error
	}, writeAttempts, 0)
	if err != nil {
		logger.WithError(err).Warnf("update task %s failed", task.ID)
	}
	logger.WithFields(logrus.Fields{"task_id": task.ID, "status": resp.Status}).
		Infof("backup task finished: %d/%d succeeded", resp.Succeeded, resp.Total)
	return resp
}

func (s *BackupService) backupDevice(ctx context.Context, task *model.Task, dev *model.Device, req BackupBatchRequest) DeviceBackupResponse {
	start := time.Now()
	resp := DeviceBackupResponse{DeviceID: dev.ID, Host: dev.Host, DeviceName: dev.Name, Timestamp: start}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(req.Timeout)*time.Second)
		defer cancel()
	}

	includeExport := s.cfg.Backup.IncludeExport
	if req.IncludeExport != nil {
		includeExport = *req.IncludeExport
	}

	err := s.limiter.Wait(ctx)
	if err == nil {
		err = s.runner.WithDevice(ctx, dev, func(d *routeros.Device) error {
			h, err := d.MakeBackup(ctx, req.Backup)
			if err != nil {
				return err
			}
			h, data, err := d.FetchBackup(ctx, h.Name)
			if err != nil {
				return err
			}
			f, err := s.store(ctx, task, dev, "backup", h.Name+".backup", data, "application/octet-stream")
			if err != nil {
				return err
			}
			resp.Files = append(resp.Files, f)

			if !includeExport {
				return nil
			}
			h, data, err = d.FetchExport(ctx, "")
			if err != nil {
				return err
			}
			f, err = s.store(ctx, task, dev, "export", h.Name+".rsc", data, "text/plain; charset=utf-8")
			if err != nil {
				return err
			}
			resp.Files = append(resp.Files, f)
			return nil
		})
	}

	resp.DurationMS = time.Since(start).Milliseconds()
	if err != nil {
		resp.Error = err.Error()
		s.addLog(ctx, task.ID, dev.ID, "error", err.Error())
		return resp
	}
	resp.Success = true
	s.addLog(ctx, task.ID, dev.ID, "info", fmt.Sprintf("%d file(s) stored in %dms", len(resp.Files), resp.DurationMS))
	return resp
}

func (s *BackupService) store(ctx context.Context, task *model.Task, dev *model.Device, kind, name string, data []byte, contentType string) (StoredFile, error) {
	obj, err := s.storage.Write(ctx, StorageMeta{
		Backend:    task.Backend,
		DeviceName: dev.Name,
		DeviceHost: dev.Host,
		TaskID:     task.ID,
		FileName:   name,
		Time:       task.StartTime,
	}, data, contentType)
	if err != nil {
		return StoredFile{}, fmt.Errorf("store %s: %w", name, err)
	}
	row := &model.BackupFile{
		ID:       uuid.NewString(),
		TaskID:   task.ID,
		DeviceID: dev.ID,
		Kind:     kind,
		Name:     name,
		Backend:  obj.Backend,
		Location: obj.URI,
		Size:     obj.Size,
	}
	err = database.RetryOn(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		return tx.Create(row).Error
	}, writeAttempts, 0)
	if err != nil {
		logger.WithError(err).Warnf("record backup file %s failed", name)
	}
	s.addLog(ctx, task.ID, dev.ID, "info", fmt.Sprintf("%s %s stored at %s", kind, name, obj.URI))
	return StoredFile{Kind: kind, Name: name, Object: obj}, nil
}

func (s *BackupService) addLog(ctx context.Context, taskID, deviceID, level, msg string) {
	entry := &model.TaskLog{ID: uuid.NewString(), TaskID: taskID, DeviceID: deviceID, Level: level, Message: msg}
	err := database.RetryOn(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		return tx.Create(entry).Error
	}, writeAttempts, 0)
	if err != nil {
		logger.WithError(err).Warnf("write task log failed")
	}
}

// GetTask 查询任务
func (s *BackupService) GetTask(ctx context.Context, id string) (*model.Task, error) {
	var task model.Task
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// ListTasks 最近的任务
func (s *BackupService) ListTasks(ctx context.Context, limit int) ([]model.Task, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var tasks []model.Task
	if err := s.db.WithContext(ctx).Order("start_time DESC").Limit(limit).Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// TaskLogs 任务日志
func (s *BackupService) TaskLogs(ctx context.Context, taskID string) ([]model.TaskLog, error) {
	if _, err := s.GetTask(ctx, taskID); err != nil {
		return nil, err
	}
	var logs []model.TaskLog
	if err := s.db.WithContext(ctx).Where("task_id = ?", taskID).Order("created_at").Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

// TaskFiles 任务保存的文件
func (s *BackupService) TaskFiles(ctx context.Context, taskID string) ([]model.BackupFile, error) {
	if _, err := s.GetTask(ctx, taskID); err != nil {
		return nil, err
	}
	var files []model.BackupFile
	if err := s.db.WithContext(ctx).Where("task_id = ?", taskID).Order("created_at").Find(&files).Error; err != nil {
		return nil, err
	}
	return files, nil
}
