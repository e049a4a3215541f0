package service

import (
	"time"

	"github.com/sshcollectorpro/rosconnector/internal/routeros"
)

// BackupBatchRequest 批量备份请求
type BackupBatchRequest struct {
	DeviceIDs      []string `json:"device_ids" binding:"required,min=1"`
	StorageBackend string   `json:"storage_backend,omitempty"` // local | minio（默认读取配置）
	IncludeExport  *bool    `json:"include_export,omitempty"`
	// Backup 传给 /system backup save，Name 为文件名前缀
	Backup routeros.BackupOptions `json:"backup"`
	// Timeout 单台设备超时秒数，0 表示不限
	Timeout int `json:"timeout,omitempty"`
}

// StoredFile 单个已保存文件
type StoredFile struct {
	Kind   string       `json:"kind"` // backup | export
	Name   string       `json:"name"`
	Object StoredObject `json:"object"`
}

// DeviceBackupResponse 设备备份结果
type DeviceBackupResponse struct {
	DeviceID   string       `json:"device_id"`
	Host       string       `json:"host"`
	DeviceName string       `json:"device_name,omitempty"`
	Success    bool         `json:"success"`
	Files      []StoredFile `json:"files"`
	Error      string       `json:"error,omitempty"`
	DurationMS int64        `json:"duration_ms"`
	Timestamp  time.Time    `json:"timestamp"`
}

// BackupBatchResponse 批量备份结果
type BackupBatchResponse struct {
	TaskID    string                 `json:"task_id"`
	Status    string                 `json:"status"`
	Total     int                    `json:"total"`
	Succeeded int                    `json:"succeeded"`
	Failed    int                    `json:"failed"`
	Data      []DeviceBackupResponse `json:"data"`
}
