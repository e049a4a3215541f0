package model

import (
	"time"
)

// Task 批量任务（批量备份）
type Task struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(64)"`
	Type      string    `json:"type" gorm:"type:varchar(32);not null"`
	Status    string    `json:"status" gorm:"type:varchar(16);not null;default:'pending'"`
	Backend   string    `json:"backend" gorm:"type:varchar(16)"`
	Total     int       `json:"total"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	ErrorMsg  string    `json:"error_msg" gorm:"type:text"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Duration  int64     `json:"duration"` // 执行时长，毫秒
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 表名
func (Task) TableName() string {
	return "tasks"
}

// TaskStatus 任务状态枚举
const (
	TaskStatusPending = "pending"
	TaskStatusRunning = "running"
	TaskStatusSuccess = "success"
	TaskStatusPartial = "partial"
	TaskStatusFailed  = "failed"
)

// TaskType 任务类型枚举
const (
	TaskTypeBackup = "backup"
)

// TaskLog 任务日志，每台设备每个步骤一条
type TaskLog struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(64)"`
	TaskID    string    `json:"task_id" gorm:"type:varchar(64);not null;index"`
	DeviceID  string    `json:"device_id" gorm:"type:varchar(64);index"`
	Level     string    `json:"level" gorm:"type:varchar(16);not null"`
	Message   string    `json:"message" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 表名
func (TaskLog) TableName() string {
	return "task_logs"
}

// BackupFile 已保存的备份或导出文件
type BackupFile struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(64)"`
	TaskID    string    `json:"task_id" gorm:"type:varchar(64);index"`
	DeviceID  string    `json:"device_id" gorm:"type:varchar(64);not null;index"`
	Kind      string    `json:"kind" gorm:"type:varchar(16);not null"` // backup | export
	Name      string    `json:"name" gorm:"type:varchar(255);not null"`
	Backend   string    `json:"backend" gorm:"type:varchar(16)"`
	Location  string    `json:"location" gorm:"type:text"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 表名
func (BackupFile) TableName() string {
	return "backup_files"
}
