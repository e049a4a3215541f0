package model

import (
	"time"
)

// Device 受管 RouterOS 设备
type Device struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(64)"`
	Name      string    `json:"name" gorm:"type:varchar(128)"`
	Host      string    `json:"host" gorm:"type:varchar(128);not null;uniqueIndex:idx_device_target"`
	Port      int       `json:"port" gorm:"not null;default:22;uniqueIndex:idx_device_target"`
	Username  string    `json:"username" gorm:"type:varchar(64);not null;uniqueIndex:idx_device_target"`
	Password  string    `json:"password,omitempty" gorm:"type:varchar(256)"`
	KeyFile   string    `json:"key_file,omitempty" gorm:"type:varchar(512)"`
	Identity  string    `json:"identity" gorm:"type:varchar(128)"`
	Version   string    `json:"version" gorm:"type:varchar(64)"`
	Status    string    `json:"status" gorm:"type:varchar(16);default:'unknown'"`
	LastCheck time.Time `json:"last_check"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 表名
func (Device) TableName() string {
	return "devices"
}

// DeviceStatus 设备连接状态
const (
	DeviceStatusUnknown = "unknown"
	DeviceStatusOnline  = "online"
	DeviceStatusOffline = "offline"
)
