package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sshcollectorpro/rosconnector/internal/database"
	"github.com/sshcollectorpro/rosconnector/internal/model"
	"github.com/sshcollectorpro/rosconnector/pkg/logger"
)

var (
	// ErrDeviceNotFound 设备不存在
	ErrDeviceNotFound = errors.New("device not found")
	// ErrDeviceExists host/port/username 组合已存在
	ErrDeviceExists = errors.New("device already exists")
)

const writeAttempts = 5

// ConnectionTester 设备连通性测试
type ConnectionTester interface {
	TestConnection(ctx context.Context, dev *model.Device) (identity, version string, err error)
}

// DeviceRequest 设备创建/更新参数，更新时空字段保持原值
type DeviceRequest struct {
	Name     string `json:"name"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	KeyFile  string `json:"key_file"`
}

// DeviceService 设备清单
type DeviceService struct {
	db     *gorm.DB
	tester ConnectionTester
}

// NewDeviceService 创建设备服务
func NewDeviceService(db *gorm.DB, tester ConnectionTester) *DeviceService {
	return &DeviceService{db: db, tester: tester}
}

func (r *DeviceRequest) normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Host = strings.TrimSpace(r.Host)
	r.Username = strings.TrimSpace(r.Username)
}

// Create 新增设备
func (s *DeviceService) Create(ctx context.Context, req DeviceRequest) (*model.Device, error) {
	req.normalize()
	if req.Host == "" || req.Username == "" {
		return nil, fmt.Errorf("host and username are required")
	}
	if req.Port == 0 {
		req.Port = 22
	}
	if req.Port < 0 || req.Port > 65535 {
		return nil, fmt.Errorf("port must be between 1 and 65535")
	}
	if err := s.checkConflict(ctx, "", req.Host, req.Port, req.Username); err != nil {
		return nil, err
	}

	dev := &model.Device{
		ID:       uuid.NewString(),
		Name:     req.Name,
		Host:     req.Host,
		Port:     req.Port,
		Username: req.Username,
		Password: req.Password,
		KeyFile:  req.KeyFile,
		Status:   model.DeviceStatusUnknown,
	}
	if dev.Name == "" {
		dev.Name = dev.Host
	}
	err := database.RetryOn(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		return tx.Create(dev).Error
	}, writeAttempts, 0)
	if err != nil {
		return nil, fmt.Errorf("create device: %w", err)
	}
	logger.Infof("device %s created (%s)", dev.ID, dev.Host)
	return dev, nil
}

// Get 按 ID 查询
func (s *DeviceService) Get(ctx context.Context, id string) (*model.Device, error) {
	var dev model.Device
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&dev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDeviceNotFound
	}
	if err != nil {
		return nil, err
	}
	return &dev, nil
}

// GetMany 按 ID 批量查询，任一不存在即返回错误
func (s *DeviceService) GetMany(ctx context.Context, ids []string) ([]model.Device, error) {
	var devices []model.Device
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&devices).Error; err != nil {
		return nil, err
	}
	found := make(map[string]model.Device, len(devices))
	for _, d := range devices {
		found[d.ID] = d
	}
	ordered := make([]model.Device, 0, len(ids))
	for _, id := range ids {
		d, ok := found[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
		}
		ordered = append(ordered, d)
	}
	return ordered, nil
}

// List 全部设备，按创建时间排序
func (s *DeviceService) List(ctx context.Context) ([]model.Device, error) {
	var devices []model.Device
	if err := s.db.WithContext(ctx).Order("created_at").Find(&devices).Error; err != nil {
		return nil, err
	}
	return devices, nil
}

// Update 更新设备
func (s *DeviceService) Update(ctx context.Context, id string, req DeviceRequest) (*model.Device, error) {
	req.normalize()
	dev, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != "" {
		dev.Name = req.Name
	}
	if req.Host != "" {
		dev.Host = req.Host
	}
	if req.Port > 0 {
		dev.Port = req.Port
	}
	if req.Username != "" {
		dev.Username = req.Username
	}
	if req.Password != "" {
		dev.Password = req.Password
	}
	if req.KeyFile != "" {
		dev.KeyFile = req.KeyFile
	}
	if err := s.checkConflict(ctx, dev.ID, dev.Host, dev.Port, dev.Username); err != nil {
		return nil, err
	}
	err = database.RetryOn(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		return tx.Save(dev).Error
	}, writeAttempts, 0)
	if err != nil {
		return nil, fmt.Errorf("update device: %w", err)
	}
	return dev, nil
}

// Delete 删除设备
func (s *DeviceService) Delete(ctx context.Context, id string) error {
	var res *gorm.DB
	err := database.RetryOn(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		res = tx.Where("id = ?", id).Delete(&model.Device{})
		return res.Error
	}, writeAttempts, 0)
	if err != nil {
		return err
	}
	if res.RowsAffected == 0 {
		return ErrDeviceNotFound
	}
	logger.Infof("device %s deleted", id)
	return nil
}

// Test 测试连接并回写设备名、版本与状态
func (s *DeviceService) Test(ctx context.Context, id string) (*model.Device, error) {
	dev, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	identity, version, terr := s.tester.TestConnection(ctx, dev)

	updates := map[string]interface{}{"last_check": time.Now()}
	if terr != nil {
		updates["status"] = model.DeviceStatusOffline
	} else {
		updates["status"] = model.DeviceStatusOnline
		updates["identity"] = identity
		if version != "" {
			updates["version"] = version
		}
	}
	err = database.RetryOn(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		return tx.Model(&model.Device{}).Where("id = ?", id).Updates(updates).Error
	}, writeAttempts, 0)
	if err != nil {
		logger.WithError(err).Warnf("update device %s status failed", id)
	}
	if terr != nil {
		return nil, terr
	}
	return s.Get(ctx, id)
}

func (s *DeviceService) checkConflict(ctx context.Context, selfID, host string, port int, username string) error {
	q := s.db.WithContext(ctx).Model(&model.Device{}).
		Where("host = ? AND port = ? AND username = ?", host, port, username)
	if selfID != "" {
		q = q.Where("id <> ?", selfID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return ErrDeviceExists
	}
	return nil
}
