package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/sshcollectorpro/rosconnector/internal/config"
	"github.com/sshcollectorpro/rosconnector/pkg/logger"
)

// StorageWriter 抽象存储写入器
type StorageWriter interface {
	Write(ctx context.Context, meta StorageMeta, data []byte, contentType string) (StoredObject, error)
}

// StorageMeta 写入元数据
type StorageMeta struct {
	Backend    string // local|minio
	DeviceName string
	DeviceHost string
	TaskID     string
	FileName   string    // 设备上的文件名，含扩展名
	Time       time.Time // 任务开始时间，同一任务的文件落在同一目录
}

// StoredObject 存储的对象信息
type StoredObject struct {
	URI         string `json:"uri"`
	Backend     string `json:"backend"`
	Size        int64  `json:"size"`
	Checksum    string `json:"checksum"`
	ContentType string `json:"content_type"`
}

const defaultContentType = "application/octet-stream"

// NewStorageWriter 根据配置创建写入器（委派到本地或 MinIO）
func NewStorageWriter(cfg *config.Config) StorageWriter {
	dw := &DelegatingStorageWriter{cfg: cfg, local: &LocalStorageWriter{cfg: cfg}}
	dw.minio = initMinioWriter(cfg)
	return dw
}

// DelegatingStorageWriter 按后端路由写入，MinIO 不可用时回退本地
type DelegatingStorageWriter struct {
	cfg   *config.Config
	local *LocalStorageWriter
	minio *MinioStorageWriter
}

func (w *DelegatingStorageWriter) Write(ctx context.Context, meta StorageMeta, data []byte, contentType string) (StoredObject, error) {
	backend := strings.ToLower(strings.TrimSpace(meta.Backend))
	if backend == "" {
		backend = w.cfg.Backup.StorageBackend
	}
	if backend != "minio" {
		return w.local.Write(ctx, meta, data, contentType)
	}
	if w.minio == nil {
		logger.Warnf("MinIO backend selected but client not initialized; falling back to local")
		obj, lerr := w.local.Write(ctx, meta, data, contentType)
		if lerr != nil {
			return StoredObject{}, fmt.Errorf("minio client not initialized; local fallback failed: %w", lerr)
		}
		return obj, nil
	}
	obj, err := w.minio.Write(ctx, meta, data, contentType)
	if err != nil {
		logger.WithError(err).Warnf("MinIO write of %s failed; falling back to local", meta.FileName)
		objLocal, lerr := w.local.Write(ctx, meta, data, contentType)
		if lerr != nil {
			return StoredObject{}, fmt.Errorf("minio write failed: %v; local fallback failed: %w", err, lerr)
		}
		return objLocal, nil
	}
	return obj, nil
}

// LocalStorageWriter 本地文件写入
type LocalStorageWriter struct {
	cfg *config.Config
}

func (w *LocalStorageWriter) Write(ctx context.Context, meta StorageMeta, data []byte, contentType string) (StoredObject, error) {
	if err := ctx.Err(); err != nil {
		return StoredObject{}, err
	}
	baseDir := strings.TrimSpace(w.cfg.Backup.Local.BaseDir)
	if baseDir == "" {
		baseDir = "./data/backups"
	}
	dirPath := filepath.Join(append([]string{baseDir}, objectDir(w.cfg.Backup.Prefix, meta)...)...)

	if w.cfg.Backup.Local.MkdirIfMissing {
		if err := os.MkdirAll(dirPath, 0o755); err != nil {
			return StoredObject{}, fmt.Errorf("failed to create dir: %w", err)
		}
	}
	fullPath := filepath.Join(dirPath, slug(meta.FileName))
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return StoredObject{}, fmt.Errorf("failed to write file: %w", err)
	}

	return StoredObject{
		URI:         "file://" + fullPath,
		Backend:     "local",
		Size:        int64(len(data)),
		Checksum:    checksum(data),
		ContentType: contentTypeOr(contentType),
	}, nil
}

// objectDir 层级：prefix / device / YYYYMMDD_HHMMSS / taskID
func objectDir(prefix string, meta StorageMeta) []string {
	var parts []string
	if p := strings.TrimSpace(prefix); p != "" {
		parts = append(parts, p)
	}
	label := strings.TrimSpace(meta.DeviceName)
	if label == "" {
		label = strings.TrimSpace(meta.DeviceHost)
	}
	parts = append(parts, slug(label))
	ts := meta.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	parts = append(parts, ts.Format("20060102_150405"))
	if tid := strings.TrimSpace(meta.TaskID); tid != "" {
		parts = append(parts, tid)
	}
	return parts
}

// MinioStorageWriter MinIO 对象存储写入
type MinioStorageWriter struct {
	cfg      *config.Config
	client   *minio.Client
	endpoint string

	mu            sync.Mutex
	bucketEnsured bool
}

// initMinioWriter 初始化 MinIO 写入器；配置不完整时返回 nil
func initMinioWriter(cfg *config.Config) *MinioStorageWriter {
	host := strings.TrimSpace(cfg.Storage.Minio.Host)
	port := cfg.Storage.Minio.Port
	if host == "" || port <= 0 {
		if cfg.Backup.StorageBackend == "minio" {
			logger.Warnf("MinIO configuration incomplete; host/port missing")
		}
		return nil
	}
	endpoint := net.JoinHostPort(host, fmt.Sprintf("%d", port))

	transport := &http.Transport{
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 5 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.Storage.Minio.AccessKey, cfg.Storage.Minio.SecretKey, ""),
		Secure:    cfg.Storage.Minio.Secure,
		Transport: transport,
	})
	if err != nil {
		logger.WithError(err).Warnf("MinIO client initialization failed")
		return nil
	}
	return &MinioStorageWriter{cfg: cfg, client: client, endpoint: endpoint}
}

// Write 将内容写入 MinIO
func (w *MinioStorageWriter) Write(ctx context.Context, meta StorageMeta, data []byte, contentType string) (StoredObject, error) {
	if w == nil || w.client == nil {
		return StoredObject{}, fmt.Errorf("minio client not initialized")
	}
	bucket := strings.TrimSpace(w.cfg.Storage.Minio.Bucket)
	if bucket == "" {
		return StoredObject{}, fmt.Errorf("minio bucket not configured")
	}
	objectName := path.Join(append(objectDir(w.cfg.Backup.Prefix, meta), slug(meta.FileName))...)
	ct := contentTypeOr(contentType)

	if err := w.fastConnectivityCheck(ctx); err != nil {
		return StoredObject{}, fmt.Errorf("minio connectivity failed to %s: %w", w.endpoint, err)
	}
	if err := w.ensureBucketOnce(ctx, bucket); err != nil {
		return StoredObject{}, fmt.Errorf("minio ensure bucket failed: %w", err)
	}

	// 指数退避重试，单次超时受父上下文剩余时间约束
	var lastErr error
	for _, wait := range []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second} {
		attemptCtx, cancel := attemptContext(ctx, wait)
		_, err := w.client.PutObject(attemptCtx, bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{ContentType: ct})
		cancel()
		if err == nil {
			lastErr = nil
			break
		}
		lastErr = err
		if serr := sleepCtx(ctx, wait); serr != nil {
			break
		}
	}
	if lastErr != nil {
		return StoredObject{}, fmt.Errorf("minio put object failed after retries: %w", lastErr)
	}

	return StoredObject{
		URI:         "minio://" + path.Join(bucket, objectName),
		Backend:     "minio",
		Size:        int64(len(data)),
		Checksum:    checksum(data),
		ContentType: ct,
	}, nil
}

// fastConnectivityCheck 使用 TCP 直连做快速连通性校验
func (w *MinioStorageWriter) fastConnectivityCheck(parent context.Context) error {
	d := &net.Dialer{Timeout: 3 * time.Second}
	conn, err := d.DialContext(parent, "tcp", w.endpoint)
	if err != nil {
		return err
	}
	return conn.Close()
}

func (w *MinioStorageWriter) ensureBucketOnce(ctx context.Context, bucket string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.bucketEnsured {
		return nil
	}
	if err := w.ensureBucket(ctx, bucket, 3); err != nil {
		return err
	}
	w.bucketEnsured = true
	return nil
}

// ensureBucket 校验并创建 bucket，支持有限重试
func (w *MinioStorageWriter) ensureBucket(parent context.Context, bucket string, retries int) error {
	var lastErr error
	for i := 0; i <= retries; i++ {
		ctx, cancel := attemptContext(parent, 10*time.Second)
		exists, err := w.client.BucketExists(ctx, bucket)
		cancel()
		if err == nil && exists {
			return nil
		}
		if err == nil {
			ctx2, cancel2 := attemptContext(parent, 10*time.Second)
			err = w.client.MakeBucket(ctx2, bucket, minio.MakeBucketOptions{})
			cancel2()
			if err == nil {
				return nil
			}
		}
		lastErr = err
		if serr := sleepCtx(parent, time.Duration(i+1)*time.Second); serr != nil {
			return serr
		}
	}
	return lastErr
}

// attemptContext 构造限时上下文，尊重父上下文的剩余截止时间
func attemptContext(parent context.Context, prefer time.Duration) (context.Context, context.CancelFunc) {
	if deadline, ok := parent.Deadline(); ok {
		remain := time.Until(deadline)
		if remain > time.Second && prefer < remain {
			return context.WithTimeout(parent, prefer)
		}
		if remain > time.Second {
			return context.WithTimeout(parent, remain-time.Second)
		}
		return context.WithTimeout(parent, time.Second)
	}
	return context.WithTimeout(parent, prefer)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

func contentTypeOr(ct string) string {
	if ct != "" {
		return ct
	}
	return defaultContentType
}

var slugRe = regexp.MustCompile(`[^a-z0-9._-]+`)

func slug(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = slugRe.ReplaceAllString(s, "")
	if s == "" {
		s = "unknown"
	}
	return s
}
