package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sshcollectorpro/rosconnector/internal/config"
	"github.com/sshcollectorpro/rosconnector/internal/database"
	"github.com/sshcollectorpro/rosconnector/internal/model"
	"github.com/sshcollectorpro/rosconnector/internal/routeros"
	"github.com/sshcollectorpro/rosconnector/simulate"
)

type testEnv struct {
	cfg      *config.Config
	db       *gorm.DB
	srv      *simulate.Server
	sessions *SessionManager
	devices  *DeviceService
}

func testConfig(t *testing.T) *config.Config {
	cfg := &config.Config{}
	cfg.SSH.Timeout = 5 * time.Second
	cfg.RouterOS = config.RouterOSConfig{
		LoginSuffix:    "+ct511w4098h",
		CommandTimeout: 3 * time.Second,
		ReadyTimeout:   5 * time.Second,
	}
	cfg.Backup = config.BackupConfig{
		StorageBackend: "local",
		Prefix:         "routeros",
		Local:          config.LocalBackupConfig{BaseDir: t.TempDir(), MkdirIfMissing: true},
		IncludeExport:  true,
		Concurrency:    4,
	}
	return cfg
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	srv, err := simulate.NewServer(simulate.ServerOptions{
		Addr: "127.0.0.1:0",
		Devices: map[string]simulate.DeviceNameConfig{
			"admin": {Identity: "R1"},
			"r2":    {Identity: "R2"},
		},
		Outputs: simulate.MapOutputs{
			"/system resource print": "  uptime: 1d2h\n  version: 7.13 (stable)\n  board-name: hAP ac2\n",
		},
	})
	require.NoError(t, err)
	require.NoError(t, srv.Start())
	t.Cleanup(srv.Stop)

	conn, err := database.Open(config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := conn.DB()
		sqlDB.Close()
	})

	cfg := testConfig(t)
	sessions := NewSessionManager(cfg)
	t.Cleanup(func() { sessions.Close() })
	return &testEnv{cfg: cfg, db: conn, srv: srv, sessions: sessions, devices: NewDeviceService(conn, sessions)}
}

func (e *testEnv) addDevice(t *testing.T, username, password string) *model.Device {
	t.Helper()
	dev, err := e.devices.Create(context.Background(), DeviceRequest{
		Host: "127.0.0.1", Port: e.srv.Port(), Username: username, Password: password,
	})
	require.NoError(t, err)
	return dev
}

type fakeTester struct {
	identity, version string
	err               error
}

func (f fakeTester) TestConnection(context.Context, *model.Device) (string, string, error) {
	return f.identity, f.version, f.err
}

func TestDeviceServiceCRUD(t *testing.T) {
	conn, err := database.Open(config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "crud.db")})
	require.NoError(t, err)
	svc := NewDeviceService(conn, fakeTester{identity: "core", version: "7.13"})
	ctx := context.Background()

	_, err = svc.Create(ctx, DeviceRequest{Host: "10.0.0.1"})
	assert.Error(t, err, "缺少用户名")

	dev, err := svc.Create(ctx, DeviceRequest{Host: " 10.0.0.1 ", Username: "admin", Password: "p"})
	require.NoError(t, err)
	assert.Equal(t, 22, dev.Port)
	assert.Equal(t, "10.0.0.1", dev.Name)
	assert.Equal(t, model.DeviceStatusUnknown, dev.Status)

	_, err = svc.Create(ctx, DeviceRequest{Host: "10.0.0.1", Username: "admin"})
	assert.ErrorIs(t, err, ErrDeviceExists)

	other, err := svc.Create(ctx, DeviceRequest{Host: "10.0.0.2", Username: "admin"})
	require.NoError(t, err)
	_, err = svc.Update(ctx, other.ID, DeviceRequest{Host: "10.0.0.1"})
	assert.ErrorIs(t, err, ErrDeviceExists)

	updated, err := svc.Update(ctx, dev.ID, DeviceRequest{Name: "edge", Port: 2222})
	require.NoError(t, err)
	assert.Equal(t, "edge", updated.Name)
	assert.Equal(t, 2222, updated.Port)
	assert.Equal(t, "p", updated.Password, "空密码不覆盖")

	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	tested, err := svc.Test(ctx, dev.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DeviceStatusOnline, tested.Status)
	assert.Equal(t, "core", tested.Identity)

	_, err = svc.GetMany(ctx, []string{dev.ID, "missing"})
	assert.ErrorIs(t, err, ErrDeviceNotFound)

	require.NoError(t, svc.Delete(ctx, dev.ID))
	assert.ErrorIs(t, svc.Delete(ctx, dev.ID), ErrDeviceNotFound)
	_, err = svc.Get(ctx, dev.ID)
	assert.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestDeviceServiceTestConnection(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	dev := env.addDevice(t, "admin", "nova")
	got, err := env.devices.Test(ctx, dev.ID)
	require.NoError(t, err)
	assert.Equal(t, "R1", got.Identity)
	assert.Contains(t, got.Version, "7.13")
	assert.Equal(t, model.DeviceStatusOnline, got.Status)
	assert.False(t, got.LastCheck.IsZero())

	bad := env.addDevice(t, "r2", "wrong")
	_, err = env.devices.Test(ctx, bad.ID)
	var connErr *routeros.ConnectionError
	assert.ErrorAs(t, err, &connErr)
	stored, err := env.devices.Get(ctx, bad.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DeviceStatusOffline, stored.Status)
}

func TestSessionManagerWithDevice(t *testing.T) {
	env := newTestEnv(t)
	dev := env.addDevice(t, "admin", "nova")
	ctx := context.Background()

	err := env.sessions.WithDevice(ctx, dev, func(d *routeros.Device) error {
		identity, err := d.Identity(ctx)
		if err != nil {
			return err
		}
		assert.Equal(t, "R1", identity)
		return d.Reboot(ctx)
	})
	require.NoError(t, err)

	script, ok := env.srv.Files("admin").ReadFile("reboot.auto.rsc")
	require.True(t, ok)
	assert.Equal(t, "/system reboot\n", string(script))

	stats := env.sessions.Stats()
	assert.Equal(t, 1, stats.Total, "连接归还连接池")
	assert.Equal(t, 0, stats.Active)

	// 工作流错误不影响连接复用
	err = env.sessions.WithDevice(ctx, dev, func(d *routeros.Device) error {
		_, _, err := d.FetchBackup(ctx, "missing")
		return err
	})
	var te *routeros.TransferError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, routeros.TransferNotFound, te.Kind)
	assert.Equal(t, 1, env.sessions.Stats().Total)
}

func TestSessionManagerConnectionError(t *testing.T) {
	env := newTestEnv(t)
	dev := env.addDevice(t, "admin", "wrong")

	called := false
	err := env.sessions.WithDevice(context.Background(), dev, func(*routeros.Device) error {
		called = true
		return nil
	})
	var connErr *routeros.ConnectionError
	assert.ErrorAs(t, err, &connErr)
	assert.False(t, called)
	assert.Equal(t, 0, env.sessions.Stats().Total)
}

func TestLocalStorageWriter(t *testing.T) {
	cfg := testConfig(t)
	w := NewStorageWriter(cfg)
	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

	obj, err := w.Write(context.Background(), StorageMeta{
		DeviceHost: "10.0.0.1", TaskID: "t1", FileName: "Backup_R1.backup", Time: at,
	}, []byte("data"), "")
	require.NoError(t, err)

	want := filepath.Join(cfg.Backup.Local.BaseDir, "routeros", "10.0.0.1", "20240506_070809", "t1", "backup_r1.backup")
	assert.Equal(t, "file://"+want, obj.URI)
	assert.Equal(t, "local", obj.Backend)
	assert.Equal(t, int64(4), obj.Size)
	assert.True(t, strings.HasPrefix(obj.Checksum, "sha256:"))
	assert.Equal(t, defaultContentType, obj.ContentType)
	data, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
}

func TestStorageFallsBackToLocal(t *testing.T) {
	cfg := testConfig(t)
	w := NewStorageWriter(cfg)

	obj, err := w.Write(context.Background(), StorageMeta{Backend: "minio", DeviceName: "R1", FileName: "x.rsc"}, []byte("/x\n"), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "local", obj.Backend)
	assert.True(t, strings.HasPrefix(obj.URI, "file://"+cfg.Backup.Local.BaseDir))
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "core_router", slug(" Core Router "))
	assert.Equal(t, "a_b_c.rsc", slug("a/b\\c.rsc"))
	assert.Equal(t, "unknown", slug("中文"))
}
