package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sshcollectorpro/rosconnector/internal/config"
	"github.com/sshcollectorpro/rosconnector/internal/database"
	"github.com/sshcollectorpro/rosconnector/internal/routeros"
	"github.com/sshcollectorpro/rosconnector/internal/service"
	"github.com/sshcollectorpro/rosconnector/simulate"
)

var rejectedAddress = routeros.IPAddressCreate{Address: "10.9.9.1/24", Interface: "ether9"}

type apiEnv struct {
	engine *gin.Engine
	srv    *simulate.Server
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	srv, err := simulate.NewServer(simulate.ServerOptions{
		Addr:    "127.0.0.1:0",
		Devices: map[string]simulate.DeviceNameConfig{"admin": {Identity: "R1"}},
		Outputs: simulate.MapOutputs{
			rejectedAddress.Command(): "input does not match any value of interface",
		},
	})
	require.NoError(t, err)
	require.NoError(t, srv.Start())
	t.Cleanup(srv.Stop)

	require.NoError(t, database.InitSQLite(config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "api.db")}))
	t.Cleanup(func() { database.Close() })

	cfg := &config.Config{}
	cfg.SSH.Timeout = 5 * time.Second
	cfg.RouterOS = config.RouterOSConfig{LoginSuffix: "+ct511w4098h", CommandTimeout: 3 * time.Second}
	cfg.Backup = config.BackupConfig{
		StorageBackend: "local",
		Local:          config.LocalBackupConfig{BaseDir: t.TempDir(), MkdirIfMissing: true},
		IncludeExport:  true,
		Concurrency:    2,
	}

	sessions := service.NewSessionManager(cfg)
	t.Cleanup(func() { sessions.Close() })
	devices := service.NewDeviceService(database.GetDB(), sessions)
	backup := service.NewBackupService(cfg, database.GetDB(), sessions, devices, service.NewStorageWriter(cfg))
	t.Cleanup(backup.Wait)

	engine := SetupRouter(Services{Devices: devices, Sessions: sessions, Backup: backup})
	return &apiEnv{engine: engine, srv: srv}
}

type apiResponse struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Details json.RawMessage `json:"details"`
}

func (e *apiEnv) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)

	var resp apiResponse
	if w.Header().Get("Content-Type") != "application/octet-stream" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w, resp
}

func (e *apiEnv) createDevice(t *testing.T) string {
	t.Helper()
	w, resp := e.do(t, http.MethodPost, "/api/v1/devices", gin.H{
		"host": "127.0.0.1", "port": e.srv.Port(), "username": "admin", "password": "nova",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var dev struct {
		ID       string `json:"id"`
		Password string `json:"password"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &dev))
	assert.Empty(t, dev.Password, "响应中不返回密码")
	return dev.ID
}

func TestDeviceEndpoints(t *testing.T) {
	env := newAPIEnv(t)
	id := env.createDevice(t)

	w, resp := env.do(t, http.MethodPost, "/api/v1/devices", gin.H{
		"host": "127.0.0.1", "port": env.srv.Port(), "username": "admin",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "DEVICE_EXISTS", resp.Code)

	w, resp = env.do(t, http.MethodGet, "/api/v1/devices/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "DEVICE_NOT_FOUND", resp.Code)

	w, resp = env.do(t, http.MethodPost, "/api/v1/devices/"+id+"/test", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, string(resp.Data), `"identity":"R1"`)
	assert.Contains(t, string(resp.Data), `"status":"online"`)

	w, resp = env.do(t, http.MethodGet, "/api/v1/devices", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(resp.Data), `"total":1`)
	assert.NotContains(t, string(resp.Data), "nova")

	w, _ = env.do(t, http.MethodDelete, "/api/v1/devices/"+id, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = env.do(t, http.MethodDelete, "/api/v1/devices/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWorkflowEndpoints(t *testing.T) {
	env := newAPIEnv(t)
	id := env.createDevice(t)
	base := "/api/v1/devices/" + id

	w, resp := env.do(t, http.MethodGet, base+"/query/identity", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"name":"R1"}`, string(resp.Data))

	w, _ = env.do(t, http.MethodPost, base+"/apply", gin.H{"kind": "identity-update", "params": gin.H{"name": "core"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	_, resp = env.do(t, http.MethodGet, base+"/query/identity", nil)
	assert.JSONEq(t, `{"name":"core"}`, string(resp.Data))

	w, resp = env.do(t, http.MethodPost, base+"/apply", gin.H{"kind": "ip-address-create", "params": gin.H{"address": rejectedAddress.Address, "interface": rejectedAddress.Interface}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "COMMAND_FAILED", resp.Code)
	assert.Contains(t, resp.Message, "input does not match")

	w, resp = env.do(t, http.MethodPost, base+"/apply", gin.H{"kind": "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, resp.Message, "identity-update")

	w, _ = env.do(t, http.MethodGet, base+"/query/unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, resp = env.do(t, http.MethodPost, base+"/command", gin.H{"command": "/system identity print"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(resp.Data), "name: core")

	w, _ = env.do(t, http.MethodPost, base+"/reboot", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	_, ok := env.srv.Files("admin").ReadFile("reboot.auto.rsc")
	assert.True(t, ok)

	w, resp = env.do(t, http.MethodGet, base+"/files/backup?name=missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "TRANSFER_NOT_FOUND", resp.Code)

	w, _ = env.do(t, http.MethodGet, base+"/files/backup", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ROSBACKUP core\n", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".backup")
}

func TestBackupAndTaskEndpoints(t *testing.T) {
	env := newAPIEnv(t)
	id := env.createDevice(t)

	w, resp := env.do(t, http.MethodPost, "/api/v1/backup/batch?sync=true", gin.H{"device_ids": []string{id}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var batch service.BackupBatchResponse
	require.NoError(t, json.Unmarshal(resp.Data, &batch))
	assert.Equal(t, "success", batch.Status)
	require.Len(t, batch.Data, 1)
	assert.Len(t, batch.Data[0].Files, 2)

	w, resp = env.do(t, http.MethodGet, "/api/v1/tasks/"+batch.TaskID+"/files", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(resp.Data), `"kind":"export"`)

	w, resp = env.do(t, http.MethodGet, "/api/v1/tasks/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "TASK_NOT_FOUND", resp.Code)

	w, _ = env.do(t, http.MethodPost, "/api/v1/backup/batch", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp = env.do(t, http.MethodPost, "/api/v1/backup/batch", gin.H{"device_ids": []string{id}, "include_export": false})
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, string(resp.Data), `"status":"running"`)
}

func TestSystemEndpoints(t *testing.T) {
	env := newAPIEnv(t)

	w, resp := env.do(t, http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(resp.Data), "ssh_pool")

	w, resp = env.do(t, http.MethodGet, "/api/v1/simulate/namespaces", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "SIMULATE_DISABLED", resp.Code)

	w, resp = env.do(t, http.MethodGet, "/api/v1/logs", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "LOG_PATH_EMPTY", resp.Code)

	w, resp = env.do(t, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", resp.Code)
}
