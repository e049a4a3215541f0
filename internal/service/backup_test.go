package service

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sshcollectorpro/rosconnector/internal/model"
	"github.com/sshcollectorpro/rosconnector/internal/routeros"
)

func (e *testEnv) backupService() *BackupService {
	return NewBackupService(e.cfg, e.db, e.sessions, e.devices, NewStorageWriter(e.cfg))
}

func TestRunBatchStoresBackupAndExport(t *testing.T) {
	env := newTestEnv(t)
	d1 := env.addDevice(t, "admin", "nova")
	d2 := env.addDevice(t, "r2", "nova")
	svc := env.backupService()
	ctx := context.Background()

	resp, err := svc.RunBatch(ctx, BackupBatchRequest{DeviceIDs: []string{d1.ID, d2.ID}})
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusSuccess, resp.Status)
	assert.Equal(t, 2, resp.Succeeded)
	require.Len(t, resp.Data, 2)

	for i, want := range []string{"R1", "R2"} {
		r := resp.Data[i]
		require.True(t, r.Success, r.Error)
		require.Len(t, r.Files, 2)
		assert.Equal(t, "backup", r.Files[0].Kind)
		assert.Equal(t, "export", r.Files[1].Kind)
		assert.True(t, strings.HasSuffix(r.Files[1].Name, ".rsc"))

		data, err := os.ReadFile(strings.TrimPrefix(r.Files[0].Object.URI, "file://"))
		require.NoError(t, err)
		assert.Equal(t, "ROSBACKUP "+want+"\n", string(data))
		data, err = os.ReadFile(strings.TrimPrefix(r.Files[1].Object.URI, "file://"))
		require.NoError(t, err)
		assert.Contains(t, string(data), "set name="+want)
	}

	task, err := svc.GetTask(ctx, resp.TaskID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusSuccess, task.Status)
	assert.Equal(t, 2, task.Total)
	assert.False(t, task.EndTime.IsZero())

	files, err := svc.TaskFiles(ctx, resp.TaskID)
	require.NoError(t, err)
	assert.Len(t, files, 4)

	logs, err := svc.TaskLogs(ctx, resp.TaskID)
	require.NoError(t, err)
	assert.NotEmpty(t, logs)
}

func TestRunBatchPartialFailure(t *testing.T) {
	env := newTestEnv(t)
	good := env.addDevice(t, "admin", "nova")
	bad := env.addDevice(t, "r2", "wrong")
	svc := env.backupService()
	ctx := context.Background()

	resp, err := svc.RunBatch(ctx, BackupBatchRequest{DeviceIDs: []string{good.ID, bad.ID}, IncludeExport: routeros.Ptr(false)})
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusPartial, resp.Status)
	assert.Equal(t, 1, resp.Succeeded)
	assert.Equal(t, 1, resp.Failed)
	assert.Len(t, resp.Data[0].Files, 1, "未请求导出")
	assert.False(t, resp.Data[1].Success)
	assert.Contains(t, resp.Data[1].Error, "connection to 127.0.0.1 failed")

	logs, err := svc.TaskLogs(ctx, resp.TaskID)
	require.NoError(t, err)
	var errorLogs int
	for _, l := range logs {
		if l.Level == "error" {
			errorLogs++
			assert.Equal(t, bad.ID, l.DeviceID)
		}
	}
	assert.Equal(t, 1, errorLogs)

	task, err := svc.GetTask(ctx, resp.TaskID)
	require.NoError(t, err)
	assert.Contains(t, task.ErrorMsg, "127.0.0.1")
}

func TestStartBatchRunsInBackground(t *testing.T) {
	env := newTestEnv(t)
	dev := env.addDevice(t, "admin", "nova")
	svc := env.backupService()
	ctx := context.Background()

	task, err := svc.StartBatch(ctx, BackupBatchRequest{DeviceIDs: []string{dev.ID}})
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusRunning, task.Status)
	svc.Wait()

	done, err := svc.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusSuccess, done.Status)

	tasks, err := svc.ListTasks(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

func TestBatchRequestValidation(t *testing.T) {
	env := newTestEnv(t)
	dev := env.addDevice(t, "admin", "nova")
	svc := env.backupService()
	ctx := context.Background()

	_, err := svc.RunBatch(ctx, BackupBatchRequest{})
	assert.Error(t, err)
	_, err = svc.RunBatch(ctx, BackupBatchRequest{DeviceIDs: []string{dev.ID}, StorageBackend: "ftp"})
	assert.ErrorContains(t, err, "unsupported storage backend")
	_, err = svc.RunBatch(ctx, BackupBatchRequest{DeviceIDs: []string{"missing"}})
	assert.ErrorIs(t, err, ErrDeviceNotFound)
	_, err = svc.GetTask(ctx, "missing")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}
