package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sshcollectorpro/rosconnector/internal/service"
)

// BackupHandler 备份接口处理器
type BackupHandler struct {
	svc *service.BackupService
}

func NewBackupHandler(svc *service.BackupService) *BackupHandler { return &BackupHandler{svc: svc} }

// BatchBackup 批量备份；sync=true 时等待完成后返回结果，否则返回任务
// @Router /api/v1/backup/batch [post]
func (h *BackupHandler) BatchBackup(c *gin.Context) {
	var req service.BackupBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "INVALID_REQUEST", Message: err.Error()})
		return
	}

	if c.Query("sync") == "true" {
		resp, err := h.svc.RunBatch(c.Request.Context(), req)
		if err != nil {
			respondBatchError(c, err)
			return
		}
		success(c, http.StatusOK, "备份完成", resp)
		return
	}
	task, err := h.svc.StartBatch(c.Request.Context(), req)
	if err != nil {
		respondBatchError(c, err)
		return
	}
	success(c, http.StatusAccepted, "备份任务已创建", task)
}

func respondBatchError(c *gin.Context, err error) {
	if status, _, _ := errorStatus(err); status == http.StatusInternalServerError {
		badRequest(c, err.Error())
		return
	}
	respondError(c, err)
}

// ListTasks 任务列表
// @Router /api/v1/tasks [get]
func (h *BackupHandler) ListTasks(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	tasks, err := h.svc.ListTasks(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	success(c, http.StatusOK, "获取任务列表成功", tasks)
}

// GetTask 任务详情
// @Router /api/v1/tasks/{task_id} [get]
func (h *BackupHandler) GetTask(c *gin.Context) {
	task, err := h.svc.GetTask(c.Request.Context(), c.Param("task_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	success(c, http.StatusOK, "获取任务成功", task)
}

// TaskLogs 任务日志
// @Router /api/v1/tasks/{task_id}/logs [get]
func (h *BackupHandler) TaskLogs(c *gin.Context) {
	logs, err := h.svc.TaskLogs(c.Request.Context(), c.Param("task_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	success(c, http.StatusOK, "获取任务日志成功", logs)
}

// TaskFiles 任务保存的文件
// @Router /api/v1/tasks/{task_id}/files [get]
func (h *BackupHandler) TaskFiles(c *gin.Context) {
	files, err := h.svc.TaskFiles(c.Request.Context(), c.Param("task_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	success(c, http.StatusOK, "获取任务文件成功", files)
}
