package handler

import (
	"bufio"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// LogsHandler 日志查询处理器
type LogsHandler struct {
	path string
}

// NewLogsHandler path 为日志文件路径，未写文件时为空
func NewLogsHandler(path string) *LogsHandler { return &LogsHandler{path: strings.TrimSpace(path)} }

// TailLogs 返回日志末尾 N 行，可按关键字、设备 host、级别过滤
// @Router /api/v1/logs [get]
func (h *LogsHandler) TailLogs(c *gin.Context) {
	if h.path == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "LOG_PATH_EMPTY", Message: "日志未输出到文件"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "200"))
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	var filters []string
	for _, key := range []string{"q", "host"} {
		if v := strings.ToLower(strings.TrimSpace(c.Query(key))); v != "" {
			filters = append(filters, v)
		}
	}
	lvl := strings.ToLower(strings.TrimSpace(c.Query("level")))

	tail, err := tailLines(h.path, limit, func(line string) bool {
		lc := strings.ToLower(line)
		for _, f := range filters {
			if !strings.Contains(lc, f) {
				return false
			}
		}
		// json 与 text 两种格式
		return lvl == "" || strings.Contains(lc, `"level":"`+lvl+`"`) || strings.Contains(lc, "level="+lvl)
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "READ_FAILED", Message: "读取日志失败: " + err.Error()})
		return
	}
	success(c, http.StatusOK, "获取日志成功", gin.H{"path": h.path, "count": len(tail), "lines": tail})
}

// tailLines 保留最后 limit 条匹配行
func tailLines(path string, limit int, match func(string) bool) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ring := make([]string, 0, limit)
	s := bufio.NewScanner(f)
	s.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for s.Scan() {
		line := s.Text()
		if !match(line) {
			continue
		}
		if len(ring) == limit {
			ring = append(ring[1:], line)
		} else {
			ring = append(ring, line)
		}
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return ring, nil
}
