package simulate

import (
	"bytes"
	"io"
	"os"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/pkg/sftp"
)

// MemFS 设备根目录的内存文件系统，shell 命令与 sftp 子系统共用
type MemFS struct {
	mu    sync.Mutex
	files map[string]*memFile
}

type memFile struct {
	name    string
	data    []byte
	modTime time.Time
}

// NewMemFS 创建空文件系统
func NewMemFS() *MemFS {
	return &MemFS{files: make(map[string]*memFile)}
}

func fileKey(p string) string {
	return path.Base(path.Clean("/" + p))
}

// WriteFile 写入（覆盖）文件
func (fs *MemFS) WriteFile(name string, data []byte) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	key := fileKey(name)
	fs.files[key] = &memFile{name: key, data: append([]byte(nil), data...), modTime: time.Now()}
}

// ReadFile 读取文件内容
func (fs *MemFS) ReadFile(name string) ([]byte, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	f, ok := fs.files[fileKey(name)]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), f.data...), true
}

// Remove 删除文件，不存在时返回 false
func (fs *MemFS) Remove(name string) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	key := fileKey(name)
	if _, ok := fs.files[key]; !ok {
		return false
	}
	delete(fs.files, key)
	return true
}

// Names 按名称排序的文件列表
func (fs *MemFS) Names() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	names := make([]string, 0, len(fs.files))
	for name := range fs.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Handlers sftp 请求处理
func (fs *MemFS) Handlers() sftp.Handlers {
	return sftp.Handlers{FileGet: fs, FilePut: fs, FileCmd: fs, FileList: fs}
}

func (fs *MemFS) Fileread(r *sftp.Request) (io.ReaderAt, error) {
	data, ok := fs.ReadFile(r.Filepath)
	if !ok {
		return nil, os.ErrNotExist
	}
	return bytes.NewReader(data), nil
}

func (fs *MemFS) Filewrite(r *sftp.Request) (io.WriterAt, error) {
	fs.WriteFile(r.Filepath, nil)
	return &memWriter{fs: fs, key: fileKey(r.Filepath)}, nil
}

func (fs *MemFS) Filecmd(r *sftp.Request) error {
	switch r.Method {
	case "Setstat":
		return nil
	case "Remove":
		if !fs.Remove(r.Filepath) {
			return os.ErrNotExist
		}
		return nil
	case "Rename":
		data, ok := fs.ReadFile(r.Filepath)
		if !ok {
			return os.ErrNotExist
		}
		fs.Remove(r.Filepath)
		fs.WriteFile(r.Target, data)
		return nil
	}
	return sftp.ErrSSHFxOpUnsupported
}

func (fs *MemFS) Filelist(r *sftp.Request) (sftp.ListerAt, error) {
	switch r.Method {
	case "List":
		fs.mu.Lock()
		infos := make([]os.FileInfo, 0, len(fs.files))
		for _, f := range fs.files {
			infos = append(infos, f.info())
		}
		fs.mu.Unlock()
		sort.Slice(infos, func(i, j int) bool { return infos[i].Name() < infos[j].Name() })
		return listerAt(infos), nil
	case "Stat":
		if path.Clean("/"+r.Filepath) == "/" {
			return listerAt{rootInfo{}}, nil
		}
		fs.mu.Lock()
		f, ok := fs.files[fileKey(r.Filepath)]
		fs.mu.Unlock()
		if !ok {
			return nil, os.ErrNotExist
		}
		return listerAt{f.info()}, nil
	}
	return nil, sftp.ErrSSHFxOpUnsupported
}

// memWriter 按偏移写入，文件被删除后写入无效
type memWriter struct {
	fs  *MemFS
	key string
}

func (w *memWriter) WriteAt(p []byte, off int64) (int, error) {
	w.fs.mu.Lock()
	defer w.fs.mu.Unlock()
	f, ok := w.fs.files[w.key]
	if !ok {
		return 0, os.ErrNotExist
	}
	end := int(off) + len(p)
	if end > len(f.data) {
		grown := make([]byte, end)
		copy(grown, f.data)
		f.data = grown
	}
	copy(f.data[off:], p)
	f.modTime = time.Now()
	return len(p), nil
}

type listerAt []os.FileInfo

func (l listerAt) ListAt(ls []os.FileInfo, offset int64) (int, error) {
	if offset >= int64(len(l)) {
		return 0, io.EOF
	}
	n := copy(ls, l[offset:])
	if n < len(ls) {
		return n, io.EOF
	}
	return n, nil
}

type fileInfo struct {
	name    string
	size    int64
	modTime time.Time
}

func (f *memFile) info() os.FileInfo {
	return fileInfo{name: f.name, size: int64(len(f.data)), modTime: f.modTime}
}

func (fi fileInfo) Name() string       { return fi.name }
func (fi fileInfo) Size() int64        { return fi.size }
func (fi fileInfo) Mode() os.FileMode  { return 0o644 }
func (fi fileInfo) ModTime() time.Time { return fi.modTime }
func (fi fileInfo) IsDir() bool        { return false }
func (fi fileInfo) Sys() interface{}   { return nil }

type rootInfo struct{}

func (rootInfo) Name() string       { return "/" }
func (rootInfo) Size() int64        { return 0 }
func (rootInfo) Mode() os.FileMode  { return os.ModeDir | 0o755 }
func (rootInfo) ModTime() time.Time { return time.Time{} }
func (rootInfo) IsDir() bool        { return true }
func (rootInfo) Sys() interface{}   { return nil }
