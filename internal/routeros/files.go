package routeros

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sshcollectorpro/rosconnector/internal/util"
)

// BackupOptions /system backup save 参数；Name 为文件名前缀，默认 backup
type BackupOptions struct {
	Name        string  `json:"name,omitempty"`
	Password    *string `json:"password,omitempty"`
	Encryption  *string `json:"encryption,omitempty"`
	DontEncrypt *bool   `json:"dont_encrypt,omitempty"`
}

// MakeBackup 在设备上创建二进制备份，文件名 <name>_<identity>_<timestamp>
func (d *Device) MakeBackup(ctx context.Context, opts BackupOptions) (FileHandle, error) {
	prefix := opts.Name
	if prefix == "" {
		prefix = "backup"
	}
	identity, err := d.Identity(ctx)
	if err != nil {
		return FileHandle{}, err
	}
	name := DeviceFileName(prefix, identity, d.opts.Now())
	save := BackupSave{Name: name, Password: opts.Password, Encryption: opts.Encryption, DontEncrypt: opts.DontEncrypt}
	out, err := d.send(ctx, save.Command(), 2)
	if err != nil {
		return FileHandle{}, err
	}
	// 成功时设备输出 "Configuration backup saved"
	if !strings.Contains(strings.ToLower(out), "backup saved") {
		msg := Classify(out).Message()
		if msg == "" {
			msg = "device did not confirm the backup"
		}
		return FileHandle{}, &CommandFailure{Command: "/system backup save name=" + name, Message: msg}
	}
	d.mu.Lock()
	d.lastBackup = name
	d.mu.Unlock()
	d.log().Infof("backup %s saved", name)
	return FileHandle{Name: name, RemotePath: "/" + name + ".backup"}, nil
}

// FetchBackup 读取备份内容；name 为空时依次使用本会话最近的备份、新建备份
func (d *Device) FetchBackup(ctx context.Context, name string) (FileHandle, []byte, error) {
	if name == "" {
		name = d.LastBackup()
	}
	if name == "" {
		h, err := d.MakeBackup(ctx, BackupOptions{})
		if err != nil {
			return FileHandle{}, nil, err
		}
		name = h.Name
	}
	h := FileHandle{Name: name, RemotePath: "/" + name + ".backup"}
	data, err := d.get(ctx, h.RemotePath)
	if err != nil {
		return FileHandle{}, nil, err
	}
	return h, data, nil
}

// DownloadBackup 下载备份到 localDir
func (d *Device) DownloadBackup(ctx context.Context, localDir, name string) (FileHandle, error) {
	h, data, err := d.FetchBackup(ctx, name)
	if err != nil {
		return FileHandle{}, err
	}
	h.LocalPath = filepath.Join(localDir, h.Name+".backup")
	if err := writeLocal(h.LocalPath, data); err != nil {
		return FileHandle{}, err
	}
	return h, nil
}

// MakeExport 在设备上生成 /export terse 文件，文件名 <name>_<identity>_<timestamp>
func (d *Device) MakeExport(ctx context.Context, prefix string) (FileHandle, error) {
	if prefix == "" {
		prefix = "export"
	}
	identity, err := d.Identity(ctx)
	if err != nil {
		return FileHandle{}, err
	}
	name := DeviceFileName(prefix, identity, d.opts.Now())
	if err := d.run(ctx, ExportToFile{Name: name}, 8); err != nil {
		return FileHandle{}, err
	}
	d.mu.Lock()
	d.lastExport = name
	d.mu.Unlock()
	d.log().Infof("export %s saved", name)
	return FileHandle{Name: name, RemotePath: "/" + name + ".rsc"}, nil
}

// FetchExport 读取导出内容，name 的选择顺序同 FetchBackup
func (d *Device) FetchExport(ctx context.Context, name string) (FileHandle, []byte, error) {
	if name == "" {
		name = d.LastExport()
	}
	if name == "" {
		h, err := d.MakeExport(ctx, "")
		if err != nil {
			return FileHandle{}, nil, err
		}
		name = h.Name
	}
	h := FileHandle{Name: name, RemotePath: "/" + name + ".rsc"}
	data, err := d.get(ctx, h.RemotePath)
	if err != nil {
		return FileHandle{}, nil, err
	}
	return h, data, nil
}

// DownloadExport 下载导出文件到 localDir
func (d *Device) DownloadExport(ctx context.Context, localDir, name string) (FileHandle, error) {
	h, data, err := d.FetchExport(ctx, name)
	if err != nil {
		return FileHandle{}, err
	}
	h.LocalPath = filepath.Join(localDir, h.Name+".rsc")
	if err := writeLocal(h.LocalPath, data); err != nil {
		return FileHandle{}, err
	}
	return h, nil
}

// WriteExportConfiguration 将交互式 /export terse 输出写入 localDir/export_<timestamp>.rsc
func (d *Device) WriteExportConfiguration(ctx context.Context, localDir string) (FileHandle, error) {
	text, err := d.ExportConfiguration(ctx)
	if err != nil {
		return FileHandle{}, err
	}
	name := "export_" + d.opts.Now().Format(fileTimestampLayout)
	h := FileHandle{Name: name, LocalPath: filepath.Join(localDir, name+".rsc")}
	if err := writeLocal(h.LocalPath, []byte(text+"\n")); err != nil {
		return FileHandle{}, err
	}
	return h, nil
}

const (
	rebootScript = "/reboot.auto.rsc"
	// cleanupTimeout 调用方 ctx 已取消时删除设备端临时文件的时限
	cleanupTimeout = 10 * time.Second
)

// Reboot 上传 reboot.auto.rsc，设备加载脚本后重启
func (d *Device) Reboot(ctx context.Context) error {
	if d.files == nil {
		return errNoTransfer("put", rebootScript)
	}
	f, err := os.CreateTemp(d.opts.TempDir, "reboot-*.rsc")
	if err != nil {
		return NewTransferError("write", d.opts.TempDir, err)
	}
	local := f.Name()
	defer os.Remove(local)

	_, werr := f.WriteString("/system reboot\n")
	cerr := f.Close()
	if werr != nil {
		return NewTransferError("write", local, werr)
	}
	if cerr != nil {
		return NewTransferError("write", local, cerr)
	}
	if err := d.files.Put(ctx, local, rebootScript); err != nil {
		return NewTransferError("put", rebootScript, err)
	}
	d.log().Info("reboot script uploaded")
	return nil
}

// RoutesLarge 大路由表：先统计行数选择等待档位，输出到设备文件后经 SFTP 读取
func (d *Device) RoutesLarge(ctx context.Context) ([]Route, error) {
	out, err := d.send(ctx, "/ip route print count-only", 1)
	if err != nil {
		return nil, err
	}
	count, err := ParseCount(out)
	if err != nil {
		return nil, err
	}
	delay := DelayForRows(d.opts.DelayTiers, count)
	name := "routes_" + d.opts.Now().Format(fileTimestampLayout)
	d.log().Infof("dumping %d routes to %s.txt (delay factor %.0f)", count, name, delay)

	if err := d.run(ctx, RouteFileDump{File: name}, delay); err != nil {
		return nil, err
	}
	defer func() {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
		defer cancel()
		if err := d.run(cctx, FileRemove{Name: name + ".txt"}, 1); err != nil {
			d.log().WithError(err).Warnf("remove %s.txt failed", name)
		}
	}()

	data, err := d.get(ctx, "/"+name+".txt")
	if err != nil {
		return nil, err
	}
	local := filepath.Join(d.tempDir(), name+".txt")
	if err := writeLocal(local, data); err != nil {
		return nil, err
	}
	defer os.Remove(local)
	content, err := os.ReadFile(local)
	if err != nil {
		return nil, NewTransferError("read", local, err)
	}
	return ParseRoutes(util.DecodeBytes(content, d.opts.Charset), d.opts.Bounds.Routes)
}

func (d *Device) tempDir() string {
	if d.opts.TempDir != "" {
		return d.opts.TempDir
	}
	return os.TempDir()
}

func (d *Device) get(ctx context.Context, remote string) ([]byte, error) {
	if d.files == nil {
		return nil, errNoTransfer("get", remote)
	}
	data, err := d.files.Get(ctx, remote)
	if err != nil {
		return nil, NewTransferError("get", remote, err)
	}
	d.log().Debugf("downloaded %s (%d bytes)", remote, len(data))
	return data, nil
}

func errNoTransfer(op, path string) error {
	return &TransferError{Op: op, Path: path, Kind: TransferOther, Err: fmt.Errorf("file transfer not available")}
}

func writeLocal(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return NewTransferError("write", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return NewTransferError("write", path, err)
	}
	return nil
}
