package simulate

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDevice() *deviceState {
	return &deviceState{identity: "R1", files: NewMemFS(), licensed: true}
}

func TestOutputFileName(t *testing.T) {
	assert.Equal(t, "ip_address_print_without-paging.txt", OutputFileName("/ip address print without-paging"))
	assert.Equal(t, "put_ip_cloud_get_dns-name.txt", OutputFileName(":put [/ip cloud get dns-name]"))
}

func TestDirOutputs(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, "admin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(base, "admin", "system_resource_print.txt"), []byte("uptime: 1d\n"), 0o644))

	out, ok := DirOutputs(base).Lookup("admin", "/system resource print")
	assert.True(t, ok)
	assert.Equal(t, "uptime: 1d\n", out)

	_, ok = DirOutputs(base).Lookup("other", "/system resource print")
	assert.False(t, ok)
}

func TestExecuteSideEffects(t *testing.T) {
	dev := newDevice()
	outputs := MapOutputs{"/ip route print detail without-paging": " 0  ADS  dst-address=0.0.0.0/0 gateway=10.0.0.1\n"}

	out, quit := execute(dev, "admin", outputs, "/system backup save name=b1 dont-encrypt=yes")
	assert.False(t, quit)
	assert.Equal(t, "Configuration backup saved", out)
	data, ok := dev.files.ReadFile("b1.backup")
	require.True(t, ok)
	assert.Equal(t, "ROSBACKUP R1\n", string(data))

	out, _ = execute(dev, "admin", outputs, "/export terse file=e1")
	assert.Empty(t, out)
	data, ok = dev.files.ReadFile("e1.rsc")
	require.True(t, ok)
	assert.Contains(t, string(data), "set name=R1")

	out, _ = execute(dev, "admin", outputs, "/ip route print detail without-paging file=routes_1")
	assert.Empty(t, out)
	data, ok = dev.files.ReadFile("routes_1.txt")
	require.True(t, ok)
	assert.Contains(t, string(data), "gateway=10.0.0.1")

	out, _ = execute(dev, "admin", outputs, `/file remove "routes_1.txt"`)
	assert.Empty(t, out)
	out, _ = execute(dev, "admin", outputs, `/file remove "routes_1.txt"`)
	assert.Equal(t, "no such item", out)

	assert.Equal(t, []string{"b1.backup", "e1.rsc"}, dev.files.Names())
}

func TestExecuteIdentityAndErrors(t *testing.T) {
	dev := newDevice()

	out, _ := execute(dev, "admin", MapOutputs{}, `/system identity set name="core router"`)
	assert.Empty(t, out)
	out, _ = execute(dev, "admin", MapOutputs{}, "/system identity print")
	assert.Equal(t, "  name: core router", out)

	out, _ = execute(dev, "admin", MapOutputs{}, "reboot now")
	assert.Equal(t, "bad command name reboot (line 1 column 1)", out)

	_, quit := execute(dev, "admin", MapOutputs{}, "/quit")
	assert.True(t, quit)
	assert.Len(t, dev.received, 4)
}

func TestLineReader(t *testing.T) {
	r := newLineReader(bufio.NewReader(strings.NewReader("a\r\nb\rc\n\r\n")))
	var lines []string
	for {
		line, err := r.next()
		if err != nil {
			break
		}
		lines = append(lines, line)
	}
	assert.Equal(t, []string{"a", "b", "c", ""}, lines)
}

func TestMemFSWriter(t *testing.T) {
	fs := NewMemFS()
	fs.WriteFile("/x.txt", nil)
	w := &memWriter{fs: fs, key: "x.txt"}

	_, err := w.WriteAt([]byte("world"), 6)
	require.NoError(t, err)
	_, err = w.WriteAt([]byte("hello "), 0)
	require.NoError(t, err)

	data, ok := fs.ReadFile("x.txt")
	require.True(t, ok)
	assert.Equal(t, "hello world", string(data))

	assert.True(t, fs.Remove("x.txt"))
	_, err = w.WriteAt([]byte("!"), 11)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestListerAt(t *testing.T) {
	l := listerAt{(&memFile{name: "a"}).info(), (&memFile{name: "b", data: []byte("22")}).info()}
	buf := make([]os.FileInfo, 1)
	n, err := l.ListAt(buf, 1)
	assert.Equal(t, 1, n)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), buf[0].Size())

	n, err = l.ListAt(buf, 2)
	assert.Equal(t, 0, n)
	assert.Error(t, err)
}
