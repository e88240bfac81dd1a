package cache

import (
	"os"
	"sync/atomic"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

const testRoot = "/srv/public"

// countingFs 统计 RemoveAll 与写入类调用次数，其余操作透传给底层 Fs。
type countingFs struct {
	afero.Fs
	removeAll atomic.Int64
	writes    atomic.Int64
}

func newCountingFs() *countingFs {
	return &countingFs{Fs: afero.NewMemMapFs()}
}

func (f *countingFs) RemoveAll(path string) error {
	f.removeAll.Add(1)
	return f.Fs.RemoveAll(path)
}

func (f *countingFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE) != 0 {
		f.writes.Add(1)
	}
	return f.Fs.OpenFile(name, flag, perm)
}

func (f *countingFs) Create(name string) (afero.File, error) {
	f.writes.Add(1)
	return f.Fs.Create(name)
}

func newTestCacher(t *testing.T, fs afero.Fs, clean bool) *Cacher {
	t.Helper()
	c, err := New(&Options{Root: testRoot, Clean: clean, Fs: fs}, nil)
	require.NoError(t, err)
	return c
}

func readFile(t *testing.T, fs afero.Fs, path string) string {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	return string(data)
}
