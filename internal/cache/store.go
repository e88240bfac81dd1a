package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Store 负责 Root 目录下静态文件的落盘。磁盘布局遵循：
//
//	<Root>/<url path>            # 带扩展名的路径
//	<Root>/<url path>/index.html # 无扩展名的路径
//
// 文件只包含响应正文，不记录状态码、响应头或时间戳。
type Store interface {
	// Put 将 body 写入 target，覆盖已存在的文件。target 必须位于 Root 之下。
	Put(target string, body []byte) error

	// Reset 递归删除 Root 并重新创建为空目录。
	Reset() error
}

// ErrOutsideRoot 表示目标路径不在 Root 之下。
var ErrOutsideRoot = errors.New("target outside cache root")

// NewStore 以 root 为根目录构建文件存储。
func NewStore(fs afero.Fs, root string) Store {
	return &fileStore{fs: fs, root: root}
}

type fileStore struct {
	fs   afero.Fs
	root string
}

// Put 先写入同目录临时文件再 rename 覆盖目标，重复写同一路径时最后一次完成的写入生效。
func (s *fileStore) Put(target string, body []byte) error {
	if err := s.contains(target); err != nil {
		return err
	}

	dir := filepath.Dir(target)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tempFile, err := afero.TempFile(s.fs, dir, ".cache-*")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()

	_, err = tempFile.Write(body)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil {
		err = s.fs.Chmod(tempName, 0o644)
	}
	if err != nil {
		_ = s.fs.Remove(tempName)
		return err
	}

	if err := s.fs.Rename(tempName, target); err != nil {
		_ = s.fs.Remove(tempName)
		return err
	}
	return nil
}

func (s *fileStore) Reset() error {
	if err := s.fs.RemoveAll(s.root); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove root: %w", err)
	}
	if err := s.fs.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("create root: %w", err)
	}
	return nil
}

func (s *fileStore) contains(target string) error {
	rel, err := filepath.Rel(s.root, target)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrOutsideRoot, target)
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s", ErrOutsideRoot, target)
	}
	return nil
}
