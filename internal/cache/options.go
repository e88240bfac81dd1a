package cache

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/afero"
)

// ErrInvalidOptions 表示构造 Cacher 时缺少必要参数，调用方拿不到可用实例。
var ErrInvalidOptions = errors.New("invalid cache options")

// Options 在 Cacher 生命周期内保持不变。
//   - Root:  静态文件输出目录（必填）
//   - Clean: 构造时是否清空并重建 Root（默认 false）
//   - Fs:    文件系统实现，默认使用操作系统文件系统
type Options struct {
	Root  string
	Clean bool
	Fs    afero.Fs
}

// normalize 校验 Options 并返回带默认值的副本，不修改调用方持有的实例。
func (o *Options) normalize() (Options, error) {
	if o == nil {
		return Options{}, fmt.Errorf("%w: options are required", ErrInvalidOptions)
	}
	opts := *o
	opts.Root = strings.TrimSpace(opts.Root)
	if opts.Root == "" {
		return Options{}, fmt.Errorf("%w: root is required", ErrInvalidOptions)
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	return opts, nil
}
