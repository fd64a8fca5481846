// Package fsx 提供输出文件的整体替换写入。
package fsx

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// 测试替换以模拟 rename 失败。
var renameFunc = os.Rename

// NotRegularFileError 表示输出路径已存在但不是普通文件（目录、设备、符号链接等）。
type NotRegularFileError struct {
	Path string
	Mode os.FileMode
}

func (e *NotRegularFileError) Error() string {
	kind := "非普通文件"
	switch {
	case e.Mode.IsDir():
		kind = "目录"
	case e.Mode&os.ModeSymlink != 0:
		kind = "符号链接"
	}
	return fmt.Sprintf("输出路径 %q 是%s，不能写入", e.Path, kind)
}

// IsNotRegularFile 判断 err 是否来自输出路径类型不符。
func IsNotRegularFile(err error) bool {
	var e *NotRegularFileError
	return errors.As(err, &e)
}

// WriteFile 整体替换 path 的内容：先写同目录临时文件并 fsync，再 rename 覆盖。
// 父目录不存在时自动创建；任何一步失败都不会留下半截的 path 或临时文件。
func WriteFile(path string, data []byte) error {
	path = filepath.Clean(path)
	if err := checkTarget(path); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := renameFunc(tmp.Name(), path); err != nil {
		return fmt.Errorf("替换 %s 失败：%w", path, err)
	}
	committed = true

	syncDir(dir)
	return nil
}

// checkTarget 只允许目标不存在或是普通文件。
func checkTarget(path string) error {
	fi, err := os.Lstat(path)
	switch {
	case os.IsNotExist(err):
		return nil
	case err != nil:
		return err
	case !fi.Mode().IsRegular():
		return &NotRegularFileError{Path: path, Mode: fi.Mode()}
	}
	return nil
}

// syncDir 让 rename 落盘（best-effort；Windows 不支持对目录 fsync）。
func syncDir(dir string) {
	if runtime.GOOS == "windows" {
		return
	}
	f, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = f.Sync()
	_ = f.Close()
}
