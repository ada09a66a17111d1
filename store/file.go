package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStore 是文件系统实现的 Store，用于单机训练的 checkpoint 持久化。
// 每个 key 对应目录下的一个文件，key 中的路径分隔符会被替换，
// 不支持 TTL（传入的 ttl 参数被忽略）。
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (f *FileStore) Name() string { return "file" }

func (f *FileStore) path(key string) string {
	// key 可能包含 "/" 或 ":"（如 "model:v1"），统一转成下划线避免逃出目录
	safe := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "..", "_").Replace(key)
	return filepath.Join(f.dir, safe)
}

func (f *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("file store get %q: %w", key, err)
	}
	return data, nil
}

func (f *FileStore) Set(ctx context.Context, key string, value []byte, ttl ...int) error {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("file store mkdir: %w", err)
	}
	// 先写临时文件再 rename，避免读到写了一半的 checkpoint
	p := f.path(key)
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, value, 0o644); err != nil {
		return fmt.Errorf("file store set %q: %w", key, err)
	}
	if err := os.Rename(tmp, p); err != nil {
		return fmt.Errorf("file store set %q: %w", key, err)
	}
	return nil
}

func (f *FileStore) Delete(ctx context.Context, key string) error {
	if err := os.Remove(f.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("file store delete %q: %w", key, err)
	}
	return nil
}

func (f *FileStore) BatchGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	result := make(map[string][]byte, len(keys))
	for _, k := range keys {
		data, err := f.Get(ctx, k)
		if err != nil {
			if err == ErrNotFound {
				continue
			}
			return nil, err
		}
		result[k] = data
	}
	return result, nil
}

func (f *FileStore) BatchSet(ctx context.Context, kvs map[string][]byte, ttl ...int) error {
	for k, v := range kvs {
		if err := f.Set(ctx, k, v); err != nil {
			return err
		}
	}
	return nil
}

func (f *FileStore) Close() error { return nil }

var _ Store = (*FileStore)(nil)
