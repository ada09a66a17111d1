// Package store 提供 core.Store / core.KeyValueStore 的实现：
// 内存（测试/原型）、文件（单机 checkpoint）、Redis（生产）。
//
// 注意：此包只包含实现，接口定义在 core 包。
//
// 示例：
//
//	var ckpt core.Store = store.NewFileStore("/data/models")
//	var kv core.KeyValueStore = store.NewMemoryStore()
package store

import "github.com/rushteam/wdkit/core"

// 本包内实现共用的别名，避免到处写 core. 前缀。
type (
	Store         = core.Store
	KeyValueStore = core.KeyValueStore
)

var (
	ErrNotFound     = core.ErrStoreNotFound
	ErrNotSupported = core.ErrStoreNotSupported
)
