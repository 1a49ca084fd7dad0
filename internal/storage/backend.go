package storage

import (
	"context"
	"errors"
)

// ErrNotFound 表示键不存在。
var ErrNotFound = errors.New("key not found")

// Backend 是一个最小化的键值存储：整值读写，后写覆盖先写。
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
