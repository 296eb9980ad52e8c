// Package cache holds small in-process caches shared by the services.
package cache

// Cache is a keyed store with eviction.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
	Len() int
}

var _ Cache[int] = (*LRU[int])(nil)
