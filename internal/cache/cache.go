package cache

import (
	"sync"
	"time"
)

type entry struct {
	value     interface{}
	expiresAt time.Time // 零值表示永不过期
}

// Cache 带 TTL 的有界缓存
// 用于月份标签 / 月度配置等读多写少的查询结果，避免同一批变更内反复查库
type Cache struct {
	mu         sync.Mutex
	maxEntries int
	items      map[string]entry
}

// New 创建缓存，maxEntries <= 0 时使用缺省容量
func New(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = 256
	}
	return &Cache{
		maxEntries: maxEntries,
		items:      make(map[string]entry),
	}
}

// Get 读取缓存项
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		return nil, false
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		delete(c.items, key)
		return nil, false
	}
	return e.value, true
}

// Put 写入缓存项，ttl <= 0 表示永不过期
func (c *Cache) Put(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.purgeExpiredLocked(time.Now())

	if len(c.items) >= c.maxEntries {
		if _, exists := c.items[key]; !exists {
			c.evictOneLocked()
		}
	}

	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	c.items[key] = e
}

// Delete 删除缓存项
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Len 当前缓存项数量
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Cache) purgeExpiredLocked(now time.Time) {
	for k, e := range c.items {
		if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
			delete(c.items, k)
		}
	}
}

// evictOneLocked 容量满时淘汰最先过期的一项（均不过期时任意淘汰一项）
func (c *Cache) evictOneLocked() {
	var victim string
	var victimExpiry time.Time
	first := true
	for k, e := range c.items {
		if first {
			victim = k
			victimExpiry = e.expiresAt
			first = false
			continue
		}
		if victimExpiry.IsZero() && !e.expiresAt.IsZero() {
			victim = k
			victimExpiry = e.expiresAt
			continue
		}
		if !e.expiresAt.IsZero() && e.expiresAt.Before(victimExpiry) {
			victim = k
			victimExpiry = e.expiresAt
		}
	}
	if !first {
		delete(c.items, victim)
	}
}
