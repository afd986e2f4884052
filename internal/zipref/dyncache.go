package zipref

import (
	"sync/atomic"
)

// DynamicCache：动态缓存包装器
// 背景：通过 atomic.Value 提供无锁读写切换（如导入完成后从空态切到数据集缓存，
// 或修正表变更后重建链），保障查询路径不阻塞
// 约束：内部存储需实现 Lookup(string)；未设置前一律未命中
type DynamicCache struct {
	v atomic.Value
}

type boxed struct{ c lookupable }

// Lookup：原子读取当前缓存实现，未设置时返回未命中
func (d *DynamicCache) Lookup(zip string) (Location, bool) {
	x := d.v.Load()
	if x == nil {
		return Location{}, false
	}
	b := x.(boxed)
	if b.c == nil {
		return Location{}, false
	}
	return b.c.Lookup(zip)
}

// Set：切换当前缓存实现，对后续查找立即生效
func (d *DynamicCache) Set(c lookupable) { d.v.Store(boxed{c: c}) }

// Ready：是否已装载可用实现
func (d *DynamicCache) Ready() bool {
	x := d.v.Load()
	if x == nil {
		return false
	}
	return x.(boxed).c != nil
}
