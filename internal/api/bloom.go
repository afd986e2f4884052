package api

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/redis/go-redis/v9"
)

// 访客去重位图参数：位图约 1M 位、4 次哈希，对日级访客量误判率可忽略
const (
	visitorBloomKey = "rules:visitors"
	visitorBloomM   = uint32(1) << 23
	visitorBloomK   = 4
	visitorBloomTTL = 24 * time.Hour
)

// 文档注释：访客首见判定（Redis 位图布隆）
// 背景：访客计数只统计去重后的来源，避免刷接口抬高统计；FNV64a 结合索引扰动生成 k 个位置。
// 返回：true 表示首次见到（已写入位图，计入访客）；false 表示已见过或无法判定。
// 约束：rc 为 nil 或交互出错时按“已见过”处理，宁可少计不误阻主流程。
func visitorFirstSeen(ctx context.Context, rc *redis.Client, visitor string) bool {
	if rc == nil || visitor == "" {
		return false
	}
	pos := make([]int64, visitorBloomK)
	for i := 0; i < visitorBloomK; i++ {
		h := fnv.New64a()
		h.Write([]byte{byte(i)})
		h.Write([]byte(visitor))
		pos[i] = int64(uint32(h.Sum64() % uint64(visitorBloomM)))
	}
	seen := true
	for _, p := range pos {
		b, err := rc.GetBit(ctx, visitorBloomKey, p).Result()
		if err != nil {
			return false
		}
		if b == 0 {
			seen = false
		}
	}
	if seen {
		return false
	}
	for _, p := range pos {
		_, _ = rc.SetBit(ctx, visitorBloomKey, p, 1).Result()
	}
	_ = rc.Expire(ctx, visitorBloomKey, visitorBloomTTL).Err()
	return true
}
