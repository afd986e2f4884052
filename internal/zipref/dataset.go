package zipref

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"recycle-api/internal/logger"
)

// Record：数据集单行（导入与测试构造共用）
type Record struct {
	Zip       string
	City      string
	County    string
	StateAbbr string
}

type locRow struct {
	city      string
	county    string
	stateAbbr string
}

type rec struct {
	key   uint32
	locID int32
}

// DatasetCache：内存压缩邮编缓存
// 背景：按邮编首位数字分片构建轻量索引，分片内按整数键有序以支持二分查找；
// 地点行去重后以下标引用，城市/县在数据集中大量重复
// 约束：仅 5 位数字键；构建后只读，热替换经由 DynamicCache
type DatasetCache struct {
	idx  [10][]rec
	locs []locRow
}

// NewDatasetCache：从本地预下载 CSV 构建缓存
// 背景：数据集为只读参考数据（zip,city,county,state_abbr 列，带表头）；
// 启动时一次性读入，不在查询路径触碰磁盘
func NewDatasetCache(path string) (*DatasetCache, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	var rows []Record
	first := true
	for {
		fields, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(fields) < 4 {
			continue
		}
		if first {
			first = false
			if strings.EqualFold(strings.TrimSpace(fields[0]), "zip") {
				continue
			}
		}
		rows = append(rows, Record{
			Zip:       strings.TrimSpace(fields[0]),
			City:      strings.TrimSpace(fields[1]),
			County:    strings.TrimSpace(fields[2]),
			StateAbbr: strings.ToUpper(strings.TrimSpace(fields[3])),
		})
	}
	c := buildDataset(rows)
	logger.L().Info("zipref_dataset_ready", "path", path, "zips", c.Count())
	return c, nil
}

// NewDatasetFromRecords：从内存记录构建缓存，用于测试与手工注入场景
func NewDatasetFromRecords(rows []Record) *DatasetCache {
	return buildDataset(rows)
}

func buildDataset(rows []Record) *DatasetCache {
	c := &DatasetCache{}
	seen := make(map[locRow]int32)
	for _, row := range rows {
		v, err := ZipToInt(row.Zip)
		if err != nil {
			continue
		}
		lr := locRow{city: row.City, county: row.County, stateAbbr: row.StateAbbr}
		id, ok := seen[lr]
		if !ok {
			c.locs = append(c.locs, lr)
			id = int32(len(c.locs))
			seen[lr] = id
		}
		d := int(v / 10000)
		c.idx[d] = append(c.idx[d], rec{key: v, locID: id})
	}
	for i := 0; i < 10; i++ {
		sort.Slice(c.idx[i], func(p, q int) bool { return c.idx[i][p].key < c.idx[i][q].key })
	}
	return c
}

// Lookup：邮编查找
// 背景：首位数字选分片，分片内二分；命中经 locID 取回地点行
func (c *DatasetCache) Lookup(zip string) (Location, bool) {
	var zero Location
	v, err := ZipToInt(zip)
	if err != nil {
		return zero, false
	}
	arr := c.idx[int(v/10000)]
	i := sort.Search(len(arr), func(i int) bool { return arr[i].key >= v })
	if i >= len(arr) || arr[i].key != v {
		return zero, false
	}
	lid := arr[i].locID
	if lid < 1 || int(lid) > len(c.locs) {
		return zero, false
	}
	lr := c.locs[lid-1]
	return Location{
		Zip:       fmt.Sprintf("%05d", v),
		City:      lr.city,
		County:    lr.county,
		State:     StateName(lr.stateAbbr),
		StateAbbr: lr.stateAbbr,
	}, true
}

// Count：缓存中的邮编条目数
func (c *DatasetCache) Count() int {
	n := 0
	for i := 0; i < 10; i++ {
		n += len(c.idx[i])
	}
	return n
}
