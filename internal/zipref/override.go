package zipref

import (
	"database/sql"
	"fmt"

	"recycle-api/internal/logger"
)

// OverrideCache：数据库修正表的内存快照
// 背景：运营可对个别邮编的归属做人工修正（如数据集滞后于行政区划变更）；
// 表很小，整表读入内存，变更后由上层重建并热替换
type OverrideCache struct {
	m map[uint32]Location
}

// NewOverrideCache：从 _zip_overrides 构建快照
func NewOverrideCache(db *sql.DB) (*OverrideCache, error) {
	rows, err := db.Query("SELECT zip_int, city, county, state_abbr FROM _zip_overrides")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	c := &OverrideCache{m: make(map[uint32]Location)}
	for rows.Next() {
		var v int64
		var city, county, abbr string
		if err := rows.Scan(&v, &city, &county, &abbr); err != nil {
			return nil, err
		}
		c.m[uint32(v)] = Location{
			Zip:       fmt.Sprintf("%05d", v),
			City:      city,
			County:    county,
			State:     StateName(abbr),
			StateAbbr: abbr,
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	logger.L().Debug("zipref_overrides_loaded", "count", len(c.m))
	return c, nil
}

func (c *OverrideCache) Lookup(zip string) (Location, bool) {
	v, err := ZipToInt(zip)
	if err != nil {
		return Location{}, false
	}
	l, ok := c.m[v]
	return l, ok
}

// Count：修正条目数
func (c *OverrideCache) Count() int { return len(c.m) }
