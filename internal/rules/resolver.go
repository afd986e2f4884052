package rules

import (
	"strings"

	"recycle-api/internal/zipref"
)

// Resolve：分层回退解析，严格有序，先命中先返回
// 顺序：精确邮编 → 城市 → 州 → 三位前缀区域（SCF）→ 非空全国默认；全部落空返回 false
// 约束：地理解析失败（loc 为 nil）时跳过城市/州两层直接降级，链条退化而非报错；
// 命中层的规则集整体返回，层间不做字段合并
func Resolve(d *Document, zip string, loc *zipref.Location) (RuleSet, string, bool) {
	if rs, ok := d.Zips[zip]; ok {
		return rs, "ZIP " + zip, true
	}
	if loc != nil {
		if loc.City != "" && loc.StateAbbr != "" {
			ck := NewCityKey(loc.City, loc.StateAbbr).String()
			if rs, ok := d.Cities[ck]; ok {
				return rs, ck, true
			}
		}
		if loc.StateAbbr != "" {
			abbr := strings.ToUpper(loc.StateAbbr)
			if rs, ok := d.States[abbr]; ok {
				return rs, abbr + " (state-level)", true
			}
		}
	}
	if len(zip) >= 3 {
		if rs, ok := d.Zips[zip[:3]]; ok {
			return rs, "region " + zip[:3] + "xx", true
		}
	}
	if len(d.NationalDefault) > 0 {
		return d.NationalDefault, "national default", true
	}
	return nil, "", false
}
