package rules

import (
	"recycle-api/internal/zipref"
)

// Earth911 公共搜索入口：仅以邮编参数化，无需凭据；不在服务端抓取或解析
const earth911SearchURL = "https://search.earth911.com/?what=Recycling&where="

// GenerateLinks：链接兜底规则集
// 背景：所有层级均未命中时的保底出口，保证任何合法邮编都有可用答复；
// 产出可经显式缓存动作写入邮编层，生成本身无副作用
// 约束：loc 可为 nil（地理元数据缺失时仅以邮编措辞）
func GenerateLinks(zip string, loc *zipref.Location) RuleSet {
	place := "ZIP " + zip
	area := "your area"
	if loc != nil && loc.City != "" {
		place = NewCityKey(loc.City, loc.StateAbbr).String()
		area = titleCase(loc.City)
	}
	return RuleSet{
		"default": "No recycling rules are on file for " + place +
			". Use the search link below to find a drop-off site, or consult your local waste management authority.",
		"earth911_link": earth911SearchURL + zip,
		"company": "Search earth911.com for providers near " + zip +
			" and contact your local waste management.",
		"bottle": "Rinse bottles and place them in curbside recycling if " + area +
			" offers pickup; otherwise bring them to a local drop-off.",
		"cup": "Check whether disposable cups are compostable in " + area + "; otherwise trash.",
		"wine glass": "Broken glass typically goes to trash; for intact glassware check drop-off options in " +
			area + ".",
		"vase": "Glass and ceramic items may need special handling; check local rules for " + place + ".",
	}
}
