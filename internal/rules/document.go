// 包 rules：回收指引规则文档（分层规则、存取、回退解析与链接兜底）
package rules

import (
	"encoding/json"
	"errors"
	"strings"
)

// RuleSet：单个地理实体的分类指引，键为物品/类别（如 bottle、company），值为指引文本
type RuleSet map[string]string

// Clone：浅拷贝条目，隔离调用方后续修改
func (rs RuleSet) Clone() RuleSet {
	if rs == nil {
		return nil
	}
	out := make(RuleSet, len(rs))
	for k, v := range rs {
		out[k] = v
	}
	return out
}

// Document：持久化的分层规则文档
// 约束：四个层级键始终存在（空映射合法）；national_default 为空对象时解析走链接兜底
type Document struct {
	Version         int                `json:"version"`
	Zips            map[string]RuleSet `json:"zips"`
	Cities          map[string]RuleSet `json:"cities"`
	States          map[string]RuleSet `json:"states"`
	NationalDefault RuleSet            `json:"national_default"`
}

// 当前落盘格式版本；早期扁平格式（邮编→规则集，无包装键）在装载时一次性迁移
const documentVersion = 2

func newEmptyDocument() *Document {
	return &Document{
		Version:         documentVersion,
		Zips:            map[string]RuleSet{},
		Cities:          map[string]RuleSet{},
		States:          map[string]RuleSet{},
		NationalDefault: RuleSet{},
	}
}

var errMalformed = errors.New("rules: malformed document")

// decodeDocument：解析落盘字节并识别格式
// 背景：旧版文档为扁平“邮编→规则集”形状，无显式版本号；以层级键存在性嗅探格式，
// 层级键均为非 5 位数字的固定名，不会与邮编键冲突
// 返回：migrated 表示输入为旧格式且已就地升级，下一次保存即按新形状落盘
func decodeDocument(data []byte) (doc *Document, migrated bool, err error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, false, errMalformed
	}
	_, z := raw["zips"]
	_, c := raw["cities"]
	_, s := raw["states"]
	_, n := raw["national_default"]
	if z || c || s || n {
		d := newEmptyDocument()
		if err := json.Unmarshal(data, d); err != nil {
			return nil, false, errMalformed
		}
		if d.Zips == nil {
			d.Zips = map[string]RuleSet{}
		}
		if d.Cities == nil {
			d.Cities = map[string]RuleSet{}
		}
		if d.States == nil {
			d.States = map[string]RuleSet{}
		}
		if d.NationalDefault == nil {
			d.NationalDefault = RuleSet{}
		}
		d.Version = documentVersion
		return d, false, nil
	}
	// 旧版扁平格式：顶层键即邮编
	d := newEmptyDocument()
	for k, v := range raw {
		if k == "version" {
			continue
		}
		var rs RuleSet
		if err := json.Unmarshal(v, &rs); err != nil {
			return nil, false, errMalformed
		}
		d.Zips[k] = rs
	}
	return d, len(d.Zips) > 0, nil
}

// CityKey：城市层级的结构化键
// 背景：字符串拼接键易因大小写/空白差异静默落空；统一经 Normalize 生成规范形 "City, ST"
type CityKey struct {
	City      string
	StateAbbr string
}

// NewCityKey：由城市名与州缩写构造并规范化
func NewCityKey(city, abbr string) CityKey {
	return CityKey{
		City:      titleCase(city),
		StateAbbr: strings.ToUpper(strings.TrimSpace(abbr)),
	}
}

// ParseCityKey：解析 "City, ST" 文本键（运营输入容错：大小写与空白不敏感）
func ParseCityKey(raw string) (CityKey, bool) {
	i := strings.LastIndex(raw, ",")
	if i < 0 {
		return CityKey{}, false
	}
	k := NewCityKey(raw[:i], raw[i+1:])
	if k.City == "" || len(k.StateAbbr) != 2 {
		return CityKey{}, false
	}
	return k, true
}

// String：规范形 "City, ST"，作为 cities 层的映射键
func (k CityKey) String() string { return k.City + ", " + k.StateAbbr }

// titleCase：按词首字母大写、余部小写规范城市名，并压缩多余空白
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		if len(r) > 0 {
			r[0] = []rune(strings.ToUpper(string(r[0])))[0]
		}
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
