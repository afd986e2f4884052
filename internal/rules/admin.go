package rules

import (
	"errors"
	"strings"

	"recycle-api/internal/zipref"
)

// 层级名：与落盘文档的顶层键保持一致
const (
	TierZips     = "zips"
	TierCities   = "cities"
	TierStates   = "states"
	TierNational = "national_default"
)

var (
	// ErrInvalidZip：邮编键非法或不存在于参考数据
	ErrInvalidZip = errors.New("rules: invalid zip")
	// ErrUnknownTier：层级名不在四个已知层级内
	ErrUnknownTier = errors.New("rules: unknown tier")
	// ErrBadKey：键无法规范化（城市键格式错误、未知州缩写等）
	ErrBadKey = errors.New("rules: bad key")
)

// ZipChecker：邮编存在性校验口，由 zipref 解析器实现；为 nil 时仅做形状校验
type ZipChecker interface {
	Validate(zip string) bool
}

// Admin：规则文档的运营编辑面
// 背景：所有写入先做键校验与规范化（邮编校验、城市键规范形），再进入存储层同步落盘
type Admin struct {
	Store *Store
	Zips  ZipChecker
}

// zipShapeCheck：邮编层键的形状校验；5 位为精确邮编，3 位为 SCF 区域前缀
func zipShapeCheck(key string) (exact bool, err error) {
	if len(key) == 5 {
		if _, e := zipref.ZipToInt(key); e != nil {
			return false, ErrInvalidZip
		}
		return true, nil
	}
	if len(key) == 3 {
		for i := 0; i < 3; i++ {
			if key[i] < '0' || key[i] > '9' {
				return false, ErrInvalidZip
			}
		}
		return false, nil
	}
	return false, ErrInvalidZip
}

// normalizeKey：按层级规范化键；national_default 层无键
func (a *Admin) normalizeKey(tier, key string) (string, error) {
	switch tier {
	case TierZips:
		exact, err := zipShapeCheck(key)
		if err != nil {
			return "", err
		}
		if exact && a.Zips != nil && !a.Zips.Validate(key) {
			return "", ErrInvalidZip
		}
		return key, nil
	case TierCities:
		ck, ok := ParseCityKey(key)
		if !ok || !zipref.KnownState(ck.StateAbbr) {
			return "", ErrBadKey
		}
		return ck.String(), nil
	case TierStates:
		abbr := strings.ToUpper(strings.TrimSpace(key))
		if !zipref.KnownState(abbr) {
			return "", ErrBadKey
		}
		return abbr, nil
	case TierNational:
		return "", nil
	}
	return "", ErrUnknownTier
}

// Put：创建或整体替换一个条目；规则集以替换语义写入，避免读路径持有的映射被就地修改
func (a *Admin) Put(tier, key string, rs RuleSet) error {
	k, err := a.normalizeKey(tier, key)
	if err != nil {
		return err
	}
	cp := rs.Clone()
	if cp == nil {
		cp = RuleSet{}
	}
	return a.Store.Mutate(func(d *Document) {
		switch tier {
		case TierZips:
			d.Zips[k] = cp
		case TierCities:
			d.Cities[k] = cp
		case TierStates:
			d.States[k] = cp
		case TierNational:
			d.NationalDefault = cp
		}
	})
}

// Get：读取一个条目（规范化后的键）
func (a *Admin) Get(tier, key string) (RuleSet, bool, error) {
	k, err := a.normalizeKey(tier, key)
	if err != nil {
		return nil, false, err
	}
	a.Store.mu.RLock()
	defer a.Store.mu.RUnlock()
	d := a.Store.doc
	var rs RuleSet
	var ok bool
	switch tier {
	case TierZips:
		rs, ok = d.Zips[k]
	case TierCities:
		rs, ok = d.Cities[k]
	case TierStates:
		rs, ok = d.States[k]
	case TierNational:
		rs, ok = d.NationalDefault, true
	}
	return rs.Clone(), ok, nil
}

// Delete：删除一个条目；national_default 层重置为空映射（层级键本身必须始终存在）
func (a *Admin) Delete(tier, key string) error {
	k, err := a.normalizeKey(tier, key)
	if err != nil {
		return err
	}
	return a.Store.Mutate(func(d *Document) {
		switch tier {
		case TierZips:
			delete(d.Zips, k)
		case TierCities:
			delete(d.Cities, k)
		case TierStates:
			delete(d.States, k)
		case TierNational:
			d.NationalDefault = RuleSet{}
		}
	})
}
