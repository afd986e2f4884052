// 包 zipref：美国邮编（ZIP）地理参考层，提供存在性校验与城市/县/州解析
// 背景：规则回退链依赖邮编到行政区的映射；数据来自本地预下载数据集与数据库修正表
package zipref

import (
	"errors"
)

// Location：一次解析命中的地理信息
type Location struct {
	Zip       string
	City      string
	County    string
	State     string
	StateAbbr string
}

// ErrNotFound：邮编真实存在但地理元数据缺失或不可用
// 约束：与“非法邮编”区分；调用方据此降级回退链而非直接报错
var ErrNotFound = errors.New("zipref: location not found")

type lookupable interface {
	Lookup(zip string) (Location, bool)
}

// ZipToInt：将 5 位邮编文本转换为无符号整数，非法返回错误
// 背景：缓存索引以整数键排序与二分；同时承担语法校验（恰好 5 位数字）
func ZipToInt(zip string) (uint32, error) {
	if len(zip) != 5 {
		return 0, errors.New("bad zip")
	}
	var v uint32
	for i := 0; i < 5; i++ {
		c := zip[i]
		if c < '0' || c > '9' {
			return 0, errors.New("bad zip")
		}
		v = v*10 + uint32(c-'0')
	}
	return v, nil
}

// Resolver：对外解析入口，组合任意 lookupable 数据源（链式/动态缓存）
type Resolver struct {
	src lookupable
}

func NewResolver(src lookupable) *Resolver { return &Resolver{src: src} }

// Validate：邮编有效性校验
// 背景：形如 5 位数字但不存在于参考数据（如 00000/99999）必须拒绝
func (r *Resolver) Validate(zip string) bool {
	if _, err := ZipToInt(zip); err != nil {
		return false
	}
	_, ok := r.src.Lookup(zip)
	return ok
}

// Resolve：解析邮编到行政区信息
// 返回：元数据不完整（城市为空）或未命中时返回 ErrNotFound；调用方按回退链降级处理
func (r *Resolver) Resolve(zip string) (Location, error) {
	var zero Location
	if _, err := ZipToInt(zip); err != nil {
		return zero, ErrNotFound
	}
	l, ok := r.src.Lookup(zip)
	if !ok || l.City == "" || l.StateAbbr == "" {
		return zero, ErrNotFound
	}
	l.Zip = zip
	if l.State == "" {
		l.State = StateName(l.StateAbbr)
	}
	return l, nil
}
