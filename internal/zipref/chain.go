package zipref

// Chain：按优先级串联多个数据源，先命中先返回
// 背景：数据库修正表优先于预下载数据集，允许运营修正个别邮编的归属
type Chain struct {
	list []lookupable
}

func NewChain(list ...lookupable) *Chain {
	return &Chain{list: list}
}

func (c *Chain) Lookup(zip string) (Location, bool) {
	for _, s := range c.list {
		if s == nil {
			continue
		}
		if l, ok := s.Lookup(zip); ok {
			return l, true
		}
	}
	return Location{}, false
}
