package api

import "recycle-api/internal/rules"

// 文档注释：对外序列化模型
// 背景：仅包含必要字段，避免泄露内部差异；便于缓存与统计一致化处理。
// 约束：字段稳定；新增字段需评估兼容性与前端依赖。
type locationPayload struct {
	Zip       string `json:"zip"`
	City      string `json:"city"`
	County    string `json:"county"`
	State     string `json:"state"`
	StateAbbr string `json:"state_abbr"`
}

type rulesResult struct {
	Zip        string           `json:"zip"`
	Location   *locationPayload `json:"location,omitempty"`
	Rules      rules.RuleSet    `json:"rules"`
	Provenance string           `json:"provenance"`
}

type errorPayload struct {
	Error string `json:"error"`
}
