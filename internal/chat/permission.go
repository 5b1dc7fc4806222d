package chat

import (
	"encoding/json"

	"github.com/hongjun500/chat-sync/internal/protocol"
)

// PermissionEntry 聚合后的单条权限要求及其生效配置
type PermissionEntry struct {
	Requirement protocol.PermissionRequirement
	Config      json.RawMessage
}

// PermissionGroup 按分类聚合的权限要求
type PermissionGroup struct {
	Category string
	Entries  []PermissionEntry
}

// PromptAggregator 将离散的 (要求, 配置) 元组按分类聚合，
// 供 UI 对一个批次只弹一次提示
type PromptAggregator struct {
	defaults func(category string) json.RawMessage
}

// NewPromptAggregator 创建聚合器；defaults 提供各分类的默认配置，可为 nil
func NewPromptAggregator(defaults func(category string) json.RawMessage) *PromptAggregator {
	return &PromptAggregator{defaults: defaults}
}

// Aggregate 按分类分组；配置为 null 的元组代入分类默认值。
// 分组结果为空时返回 nil，调用方静默丢弃（零条权限的提示对用户无意义）。
func (a *PromptAggregator) Aggregate(p protocol.PermissionPrompt) []PermissionGroup {
	index := make(map[string]int)
	groups := make([]PermissionGroup, 0, len(p.Requirements))
	for _, tuple := range p.Requirements {
		category := tuple.Requirement.Category
		if category == "" {
			continue
		}
		cfg := tuple.Config
		if cfg == nil && a.defaults != nil {
			cfg = a.defaults(category)
		}
		entry := PermissionEntry{Requirement: tuple.Requirement, Config: cfg}
		if i, ok := index[category]; ok {
			groups[i].Entries = append(groups[i].Entries, entry)
			continue
		}
		index[category] = len(groups)
		groups = append(groups, PermissionGroup{Category: category, Entries: []PermissionEntry{entry}})
	}
	if len(groups) == 0 {
		return nil
	}
	return groups
}
