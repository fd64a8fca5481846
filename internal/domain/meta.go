package domain

import (
	"encoding/json"
	"fmt"
)

// MetaRecord 是 flower_meta.json 中人工维护的一条元信息（按 name 对齐 flowers.json）。
//
// 只由校验器读取；抓图流程从不构造它。
type MetaRecord struct {
	Name           string   `json:"name"`
	Alias          []string `json:"alias"`
	Meaning        string   `json:"meaning"`
	Season         string   `json:"season"`
	Pinyin         string   `json:"pinyin"`
	PinyinInitials string   `json:"pinyinInitials"`
}

// UnmarshalJSON 兼容 alias 写成单个字符串的历史数据；其余字段为 null 时视为空串。
func (m *MetaRecord) UnmarshalJSON(b []byte) error {
	var raw struct {
		Name           *string         `json:"name"`
		Alias          json.RawMessage `json:"alias"`
		Meaning        *string         `json:"meaning"`
		Season         *string         `json:"season"`
		Pinyin         *string         `json:"pinyin"`
		PinyinInitials *string         `json:"pinyinInitials"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw.Name == nil || *raw.Name == "" {
		return fmt.Errorf("元信息条目缺少 name：%s", truncateJSON(b))
	}

	alias, err := decodeAlias(raw.Alias)
	if err != nil {
		return fmt.Errorf("%s 的 alias 无效：%w", *raw.Name, err)
	}

	*m = MetaRecord{
		Name:           *raw.Name,
		Alias:          alias,
		Meaning:        deref(raw.Meaning),
		Season:         deref(raw.Season),
		Pinyin:         deref(raw.Pinyin),
		PinyinInitials: deref(raw.PinyinInitials),
	}
	return nil
}

func decodeAlias(b json.RawMessage) ([]string, error) {
	if len(b) == 0 || string(b) == "null" {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		return list, nil
	}
	var one string
	if err := json.Unmarshal(b, &one); err != nil {
		return nil, fmt.Errorf("期望字符串数组或字符串")
	}
	if one == "" {
		return nil, nil
	}
	return []string{one}, nil
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func truncateJSON(b []byte) string {
	const max = 80
	r := []rune(string(b))
	if len(r) <= max {
		return string(r)
	}
	return string(r[:max]) + "..."
}
