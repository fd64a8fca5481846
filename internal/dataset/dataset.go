package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/John-Robertt/flowerkit/internal/domain"
	"github.com/John-Robertt/flowerkit/internal/infra/fsx"
)

// Encode 把记录序列化为 flowers.json 的内容。
//
// 规则：
// - 两空格缩进，字段顺序与 FlowerRecord 定义一致
// - UTF-8 原样输出：不做 \uXXXX 转义，也不转义 <>&（URL 中的 & 保持可读）
// - 空列表输出 []，而不是 null
func Encode(records []domain.FlowerRecord) ([]byte, error) {
	if records == nil {
		records = []domain.FlowerRecord{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFlowers 整体写入 flowers.json（临时文件 + rename，不做增量追加）。
func WriteFlowers(path string, records []domain.FlowerRecord) error {
	b, err := Encode(records)
	if err != nil {
		return fmt.Errorf("序列化 flowers 失败：%w", err)
	}
	return fsx.WriteFile(path, b)
}

// LoadFlowers 读取抓图流程产出的 flowers.json。
func LoadFlowers(path string) ([]domain.FlowerRecord, error) {
	var out []domain.FlowerRecord
	if err := loadArray(path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadMeta 读取人工维护的 flower_meta.json。
func LoadMeta(path string) ([]domain.MetaRecord, error) {
	var out []domain.MetaRecord
	if err := loadArray(path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func loadArray(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	b = bytes.TrimPrefix(b, []byte("\xef\xbb\xbf"))
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("解析 %s 失败：%w", path, err)
	}
	return nil
}
