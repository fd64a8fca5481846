package validate

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/John-Robertt/flowerkit/internal/dataset"
	"github.com/John-Robertt/flowerkit/internal/domain"
)

// SeasonRunes 是 season 允许出现的字符。
const SeasonRunes = "春夏秋冬"

// Check 对比 flowers.json 与 flower_meta.json，返回全部问题（按规则顺序，不短路）。
//
// 规则顺序：
// 1) 条目数量
// 2) 元信息内重复花名
// 3) 缺少元信息的花名（按 flowers 顺序）
// 4) 多余的元信息（按 meta 顺序）
// 5) 每条元信息的必填字段
// 6) season 只能由 春夏秋冬 组成
func Check(flowers []domain.FlowerRecord, meta []domain.MetaRecord) []string {
	var errs []string

	if len(flowers) != len(meta) {
		errs = append(errs, fmt.Sprintf("数量不一致：flowers=%d meta=%d", len(flowers), len(meta)))
	}

	flowerNames := make([]string, 0, len(flowers))
	inFlowers := make(map[string]bool, len(flowers))
	for _, f := range flowers {
		n := normName(f.Name)
		flowerNames = append(flowerNames, n)
		inFlowers[n] = true
	}

	metaNames := make([]string, 0, len(meta))
	seen := make(map[string]int, len(meta))
	for _, m := range meta {
		n := normName(m.Name)
		metaNames = append(metaNames, n)
		seen[n]++
	}

	var dups []string
	for n, c := range seen {
		if c > 1 {
			dups = append(dups, n)
		}
	}
	if len(dups) > 0 {
		sort.Strings(dups)
		errs = append(errs, "元信息存在重复花名："+strings.Join(dups, ", "))
	}

	var missing []string
	for _, n := range flowerNames {
		if seen[n] == 0 {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		errs = append(errs, "缺少元信息条目："+strings.Join(missing, ", "))
	}

	var extra []string
	for _, n := range metaNames {
		if !inFlowers[n] {
			extra = append(extra, n)
		}
	}
	if len(extra) > 0 {
		errs = append(errs, "存在多余元信息条目："+strings.Join(extra, ", "))
	}

	for _, m := range meta {
		errs = append(errs, checkRecord(m)...)
	}
	return errs
}

func checkRecord(m domain.MetaRecord) []string {
	var errs []string
	fields := []struct {
		empty bool
		label string
	}{
		{len(m.Alias) == 0, "缺少别名 alias"},
		{m.Meaning == "", "缺少花语 meaning"},
		{m.Season == "", "缺少季节 season"},
		{m.Pinyin == "", "缺少拼音 pinyin"},
		{m.PinyinInitials == "", "缺少拼音首字母 pinyinInitials"},
	}
	for _, f := range fields {
		if f.empty {
			errs = append(errs, m.Name+" "+f.label)
		}
	}

	if m.Season != "" && !ValidSeason(m.Season) {
		errs = append(errs, fmt.Sprintf("%s season 格式不符合：%s", m.Name, m.Season))
	}
	return errs
}

// ValidSeason 判断 s 的每个字符是否都属于 SeasonRunes（空串视为合法，由必填规则负责）。
func ValidSeason(s string) bool {
	for _, r := range s {
		if !strings.ContainsRune(SeasonRunes, r) {
			return false
		}
	}
	return true
}

func normName(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// Run 读取两个文件并把结果写到 w；返回 ok=false 表示存在校验问题。
// 文件读取/解析失败时返回 error（不输出校验结果）。
func Run(flowersPath, metaPath string, w io.Writer) (bool, error) {
	flowers, err := dataset.LoadFlowers(flowersPath)
	if err != nil {
		return false, fmt.Errorf("读取 %s 失败：%w", flowersPath, err)
	}
	meta, err := dataset.LoadMeta(metaPath)
	if err != nil {
		return false, fmt.Errorf("读取 %s 失败：%w", metaPath, err)
	}

	errs := Check(flowers, meta)
	Report(w, errs)
	return len(errs) == 0, nil
}

// Report 按固定格式输出校验结果。
func Report(w io.Writer, errs []string) {
	if len(errs) == 0 {
		_, _ = fmt.Fprintln(w, "花名元信息校验通过。")
		return
	}
	_, _ = fmt.Fprintln(w, "校验失败：")
	for _, e := range errs {
		_, _ = fmt.Fprintf(w, "- %s\n", e)
	}
}
