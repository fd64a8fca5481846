package flowerlist

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/John-Robertt/flowerkit/internal/domain"
)

// 分组标题形如 "## 第 1 组：常见（20）"；括号内的数量只做格式匹配，不参与校验。
var (
	headerPrefix = "## 第 "
	headerRE     = regexp.MustCompile(`^## 第\s+(\d+)\s+组：(.+?)（\d+）`)
	itemRE       = regexp.MustCompile(`^\d+\.\s+(.*)`)
)

// Result 是一次解析的产物。
type Result struct {
	Records []domain.FlowerRecord
	// Duplicates 是重复出现的花名（保留首次出现的那条记录，后续重复被丢弃）。
	Duplicates []string
}

// ParseFile 读取并解析花名清单文件。
func ParseFile(path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, err
	}
	defer f.Close()

	res, err := Parse(f)
	if err != nil {
		return Result{}, fmt.Errorf("解析 %s 失败：%w", path, err)
	}
	return res, nil
}

// Parse 按行扫描 Markdown 清单：分组标题决定 (group, tier)，编号列表项产生花名记录。
//
// 约束：
// - 标题行即使格式不完整也不会被当作列表项
// - 花名做 TrimSpace + NFC 规范化，保证后续与元信息按 name 对齐时不受编码形态影响
// - 在第一个分组标题之前出现的列表项归入 group=0、tier=""
func Parse(r io.Reader) (Result, error) {
	var (
		group int
		tier  string
		res   = Result{Records: make([]domain.FlowerRecord, 0, 128)}
		seen  = map[string]struct{}{}
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, headerPrefix) {
			if m := headerRE.FindStringSubmatch(line); m != nil {
				n, err := strconv.Atoi(m[1])
				if err != nil {
					return Result{}, fmt.Errorf("分组编号无效：%q", m[1])
				}
				group = n
				tier = m[2]
			}
			continue
		}

		m := itemRE.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name := NormalizeName(m[1])
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			res.Duplicates = append(res.Duplicates, name)
			continue
		}
		seen[name] = struct{}{}
		res.Records = append(res.Records, domain.FlowerRecord{Name: name, Group: group, Tier: tier})
	}
	if err := sc.Err(); err != nil {
		return Result{}, err
	}
	return res, nil
}

// NormalizeName 是花名比较前的统一规范化（TrimSpace + NFC）。
func NormalizeName(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
