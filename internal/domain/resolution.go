package domain

// Resolution 是一次“花名 -> 图片”解析的结果。
//
// 未命中不是错误：ImageURL/PageURL/Source 均为空即可；只有网络层失败才由调用方拿到 error。
type Resolution struct {
	ImageURL string
	PageURL  string
	Source   string

	// Attempts 记录解析链路上的每一步（用于 debug 日志解释“为什么落到了这一层”）。
	Attempts []Attempt
}

// Found 判断是否解析到了图片。
func (r Resolution) Found() bool {
	return r.ImageURL != "" && r.Source != ""
}

// Attempt.Stage 的取值。
const (
	StageImage     = "image"
	StageSearch    = "search"
	StagePageImage = "pageimage"
)

// Attempt 是解析链路中的一步。
type Attempt struct {
	Site  string // "openverse" / "zh.wikipedia" / "en.wikipedia"
	Stage string // "image" / "search" / "pageimage"
	Query string

	// Title 是搜索命中的标题，或 pageimages 返回的规范标题。
	Title string
	// Snippet 是搜索命中的摘要（已去除 HTML 标记）。
	Snippet string

	Hit bool
}
