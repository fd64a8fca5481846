package domain

// 来源标记（FlowerRecord.Source 的取值集合）。
const (
	SourceOpenverse   = "openverse"
	SourceZhWikipedia = "zh.wikipedia"
	SourceEnWikipedia = "en.wikipedia"
)

// FlowerRecord 是 flowers.json 中的一条记录。
//
// 生命周期：解析花名清单时创建（name/group/tier 固定），由解析图片的步骤修改一次，然后序列化。
// 字段顺序即 JSON 输出顺序，不要随意调整。
type FlowerRecord struct {
	Name     string  `json:"name"`
	Group    int     `json:"group"`
	Tier     string  `json:"tier"`
	ImageURL *string `json:"image_url"`
	PageURL  *string `json:"page_url"`
	Source   *string `json:"source"`
}

// HasImage 判断该记录是否已拿到图片。
func (r FlowerRecord) HasImage() bool {
	return r.ImageURL != nil && *r.ImageURL != ""
}

// Apply 把一次解析结果写入记录。
//
// 不变量：image_url 与 source 要么同时写入，要么同时为空；未命中时三个字段全部清空。
func (r *FlowerRecord) Apply(res Resolution) {
	if !res.Found() {
		r.Clear()
		return
	}
	r.ImageURL = strPtr(res.ImageURL)
	r.Source = strPtr(res.Source)
	r.PageURL = nil
	if res.PageURL != "" {
		r.PageURL = strPtr(res.PageURL)
	}
}

// Clear 清空三个补全字段（离线模式或网络失败时使用）。
func (r *FlowerRecord) Clear() {
	r.ImageURL = nil
	r.PageURL = nil
	r.Source = nil
}

func strPtr(s string) *string { return &s }
