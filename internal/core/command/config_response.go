package command

import "encoding/json"

// ConfigResponse 资源配置，公开与加密两组键值
// 构造时复制，之后不再修改；只有在需要合并视图时才调用 Merged
type ConfigResponse struct {
	public  map[string]string
	secured map[string]string
}

// NewConfigResponse 复制传入的两个 map
func NewConfigResponse(public, secured map[string]string) *ConfigResponse {
	return &ConfigResponse{
		public:  copyMap(public),
		secured: copyMap(secured),
	}
}

// Public 公开配置副本
func (c *ConfigResponse) Public() map[string]string {
	if c == nil {
		return map[string]string{}
	}
	return copyMap(c.public)
}

// Secured 加密配置副本 (此处为明文)
func (c *ConfigResponse) Secured() map[string]string {
	if c == nil {
		return map[string]string{}
	}
	return copyMap(c.secured)
}

// Merged 合并视图，同名键以加密配置为准
func (c *ConfigResponse) Merged() map[string]string {
	out := c.Public()
	if c == nil {
		return out
	}
	for k, v := range c.secured {
		out[k] = v
	}
	return out
}

// Get 按合并语义读取单个键
func (c *ConfigResponse) Get(key string) (string, bool) {
	if c == nil {
		return "", false
	}
	if v, ok := c.secured[key]; ok {
		return v, true
	}
	v, ok := c.public[key]
	return v, ok
}

// Len 键总数 (去重后)
func (c *ConfigResponse) Len() int {
	return len(c.Merged())
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

type configResponseJSON struct {
	Public  map[string]string `json:"public"`
	Secured map[string]string `json:"secured"`
}

// MarshalJSON 运维接口使用的明文形式；线上信封中的加密值由翻译器单独处理
func (c *ConfigResponse) MarshalJSON() ([]byte, error) {
	return json.Marshal(configResponseJSON{Public: c.Public(), Secured: c.Secured()})
}

// UnmarshalJSON 只在构造阶段使用
func (c *ConfigResponse) UnmarshalJSON(data []byte) error {
	var v configResponseJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*c = *NewConfigResponse(v.Public, v.Secured)
	return nil
}
