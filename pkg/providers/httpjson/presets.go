package httpjson

import (
	"net/http"

	"github.com/nerdneilsfield/go-github-chinese/pkg/providers"
	"github.com/nerdneilsfield/go-github-chinese/pkg/providers/retry"
)

// DefaultEngine 默认引擎
const DefaultEngine = "iflyrec"

// Presets 内置引擎配置
func Presets() map[string]Config {
	return map[string]Config{
		"iflyrec": {
			BaseConfig: providers.BaseConfig{
				APIEndpoint: "https://fanyi.iflyrec.com/TJHZTranslationService/v2/textAutoTranslation",
				Timeout:     providers.DefaultTimeout,
				Headers: map[string]string{
					"Content-Type": "application/json",
					"Origin":       "https://fanyi.iflyrec.com",
				},
			},
			Name:         "讯飞听见",
			SiteURL:      "https://fanyi.iflyrec.com/text-translate",
			Method:       http.MethodPost,
			Template:     `{"from":2,"to":1,"type":1,"contents":[{"text":""}]}`,
			TextPath:     "contents.0.text",
			ResponsePath: "biz[0]?.sectionResult[0]?.dst",
			Retry:        retry.DefaultRetryConfig(),
		},
		"deeplx": {
			BaseConfig: providers.BaseConfig{
				APIEndpoint: "http://localhost:1188/translate",
				Timeout:     providers.DefaultTimeout,
				Headers:     map[string]string{"Content-Type": "application/json"},
			},
			Name:         "DeepLX",
			SiteURL:      "https://github.com/OwO-Network/DeepLX",
			Method:       http.MethodPost,
			Template:     `{"text":"","source_lang":"EN","target_lang":"ZH"}`,
			TextPath:     "text",
			ResponsePath: "data",
			Retry:        retry.DefaultRetryConfig(),
		},
	}
}

// Preset 返回指定名称的内置配置
func Preset(name string) (Config, bool) {
	c, ok := Presets()[name]
	return c, ok
}
