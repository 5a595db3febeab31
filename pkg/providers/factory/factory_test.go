package factory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerdneilsfield/go-github-chinese/pkg/providers"
)

func TestBuildRegistersPresets(t *testing.T) {
	f := New()
	require.NoError(t, f.Build(nil))
	assert.Equal(t, []string{"deeplx", "iflyrec"}, f.Registry().List())

	p, err := f.Registry().Get("iflyrec")
	require.NoError(t, err)
	assert.Equal(t, "讯飞听见", p.Attribution().Name)
}

func TestBuildWithConfiguredEngines(t *testing.T) {
	f := New()
	require.NoError(t, f.Build(map[string]EngineConfig{
		"deeplx": {Endpoint: "http://deeplx.internal/translate", Name: "内部 DeepLX"},
		"gpt":    {Type: TypeOpenAI, Model: "gpt-4o", APIKey: "sk"},
		"local":  {Type: TypeOllama},
		"mine": {
			Preset:       "",
			Endpoint:     "https://translate.example/api",
			Method:       "GET",
			ResponsePath: "result.text",
		},
	}))
	assert.Equal(t, []string{"deeplx", "gpt", "iflyrec", "local", "mine"}, f.Registry().List())

	p, err := f.Registry().Get("deeplx")
	require.NoError(t, err)
	assert.Equal(t, "内部 DeepLX", p.Attribution().Name)

	p, err = f.Registry().Get("gpt")
	require.NoError(t, err)
	assert.Equal(t, "openai", p.GetName())
	assert.Equal(t, "OpenAI gpt-4o", p.Attribution().Name)

	p, err = f.Registry().Get("local")
	require.NoError(t, err)
	assert.Equal(t, "ollama", p.GetName())

	p, err = f.Registry().Get("mine")
	require.NoError(t, err)
	assert.Equal(t, "mine", p.GetName())
}

func TestCreateProviderErrors(t *testing.T) {
	f := New()
	_, err := f.CreateProvider("x", EngineConfig{Type: "carrier-pigeon"})
	assert.Error(t, err)

	_, err = f.CreateProvider("x", EngineConfig{Preset: "nope"})
	assert.Error(t, err)

	// 自定义 httpjson 引擎必须提供地址与响应路径
	_, err = f.CreateProvider("x", EngineConfig{})
	assert.Error(t, err)
}

func TestRegistryLookups(t *testing.T) {
	f := New()
	require.NoError(t, f.Build(nil))

	_, err := f.Registry().Get("nope")
	assert.ErrorIs(t, err, providers.ErrUnknownEngine)

	attrs := f.Registry().Attributions()
	assert.Equal(t, "讯飞听见", attrs["iflyrec"].Name)
	assert.Len(t, attrs, 2)

	p, err := f.Registry().Get("deeplx")
	require.NoError(t, err)
	assert.Error(t, f.Registry().Register("deeplx", p))
	assert.Error(t, f.Registry().Register("", p))
}
