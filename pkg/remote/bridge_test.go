package remote

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nerdneilsfield/go-github-chinese/pkg/providers"
	"github.com/nerdneilsfield/go-github-chinese/pkg/providers/httpjson"
)

type stubProvider struct {
	text string
	err  error
	got  *providers.Request
}

func (s *stubProvider) Translate(_ context.Context, req *providers.Request) (*providers.Response, error) {
	s.got = req
	if s.err != nil {
		return nil, s.err
	}
	return &providers.Response{Text: s.text}, nil
}

func (s *stubProvider) GetName() string { return "stub" }

func (s *stubProvider) Attribution() providers.Attribution {
	return providers.Attribution{Name: "Stub", URL: "https://stub.example"}
}

type recorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *recorder) RemoteRequest(engine, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, engine+":"+outcome)
}

func TestTranslateBlock(t *testing.T) {
	tests := []struct {
		name    string
		stub    *stubProvider
		want    string
		outcome string
	}{
		{"ok", &stubProvider{text: "一个库"}, "一个库", "stub:ok"},
		{"empty result", &stubProvider{text: ""}, "翻译失败", "stub:decode"},
		{"decode", &stubProvider{err: httpjson.ErrDecode}, "翻译失败", "stub:decode"},
		{"path", &stubProvider{err: providers.WrapError("x", "extract", httpjson.ErrPathNotFound)}, "翻译失败", "stub:decode"},
		{"timeout", &stubProvider{err: context.DeadlineExceeded}, "翻译失败（timeout）", "stub:timeout"},
		{"network", &stubProvider{err: &net.OpError{Op: "dial", Err: errors.New("connection refused")}}, "翻译失败（network）", "stub:network"},
		{"other", &stubProvider{err: errors.New("boom")}, "翻译失败（error）", "stub:error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			b := New(tt.stub, WithObserver(rec), WithTargetLanguage("zh-CN"))
			assert.Equal(t, tt.want, b.TranslateBlock(context.Background(), "A library"))
			assert.Equal(t, []string{tt.outcome}, rec.outcomes)
			assert.Equal(t, "A library", tt.stub.got.Text)
			assert.Equal(t, "zh-CN", tt.stub.got.TargetLanguage)
		})
	}
}

func TestAttribution(t *testing.T) {
	b := New(&stubProvider{})
	assert.Equal(t, "stub", b.Engine())
	assert.Equal(t, "Stub", b.Attribution().Name)
}
