package factory

import (
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/mikey/llm-call-screener/internal/adapters/bedrock"
	"github.com/mikey/llm-call-screener/internal/adapters/elevenlabs"
	"github.com/mikey/llm-call-screener/internal/adapters/gemini"
	"github.com/mikey/llm-call-screener/internal/adapters/notify"
	"github.com/mikey/llm-call-screener/internal/adapters/openai"
	"github.com/mikey/llm-call-screener/internal/adapters/repository"
	"github.com/mikey/llm-call-screener/internal/config"
	"github.com/mikey/llm-call-screener/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig(values map[string]any) *config.Config {
	cfg := config.NewFromViper(config.NewEmptyViper())
	for k, v := range values {
		cfg.Set(k, v)
	}
	return cfg
}

func TestAdapterFactory_Defaults(t *testing.T) {
	f := NewAdapterFactory(testConfig(nil), zap.NewNop())

	tr, err := f.CreateTranscriber()
	require.NoError(t, err)
	assert.IsType(t, &openai.Transcriber{}, tr)

	sy, err := f.CreateSynthesizer()
	require.NoError(t, err)
	assert.IsType(t, &elevenlabs.Synthesizer{}, sy)

	cl, err := f.CreateClassifier()
	require.NoError(t, err)
	assert.IsType(t, &openai.Classifier{}, cl)

	tp := f.CreateTextProcessor()
	require.NotNil(t, tp)
	assert.Equal(t, "Hello caller", tp.ProcessText("  Hello \t caller\n", 64))
}

func TestAdapterFactory_Alternatives(t *testing.T) {
	f := NewAdapterFactory(testConfig(map[string]any{
		"transcription.provider":  "gemini",
		"synthesis.provider":      "openai",
		"classification.provider": "Gemini",
	}), zap.NewNop())

	tr, err := f.CreateTranscriber()
	require.NoError(t, err)
	assert.IsType(t, &gemini.Transcriber{}, tr)

	sy, err := f.CreateSynthesizer()
	require.NoError(t, err)
	assert.IsType(t, &openai.Synthesizer{}, sy)

	cl, err := f.CreateClassifier()
	require.NoError(t, err)
	assert.IsType(t, &gemini.Classifier{}, cl)
}

func TestAdapterFactory_Bedrock(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIDEXAMPLE")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")

	f := NewAdapterFactory(testConfig(map[string]any{
		"classification.provider": "bedrock",
	}), zap.NewNop())

	cl, err := f.CreateClassifier()
	require.NoError(t, err)
	assert.IsType(t, &bedrock.Classifier{}, cl)
	assert.Equal(t, core.ProviderBedrock, cl.Name())
}

func TestAdapterFactory_UnsupportedProviders(t *testing.T) {
	f := NewAdapterFactory(testConfig(map[string]any{
		"transcription.provider":  "google",
		"synthesis.provider":      "aws_polly",
		"classification.provider": "huggingface",
	}), zap.NewNop())

	var ue *core.UnsupportedProviderError

	_, err := f.CreateTranscriber()
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, core.ProviderGoogle, ue.Provider)

	_, err = f.CreateSynthesizer()
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, core.KindSynthesis, ue.Kind)

	_, err = f.CreateClassifier()
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, core.ProviderHuggingFace, ue.Provider)
}

func TestRepositoryFactory(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name   string
		values map[string]any
		want   any
	}{
		{"memory", map[string]any{"repository.type": "memory"}, &repository.MemoryRepository{}},
		{"sqlite", map[string]any{
			"repository.type":        "sqlite",
			"repository.sqlite_path": filepath.Join(t.TempDir(), "nested", "calls.db"),
		}, &repository.SQLRepository{}},
		{"redis", map[string]any{
			"repository.type":       "redis",
			"repository.redis_addr": mr.Addr(),
		}, &repository.RedisRepository{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, err := NewRepositoryFactory(testConfig(tt.values), zap.NewNop()).CreateCallRepository()
			require.NoError(t, err)
			assert.IsType(t, tt.want, repo)
			if s, ok := repo.(interface{ Stop() }); ok {
				s.Stop()
			}
		})
	}

	_, err := NewRepositoryFactory(testConfig(map[string]any{"repository.type": "postgres"}), zap.NewNop()).CreateCallRepository()
	assert.ErrorContains(t, err, "unsupported repository type")

	_, err = NewRepositoryFactory(testConfig(map[string]any{"repository.retention": "forever"}), zap.NewNop()).CreateCallRepository()
	assert.ErrorContains(t, err, "repository.retention")
}

func TestNotifierFactory(t *testing.T) {
	n, err := NewNotifierFactory(testConfig(nil), zap.NewNop()).CreateNotifier()
	require.NoError(t, err)
	assert.IsType(t, notify.Nop{}, n)

	_, err = NewNotifierFactory(testConfig(map[string]any{"notify.enabled": true}), zap.NewNop()).CreateNotifier()
	assert.Error(t, err)

	n, err = NewNotifierFactory(testConfig(map[string]any{
		"notify.enabled": true,
		"notify.to":      []string{"owner@example.com"},
	}), zap.NewNop()).CreateNotifier()
	require.NoError(t, err)
	assert.IsType(t, &notify.SMTPNotifier{}, n)
}
