package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cruiserlab/voicegrid/internal/config"
	"github.com/cruiserlab/voicegrid/internal/model"
)

func gridConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Backends = []model.BackendSpec{
		{ID: "llm-a", Kind: model.KindLLM, URL: "http://localhost:11434", Model: "qwen2.5:7b"},
		{ID: "tts-a", Kind: model.KindTTS, URL: "http://localhost:8000"},
	}
	return cfg
}

func TestNewUsesDefaultScenarios(t *testing.T) {
	cat, err := New(gridConfig())
	require.NoError(t, err)

	assert.Len(t, cat.EnabledScenarios(), len(DefaultScenarios()))
	assert.Len(t, cat.LLMBackends(), 1)
	assert.Len(t, cat.TTSBackends(), 1)

	s, ok := cat.Scenario("fc-weather")
	require.True(t, ok)
	assert.Equal(t, model.CategoryFunctionCalling, s.Category)
	assert.True(t, s.ExpectsTrigger())
}

func TestNewRejectsGridWithoutLLM(t *testing.T) {
	cfg := gridConfig()
	cfg.Backends = cfg.Backends[1:] // TTS only

	_, err := New(cfg)
	require.ErrorIs(t, err, ErrCatalogLoad)
}

func TestNewRejectsGridWithoutTTS(t *testing.T) {
	cfg := gridConfig()
	cfg.Backends = cfg.Backends[:1] // LLM only

	_, err := New(cfg)
	require.ErrorIs(t, err, ErrCatalogLoad)
}

func TestNewRejectsDuplicateBackendID(t *testing.T) {
	cfg := gridConfig()
	cfg.Backends = append(cfg.Backends, cfg.Backends[0])

	_, err := New(cfg)
	require.ErrorIs(t, err, ErrCatalogLoad)
}

func TestNewRejectsUnknownKind(t *testing.T) {
	cfg := gridConfig()
	cfg.Backends = append(cfg.Backends, model.BackendSpec{
		ID: "weird", Kind: "stt", URL: "http://localhost:1",
	})

	_, err := New(cfg)
	require.ErrorIs(t, err, ErrCatalogLoad)
}

func TestCategoryFilter(t *testing.T) {
	cfg := gridConfig()
	cfg.Categories = []model.Category{model.CategoryFunctionCalling}

	cat, err := New(cfg)
	require.NoError(t, err)

	enabled := cat.EnabledScenarios()
	require.NotEmpty(t, enabled)
	for _, s := range enabled {
		assert.Equal(t, model.CategoryFunctionCalling, s.Category)
	}
}

func TestScenariosForCategoryKeepsInsertionOrder(t *testing.T) {
	cfg := gridConfig()
	cfg.Scenarios = []model.Scenario{
		{ID: "c", Category: model.CategoryDialogue, Prompt: "c"},
		{ID: "a", Category: model.CategoryDialogue, Prompt: "a"},
		{ID: "b", Category: model.CategoryDialogue, Prompt: "b"},
	}

	cat, err := New(cfg)
	require.NoError(t, err)

	got := cat.ScenariosForCategory(model.CategoryDialogue)
	require.Len(t, got, 3)
	assert.Equal(t, "c", got[0].ID)
	assert.Equal(t, "a", got[1].ID)
	assert.Equal(t, "b", got[2].ID)
}
