package catalog

import (
	"github.com/cruiserlab/voicegrid/internal/model"
)

// DefaultScenarios is the built-in test set used when the config file
// defines none. The prompts mirror the voice-assistant workload the grid
// was built to size: short assistant requests, device-control style
// function calls, and a pair of multilingual samples.
func DefaultScenarios() []model.Scenario {
	return []model.Scenario{
		{
			ID:       "intro",
			Category: model.CategoryBasicLatency,
			Prompt:   "Hello, please introduce yourself",
		},
		{
			ID:       "quantum-50w",
			Category: model.CategoryBasicLatency,
			Prompt:   "Please explain quantum computing in 50 words",
		},
		{
			ID:         "what-time",
			Category:   model.CategoryBasicLatency,
			Prompt:     "What time is it?",
			WantsAudio: true,
		},
		{
			ID:         "dialogue-greeting",
			Category:   model.CategoryDialogue,
			Prompt:     "Hello, how are you today?",
			WantsAudio: true,
		},
		{
			ID:         "dialogue-news",
			Category:   model.CategoryDialogue,
			Prompt:     "What are the latest news headlines?",
			WantsAudio: true,
		},
		{
			ID:               "fc-weather",
			Category:         model.CategoryFunctionCalling,
			Prompt:           "What's the weather like in San Francisco?",
			ExpectedFunction: "get_weather",
			Keywords:         []string{"weather", "temperature", "forecast"},
		},
		{
			ID:               "fc-music",
			Category:         model.CategoryFunctionCalling,
			Prompt:           "Play some jazz music",
			ExpectedFunction: "play_music",
			Keywords:         []string{"music", "play", "audio"},
		},
		{
			ID:               "fc-news",
			Category:         model.CategoryFunctionCalling,
			Prompt:           "Tell me the latest news",
			ExpectedFunction: "get_news",
			Keywords:         []string{"news", "headlines", "article"},
		},
		{
			ID:               "fc-lights",
			Category:         model.CategoryFunctionCalling,
			Prompt:           "Turn on the living room lights",
			ExpectedFunction: "set_light_state",
			Keywords:         []string{"light", "living room", "switch"},
		},
		{
			ID:         "ml-spanish",
			Category:   model.CategoryMultilingual,
			Prompt:     "Por favor, describe el clima de hoy en dos frases.",
			WantsAudio: true,
		},
		{
			ID:         "ml-german",
			Category:   model.CategoryMultilingual,
			Prompt:     "Erkläre bitte kurz, wie ein Sprachassistent funktioniert.",
			WantsAudio: true,
		},
	}
}
