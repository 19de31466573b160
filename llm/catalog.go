package llm

import "slices"

// Backend names the transport family a model is reached through.
const (
	BackendGemini    = "gemini"
	BackendOpenAI    = "openai"
	BackendAnthropic = "anthropic"
	BackendOllama    = "ollama"
)

// FirstPartyBackend is the only backend the process-wide default credential
// may be used with.
const FirstPartyBackend = BackendGemini

// Capability is a modality a model accepts as input.
type Capability string

const (
	CapabilityText  Capability = "text"
	CapabilityImage Capability = "image"
	CapabilityAudio Capability = "audio"
	CapabilityVideo Capability = "video"
)

// ModelDescriptor is a read-only catalog entry.
type ModelDescriptor struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Provider       string       `json:"provider"`
	Capabilities   []Capability `json:"capabilities"`
	Description    string       `json:"description"`
	Backend        string       `json:"backend,omitempty"`
	DefaultBaseURL string       `json:"default_base_url,omitempty"`
	RequiresKey    bool         `json:"requires_key"`
}

// Supports reports whether the model accepts the given modality.
func (d ModelDescriptor) Supports(c Capability) bool {
	return slices.Contains(d.Capabilities, c)
}

var defaultCatalog = []ModelDescriptor{
	{
		ID:           "gemini-2.5-flash",
		Name:         "Gemini 2.5 Flash",
		Provider:     "Google",
		Capabilities: []Capability{CapabilityText, CapabilityImage, CapabilityAudio, CapabilityVideo},
		Description:  "Fast multimodal model, the default for analysis and chat.",
		Backend:      BackendGemini,
		RequiresKey:  true,
	},
	{
		ID:           "gemini-2.5-pro",
		Name:         "Gemini 2.5 Pro",
		Provider:     "Google",
		Capabilities: []Capability{CapabilityText, CapabilityImage, CapabilityAudio, CapabilityVideo},
		Description:  "Stronger reasoning for complex relationship analysis.",
		Backend:      BackendGemini,
		RequiresKey:  true,
	},
	{
		ID:             "deepseek-chat",
		Name:           "DeepSeek V3",
		Provider:       "DeepSeek",
		Capabilities:   []Capability{CapabilityText},
		Description:    "Strong Chinese-language text model.",
		Backend:        BackendOpenAI,
		DefaultBaseURL: "https://api.deepseek.com/v1",
		RequiresKey:    true,
	},
	{
		ID:             "qwen-max",
		Name:           "通义千问 Qwen-Max",
		Provider:       "Alibaba",
		Capabilities:   []Capability{CapabilityText, CapabilityImage},
		Description:    "Alibaba Cloud flagship model.",
		Backend:        BackendOpenAI,
		DefaultBaseURL: "https://dashscope.aliyuncs.com/compatible-mode/v1",
		RequiresKey:    true,
	},
	{
		ID:             "moonshot-v1-8k",
		Name:           "Kimi (Moonshot)",
		Provider:       "Moonshot",
		Capabilities:   []Capability{CapabilityText},
		Description:    "Long-context text model.",
		Backend:        BackendOpenAI,
		DefaultBaseURL: "https://api.moonshot.cn/v1",
		RequiresKey:    true,
	},
	{
		ID:             "glm-4",
		Name:           "智谱 GLM-4",
		Provider:       "ZhipuAI",
		Capabilities:   []Capability{CapabilityText, CapabilityImage},
		Description:    "General-purpose bilingual model.",
		Backend:        BackendOpenAI,
		DefaultBaseURL: "https://open.bigmodel.cn/api/paas/v4",
		RequiresKey:    true,
	},
	{
		ID:           "claude-haiku-4-5",
		Name:         "Claude Haiku 4.5",
		Provider:     "Anthropic",
		Capabilities: []Capability{CapabilityText, CapabilityImage},
		Description:  "Fast Anthropic model.",
		Backend:      BackendAnthropic,
		RequiresKey:  true,
	},
	{
		ID:             "llama3.2-vision",
		Name:           "Llama 3.2 Vision (local)",
		Provider:       "Ollama",
		Capabilities:   []Capability{CapabilityText, CapabilityImage},
		Description:    "Runs on a local Ollama server; no key needed.",
		Backend:        BackendOllama,
		DefaultBaseURL: "http://localhost:11434",
		RequiresKey:    false,
	},
}

// Catalog is an immutable list of known models.
type Catalog struct {
	models []ModelDescriptor
	byID   map[string]ModelDescriptor
}

// NewCatalog builds a catalog from descriptors. Later duplicates replace
// earlier ones in lookups.
func NewCatalog(models []ModelDescriptor) *Catalog {
	c := &Catalog{
		models: slices.Clone(models),
		byID:   make(map[string]ModelDescriptor, len(models)),
	}
	for _, m := range models {
		c.byID[m.ID] = m
	}
	return c
}

// DefaultCatalog returns the built-in model list.
func DefaultCatalog() *Catalog {
	return NewCatalog(defaultCatalog)
}

// Models returns the catalog entries in display order.
func (c *Catalog) Models() []ModelDescriptor {
	return slices.Clone(c.models)
}

// Lookup returns the descriptor for id. Unknown ids get the generic profile
// and ok is false.
func (c *Catalog) Lookup(id string) (ModelDescriptor, bool) {
	if d, ok := c.byID[id]; ok {
		return d, true
	}
	return GenericProfile(id), false
}

// GenericProfile is the descriptor used for ids missing from the catalog:
// text only, no transport.
func GenericProfile(id string) ModelDescriptor {
	return ModelDescriptor{
		ID:           id,
		Name:         id,
		Provider:     "Other",
		Capabilities: []Capability{CapabilityText},
		RequiresKey:  true,
	}
}
