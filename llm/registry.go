package llm

import (
	"fmt"
	"sort"
)

// ProviderClass is the routing decision for a model.
type ProviderClass string

const (
	// ClassNative models are called through a real transport.
	ClassNative ProviderClass = "native"
	// ClassGeneric models get simulated, network-free results.
	ClassGeneric ProviderClass = "generic"
)

// UserModelConfig is a user-supplied credential for one model.
type UserModelConfig struct {
	ModelID string `json:"model_id" yaml:"model_id"`
	APIKey  string `json:"api_key" yaml:"api_key"`
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
}

// Resolution is the outcome of resolving a model id. It carries everything
// a ClientFactory needs to build a transport.
type Resolution struct {
	Descriptor ModelDescriptor
	Known      bool
	Class      ProviderClass
	APIKey     string
	BaseURL    string
}

// ModelID returns the resolved model identifier.
func (r *Resolution) ModelID() string {
	return r.Descriptor.ID
}

// ProviderConfig holds the process-wide inputs of the registry.
// This avoids import cycles by not importing the config package.
type ProviderConfig struct {
	// DefaultCredential is usable only with FirstPartyBackend models.
	DefaultCredential string
}

// ProviderRegistry resolves model ids into routing decisions and credentials.
// It is read-only after construction and safe for concurrent use.
type ProviderRegistry struct {
	catalog         *Catalog
	enabledBackends map[string]bool // Set of backends with a wired transport
	config          ProviderConfig
}

// NewProviderRegistry creates a new ProviderRegistry. Models whose backend is
// not in enabledBackends resolve to ClassGeneric.
func NewProviderRegistry(catalog *Catalog, providerConfig ProviderConfig, enabledBackends []string) *ProviderRegistry {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	enabledMap := make(map[string]bool)
	for _, b := range enabledBackends {
		enabledMap[b] = true
	}

	return &ProviderRegistry{
		catalog:         catalog,
		enabledBackends: enabledMap,
		config:          providerConfig,
	}
}

// Catalog returns the registry's model catalog.
func (r *ProviderRegistry) Catalog() *Catalog {
	return r.catalog
}

// IsBackendEnabled checks if a backend is in the enabled backends list.
func (r *ProviderRegistry) IsBackendEnabled(backend string) bool {
	return r.enabledBackends[backend]
}

// EnabledBackends returns the enabled backends, sorted.
func (r *ProviderRegistry) EnabledBackends() []string {
	backends := make([]string, 0, len(r.enabledBackends))
	for b := range r.enabledBackends {
		backends = append(backends, b)
	}
	sort.Strings(backends)
	return backends
}

// Resolve picks the credential and provider class for modelID.
//
// The key comes from the last config entry for modelID, falling back to the
// default credential for first-party models only. Models that need a key and
// have none fail with ErrMissingCredential; there is no fallback provider.
func (r *ProviderRegistry) Resolve(modelID string, configs []UserModelConfig) (*Resolution, error) {
	desc, known := r.catalog.Lookup(modelID)
	userCfg, hasCfg := FindModelConfig(configs, modelID)

	res := &Resolution{
		Descriptor: desc,
		Known:      known,
		Class:      ClassGeneric,
		BaseURL:    desc.DefaultBaseURL,
	}

	switch {
	case hasCfg && userCfg.APIKey != "":
		res.APIKey = userCfg.APIKey
	case desc.Backend == FirstPartyBackend && r.config.DefaultCredential != "":
		res.APIKey = r.config.DefaultCredential
	case !desc.RequiresKey:
		// key-less local transport
	default:
		return nil, fmt.Errorf("please configure an API key for %s: %w", modelID, ErrMissingCredential)
	}

	if hasCfg && userCfg.BaseURL != "" {
		res.BaseURL = userCfg.BaseURL
	}
	if known && desc.Backend != "" && r.enabledBackends[desc.Backend] {
		res.Class = ClassNative
	}
	return res, nil
}

// FindModelConfig returns the effective config for modelID. When configs
// holds duplicates the last one wins.
func FindModelConfig(configs []UserModelConfig, modelID string) (UserModelConfig, bool) {
	for i := len(configs) - 1; i >= 0; i-- {
		if configs[i].ModelID == modelID {
			return configs[i], true
		}
	}
	return UserModelConfig{}, false
}
