// Package llm provides a provider-neutral abstraction layer for Large Language Model (LLM) APIs.
//
// This package defines common types, interfaces, and utilities that allow the codebase
// to work with multiple LLM providers (Gemini, OpenAI-compatible endpoints, Anthropic,
// Ollama) without being tightly coupled to any specific provider's SDK.
//
// # Core Concepts
//
//  1. Messages: The Message type carries ordered content blocks. A block is either
//     text or an inline media payload tagged with its MIME type.
//
//  2. Structured output: Request.Schema asks the provider for JSON matching a schema.
//     Transports that cannot enforce a schema fold it into the system prompt.
//
//  3. Client Interface: The Client interface provides Synchronous() calls.
//     Implementations live in sub-packages and translate errors to *Error.
//
//  4. Catalog and ProviderRegistry: the catalog describes known models and their
//     capabilities; the registry resolves a model id plus user configs into a
//     credential and a native or generic ProviderClass.
//
//  5. Decorators: WithLogging, WithTiming and WithRetry wrap a Client without
//     modifying provider implementations.
//
// Usage Example
//
//	registry := llm.NewProviderRegistry(llm.DefaultCatalog(), llm.ProviderConfig{
//	    DefaultCredential: os.Getenv("GEMINI_API_KEY"),
//	}, []string{llm.BackendGemini})
//
//	res, err := registry.Resolve("gemini-2.5-flash", userConfigs)
//	if errors.Is(err, llm.ErrMissingCredential) {
//	    // ask the user for a key
//	}
//
//	client, err := factory(res)
//	client = llm.WithRetry(llm.WithLogging(client, logger), policy, logger)
//	resp, err := client.Synchronous(ctx, &llm.Request{
//	    Model:    res.ModelID(),
//	    Messages: []llm.Message{llm.NewTextMessage(llm.RoleUser, "Hello!")},
//	})
//
// # Extension Points
//
// To add a new LLM provider:
//  1. Implement the Client interface in a sub-package
//  2. Translate provider-specific errors to llm.Error types
//  3. Add a backend name and catalog entries, then wire it into the ClientFactory
package llm
