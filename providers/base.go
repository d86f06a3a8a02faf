package providers

// Base provides common fields shared by REST-based provider implementations.
// Embed this struct to avoid repeating name, priority, apiKey, and baseURL
// handling across providers.
type Base struct {
	name     string
	priority int
	apiKey   string
	baseURL  string
}

// NewBase constructs a Base with the default priority.
func NewBase(name, apiKey, baseURL string) Base {
	return Base{name: name, priority: DefaultPriority, apiKey: apiKey, baseURL: baseURL}
}

// Name returns the provider name.
func (b *Base) Name() string { return b.name }

// Priority returns the provider priority; lower wins.
func (b *Base) Priority() int { return b.priority }

// SetPriority overrides the default priority.
func (b *Base) SetPriority(p int) { b.priority = p }

// BaseURL returns the provider's root API URL.
func (b *Base) BaseURL() string { return b.baseURL }
