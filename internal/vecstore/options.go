package vecstore

// SearchOption configures a similarity query using the functional options
// pattern.
type SearchOption func(*searchConfig)

type searchConfig struct {
	limit  int32
	userID string
	model  string
}

// WithLimit caps the number of results. Default is 5.
func WithLimit(n int32) SearchOption {
	return func(c *searchConfig) {
		if n > 0 {
			c.limit = n
		}
	}
}

// WithUser restricts results to chunks of notes owned by the given user.
func WithUser(userID string) SearchOption {
	return func(c *searchConfig) {
		c.userID = userID
	}
}

// WithModel restricts results to vectors produced by the given model.
// Mixing vectors of different models (and so potentially different
// dimensionality) in one distance query is undefined; queries should always
// be scoped to the active provider's model.
func WithModel(model string) SearchOption {
	return func(c *searchConfig) {
		c.model = model
	}
}

func buildSearchConfig(opts []SearchOption) *searchConfig {
	cfg := &searchConfig{limit: 5}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
