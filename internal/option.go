package internal

// Option configures Run and RunMCP.
type Option func(*application)

// application collects the options shared by the serve and mcp commands.
type application struct {
	config *Config
}

// WithConfig sets the loaded configuration. Both Run and RunMCP fail
// without one.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}
