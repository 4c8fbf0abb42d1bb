package views

// DefaultNamespace is used for view names without a namespace prefix
const DefaultNamespace = "default"

// Config describes view locations, caching and the processor pipeline
type Config struct {
	Namespaces map[string][]string `mapstructure:"namespaces"`
	Extension  string              `mapstructure:"extension"`
	Cache      CacheConfig         `mapstructure:"cache"`
	Processors []ProcessorConfig   `mapstructure:"processors"`
}

// CacheConfig controls where compiled views are written and whether they are reused
type CacheConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Directory string `mapstructure:"directory"`
}

// ProcessorConfig names a processor binding and its options
type ProcessorConfig struct {
	Name    string         `mapstructure:"name"`
	Options map[string]any `mapstructure:"options"`
}

// DefaultConfig returns a configuration with the default namespace rooted at viewsDir
// and the built-in processors in their usual order.
func DefaultConfig(viewsDir, cacheDir string) Config {
	return Config{
		Namespaces: map[string][]string{DefaultNamespace: {viewsDir}},
		Extension:  "tpl",
		Cache:      CacheConfig{Enabled: true, Directory: cacheDir},
		Processors: []ProcessorConfig{
			{Name: "include"},
			{Name: "evaluator"},
			{Name: "translator"},
			{Name: "prettify"},
		},
	}
}

func (c *Config) applyDefaults() {
	if c.Extension == "" {
		c.Extension = "tpl"
	}
	if c.Namespaces == nil {
		c.Namespaces = map[string][]string{}
	}
}
