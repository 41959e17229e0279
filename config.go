package prospect

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/prospect/internal/pipeline"
	"github.com/hazyhaar/prospect/internal/places"
	"github.com/hazyhaar/prospect/internal/render"
)

// Config holds all service configuration.
type Config struct {
	Addr     string          `yaml:"addr"`
	DBPath   string          `yaml:"db_path"`
	Places   places.Config   `yaml:"places"`
	Render   render.Config   `yaml:"render"`
	Pipeline pipeline.Config `yaml:"pipeline"`
}

func (c *Config) defaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.DBPath == "" {
		c.DBPath = "prospect.db"
	}
	if c.Places.APIKey == "" {
		c.Places.APIKey = os.Getenv("GOOGLE_MAPS_API_KEY")
	}
}

// LoadConfigFile reads a YAML config file.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
