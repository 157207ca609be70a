package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models jobledger.yml.
type Config struct {
	Ledger struct {
		ID   string `yaml:"id"`
		Kind string `yaml:"kind"`
	} `yaml:"ledger"`
	Parties struct {
		Catalog map[string]Party `yaml:"catalog"`
	} `yaml:"parties"`
	Payments struct {
		Currency            string  `yaml:"currency"`
		RetentionPercentage float64 `yaml:"retention_percentage"`
	} `yaml:"payments"`
	Documents struct {
		Kinds map[string]struct {
			Description string `yaml:"description"`
		} `yaml:"kinds"`
	} `yaml:"documents"`
}

type Party struct {
	Name string `yaml:"name"`
	Role string `yaml:"role"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with jl config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Ledger.ID == "" {
		return fmt.Errorf("config.ledger.id is required")
	}
	if c.Ledger.Kind != "construction-ledger" {
		return fmt.Errorf("config.ledger.kind must be 'construction-ledger'")
	}
	if len(c.Payments.Currency) != 3 {
		return fmt.Errorf("config.payments.currency must be a 3-letter code")
	}
	if c.Payments.RetentionPercentage < 0 || c.Payments.RetentionPercentage > 100 {
		return fmt.Errorf("config.payments.retention_percentage must be between 0 and 100")
	}
	for id, party := range c.Parties.Catalog {
		if id == "" {
			return fmt.Errorf("config.parties.catalog contains empty party id")
		}
		switch party.Role {
		case "developer", "contractor":
		default:
			return fmt.Errorf("party %s has unknown role %q", id, party.Role)
		}
	}
	for kind := range c.Documents.Kinds {
		if kind == "" {
			return fmt.Errorf("config.documents.kinds contains empty kind")
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "jobledger.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(ledgerID string) string {
	return fmt.Sprintf(defaultTemplate, ledgerID)
}

// Default returns the default Config struct for a ledger.
func Default(ledgerID string) *Config {
	var cfg Config
	cfg.Ledger.ID = ledgerID
	cfg.Ledger.Kind = "construction-ledger"
	_ = yaml.NewDecoder(bytes.NewBufferString(fmt.Sprintf(defaultTemplate, ledgerID))).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `ledger:
  id: %s
  kind: construction-ledger

parties:
  catalog:
    ortho-developments:
      name: "Ortho Developments Ltd"
      role: developer
    hammer-and-sons:
      name: "Hammer & Sons Construction Plc"
      role: contractor

payments:
  currency: GBP
  retention_percentage: 5

documents:
  kinds:
    survey:
      description: "Site or structural survey"
    invoice:
      description: "Milestone invoice"
    completion-certificate:
      description: "Certificate of practical completion"
`
