package auth

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultAdminClaim is the custom claim that marks a moderator.
const DefaultAdminClaim = "admin"

// PolicyConfig lists who may act on resources they do not own. Loaded from
// YAML:
//
//	adminClaim: admin
//	adminUIDs: ["kq3...", "..."]
//	adminEmails: ["moderator@example.com"]
type PolicyConfig struct {
	AdminClaim  string   `yaml:"adminClaim"`
	AdminUIDs   []string `yaml:"adminUIDs"`
	AdminEmails []string `yaml:"adminEmails"`
}

// LoadPolicyConfig reads and parses a policy file.
func LoadPolicyConfig(path string) (*PolicyConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy config: %w", err)
	}
	var cfg PolicyConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse policy config: %w", err)
	}
	return &cfg, nil
}
