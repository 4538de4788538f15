package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Secrets is the layout of the secrets.yaml file.
type Secrets struct {
	FireflyAppToken string `yaml:"firefly_app_token"`
	HomeAssistant   string `yaml:"home_assistant_token,omitempty"`
}

// LoadSecrets reads a secrets.yaml file.
func LoadSecrets(path string) (*Secrets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading secrets: %w", err)
	}
	var s Secrets
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing secrets: %w", err)
	}
	s.FireflyAppToken = strings.TrimSpace(s.FireflyAppToken)
	s.HomeAssistant = strings.TrimSpace(s.HomeAssistant)
	return &s, nil
}

// ResolveTokens fills empty tokens from the secrets file, if one is configured.
func (c *Config) ResolveTokens() error {
	if c.Ledger.AccessTokenFile != "" && (c.Ledger.AccessToken == "" || c.Publish.HomeAssistant.Token == "") {
		s, err := LoadSecrets(c.Ledger.AccessTokenFile)
		if err != nil {
			return err
		}
		if c.Ledger.AccessToken == "" {
			c.Ledger.AccessToken = s.FireflyAppToken
		}
		if c.Publish.HomeAssistant.Token == "" {
			c.Publish.HomeAssistant.Token = s.HomeAssistant
		}
	}
	if c.Ledger.AccessToken == "" {
		return errors.New("no ledger access token: set ledger.access_token, ledger.access_token_file or FIREFLY_TOKEN")
	}
	return nil
}
