package config

import (
	"fmt"
	"os"
	"strings"

	vault "github.com/hashicorp/vault/api"
)

// loadVaultSecrets overlays secret material from Vault onto the config:
// the AI API key, the server's accepted API keys, and TLS cert/key
// content. Vault values take precedence over file and env values.
func (c *Config) loadVaultSecrets() error {
	client, err := c.newVaultClient()
	if err != nil {
		return err
	}

	if path := c.Vault.Secrets.GeminiKey; path != "" {
		data, err := readVaultSecret(client, path)
		if err != nil {
			return fmt.Errorf("read AI API key from %s: %w", path, err)
		}
		if key := stringField(data, "apiKey", "api_key", "key"); key != "" {
			c.AI.APIKey = key
		}
	}

	if path := c.Vault.Secrets.APIKeys; path != "" {
		data, err := readVaultSecret(client, path)
		if err != nil {
			return fmt.Errorf("read server API keys from %s: %w", path, err)
		}
		if keys := stringField(data, "apiKeys", "api_keys", "keys"); keys != "" {
			c.Server.APIKeys = nil
			for _, k := range strings.Split(keys, ",") {
				if k = strings.TrimSpace(k); k != "" {
					c.Server.APIKeys = append(c.Server.APIKeys, k)
				}
			}
		}
	}

	if path := c.Vault.Secrets.TLSCerts; path != "" {
		data, err := readVaultSecret(client, path)
		if err != nil {
			return fmt.Errorf("read TLS material from %s: %w", path, err)
		}
		if cert := stringField(data, "cert", "certificate", "tls_cert"); cert != "" {
			c.Server.TLS.CertContent = cert
			c.Server.TLS.CertFile = ""
		}
		if key := stringField(data, "key", "private_key", "tls_key"); key != "" {
			c.Server.TLS.KeyContent = key
			c.Server.TLS.KeyFile = ""
		}
	}

	return nil
}

func (c *Config) newVaultClient() (*vault.Client, error) {
	vaultCfg := vault.DefaultConfig()
	if c.Vault.Address != "" {
		vaultCfg.Address = c.Vault.Address
	}

	client, err := vault.NewClient(vaultCfg)
	if err != nil {
		return nil, fmt.Errorf("create Vault client: %w", err)
	}

	token := c.Vault.Token
	if token == "" && c.Vault.TokenFile != "" {
		data, err := os.ReadFile(c.Vault.TokenFile)
		if err != nil {
			return nil, fmt.Errorf("read Vault token file: %w", err)
		}
		token = strings.TrimSpace(string(data))
	}
	if token == "" {
		token = os.Getenv("VAULT_TOKEN")
	}
	if token == "" {
		return nil, fmt.Errorf("no Vault token configured")
	}
	client.SetToken(token)

	if c.Vault.Namespace != "" {
		client.SetNamespace(c.Vault.Namespace)
	}

	return client, nil
}

// readVaultSecret reads a secret and unwraps the KV v2 "data" envelope
// when present.
func readVaultSecret(client *vault.Client, path string) (map[string]any, error) {
	secret, err := client.Logical().Read(path)
	if err != nil {
		return nil, err
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("no secret at path %s", path)
	}
	if inner, ok := secret.Data["data"].(map[string]any); ok {
		return inner, nil
	}
	return secret.Data, nil
}

func stringField(data map[string]any, names ...string) string {
	for _, name := range names {
		if v, ok := data[name].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
