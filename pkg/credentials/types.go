package credentials

// Credentials represents the stored API credentials in credentials.toml.
type Credentials struct {
	Version   int                           `toml:"version"`
	Providers map[string]ProviderCredential `toml:"providers"`
}

// ProviderCredential holds the API key for a single provider. Secret is
// only used by providers that sign requests (skywork's app secret).
type ProviderCredential struct {
	APIKey string `toml:"api_key"`
	Secret string `toml:"secret,omitempty"`
}
