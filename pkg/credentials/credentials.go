package credentials

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/scribe/pkg/dotdir"
)

const (
	credentialsFile = "credentials.toml"

	currentVersion = 0
)

// envVar names the environment variables a provider's credential can come
// from when nothing is stored.
type envVar struct {
	key    string
	secret string
}

// providerEnvVars maps provider preset names to their expected environment variables.
var providerEnvVars = map[string]envVar{
	"openai":    {key: "OPENAI_API_KEY"},
	"gpt":       {key: "OPENAI_API_KEY"},
	"deepseek":  {key: "DEEPSEEK_API_KEY"},
	"yi":        {key: "YI_API_KEY"},
	"moonshot":  {key: "MOONSHOT_API_KEY"},
	"baichuan":  {key: "BAICHUAN_API_KEY"},
	"anthropic": {key: "ANTHROPIC_API_KEY"},
	"skywork":   {key: "SKYWORK_APP_KEY", secret: "SKYWORK_APP_SECRET"},

	// slide generation, not a chat provider
	"xfyun": {key: "XFYUN_APP_ID", secret: "XFYUN_API_SECRET"},
}

// Manager manages reading and writing credentials.toml in the .scribe/ directory.
type Manager struct {
	ddm        *dotdir.Manager
	targetPath string
}

// NewManager creates a new credentials Manager. If override is non-empty it is
// used as the .scribe/ directory; otherwise the standard dotdir resolution applies.
func NewManager(override string) (*Manager, error) {
	mgr := &Manager{}
	mgr.ddm = dotdir.NewManager()

	target, err := mgr.ddm.Target(override)
	if err != nil {
		return nil, err
	}

	mgr.targetPath = filepath.Join(target, credentialsFile)

	return mgr, nil
}

// Load reads credentials.toml from the target directory.
// Returns an empty Credentials if the file does not exist.
func (m *Manager) Load() (*Credentials, error) {
	data, err := os.ReadFile(m.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Credentials{
				Version:   currentVersion,
				Providers: make(map[string]ProviderCredential),
			}, nil
		}
		return nil, fmt.Errorf("reading credentials: %w", err)
	}

	creds := &Credentials{}
	if err := toml.Unmarshal(data, creds); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}

	if creds.Providers == nil {
		creds.Providers = make(map[string]ProviderCredential)
	}

	return creds, nil
}

// Save writes credentials to credentials.toml with 0600 permissions.
func (m *Manager) Save(creds *Credentials) error {
	if creds == nil {
		return errors.New("cannot save nil credentials")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(creds); err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	if err := os.WriteFile(m.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}

	return nil
}

// SetKey stores an API key for the given provider, keeping any stored secret.
func (m *Manager) SetKey(provider, key string) error {
	creds, err := m.Load()
	if err != nil {
		return err
	}

	pc := creds.Providers[provider]
	pc.APIKey = key
	creds.Providers[provider] = pc

	return m.Save(creds)
}

// SetSecret stores the signing secret for the given provider.
func (m *Manager) SetSecret(provider, secret string) error {
	creds, err := m.Load()
	if err != nil {
		return err
	}

	pc := creds.Providers[provider]
	pc.Secret = secret
	creds.Providers[provider] = pc

	return m.Save(creds)
}

// GetKey returns the stored API key for the given provider.
// Returns an empty string if no key is stored.
func (m *Manager) GetKey(provider string) (string, error) {
	creds, err := m.Load()
	if err != nil {
		return "", err
	}

	return creds.Providers[provider].APIKey, nil
}

// Resolve returns the credential for provider: stored values first, then
// the provider's environment variables. Missing values are empty.
func (m *Manager) Resolve(provider string) (ProviderCredential, error) {
	creds, err := m.Load()
	if err != nil {
		return ProviderCredential{}, err
	}

	pc := creds.Providers[provider]
	env := providerEnvVars[provider]
	if pc.APIKey == "" && env.key != "" {
		pc.APIKey = os.Getenv(env.key)
	}
	if pc.Secret == "" && env.secret != "" {
		pc.Secret = os.Getenv(env.secret)
	}

	return pc, nil
}

// RemoveKey deletes the stored credential for a provider.
func (m *Manager) RemoveKey(provider string) error {
	creds, err := m.Load()
	if err != nil {
		return err
	}

	delete(creds.Providers, provider)

	return m.Save(creds)
}

// ListProviders returns the names of providers that have stored credentials.
func (m *Manager) ListProviders() ([]string, error) {
	creds, err := m.Load()
	if err != nil {
		return nil, err
	}

	providers := make([]string, 0, len(creds.Providers))
	for name := range creds.Providers {
		providers = append(providers, name)
	}

	sort.Strings(providers)

	return providers, nil
}

// GetTarget returns the resolved path to the credentials file.
func (m *Manager) GetTarget() string {
	return m.targetPath
}

// EnvVarForProvider returns the API key environment variable name for a
// given provider. Returns an empty string for unknown providers.
func EnvVarForProvider(provider string) string {
	return providerEnvVars[provider].key
}

// NeedsSecret reports whether provider signs requests with a second secret.
func NeedsSecret(provider string) bool {
	return providerEnvVars[provider].secret != ""
}

// SupportedProviders returns the sorted list of providers that take API keys.
func SupportedProviders() []string {
	names := make([]string, 0, len(providerEnvVars))
	for name := range providerEnvVars {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IsSupportedProvider returns true if the given provider is supported.
func IsSupportedProvider(provider string) bool {
	_, ok := providerEnvVars[provider]
	return ok
}
