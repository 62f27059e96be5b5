package providers

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is one configured identity provider, read from the operator's
// provider listing at startup and immutable for the life of the process.
type Config struct {
	// Kind selects the Strategy implementation.
	Kind Kind `yaml:"provider"`
	// Op is the operator key clients use to select this provider.
	Op string `yaml:"op"`
	// DisplayName is the human-readable label shown in login options.
	DisplayName string `yaml:"op_auth_string"`

	// Issuer is the OIDC issuer URL, required for discovery-based kinds.
	Issuer string `yaml:"issuer,omitempty"`
	// AuthorizeURL and TokenURL override discovery when an issuer is not
	// published (plain OAuth2 providers, self-hosted instances).
	AuthorizeURL string `yaml:"authorize_url,omitempty"`
	TokenURL     string `yaml:"token_url,omitempty"`
	// UserinfoURL overrides the user API endpoint for kinds that resolve
	// identity with a follow-up call (GitHub Enterprise).
	UserinfoURL string `yaml:"userinfo_url,omitempty"`

	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	Scopes       []string `yaml:"scopes,omitempty"`
}

type configFile struct {
	Providers []Config `yaml:"providers"`
}

// LoadConfigs reads the provider listing from the given YAML file.
func LoadConfigs(path string) ([]Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "[LoadConfigs] reading %s", path)
	}

	var file configFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrapf(err, "[LoadConfigs] parsing %s", path)
	}

	for i := range file.Providers {
		p := &file.Providers[i]
		if p.Op == "" {
			return nil, errors.Errorf("[LoadConfigs] provider %d: op key is required", i)
		}
		if p.Kind == "" {
			return nil, errors.Errorf("[LoadConfigs] provider %q: kind is required", p.Op)
		}
		if p.ClientID == "" {
			return nil, errors.Errorf("[LoadConfigs] provider %q: client_id is required", p.Op)
		}
		if p.DisplayName == "" {
			p.DisplayName = p.Op
		}
	}

	return file.Providers, nil
}
