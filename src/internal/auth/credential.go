// FILE: synctrack/src/internal/auth/credential.go
package auth

import "fmt"

// Provider names the backend authentication provider a credential targets
type Provider string

const (
	ProviderUserPass  Provider = "local-userpass"
	ProviderAPIKey    Provider = "api-key"
	ProviderAnonymous Provider = "anon-user"
)

// Credential is the authentication material presented to obtain a user session
type Credential struct {
	Provider Provider
	Username string
	Password string
	APIKey   string
}

// EmailPassword creates a username/password credential
func EmailPassword(username, password string) Credential {
	return Credential{Provider: ProviderUserPass, Username: username, Password: password}
}

// APIKey creates an API key credential
func APIKey(key string) Credential {
	return Credential{Provider: ProviderAPIKey, APIKey: key}
}

// Anonymous creates an anonymous credential
func Anonymous() Credential {
	return Credential{Provider: ProviderAnonymous}
}

// Select picks a credential in order of preference:
// username/password, then API key, then anonymous.
func Select(username, password, apiKey string) Credential {
	switch {
	case username != "":
		return EmailPassword(username, password)
	case apiKey != "":
		return APIKey(apiKey)
	default:
		return Anonymous()
	}
}

// Payload returns the login request body for the credential's provider
func (c Credential) Payload() map[string]any {
	switch c.Provider {
	case ProviderUserPass:
		return map[string]any{"username": c.Username, "password": c.Password}
	case ProviderAPIKey:
		return map[string]any{"key": c.APIKey}
	default:
		return map[string]any{}
	}
}

// Validate checks the credential carries what its provider needs
func (c Credential) Validate() error {
	switch c.Provider {
	case ProviderUserPass:
		if c.Username == "" {
			return fmt.Errorf("username is required for %s", c.Provider)
		}
	case ProviderAPIKey:
		if c.APIKey == "" {
			return fmt.Errorf("api key is required for %s", c.Provider)
		}
	case ProviderAnonymous:
	default:
		return fmt.Errorf("unknown auth provider: %q", c.Provider)
	}
	return nil
}

// String never includes secrets
func (c Credential) String() string {
	if c.Provider == ProviderUserPass {
		return fmt.Sprintf("%s(%s)", c.Provider, c.Username)
	}
	return string(c.Provider)
}
