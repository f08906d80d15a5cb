package crypto

// Keyring provides secure storage for named secrets
type Keyring interface {
	Get(name string) (string, error)
	Set(name, value string) error
	Delete(name string) error
	IsAvailable() bool
}

const ServiceName = "tasktimer"

// Secret names
const (
	KeyDBEncryption = "db-encryption-key"
	KeyAPIToken     = "api-token"
)

// NewKeyring returns the best available keyring implementation
func NewKeyring() Keyring {
	return newPlatformKeyring()
}

// envVar maps a secret name to the variable the fallback keyring reads
func envVar(name string) string {
	switch name {
	case KeyDBEncryption:
		return "TASKTIMER_DB_KEY"
	case KeyAPIToken:
		return "TASKTIMER_API_TOKEN"
	}
	return ""
}
