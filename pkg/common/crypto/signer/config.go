package signer

// Config represents signer configuration
type Config struct {
	// KeystorePath is the path to the keystore file
	KeystorePath string `yaml:"keystore_path"`
	// Password is the password to decrypt the keystore
	Password string `yaml:"password"`
	// PrivateKeyHex is a raw hex private key, used instead of a keystore
	PrivateKeyHex string `yaml:"private_key_hex"`
}

// IsValid checks if the config is valid
func (c *Config) IsValid() bool {
	if c.PrivateKeyHex != "" {
		return c.KeystorePath == ""
	}
	return c.KeystorePath != "" && c.Password != ""
}

// New builds a LocalSigner from the config.
func New(c *Config) (*LocalSigner, error) {
	if c.PrivateKeyHex != "" {
		return NewLocalSignerFromHex(c.PrivateKeyHex)
	}
	return NewLocalSigner(c.KeystorePath, c.Password)
}
