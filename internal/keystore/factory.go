package keystore

import (
	"fmt"

	"github.com/sirosfoundation/go-wssec/internal/config"
)

// NewProvider creates a Provider based on the configuration
func NewProvider(cfg *config.KeystoreConfig) (Provider, error) {
	switch cfg.Mode {
	case "pkcs11":
		return NewPKCS11Provider(&PKCS11Config{
			ModulePath:   cfg.PKCS11.ModulePath,
			SlotID:       cfg.PKCS11.SlotID,
			TokenLabel:   cfg.PKCS11.TokenLabel,
			PIN:          cfg.PKCS11.PIN,
			LabelPattern: cfg.PKCS11.LabelPattern,
			Aliases:      cfg.PKCS11.Aliases,
		})
	case "file":
		dir := cfg.File.Dir
		if dir == "" {
			dir = "./keys"
		}
		return NewFileProvider(dir)
	case "memory", "":
		return NewMemoryProvider(), nil
	default:
		return nil, fmt.Errorf("unknown keystore mode: %s", cfg.Mode)
	}
}
