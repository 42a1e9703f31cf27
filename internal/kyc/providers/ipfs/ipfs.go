package ipfs

import (
	"fmt"

	"kycgate/internal/kyc/ports"
	"kycgate/internal/platform/config"
)

// New selects a content store by mode: "kubo", "local" or "disabled".
func New(cfg config.IPFSConfig) (ports.ContentStore, error) {
	switch cfg.Mode {
	case "kubo":
		return NewKubo(cfg.APIURL, cfg.GatewayURL, cfg.Timeout), nil
	case "local", "":
		return NewLocal(cfg.LocalDir, ""), nil
	case "disabled":
		return Disabled{}, nil
	default:
		return nil, fmt.Errorf("unknown IPFS mode %q", cfg.Mode)
	}
}
