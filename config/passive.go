package config

import (
	"net"

	log "github.com/fclairamb/go-log"
)

// ResolvePassiveIP decides, once at startup, which address PASV replies
// advertise. An explicit public IP wins; otherwise a pasv URL is honored only
// when it is already a literal IPv4 address; otherwise the loopback fallback
// is used and a warning is logged, since remote clients will not be able to
// open data connections against it.
func ResolvePassiveIP(cfg *FTPConfig, logger log.Logger) string {
	if cfg.PublicIP != "" {
		return cfg.PublicIP
	}

	if cfg.PasvURL != "" {
		if ip := net.ParseIP(cfg.PasvURL); ip != nil && ip.To4() != nil {
			return cfg.PasvURL
		}
		logger.Warn("pasv_url is not a literal IPv4 address, falling back to loopback",
			"pasvUrl", cfg.PasvURL)
	} else {
		logger.Warn("no public IP configured, passive mode advertises loopback")
	}

	return "127.0.0.1"
}
