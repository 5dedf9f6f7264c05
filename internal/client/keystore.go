package client

import (
	"fmt"
	"log"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"
	"github.com/zalando/go-keyring"
)

const (
	keyringService = "com.lessucettes.geochat"
	keyringUser    = "identity"
)

// loadOrCreateIdentity resolves the private key for this session. Priority:
// an explicit nsec override, then the OS keyring, then the config-file
// fallback for platforms without a keyring, then a freshly generated key.
func loadOrCreateIdentity(conf *config, nsecOverride string) (sk string, err error) {
	if nsecOverride != "" {
		return decodeKey(nsecOverride)
	}

	if key, err := keyring.Get(keyringService, keyringUser); err == nil && key != "" {
		return key, nil
	}

	if conf.PrivateKey != "" {
		return conf.PrivateKey, nil
	}

	sk = nostr.GeneratePrivateKey()
	if err := keyring.Set(keyringService, keyringUser, sk); err != nil {
		// No usable keyring; keep the key in the config file instead.
		log.Printf("Keyring unavailable (%v), storing key in config file", err)
		conf.PrivateKey = sk
		if err := conf.save(); err != nil {
			return "", fmt.Errorf("could not persist generated key: %w", err)
		}
	}
	return sk, nil
}

// decodeKey accepts a nip19 nsec or a raw hex private key.
func decodeKey(raw string) (string, error) {
	if prefix, value, err := nip19.Decode(raw); err == nil && prefix == "nsec" {
		return value.(string), nil
	}
	if _, err := nostr.GetPublicKey(raw); err != nil {
		return "", fmt.Errorf("invalid private key: %w", err)
	}
	return raw, nil
}
