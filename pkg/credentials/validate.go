package credentials

import "errors"

// Limits from IEEE 802.11 and the WPA passphrase rules.
const (
	MaxSSIDLength       = 32
	MinPassphraseLength = 8
	MaxPassphraseLength = 63
)

var (
	// ErrInvalidSSID is returned for an empty or over-long SSID.
	ErrInvalidSSID = errors.New("invalid SSID")

	// ErrInvalidPassphrase is returned for a passphrase that is neither
	// 8-63 printable ASCII characters nor a 64 hex digit PSK.
	ErrInvalidPassphrase = errors.New("invalid passphrase")
)

// ValidateSSID checks that ssid is 1-32 bytes.
func ValidateSSID(ssid string) error {
	if len(ssid) == 0 || len(ssid) > MaxSSIDLength {
		return ErrInvalidSSID
	}
	return nil
}

// ValidatePassphrase checks a WPA passphrase. Empty is accepted for open
// networks.
func ValidatePassphrase(passphrase string) error {
	if passphrase == "" || isHexPSK(passphrase) {
		return nil
	}
	if len(passphrase) < MinPassphraseLength || len(passphrase) > MaxPassphraseLength {
		return ErrInvalidPassphrase
	}
	for i := 0; i < len(passphrase); i++ {
		if c := passphrase[i]; c < 0x20 || c > 0x7e {
			return ErrInvalidPassphrase
		}
	}
	return nil
}

// Validate checks the SSID and passphrase of c.
func (c *Credentials) Validate() error {
	if err := ValidateSSID(c.SSID); err != nil {
		return err
	}
	return ValidatePassphrase(c.Passphrase)
}
