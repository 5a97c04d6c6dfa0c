package credentials

import (
	"crypto/sha1"
	"encoding/hex"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// PSKIterations is the PBKDF2 iteration count of WPA/WPA2 personal.
	PSKIterations = 4096

	// PSKLength is the length of the derived pre-shared key in bytes.
	PSKLength = 32
)

// DerivePSK derives the 256-bit WPA pre-shared key from a passphrase and
// SSID. A 64 hex digit passphrase is already a PSK and is decoded as-is.
func DerivePSK(passphrase, ssid string) []byte {
	if isHexPSK(passphrase) {
		psk, _ := hex.DecodeString(passphrase)
		return psk
	}
	return pbkdf2.Key([]byte(passphrase), []byte(ssid), PSKIterations, PSKLength, sha1.New)
}

// DerivePSKHex is DerivePSK encoded as lowercase hex.
func DerivePSKHex(passphrase, ssid string) string {
	return hex.EncodeToString(DerivePSK(passphrase, ssid))
}

func isHexPSK(s string) bool {
	if len(s) != 2*PSKLength {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
