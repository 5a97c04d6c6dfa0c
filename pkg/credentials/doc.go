// Package credentials stores the station's network credentials.
//
// Credentials are kept in a single JSON file. Next to the passphrase the
// store keeps the derived WPA pre-shared key so the radio can join without
// repeating the PBKDF2 derivation on every boot.
package credentials
