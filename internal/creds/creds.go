// Package creds stores Helm registry credentials in the OS keyring.
package creds

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// service is the keyring service name under which credentials are stored.
const service = "selfhost-cli"

// registryCreds is the stored secret, keyed by registry host.
type registryCreds struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Save stores credentials for a registry host in the OS keyring.
func Save(host, username, password string) error {
	data, err := json.Marshal(registryCreds{Username: username, Password: password})
	if err != nil {
		return fmt.Errorf("encode credentials for %s: %w", host, err)
	}
	if err := keyring.Set(service, host, string(data)); err != nil {
		return fmt.Errorf("store credentials for %s in keyring: %w", host, err)
	}
	return nil
}

// Load returns stored credentials for a registry host. ok is false when no
// credentials are stored or the keyring is unavailable.
func Load(host string) (username, password string, ok bool) {
	secret, err := keyring.Get(service, host)
	if err != nil {
		return "", "", false
	}
	var rc registryCreds
	if err := json.Unmarshal([]byte(secret), &rc); err != nil {
		return "", "", false
	}
	return rc.Username, rc.Password, rc.Username != ""
}

// Delete removes stored credentials for a registry host. Missing credentials
// are not an error.
func Delete(host string) error {
	err := keyring.Delete(service, host)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("delete credentials for %s from keyring: %w", host, err)
	}
	return nil
}
