// Package identity describes who is calling the store and what they may do.
package identity

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Caller identifies the process behind a request.
type Caller struct {
	User    int32
	TokenID uint32
	Bundle  string
}

func (c Caller) String() string {
	return fmt.Sprintf("%s(user=%d token=%d)", c.Bundle, c.User, c.TokenID)
}

// Policy answers the permission questions the store asks.
type Policy interface {
	// CanCopy reports whether c may replace the clipboard.
	CanCopy(c Caller) bool
	// IsFocused reports whether c owns the foreground window of its user.
	IsFocused(c Caller) bool
	// IsDefaultIME reports whether c is its user's default input method.
	IsDefaultIME(c Caller) bool
	// Privileged reports whether c may use operator commands such as dump.
	Privileged(c Caller) bool
	// Account returns the account user is signed in to, or "".
	Account(user int32) string
	// DeviceID returns the identity of this device.
	DeviceID() string
}

// StaticPolicy is a Policy driven by configuration. Until SetFocus names a
// bundle for a user, every caller of that user counts as focused.
type StaticPolicy struct {
	Device          string
	DefaultAccount  string
	IMEBundle       string
	DenyBundles     []string
	PrivilegedUsers []int32

	mu       sync.RWMutex
	accounts map[int32]string
	focused  map[int32]string
}

func (p *StaticPolicy) CanCopy(c Caller) bool {
	return !slices.Contains(p.DenyBundles, c.Bundle)
}

func (p *StaticPolicy) IsFocused(c Caller) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	b, ok := p.focused[c.User]
	return !ok || b == c.Bundle
}

func (p *StaticPolicy) IsDefaultIME(c Caller) bool {
	return p.IMEBundle != "" && c.Bundle == p.IMEBundle
}

func (p *StaticPolicy) Privileged(c Caller) bool {
	return slices.Contains(p.PrivilegedUsers, c.User)
}

func (p *StaticPolicy) Account(user int32) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if a, ok := p.accounts[user]; ok {
		return a
	}
	return p.DefaultAccount
}

func (p *StaticPolicy) DeviceID() string { return p.Device }

// SetFocus records bundle as the foreground application of user. An empty
// bundle restores the everyone-is-focused default.
func (p *StaticPolicy) SetFocus(user int32, bundle string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.focused == nil {
		p.focused = make(map[int32]string)
	}
	if bundle == "" {
		delete(p.focused, user)
		return
	}
	p.focused[user] = bundle
}

// SetAccount signs user in to account; "" signs them out.
func (p *StaticPolicy) SetAccount(user int32, account string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.accounts == nil {
		p.accounts = make(map[int32]string)
	}
	p.accounts[user] = account
}

// LoadDeviceID reads the device id stored at path, creating a new random id
// if the file does not exist yet.
func LoadDeviceID(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err == nil {
		if id := strings.TrimSpace(string(b)); id != "" {
			return id, nil
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("read device id: %w", err)
	}

	id := uuid.NewString()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("write device id: %w", err)
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("write device id: %w", err)
	}
	slog.Info("generated device id", "id", id, "path", path)
	return id, nil
}
