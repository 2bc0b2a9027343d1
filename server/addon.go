package server

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	oauth "github.com/giantswarm/oauth-engine"
	"github.com/giantswarm/oauth-engine/storage"
)

// Addon extends the authorization code flow. Key names the grant extension
// the addon owns; an addon may only read and write its own key.
type Addon interface {
	Key() string
}

// CodeIssuanceHook is implemented by addons that inspect the authorization
// request before a code is minted.
type CodeIssuanceHook interface {
	Addon
	OnCodeIssuance(ctx context.Context, params url.Values, grant *storage.Grant) error
}

// TokenExchangeHook is implemented by addons that inspect the token request
// before a code is exchanged.
type TokenExchangeHook interface {
	Addon
	OnTokenExchange(ctx context.Context, params url.Values, grant *storage.Grant) error
}

// AddonList holds addons in push order
type AddonList struct {
	mu     sync.RWMutex
	addons []Addon
	keys   map[string]struct{}
}

// NewAddonList creates a list holding addons, in order
func NewAddonList(addons ...Addon) (*AddonList, error) {
	l := &AddonList{keys: make(map[string]struct{})}
	for _, a := range addons {
		if err := l.Push(a); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Push appends an addon. Keys must be unique and non-empty.
func (l *AddonList) Push(a Addon) error {
	if a == nil {
		return errors.New("addon cannot be nil")
	}
	key := a.Key()
	if key == "" {
		return errors.New("addon key cannot be empty")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.keys == nil {
		l.keys = make(map[string]struct{})
	}
	if _, exists := l.keys[key]; exists {
		return fmt.Errorf("addon %q already registered", key)
	}
	l.keys[key] = struct{}{}
	l.addons = append(l.addons, a)
	return nil
}

// Len returns the number of addons (nil-safe)
func (l *AddonList) Len() int {
	if l == nil {
		return 0
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.addons)
}

func (l *AddonList) snapshot() []Addon {
	if l == nil {
		return nil
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Addon(nil), l.addons...)
}

// runCodeIssuance runs every CodeIssuanceHook against grant.
// On failure it returns the key of the rejecting addon.
func (l *AddonList) runCodeIssuance(ctx context.Context, params url.Values, grant *storage.Grant) (string, *oauth.OAuthError) {
	for _, a := range l.snapshot() {
		hook, ok := a.(CodeIssuanceHook)
		if !ok {
			continue
		}
		if oe := runIsolated(grant, hook.Key(), func(g *storage.Grant) error {
			return hook.OnCodeIssuance(ctx, params, g)
		}); oe != nil {
			return hook.Key(), oe
		}
	}
	return "", nil
}

// runTokenExchange runs every TokenExchangeHook against grant.
// On failure it returns the key of the rejecting addon.
func (l *AddonList) runTokenExchange(ctx context.Context, params url.Values, grant *storage.Grant) (string, *oauth.OAuthError) {
	for _, a := range l.snapshot() {
		hook, ok := a.(TokenExchangeHook)
		if !ok {
			continue
		}
		if oe := runIsolated(grant, hook.Key(), func(g *storage.Grant) error {
			return hook.OnTokenExchange(ctx, params, g)
		}); oe != nil {
			return hook.Key(), oe
		}
	}
	return "", nil
}

// runIsolated hands fn a clone of grant and merges back only key
func runIsolated(grant *storage.Grant, key string, fn func(*storage.Grant) error) *oauth.OAuthError {
	scratch := grant.Clone()
	if err := fn(&scratch); err != nil {
		return oauth.AsOAuthError(err)
	}
	if v, ok := scratch.Extensions.Get(key); ok {
		grant.SetExtension(key, v)
	} else {
		grant.DeleteExtension(key)
	}
	return nil
}
