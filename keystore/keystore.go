package keystore

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/smartcontractkit/chainlink-common/pkg/loop"
)

var _ loop.Keystore = &Keystore{}

// Keystore holds signing keys indexed by their hex public key.
type Keystore struct {
	lock sync.RWMutex
	keys map[string]PrivateKey
}

func New(keys ...PrivateKey) *Keystore {
	ks := &Keystore{keys: map[string]PrivateKey{}}
	for _, k := range keys {
		ks.Add(k)
	}
	return ks
}

// Add stores key and returns its account id.
func (k *Keystore) Add(key PrivateKey) string {
	id := key.PublicKey().String()

	k.lock.Lock()
	defer k.lock.Unlock()
	k.keys[id] = key
	return id
}

// Accounts returns the hex public keys of all stored keys, sorted.
func (k *Keystore) Accounts(ctx context.Context) ([]string, error) {
	k.lock.RLock()
	defer k.lock.RUnlock()

	accounts := maps.Keys(k.keys)
	slices.Sort(accounts)
	return accounts, nil
}

// Sign signs data with the key of account. A nil data only checks the key exists.
func (k *Keystore) Sign(ctx context.Context, account string, data []byte) ([]byte, error) {
	k.lock.RLock()
	key, ok := k.keys[account]
	k.lock.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no key for account %s", account)
	}

	if data == nil {
		return nil, nil
	}
	return key.Sign(data)
}
