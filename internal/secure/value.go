package secure

import (
	"errors"
	"sync"

	"github.com/awnumar/memguard"
)

// ErrDestroyed is returned by Reveal after Destroy.
var ErrDestroyed = errors.New("secure value has been destroyed")

// Value keeps a secret encrypted in memory. The zero value is not usable;
// create one with NewValue.
type Value struct {
	mu      sync.Mutex
	enclave *memguard.Enclave
	empty   bool
}

// NewValue seals data and wipes the caller's copy.
func NewValue(data []byte) *Value {
	if len(data) == 0 {
		return &Value{empty: true}
	}
	// NewEnclave wipes data after copying it.
	return &Value{enclave: memguard.NewEnclave(data)}
}

// FromString seals s. The string itself cannot be wiped.
func FromString(s string) *Value {
	return NewValue([]byte(s))
}

// Reveal decrypts the value into an ordinary string.
func (v *Value) Reveal() (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.empty {
		return "", nil
	}
	if v.enclave == nil {
		return "", ErrDestroyed
	}
	locked, err := v.enclave.Open()
	if err != nil {
		return "", err
	}
	defer locked.Destroy()
	return string(locked.Bytes()), nil
}

// Destroy drops the enclave. It is safe to call more than once.
func (v *Value) Destroy() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.enclave = nil
	v.empty = false
}

// String never prints the plaintext.
func (v *Value) String() string {
	return "*****"
}
