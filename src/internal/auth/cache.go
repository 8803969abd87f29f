// FILE: synctrack/src/internal/auth/cache.go
package auth

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"synctrack/src/internal/core"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	secretFileName = ".secret"
	secretLen      = 32
	userFileExt    = ".user"
)

// Cache persists the current user of each app between runs.
// Entries are sealed with XChaCha20-Poly1305 under a key derived (Argon2id)
// from a per-directory secret and a per-entry salt, and bound to the app id.
type Cache struct {
	dir string
	mu  sync.Mutex
}

// NewCache creates a user cache rooted at dir
func NewCache(dir string) *Cache {
	return &Cache{dir: dir}
}

// Dir returns the cache directory
func (c *Cache) Dir() string {
	return c.dir
}

// Load returns the cached user for appID, or nil if none is cached
func (c *Cache) Load(appID string) (*User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.userPath(appID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached user: %w", err)
	}

	minLen := core.Argon2SaltLen + chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead
	if len(data) < minLen {
		return nil, fmt.Errorf("cached user for %s is truncated", appID)
	}

	salt := data[:core.Argon2SaltLen]
	nonce := data[core.Argon2SaltLen : core.Argon2SaltLen+chacha20poly1305.NonceSizeX]
	sealed := data[core.Argon2SaltLen+chacha20poly1305.NonceSizeX:]

	aead, err := c.aead(salt)
	if err != nil {
		return nil, err
	}

	plain, err := aead.Open(nil, nonce, sealed, []byte(appID))
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt cached user for %s: %w", appID, err)
	}

	var user User
	if err := json.Unmarshal(plain, &user); err != nil {
		return nil, fmt.Errorf("failed to decode cached user: %w", err)
	}
	return &user, nil
}

// Save stores user as the current user of appID
func (c *Cache) Save(appID string, user *User) error {
	if user == nil {
		return fmt.Errorf("cannot cache nil user")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0700); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	plain, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}

	salt := make([]byte, core.Argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	aead, err := c.aead(salt)
	if err != nil {
		return err
	}

	out := make([]byte, 0, len(salt)+len(nonce)+len(plain)+aead.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, plain, []byte(appID))

	return writeFileAtomic(c.userPath(appID), out)
}

// Remove forgets the cached user of appID
func (c *Cache) Remove(appID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.Remove(c.userPath(appID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove cached user: %w", err)
	}
	return nil
}

func (c *Cache) aead(salt []byte) (cipher.AEAD, error) {
	secret, err := c.secret()
	if err != nil {
		return nil, err
	}
	key := argon2.IDKey(secret, salt, core.Argon2Time, core.Argon2Memory, core.Argon2Threads, core.Argon2KeyLen)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return aead, nil
}

// secret loads or creates the per-directory secret; caller holds c.mu
func (c *Cache) secret() ([]byte, error) {
	path := filepath.Join(c.dir, secretFileName)

	secret, err := os.ReadFile(path)
	if err == nil && len(secret) == secretLen {
		return secret, nil
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read cache secret: %w", err)
	}

	if err := os.MkdirAll(c.dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	secret = make([]byte, secretLen)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate cache secret: %w", err)
	}
	if err := writeFileAtomic(path, secret); err != nil {
		return nil, err
	}
	return secret, nil
}

func (c *Cache) userPath(appID string) string {
	return filepath.Join(c.dir, sanitizeName(appID)+userFileExt)
}

func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, name)
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to set file permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
