// Package filestore keeps the token pair in a single file, optionally sealed with
// XChaCha20-Poly1305 under a key derived from a passphrase.
package filestore

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/kiddiebus/kiddiebus-client/token"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

var sealedMagic = []byte("KBT1")

const saltLength = 16

var _ token.Store = (*Store)(nil)

type Store struct {
	path   string
	secret []byte
	mu     sync.Mutex

	// last derived key and its salt; argon2id is too slow to run on every Load
	salt        []byte
	key         []byte
	derivations int
}

type Option func(*Store)

// WithSecret seals the file contents. Files written without a secret can't be read with one and vice versa.
func WithSecret(secret string) Option {
	return func(s *Store) {
		if secret != "" {
			s.secret = []byte(secret)
		}
	}
}

func New(path string, options ...Option) *Store {
	s := &Store{path: path}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Load(_ context.Context) (token.Pair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return token.Pair{}, nil
	}
	if err != nil {
		return token.Pair{}, fmt.Errorf("filestore.Load ReadFile: %w", err)
	}

	plain, err := s.open(raw)
	if err != nil {
		return token.Pair{}, err
	}

	var pair token.Pair
	if err := json.Unmarshal(plain, &pair); err != nil {
		return token.Pair{}, fmt.Errorf("filestore.Load Unmarshal: %w", err)
	}
	if !pair.Valid() {
		return token.Pair{}, errors.New("filestore.Load: stored token pair is incomplete")
	}
	return pair, nil
}

// Save writes the pair to a temporary file and renames it into place, so readers
// see either the old pair or the new one.
func (s *Store) Save(_ context.Context, pair token.Pair) error {
	if !pair.Valid() {
		return errors.New("filestore.Save: refusing to store an incomplete token pair")
	}

	plain, err := json.Marshal(pair)
	if err != nil {
		return fmt.Errorf("filestore.Save Marshal: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.seal(plain)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("filestore.Save MkdirAll: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".tokens-*")
	if err != nil {
		return fmt.Errorf("filestore.Save CreateTemp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("filestore.Save Write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("filestore.Save Sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("filestore.Save Close: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("filestore.Save Chmod: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("filestore.Save Rename: %w", err)
	}
	return nil
}

func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("filestore.Clear Remove: %w", err)
	}
	return nil
}

func (s *Store) seal(plain []byte) ([]byte, error) {
	if s.secret == nil {
		return plain, nil
	}

	salt := s.salt
	if salt == nil {
		salt = make([]byte, saltLength)
		if _, err := rand.Read(salt); err != nil {
			return nil, fmt.Errorf("filestore.seal rand.Read: %w", err)
		}
	}
	aead, err := chacha20poly1305.NewX(s.keyFor(salt))
	if err != nil {
		return nil, fmt.Errorf("filestore.seal NewX: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("filestore.seal rand.Read: %w", err)
	}

	out := make([]byte, 0, len(sealedMagic)+len(salt)+len(nonce)+len(plain)+aead.Overhead())
	out = append(out, sealedMagic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plain, sealedMagic), nil
}

func (s *Store) open(raw []byte) ([]byte, error) {
	sealed := bytes.HasPrefix(raw, sealedMagic)
	switch {
	case s.secret == nil && sealed:
		return nil, errors.New("filestore: token file is sealed but no secret is configured")
	case s.secret == nil:
		return raw, nil
	case !sealed:
		return nil, errors.New("filestore: token file is not sealed")
	}

	body := raw[len(sealedMagic):]
	if len(body) < saltLength+chacha20poly1305.NonceSizeX {
		return nil, errors.New("filestore: sealed token file is truncated")
	}
	salt, body := body[:saltLength], body[saltLength:]
	nonce, ciphertext := body[:chacha20poly1305.NonceSizeX], body[chacha20poly1305.NonceSizeX:]

	aead, err := chacha20poly1305.NewX(s.keyFor(salt))
	if err != nil {
		return nil, fmt.Errorf("filestore.open NewX: %w", err)
	}
	plain, err := aead.Open(nil, nonce, ciphertext, sealedMagic)
	if err != nil {
		return nil, fmt.Errorf("filestore: unable to open token file: %w", err)
	}
	return plain, nil
}

// keyFor returns the key for salt, deriving it only when salt differs from the last
// one seen. Callers hold s.mu.
func (s *Store) keyFor(salt []byte) []byte {
	if s.key != nil && bytes.Equal(s.salt, salt) {
		return s.key
	}
	s.salt = bytes.Clone(salt)
	s.key = argon2.IDKey(s.secret, salt, 1, 64*1024, 4, chacha20poly1305.KeySize)
	s.derivations++
	return s.key
}
