package filestore

// Derivations reports how many times a key has been derived from the secret
func (s *Store) Derivations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.derivations
}
