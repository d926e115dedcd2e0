package store

import (
	"fmt"
	"math"
)

// Thin deletes floor(percent*count/100) live keys of namespace, chosen
// uniformly at random without replacement. Entries written in one bulk run
// all expire together; deleting a small random share on every run spreads
// their refresh over time. An empty namespace is a no-op.
func (s *Store) Thin(namespace string, percent float64) (int, error) {
	if percent < 0 || percent > 100 || math.IsNaN(percent) {
		return 0, fmt.Errorf("thin %s: percent %v out of range [0, 100]", namespace, percent)
	}

	var keys []Key
	for k, err := range s.Keys(namespace) {
		if err != nil {
			return 0, err
		}
		keys = append(keys, k)
	}

	if len(keys) == 0 {
		s.logger.Info("no entries to thin", "namespace", namespace)
		return 0, nil
	}

	n := int(math.Floor(percent * float64(len(keys)) / 100))
	victims := s.sample(keys, n)

	deleted, err := s.deleteKeys(victims)
	if err != nil {
		return 0, fmt.Errorf("thin %s: %w", namespace, err)
	}
	s.logger.Info("cache thinned",
		"namespace", namespace,
		"deleted", deleted,
		"total", len(keys),
	)
	return deleted, nil
}

// sample picks n distinct keys with a partial Fisher-Yates shuffle.
func (s *Store) sample(keys []Key, n int) []Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range n {
		j := i + s.rng.IntN(len(keys)-i)
		keys[i], keys[j] = keys[j], keys[i]
	}
	return keys[:n]
}
