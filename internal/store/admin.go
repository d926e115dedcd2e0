package store

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/dgraph-io/badger/v4"
)

// NamespaceStats summarises one namespace.
type NamespaceStats struct {
	Namespace string
	Count     int
	Bytes     int64
}

// Stats returns entry count and stored bytes per namespace, sorted by name.
// Expired entries are not counted.
func (s *Store) Stats() ([]NamespaceStats, error) {
	byNS := make(map[string]*NamespaceStats)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := item.Key()
			i := bytes.IndexByte(key, nsSep)
			if i < 0 {
				continue
			}
			live, err := s.live(item)
			if err != nil {
				return err
			}
			if !live {
				continue
			}
			ns := string(key[:i])
			st, ok := byNS[ns]
			if !ok {
				st = &NamespaceStats{Namespace: ns}
				byNS[ns] = st
			}
			st.Count++
			st.Bytes += item.ValueSize()
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}

	out := make([]NamespaceStats, 0, len(byNS))
	for _, st := range byNS {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Namespace < out[j].Namespace })
	return out, nil
}

// PurgeNamespace deletes every entry of namespace and returns how many it removed.
func (s *Store) PurgeNamespace(namespace string) (int, error) {
	keys, err := s.collect(namespace, nil)
	if err != nil {
		return 0, err
	}
	n, err := s.deleteKeys(keys)
	if err != nil {
		return 0, fmt.Errorf("purge %s: %w", namespace, err)
	}
	s.logger.Info("namespace purged", "namespace", namespace, "deleted", n)
	return n, nil
}

// DeleteMatching deletes the entries of namespace whose first key part
// contains any of substrings, ignoring case.
func (s *Store) DeleteMatching(namespace string, substrings []string) (int, error) {
	needles := make([]string, 0, len(substrings))
	for _, sub := range substrings {
		if sub = strings.ToLower(sub); sub != "" {
			needles = append(needles, sub)
		}
	}
	if len(needles) == 0 {
		return 0, nil
	}

	keys, err := s.collect(namespace, func(k Key) bool {
		first := strings.ToLower(k.First())
		for _, n := range needles {
			if strings.Contains(first, n) {
				return true
			}
		}
		return false
	})
	if err != nil {
		return 0, err
	}
	for _, k := range keys {
		s.logger.Debug("deleting matching entry", "key", k.String())
	}
	return s.deleteKeys(keys)
}

// DeleteShortKeys deletes the entries of namespace whose first key part is
// one to three letters, such as ("nominatim", "nrw", "de").
func (s *Store) DeleteShortKeys(namespace string) (int, error) {
	keys, err := s.collect(namespace, func(k Key) bool {
		first := []rune(k.First())
		if len(first) == 0 || len(first) > 3 {
			return false
		}
		for _, r := range first {
			if !unicode.IsLetter(r) {
				return false
			}
		}
		return true
	})
	if err != nil {
		return 0, err
	}
	return s.deleteKeys(keys)
}
