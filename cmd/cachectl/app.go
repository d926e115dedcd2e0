package main

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/couchcryptid/member-locator/internal/store"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var namespaces = []string{
	store.NamespaceNominatim,
	store.NamespaceUserDetails,
	store.NamespaceMemberPage,
	store.NamespaceMembersDict,
}

type app struct {
	dir  string
	out  io.Writer
	open func(dir string, opts ...store.Option) (*store.Store, error)
}

func newApp(out io.Writer) *app {
	return &app{out: out, open: store.Open}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "cachectl",
		Short:         "cachectl inspects and prunes the locator cache.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.dir, "dir", sharedcfg.EnvOrDefault("CACHE_DIR", "cache"), "cache directory")

	root.AddCommand(
		&cobra.Command{
			Use:   "stats",
			Short: "Show entry count and size per namespace.",
			Args:  cobra.NoArgs,
			RunE:  func(*cobra.Command, []string) error { return a.stats() },
		},
		&cobra.Command{
			Use:   "list [namespace]...",
			Short: "List the keys of the given namespaces, or of all of them.",
			RunE:  func(_ *cobra.Command, args []string) error { return a.list(args) },
		},
		&cobra.Command{
			Use:   "thin <namespace> <percent>",
			Short: "Delete a random share of a namespace.",
			Args:  cobra.ExactArgs(2),
			RunE:  func(_ *cobra.Command, args []string) error { return a.thin(args[0], args[1]) },
		},
		&cobra.Command{
			Use:   "purge <namespace>",
			Short: "Delete every entry of a namespace.",
			Args:  cobra.ExactArgs(1),
			RunE:  func(_ *cobra.Command, args []string) error { return a.purge(args[0]) },
		},
		&cobra.Command{
			Use:   "evict <namespace> <substring>...",
			Short: "Delete entries whose first key part contains a substring.",
			Args:  cobra.MinimumNArgs(2),
			RunE:  func(_ *cobra.Command, args []string) error { return a.evict(args[0], args[1:]) },
		},
		&cobra.Command{
			Use:   "prune-short <namespace>",
			Short: "Delete entries keyed by a bare 1-3 letter token.",
			Args:  cobra.ExactArgs(1),
			RunE:  func(_ *cobra.Command, args []string) error { return a.pruneShort(args[0]) },
		},
		&cobra.Command{
			Use:   "delete-user <uid>...",
			Short: "Forget the cached profile details of members.",
			Args:  cobra.MinimumNArgs(1),
			RunE:  func(_ *cobra.Command, args []string) error { return a.deleteUsers(args) },
		},
	)
	return root
}

func (a *app) newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(a.out)
	return t
}

// withStore opens the cache, read-only unless write is set, and closes it after fn.
func (a *app) withStore(write bool, fn func(*store.Store) error) (err error) {
	var opts []store.Option
	if !write {
		opts = append(opts, store.WithReadOnly())
	}
	s, err := a.open(a.dir, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(s)
}

func checkNamespace(ns string) error {
	if !slices.Contains(namespaces, ns) {
		return fmt.Errorf("unknown namespace %q (want one of %v)", ns, namespaces)
	}
	return nil
}

func (a *app) stats() error {
	return a.withStore(false, func(s *store.Store) error {
		stats, err := s.Stats()
		if err != nil {
			return err
		}
		t := a.newTable()
		t.AppendHeader(table.Row{"Namespace", "Entries", "Bytes"})
		var count int
		var size int64
		for _, st := range stats {
			t.AppendRow(table.Row{st.Namespace, st.Count, st.Bytes})
			count += st.Count
			size += st.Bytes
		}
		t.AppendFooter(table.Row{"Total", count, size})
		t.Render()
		return nil
	})
}

func (a *app) list(args []string) error {
	for _, ns := range args {
		if err := checkNamespace(ns); err != nil {
			return err
		}
	}
	if len(args) == 0 {
		args = namespaces
	}
	return a.withStore(false, func(s *store.Store) error {
		t := a.newTable()
		t.AppendHeader(table.Row{"Key", "Bytes"})
		for _, ns := range args {
			for key, err := range s.Keys(ns) {
				if err != nil {
					return err
				}
				size, ok, err := s.SizeOf(key)
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
				t.AppendRow(table.Row{key.String(), size})
			}
		}
		t.Render()
		return nil
	})
}

func (a *app) thin(ns, percent string) error {
	if err := checkNamespace(ns); err != nil {
		return err
	}
	p, err := strconv.ParseFloat(percent, 64)
	if err != nil || p < 0 || p > 100 {
		return fmt.Errorf("percent must be a number between 0 and 100, got %q", percent)
	}
	return a.withStore(true, func(s *store.Store) error {
		n, err := s.Thin(ns, p)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "%d entries deleted from %s\n", n, ns)
		return nil
	})
}

func (a *app) purge(ns string) error {
	if err := checkNamespace(ns); err != nil {
		return err
	}
	return a.withStore(true, func(s *store.Store) error {
		n, err := s.PurgeNamespace(ns)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "%d entries deleted from %s\n", n, ns)
		return nil
	})
}

func (a *app) evict(ns string, substrings []string) error {
	if err := checkNamespace(ns); err != nil {
		return err
	}
	return a.withStore(true, func(s *store.Store) error {
		n, err := s.DeleteMatching(ns, substrings)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "%d entries deleted from %s\n", n, ns)
		return nil
	})
}

func (a *app) pruneShort(ns string) error {
	if err := checkNamespace(ns); err != nil {
		return err
	}
	return a.withStore(true, func(s *store.Store) error {
		n, err := s.DeleteShortKeys(ns)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "%d entries deleted from %s\n", n, ns)
		return nil
	})
}

func (a *app) deleteUsers(uids []string) error {
	return a.withStore(true, func(s *store.Store) error {
		forgotten := 0
		for _, uid := range uids {
			err := s.Delete(store.NewKey(store.NamespaceUserDetails, uid))
			switch {
			case errors.Is(err, store.ErrNotFound):
				fmt.Fprintf(a.out, "no cached details for member %s\n", uid)
			case err != nil:
				return err
			default:
				forgotten++
			}
		}
		fmt.Fprintf(a.out, "%d members forgotten\n", forgotten)
		return nil
	})
}
