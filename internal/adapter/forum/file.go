package forum

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"slices"
	"strconv"

	"github.com/couchcryptid/member-locator/internal/domain"
	"github.com/goccy/go-json"
)

// MemberFile reads members from a JSON dump written by a previous run, either
// a list of members or an object keyed by uid.
type MemberFile struct {
	Path string
}

func (f MemberFile) Members(_ context.Context) ([]domain.Member, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read members file: %w", err)
	}

	var list []domain.Member
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}

	var byUID map[string]domain.Member
	if err := json.Unmarshal(data, &byUID); err != nil {
		return nil, fmt.Errorf("decode members file %s: %w", f.Path, err)
	}
	members := make([]domain.Member, 0, len(byUID))
	for uid, m := range byUID {
		if m.UID == "" {
			m.UID = uid
		}
		members = append(members, m)
	}
	sortByUID(members)
	return members, nil
}

// sortByUID orders members by numeric uid; the dump's own order is lost when
// it is an object.
func sortByUID(members []domain.Member) {
	slices.SortFunc(members, func(a, b domain.Member) int {
		ai, aerr := strconv.Atoi(a.UID)
		bi, berr := strconv.Atoi(b.UID)
		if aerr == nil && berr == nil {
			return cmp.Compare(ai, bi)
		}
		return cmp.Compare(a.UID, b.UID)
	})
}
