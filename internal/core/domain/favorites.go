package domain

import "slices"

// A FavoriteIDs is the session-local copy of the upstream favorites set.
//
// It only decides how favorite buttons look until the next upstream fetch.
type FavoriteIDs []int64

func FavoriteIDsOf(ps []Product) FavoriteIDs {
	ids := make(FavoriteIDs, 0, len(ps))
	for _, p := range ps {
		ids = append(ids, p.ID)
	}
	return ids
}

func (ids FavoriteIDs) Contains(id int64) bool {
	return slices.Contains(ids, id)
}

// With returns a copy of ids where membership of id equals added.
func (ids FavoriteIDs) With(id int64, added bool) FavoriteIDs {
	out := slices.DeleteFunc(slices.Clone(ids), func(v int64) bool {
		return v == id
	})
	if added {
		out = append(out, id)
	}
	return out
}
