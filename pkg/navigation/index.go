package navigation

// Index maps a clause number ("19.1") to the 1-based page it starts on.
type Index map[string]int

func (i Index) Page(clause string) (int, bool) {
	page, ok := i[clause]
	return page, ok && page > 0
}

// Merge layers the indexes left to right; earlier ones win. Callers pass the
// curated static index first and the extracted one after it.
func Merge(indexes ...Index) Index {
	out := make(Index)
	for i := len(indexes) - 1; i >= 0; i-- {
		for clause, page := range indexes[i] {
			if page > 0 {
				out[clause] = page
			}
		}
	}
	return out
}
