package query

import (
	"fmt"
	"sort"

	"github.com/arthur-debert/taskman/taskman/schema"
	"github.com/arthur-debert/taskman/types"
)

// sortDocuments sorts docs in place according to the sort clauses. Keys are
// resolved through the schema once per document; documents missing a key
// sort after the ones carrying it, whatever the direction.
func (p *Processor) sortDocuments(docs []types.Document, sortOn []types.SortClause) error {
	resolved := make([][]any, len(docs))
	for i, doc := range docs {
		row := make([]any, len(sortOn))
		for j, clause := range sortOn {
			v, err := p.schema.Resolve(doc, clause.Key)
			if err != nil {
				return err
			}
			if list, ok := v.([]any); ok {
				v = firstPresent(list)
			}
			row[j] = v
		}
		resolved[i] = row
	}

	index := make([]int, len(docs))
	for i := range index {
		index[i] = i
	}
	sort.SliceStable(index, func(a, b int) bool {
		ra, rb := resolved[index[a]], resolved[index[b]]
		for j, clause := range sortOn {
			c := compareForSort(ra[j], rb[j], clause.Descending)
			if c != 0 {
				return c < 0
			}
		}
		return false
	})

	sorted := make([]types.Document, len(docs))
	for i, idx := range index {
		sorted[i] = docs[idx]
	}
	copy(docs, sorted)
	return nil
}

func firstPresent(list []any) any {
	for _, v := range list {
		if !schema.IsAbsent(v) {
			return v
		}
	}
	return schema.Absent
}

// compareForSort never fails: values of different kinds are ordered by kind
func compareForSort(a, b any, descending bool) int {
	absentA, absentB := schema.IsAbsent(a), schema.IsAbsent(b)
	switch {
	case absentA && absentB:
		return 0
	case absentA:
		return 1
	case absentB:
		return -1
	}

	c, err := compareForOrder(a, b)
	if err != nil {
		c = kindRank(a) - kindRank(b)
		if c == 0 {
			c = compareStrings(fmt.Sprint(a), fmt.Sprint(b))
		}
	}
	if descending {
		return -c
	}
	return c
}

// compareForOrder is compareValues with a total order on dates: range
// comparison treats "2024" as equal to both "2024-01" and "2024-05", so dates
// are ordered by start instant, coarser precision first.
func compareForOrder(a, b any) (int, error) {
	da, okA := asDate(a)
	db, okB := asDate(b)
	if !okA || !okB {
		return compareValues(a, b)
	}
	if c := da.Time().Compare(db.Time()); c != 0 {
		return c, nil
	}
	return int(da.Precision()) - int(db.Precision()), nil
}

func kindRank(v any) int {
	if _, ok := asDate(v); ok {
		return 0
	}
	if _, ok := toFloat(v); ok {
		return 1
	}
	if _, ok := v.(string); ok {
		return 2
	}
	return 3
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
