package document

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// CompareValues orders two field values. Numbers compare numerically across
// int and float types, timestamps chronologically; everything else falls
// back to string comparison of the default formatting.
func CompareValues(a, b any) int {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}

	at, aok := a.(time.Time)
	bt, bok := b.(time.Time)
	if aok && bok {
		switch {
		case at.Before(bt):
			return -1
		case at.After(bt):
			return 1
		default:
			return 0
		}
	}

	return strings.Compare(fmt.Sprintf("%v", a), fmt.Sprintf("%v", b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// SortByOrders sorts docs in place by the given ordering clauses, applied
// in sequence. The sort is stable so pre-existing ID order survives ties.
func SortByOrders(docs []Document, orders []Order) {
	if len(orders) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, o := range orders {
			vi, _ := docs[i].Get(o.Field)
			vj, _ := docs[j].Get(o.Field)
			c := CompareValues(vi, vj)
			if c == 0 {
				continue
			}
			if o.Descending {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// ApplyCursorWindow trims docs to the window after startAfter and before
// endBefore. Cursors are document IDs issued with a previous page; an
// unknown cursor leaves that edge of the window open.
func ApplyCursorWindow(docs []Document, startAfter, endBefore string) []Document {
	if startAfter != "" {
		for i, doc := range docs {
			if doc.ID == startAfter {
				docs = docs[i+1:]
				break
			}
		}
	}
	if endBefore != "" {
		for i, doc := range docs {
			if doc.ID == endBefore {
				docs = docs[:i]
				break
			}
		}
	}
	return docs
}
