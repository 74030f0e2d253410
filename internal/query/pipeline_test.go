package query_test

import (
	"iter"
	"slices"
	"testing"

	"pixie/internal/illust"
	"pixie/internal/query"
)

func testRecords() []illust.Illust {
	mk := func(id int64, typ illust.Type, bookmarks int) illust.Illust {
		return illust.Illust{
			ID:             id,
			Type:           typ,
			TotalBookmarks: bookmarks,
			PageURLs:       []string{"u"},
		}
	}
	return []illust.Illust{
		mk(1, illust.TypeIllust, 50),
		mk(2, illust.TypeManga, 900),
		mk(3, illust.TypeIllust, 700),
		mk(4, illust.TypeUgoira, 300),
		mk(5, illust.TypeIllust, 120),
	}
}

func ids(items []illust.Illust) []int64 {
	out := make([]int64, 0, len(items))
	for _, item := range items {
		out = append(out, item.ID)
	}
	return out
}

func TestFilterComposition(t *testing.T) {
	// P.filter(f1).filter(f2) must equal P.filter(f1 AND f2).
	records := testRecords()
	f1 := query.MustWhere[illust.Illust]("type", "illust")
	f2 := query.MustWhere[illust.Illust]("total_bookmarks__gte", 100)

	chained := query.FromSlice(records).Filter(f1).Filter(f2).Collect()
	combined := query.FromSlice(records).Filter(f1.And(f2)).Collect()

	if !slices.Equal(ids(chained), ids(combined)) {
		t.Fatalf("chained %v != combined %v", ids(chained), ids(combined))
	}
	if want := []int64{3, 5}; !slices.Equal(ids(chained), want) {
		t.Fatalf("filtered ids = %v, want %v", ids(chained), want)
	}
}

func TestExclude(t *testing.T) {
	records := testRecords()
	out := query.FromSlice(records).
		Exclude(query.MustWhere[illust.Illust]("type", "ugoira")).
		Collect()
	if want := []int64{1, 2, 3, 5}; !slices.Equal(ids(out), want) {
		t.Fatalf("exclude ids = %v, want %v", ids(out), want)
	}
}

func TestOrderByDescendingIsReverseOfAscending(t *testing.T) {
	records := testRecords() // bookmark counts are all distinct
	asc := query.FromSlice(records).OrderBy("total_bookmarks").Collect()
	desc := query.FromSlice(records).OrderBy("-total_bookmarks").Collect()

	slices.Reverse(asc)
	if !slices.Equal(ids(asc), ids(desc)) {
		t.Fatalf("descending order %v is not the reverse of ascending", ids(desc))
	}
}

func TestOrderByMultipleFieldsStable(t *testing.T) {
	records := testRecords()
	out := query.FromSlice(records).OrderBy("type", "-total_bookmarks").Collect()
	if want := []int64{3, 5, 1, 2, 4}; !slices.Equal(ids(out), want) {
		t.Fatalf("multi-key order = %v, want %v", ids(out), want)
	}
}

func naturals() iter.Seq[illust.Illust] {
	return func(yield func(illust.Illust) bool) {
		for id := int64(1); ; id++ {
			if !yield(illust.Illust{ID: id, PageURLs: []string{"u"}}) {
				return
			}
		}
	}
}

func TestLimitIsLazyOverUnboundedUpstream(t *testing.T) {
	out := query.From(naturals()).Limit(4).Collect()
	if want := []int64{1, 2, 3, 4}; !slices.Equal(ids(out), want) {
		t.Fatalf("limit over unbounded seq = %v, want %v", ids(out), want)
	}
}

func TestSliceIsLazyOverUnboundedUpstream(t *testing.T) {
	out := query.From(naturals()).Slice(2, 5).Collect()
	if want := []int64{3, 4, 5}; !slices.Equal(ids(out), want) {
		t.Fatalf("slice over unbounded seq = %v, want %v", ids(out), want)
	}
}

func TestFilterIsLazyOverUnboundedUpstream(t *testing.T) {
	even := query.Func(func(i illust.Illust) bool { return i.ID%2 == 0 })
	out := query.From(naturals()).Filter(even).Limit(3).Collect()
	if want := []int64{2, 4, 6}; !slices.Equal(ids(out), want) {
		t.Fatalf("lazy filter = %v, want %v", ids(out), want)
	}
}

func TestDistinct(t *testing.T) {
	records := testRecords()
	records = append(records, records[0], records[2])
	out := query.FromSlice(records).
		Distinct(func(i illust.Illust) any { return i.ID }).
		Collect()
	if want := []int64{1, 2, 3, 4, 5}; !slices.Equal(ids(out), want) {
		t.Fatalf("distinct ids = %v, want %v", ids(out), want)
	}
}

func TestReverse(t *testing.T) {
	out := query.FromSlice(testRecords()).Reverse().Collect()
	if want := []int64{5, 4, 3, 2, 1}; !slices.Equal(ids(out), want) {
		t.Fatalf("reverse ids = %v, want %v", ids(out), want)
	}
}

func TestPrependAppend(t *testing.T) {
	head := query.FromSlice([]illust.Illust{{ID: 100, PageURLs: []string{"u"}}})
	tail := query.FromSlice([]illust.Illust{{ID: 200, PageURLs: []string{"u"}}})
	out := query.FromSlice(testRecords()).
		Prepend(head.Seq()).
		Append(tail.Seq()).
		Collect()
	if want := []int64{100, 1, 2, 3, 4, 5, 200}; !slices.Equal(ids(out), want) {
		t.Fatalf("concat ids = %v, want %v", ids(out), want)
	}
}

func TestEnumerateStartsAtOne(t *testing.T) {
	var orders []int
	var seen []int64
	for order, record := range query.FromSlice(testRecords()).Limit(3).Enumerate(1) {
		orders = append(orders, order)
		seen = append(seen, record.ID)
	}
	if want := []int{1, 2, 3}; !slices.Equal(orders, want) {
		t.Fatalf("orders = %v, want %v", orders, want)
	}
	if want := []int64{1, 2, 3}; !slices.Equal(seen, want) {
		t.Fatalf("records = %v, want %v", seen, want)
	}
}

func TestTransformsDoNotMutateReceiver(t *testing.T) {
	base := query.FromSlice(testRecords())
	_ = base.Filter(query.MustWhere[illust.Illust]("type", "manga")).Collect()
	// The receiver is backed by a slice, so it stays independently
	// re-iterable after a derived pipeline consumed it.
	out := base.Collect()
	if want := []int64{1, 2, 3, 4, 5}; !slices.Equal(ids(out), want) {
		t.Fatalf("base pipeline changed after derivation: %v", ids(out))
	}
}
