package query_test

import (
	"errors"
	"testing"
	"time"

	"pixie/internal/errkind"
	"pixie/internal/illust"
	"pixie/internal/query"
)

func sampleIllust() illust.Illust {
	return illust.Illust{
		ID:         112233,
		User:       illust.User{ID: 42, Account: "painter", Name: "Painter"},
		CreateDate: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Title:      "Morning Glory",
		Type:       illust.TypeIllust,
		AgeLimit:   illust.AgeLimitAll,
		Width:      1200,
		Height:     1600,
		PageURLs:   []string{"https://img.example/112233_p0.png"},
		Tags:       []string{"original", "landscape"},
		TotalBookmarks: 980,
		TotalViews:     15000,
	}
}

func TestWhereLookups(t *testing.T) {
	record := sampleIllust()

	cases := []struct {
		name  string
		expr  string
		value any
		want  bool
	}{
		{"implicit eq", "id", int64(112233), true},
		{"implicit eq mismatch", "id", int64(1), false},
		{"nested field", "user__id", 42, true},
		{"nested account", "user__account", "painter", true},
		{"gte", "total_bookmarks__gte", 900, true},
		{"lt", "total_bookmarks__lt", 900, false},
		{"method lookup", "aspect_ratio__lt", 1.0, true},
		{"method lookup page count", "page_count", 1, true},
		{"contains slice", "tags__contains", "original", true},
		{"contains miss", "tags__contains", "r-18", false},
		{"in", "type__in", []string{"illust", "manga"}, true},
		{"startswith", "title__startswith", "Morning", true},
		{"endswith", "title__endswith", "Story", false},
		{"range inclusive low", "width__range", []int{1200, 2000}, true},
		{"range inclusive high", "width__range", []int{600, 1200}, true},
		{"range outside", "width__range", []int{0, 1199}, false},
		{"regex full match", "title__regex", `Morning \w+`, true},
		{"regex partial is not a match", "title__regex", `Morning`, false},
		{"iregex", "title__iregex", `morning glory`, true},
		{"divisible_by", "width__divisible_by", 300, true},
		{"isnull false", "frame_delays__isnull", true, true},
		{"indexed access", "tags__0", "original", true},
		{"time compare", "create_date__gt", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pred, err := query.Where[illust.Illust](tc.expr, tc.value)
			if err != nil {
				t.Fatalf("Where(%q) failed: %v", tc.expr, err)
			}
			if got := pred.Match(record); got != tc.want {
				t.Fatalf("Match(%q, %v) = %v, want %v", tc.expr, tc.value, got, tc.want)
			}
		})
	}
}

func TestWhereConfigurationErrors(t *testing.T) {
	cases := []struct {
		name  string
		build func() error
	}{
		{"unknown explicit comparator", func() error {
			_, err := query.WhereOp[illust.Illust]("width", "approximately", 100)
			return err
		}},
		{"bad regex", func() error {
			_, err := query.Where[illust.Illust]("title__regex", "(")
			return err
		}},
		{"short range", func() error {
			_, err := query.Where[illust.Illust]("width__range", []int{1})
			return err
		}},
		{"zero divisor", func() error {
			_, err := query.Where[illust.Illust]("width__divisible_by", 0)
			return err
		}},
		{"isnull non-bool", func() error {
			_, err := query.Where[illust.Illust]("title__isnull", "yes")
			return err
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.build()
			if err == nil {
				t.Fatal("expected construction error, got nil")
			}
			if !errors.Is(err, errkind.ErrConfiguration) {
				t.Fatalf("error %v is not a configuration error", err)
			}
		})
	}
}

func TestUnregisteredTrailingSegmentIsFieldPath(t *testing.T) {
	// "account" is not a comparator, so the whole expression is a path and
	// eq applies.
	pred, err := query.Where[illust.Illust]("user__account", "painter")
	if err != nil {
		t.Fatalf("Where failed: %v", err)
	}
	if !pred.Match(sampleIllust()) {
		t.Fatal("expected implicit eq over full path to match")
	}
}

func TestLoneComparatorSegmentIsFieldPath(t *testing.T) {
	// A single-segment expression never names a comparator; "eq" here is
	// a field path, and the sample record has no such field.
	pred, err := query.Where[illust.Illust]("eq", 5)
	if err != nil {
		t.Fatalf("Where failed: %v", err)
	}
	defer func() {
		if recover() == nil {
			t.Fatal("expected a lookup panic for the missing field")
		}
	}()
	pred.Match(sampleIllust())
}

func TestWhereOpEmptyPathComparesTheRecord(t *testing.T) {
	pred, err := query.WhereOp[int]("", "gte", 10)
	if err != nil {
		t.Fatalf("WhereOp failed: %v", err)
	}
	if !pred.Match(12) {
		t.Fatal("12 should satisfy gte 10")
	}
	if pred.Match(3) {
		t.Fatal("3 should not satisfy gte 10")
	}
}

func TestCombinatorsDoNotMutateOperands(t *testing.T) {
	record := sampleIllust()
	wide := query.MustWhere[illust.Illust]("width__gte", 1000)
	popular := query.MustWhere[illust.Illust]("total_bookmarks__gte", 10000)

	combined := wide.And(popular)
	if combined.Match(record) {
		t.Fatal("combined predicate should not match")
	}
	// Operands still behave independently after composition.
	if !wide.Match(record) {
		t.Fatal("wide operand was affected by composition")
	}
	if popular.Match(record) {
		t.Fatal("popular operand was affected by composition")
	}
}

func TestDoubleNegationIsIdentity(t *testing.T) {
	records := []illust.Illust{sampleIllust()}
	wide := sampleIllust()
	wide.Width, wide.Height = 3000, 1000
	records = append(records, wide)

	preds := []query.Predicate[illust.Illust]{
		query.MustWhere[illust.Illust]("aspect_ratio__lt", 1.0),
		query.MustWhere[illust.Illust]("tags__contains", "original"),
		query.Func(func(i illust.Illust) bool { return i.ID%2 == 0 }),
	}
	for _, p := range preds {
		double := p.Not().Not()
		for _, record := range records {
			if p.Match(record) != double.Match(record) {
				t.Fatalf("double negation changed result for %+v", record.ID)
			}
		}
	}
}

func TestXor(t *testing.T) {
	truthy := query.Func(func(illust.Illust) bool { return true })
	falsy := query.Func(func(illust.Illust) bool { return false })
	record := sampleIllust()

	if truthy.Xor(truthy).Match(record) {
		t.Fatal("true xor true should be false")
	}
	if !truthy.Xor(falsy).Match(record) {
		t.Fatal("true xor false should be true")
	}
}

func TestMissingFieldPanics(t *testing.T) {
	pred := query.MustWhere[illust.Illust]("no_such_field", 1)
	defer func() {
		recovered := recover()
		if recovered == nil {
			t.Fatal("expected panic on missing field lookup")
		}
		if _, ok := recovered.(*query.LookupError); !ok {
			t.Fatalf("panic value %T is not *LookupError", recovered)
		}
	}()
	pred.Match(sampleIllust())
}
