package download

import (
	"testing"

	"pixie/internal/illust"
)

func TestRenderName(t *testing.T) {
	record := illust.Illust{
		ID:       123,
		User:     illust.User{ID: 7, Name: "art/ist"},
		Title:    "sunset",
		Type:     illust.TypeIllust,
		AgeLimit: illust.AgeLimitAll,
		Rank:     4,
	}

	tests := []struct {
		name     string
		template string
		page     int
		order    int
		original string
		want     string
	}{
		{
			name:     "no template keeps remote name",
			template: "",
			original: "123_p0.png",
			want:     "123_p0.png",
		},
		{
			name:     "field and page placeholders",
			template: "{id}_p{page}.{ext}",
			page:     2,
			original: "123_p2.png",
			want:     "123_p2.png",
		},
		{
			name:     "subdirectory per user",
			template: "{user_id}/{root}.{ext}",
			original: "123_p0.png",
			want:     "7/123_p0.png",
		},
		{
			name:     "order and rank",
			template: "{order}_rank{rank}_{original_name}",
			order:    9,
			original: "123_p0.png",
			want:     "9_rank4_123_p0.png",
		},
		{
			name:     "title slash cannot escape the directory",
			template: "{user_name}_{title}.{ext}",
			original: "123_p0.png",
			want:     "art_ist_sunset.png",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := renderName(tt.template, record, tt.page, tt.order, tt.original)
			if got != tt.want {
				t.Fatalf("renderName(%q) = %q, want %q", tt.template, got, tt.want)
			}
		})
	}
}

func TestRewriteArchiveExt(t *testing.T) {
	if got := rewriteArchiveExt("9_ugoira600x600.zip"); got != "9_ugoira600x600.gif" {
		t.Fatalf("unexpected rewrite %q", got)
	}
	if got := rewriteArchiveExt("123_p0.png"); got != "123_p0.png" {
		t.Fatalf("non-archive name should pass through, got %q", got)
	}
}

func TestRemoteName(t *testing.T) {
	if got := remoteName("https://img.example/a/b/123_p0.png?x=1"); got != "123_p0.png" {
		t.Fatalf("unexpected remote name %q", got)
	}
}
