package illust

import (
	"fmt"
	"strings"
	"time"
)

// Type classifies an illustration record.
type Type string

const (
	TypeIllust Type = "illust"
	TypeManga  Type = "manga"
	TypeUgoira Type = "ugoira"
)

// AgeLimit classifies the age restriction of a record.
type AgeLimit string

const (
	AgeLimitAll  AgeLimit = "all-age"
	AgeLimitR18  AgeLimit = "r18"
	AgeLimitR18G AgeLimit = "r18-g"
)

var typeSet = map[Type]struct{}{
	TypeIllust: {},
	TypeManga:  {},
	TypeUgoira: {},
}

// ParseType converts a string into a known Type.
func ParseType(value string) (Type, bool) {
	normalized := Type(strings.ToLower(strings.TrimSpace(value)))
	_, ok := typeSet[normalized]
	return normalized, ok
}

// User identifies the owning account of an illustration.
type User struct {
	ID              int64
	Account         string
	Name            string
	ProfileImageURL string
}

// Illust is one fetched gallery item with metadata and page URLs.
//
// For TypeUgoira records PageURLs holds exactly one URL pointing at the frame
// archive, and FrameDelays holds one display duration in milliseconds per
// frame of that archive (indexed by frame, not by page).
type Illust struct {
	ID         int64
	User       User
	CreateDate time.Time

	Title   string
	Caption string

	Type     Type
	AgeLimit AgeLimit

	Width  int
	Height int

	PageURLs    []string
	FrameDelays []int

	Tags  []string
	Tools []string

	TotalBookmarks int
	TotalViews     int

	// Rank is the 1-based position assigned by a ranking fetch, zero
	// otherwise.
	Rank int
}

// PageCount reports the number of downloadable pages.
func (i Illust) PageCount() int {
	return len(i.PageURLs)
}

// Size returns (width, height).
func (i Illust) Size() (int, int) {
	return i.Width, i.Height
}

// Area reports width times height in pixels.
func (i Illust) Area() int {
	return i.Width * i.Height
}

// AspectRatio reports width divided by height, or zero for degenerate records.
func (i Illust) AspectRatio() float64 {
	if i.Height == 0 {
		return 0
	}
	return float64(i.Width) / float64(i.Height)
}

// IsUgoira reports whether the record is an animated-frame archive.
func (i Illust) IsUgoira() bool {
	return i.Type == TypeUgoira
}

// Validate checks the structural invariants of a record.
func (i Illust) Validate() error {
	if i.ID <= 0 {
		return fmt.Errorf("illust %d: non-positive id", i.ID)
	}
	if len(i.PageURLs) == 0 {
		return fmt.Errorf("illust %d: no page urls", i.ID)
	}
	if i.Type == TypeUgoira {
		if len(i.PageURLs) != 1 {
			return fmt.Errorf("illust %d: ugoira must have exactly one page url, got %d", i.ID, len(i.PageURLs))
		}
		if len(i.FrameDelays) == 0 {
			return fmt.Errorf("illust %d: ugoira has no frame delays", i.ID)
		}
	} else if len(i.FrameDelays) != 0 {
		return fmt.Errorf("illust %d: frame delays on non-ugoira record", i.ID)
	}
	return nil
}
