package pixiv

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pixie/internal/errkind"
	"pixie/internal/illust"
)

// RankingMode selects the leaderboard a ranking fetch reads.
type RankingMode string

const (
	RankDay          RankingMode = "day"
	RankWeek         RankingMode = "week"
	RankMonth        RankingMode = "month"
	RankDayMale      RankingMode = "day_male"
	RankDayFemale    RankingMode = "day_female"
	RankWeekOriginal RankingMode = "week_original"
	RankWeekRookie   RankingMode = "week_rookie"
	RankDayManga     RankingMode = "day_manga"
	RankDayR18       RankingMode = "day_r18"
	RankDayMaleR18   RankingMode = "day_male_r18"
	RankDayFemaleR18 RankingMode = "day_female_r18"
	RankWeekR18      RankingMode = "week_r18"
	RankWeekR18G     RankingMode = "week_r18g"
)

// RankingModes lists the accepted mode names in presentation order.
func RankingModes() []RankingMode {
	return []RankingMode{
		RankDay, RankWeek, RankMonth,
		RankDayMale, RankDayFemale,
		RankWeekOriginal, RankWeekRookie, RankDayManga,
		RankDayR18, RankDayMaleR18, RankDayFemaleR18,
		RankWeekR18, RankWeekR18G,
	}
}

// SearchMode selects which record text a search query matches.
type SearchMode string

const (
	SearchTag      SearchMode = "tag"
	SearchExactTag SearchMode = "exact_tag"
	SearchText     SearchMode = "text"
	SearchCaption  SearchMode = "caption"
)

var searchTargets = map[SearchMode]string{
	SearchTag:      "partial_match_for_tags",
	SearchExactTag: "exact_match_for_tags",
	SearchText:     "title_and_caption",
	SearchCaption:  "title_and_caption",
}

// offsetCap mirrors the service-side pagination ceiling; requests beyond it
// are rejected, so streams stop there.
const offsetCap = 5000

type illustJSON struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	Caption    string `json:"caption"`
	CreateDate string `json:"create_date"`
	Type       string `json:"type"`
	User       struct {
		ID              int64  `json:"id"`
		Account         string `json:"account"`
		Name            string `json:"name"`
		ProfileImageURL struct {
			Medium string `json:"medium"`
		} `json:"profile_image_urls"`
	} `json:"user"`
	Width          int `json:"width"`
	Height         int `json:"height"`
	PageCount      int `json:"page_count"`
	XRestrict      int `json:"x_restrict"`
	MetaSinglePage struct {
		OriginalImageURL string `json:"original_image_url"`
	} `json:"meta_single_page"`
	MetaPages []struct {
		ImageURLs struct {
			Original string `json:"original"`
		} `json:"image_urls"`
	} `json:"meta_pages"`
	Tags []struct {
		Name string `json:"name"`
	} `json:"tags"`
	Tools          []string `json:"tools"`
	TotalBookmarks int      `json:"total_bookmarks"`
	TotalView      int      `json:"total_view"`
}

type illustPage struct {
	Illusts []illustJSON `json:"illusts"`
	NextURL string       `json:"next_url"`
}

func (c *Client) toIllust(ctx context.Context, raw illustJSON) (illust.Illust, error) {
	record := illust.Illust{
		ID: raw.ID,
		User: illust.User{
			ID:              raw.User.ID,
			Account:         raw.User.Account,
			Name:            raw.User.Name,
			ProfileImageURL: raw.User.ProfileImageURL.Medium,
		},
		Title:          raw.Title,
		Caption:        raw.Caption,
		Width:          raw.Width,
		Height:         raw.Height,
		TotalBookmarks: raw.TotalBookmarks,
		TotalViews:     raw.TotalView,
		Tools:          raw.Tools,
	}

	if created, err := time.Parse(time.RFC3339, raw.CreateDate); err == nil {
		record.CreateDate = created
	}

	typ, ok := illust.ParseType(raw.Type)
	if !ok {
		return illust.Illust{}, errkind.Wrap(errkind.ErrFetch, "pixiv", "decode", fmt.Sprintf("illust %d: unknown type %q", raw.ID, raw.Type), nil)
	}
	record.Type = typ

	switch raw.XRestrict {
	case 1:
		record.AgeLimit = illust.AgeLimitR18
	case 2:
		record.AgeLimit = illust.AgeLimitR18G
	default:
		record.AgeLimit = illust.AgeLimitAll
	}

	for _, tag := range raw.Tags {
		record.Tags = append(record.Tags, tag.Name)
	}

	switch {
	case typ == illust.TypeUgoira:
		archiveURL, delays, err := c.ugoiraMetadata(ctx, raw.ID)
		if err != nil {
			return illust.Illust{}, err
		}
		record.PageURLs = []string{archiveURL}
		record.FrameDelays = delays
	case raw.PageCount <= 1:
		record.PageURLs = []string{raw.MetaSinglePage.OriginalImageURL}
	default:
		for _, page := range raw.MetaPages {
			record.PageURLs = append(record.PageURLs, page.ImageURLs.Original)
		}
	}

	return record, nil
}

// ugoiraMetadata fetches the frame archive URL and per-frame durations for
// an animated record.
func (c *Client) ugoiraMetadata(ctx context.Context, id int64) (string, []int, error) {
	var payload struct {
		UgoiraMetadata struct {
			ZipURLs struct {
				Medium string `json:"medium"`
			} `json:"zip_urls"`
			Frames []struct {
				Delay int `json:"delay"`
			} `json:"frames"`
		} `json:"ugoira_metadata"`
	}
	query := url.Values{"illust_id": {strconv.FormatInt(id, 10)}}
	if err := c.getJSON(ctx, "/v1/ugoira/metadata", query, &payload); err != nil {
		return "", nil, err
	}
	delays := make([]int, 0, len(payload.UgoiraMetadata.Frames))
	for _, frame := range payload.UgoiraMetadata.Frames {
		delays = append(delays, frame.Delay)
	}
	if payload.UgoiraMetadata.ZipURLs.Medium == "" || len(delays) == 0 {
		return "", nil, errkind.Wrap(errkind.ErrFetch, "pixiv", "ugoira metadata", fmt.Sprintf("illust %d: empty metadata", id), nil)
	}
	return payload.UgoiraMetadata.ZipURLs.Medium, delays, nil
}

// Illust fetches a single record by ID.
func (c *Client) Illust(ctx context.Context, id int64) (illust.Illust, error) {
	var payload struct {
		Illust illustJSON `json:"illust"`
	}
	query := url.Values{"illust_id": {strconv.FormatInt(id, 10)}}
	if err := c.getJSON(ctx, "/v1/illust/detail", query, &payload); err != nil {
		return illust.Illust{}, err
	}
	return c.toIllust(ctx, payload.Illust)
}

// paginate drives a cursor-style fetch: one API page per pull batch,
// following next_url until the service stops providing one or the offset
// cap is reached. assignRank numbers records from 1 in fetch order.
func (c *Client) paginate(ctx context.Context, call string, query url.Values, assignRank bool) *illust.Stream {
	var (
		buffer  []illust.Illust
		nextURL string
		started bool
		rank    int
	)
	currentCall, currentQuery := call, query

	return illust.NewStream(func() (illust.Illust, bool, error) {
		for len(buffer) == 0 {
			if started {
				if nextURL == "" {
					return illust.Illust{}, false, nil
				}
				var err error
				currentCall, currentQuery, err = splitNextURL(nextURL)
				if err != nil {
					return illust.Illust{}, false, err
				}
				if offset, _ := strconv.Atoi(currentQuery.Get("offset")); offset >= offsetCap {
					return illust.Illust{}, false, nil
				}
			}
			started = true

			var page illustPage
			if err := c.getJSON(ctx, currentCall, currentQuery, &page); err != nil {
				return illust.Illust{}, false, err
			}
			nextURL = page.NextURL

			for _, raw := range page.Illusts {
				record, err := c.toIllust(ctx, raw)
				if err != nil {
					return illust.Illust{}, false, err
				}
				if assignRank {
					rank++
					record.Rank = rank
				}
				buffer = append(buffer, record)
			}
			if len(page.Illusts) == 0 && nextURL == "" {
				return illust.Illust{}, false, nil
			}
		}

		next := buffer[0]
		buffer = buffer[1:]
		return next, true, nil
	})
}

func splitNextURL(next string) (string, url.Values, error) {
	parsed, err := url.Parse(next)
	if err != nil {
		return "", nil, errkind.Wrap(errkind.ErrFetch, "pixiv", "pagination", "bad next_url", err)
	}
	return parsed.Path, parsed.Query(), nil
}

// UserIllusts streams a user's records, newest first.
func (c *Client) UserIllusts(ctx context.Context, userID int64) *illust.Stream {
	query := url.Values{"user_id": {strconv.FormatInt(userID, 10)}}
	return c.paginate(ctx, "/v1/user/illusts", query, false)
}

// Following streams new records of followed users. A non-zero until bounds
// the stream at the earliest acceptable creation time.
func (c *Client) Following(ctx context.Context, until time.Time) *illust.Stream {
	inner := c.paginate(ctx, "/v2/illust/follow", url.Values{"restrict": {"public"}}, false)
	if until.IsZero() {
		return inner
	}
	return illust.NewStream(func() (illust.Illust, bool, error) {
		if !inner.Next() {
			return illust.Illust{}, false, inner.Err()
		}
		record := inner.Illust()
		if record.CreateDate.Before(until) {
			return illust.Illust{}, false, nil
		}
		return record, true, nil
	})
}

// Ranking streams a leaderboard from rank high to low, assigning the
// 1-based Rank to each record. A zero date means the latest ranking.
func (c *Client) Ranking(ctx context.Context, mode RankingMode, date time.Time) *illust.Stream {
	query := url.Values{"mode": {string(mode)}}
	if !date.IsZero() {
		query.Set("date", date.Format("2006-01-02"))
	}
	return c.paginate(ctx, "/v1/illust/ranking", query, true)
}

// SearchOptions tunes a Search stream.
type SearchOptions struct {
	Mode SearchMode
	// Ascending yields oldest records first; default is newest first.
	Ascending bool
}

// Search streams records matching a query string. Multiple keywords are
// separated by spaces.
func (c *Client) Search(ctx context.Context, word string, opts SearchOptions) *illust.Stream {
	mode := opts.Mode
	if mode == "" {
		mode = SearchTag
	}
	target, ok := searchTargets[mode]
	if !ok {
		target = searchTargets[SearchTag]
	}
	sort := "date_desc"
	if opts.Ascending {
		sort = "date_asc"
	}
	query := url.Values{
		"word":          {strings.TrimSpace(word)},
		"search_target": {target},
		"sort":          {sort},
	}
	return c.paginate(ctx, "/v1/search/illust", query, false)
}

// Related streams records related to the given one. A positive limit caps
// the stream length.
func (c *Client) Related(ctx context.Context, id int64, limit int) *illust.Stream {
	query := url.Values{"illust_id": {strconv.FormatInt(id, 10)}}
	inner := c.paginate(ctx, "/v2/illust/related", query, false)
	if limit <= 0 {
		return inner
	}
	count := 0
	return illust.NewStream(func() (illust.Illust, bool, error) {
		if count >= limit || !inner.Next() {
			return illust.Illust{}, false, inner.Err()
		}
		count++
		return inner.Illust(), true, nil
	})
}
