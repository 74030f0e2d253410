package download

import (
	"path"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"pixie/internal/illust"
)

// Default naming just keeps the remote file name.
//
// Template placeholders: {id}, {user_id}, {user_name}, {title}, {type},
// {age_limit}, {rank}, {page} (0-based), {order} (1-based when supplied),
// {original_name}, {root}, {ext}. A template may contain path separators to
// produce subdirectories; substituted field values are sanitized so a title
// containing a slash cannot change the directory layout.
func renderName(template string, record illust.Illust, page, order int, originalName string) string {
	if template == "" {
		return sanitizeComponent(originalName)
	}

	ext := path.Ext(originalName)
	root := strings.TrimSuffix(originalName, ext)
	ext = strings.TrimPrefix(ext, ".")

	replacer := strings.NewReplacer(
		"{id}", strconv.FormatInt(record.ID, 10),
		"{user_id}", strconv.FormatInt(record.User.ID, 10),
		"{user_name}", sanitizeComponent(record.User.Name),
		"{title}", sanitizeComponent(record.Title),
		"{type}", string(record.Type),
		"{age_limit}", string(record.AgeLimit),
		"{rank}", strconv.Itoa(record.Rank),
		"{page}", strconv.Itoa(page),
		"{order}", strconv.Itoa(order),
		"{original_name}", sanitizeComponent(originalName),
		"{root}", sanitizeComponent(root),
		"{ext}", ext,
	)
	return norm.NFC.String(replacer.Replace(template))
}

var componentSanitizer = strings.NewReplacer(
	"/", "_",
	"\\", "_",
	"\x00", "",
)

func sanitizeComponent(value string) string {
	return norm.NFC.String(componentSanitizer.Replace(strings.TrimSpace(value)))
}

// remoteName extracts the file name component of a page URL.
func remoteName(rawURL string) string {
	trimmed := rawURL
	if i := strings.IndexAny(trimmed, "?#"); i >= 0 {
		trimmed = trimmed[:i]
	}
	return path.Base(trimmed)
}

// rewriteArchiveExt swaps a frame-archive extension for the animation
// format's, applied before template substitution when conversion is on.
func rewriteArchiveExt(name string) string {
	ext := path.Ext(name)
	if strings.EqualFold(ext, ".zip") {
		return strings.TrimSuffix(name, ext) + ".gif"
	}
	return name
}
