// Package illust defines the illustration record model shared by the fetch,
// filter, and download layers.
//
// An Illust is immutable by convention once yielded by a fetch stream: the
// pipeline and downloader read it but never write it. Stream provides the
// single-pass lazy sequence abstraction that paginated fetches produce;
// consumers iterate it exactly once and check Err afterwards, matching the
// bufio.Scanner shape.
package illust
