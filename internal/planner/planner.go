// Package planner translates a logical byte window over a manifest of
// files into the exact set of per-object fetch ranges needed to satisfy
// it. Planning is pure: no I/O is performed and identical inputs always
// produce an identical plan.
package planner

import (
	"github.com/CS-SI/eodag-s3stream/streamtypes"
)

// FilePlan pairs a manifest entry with the ordered fetch ranges that
// cover its requested portion. Ranges are strictly increasing and
// non-overlapping within a plan.
type FilePlan struct {
	Entry  streamtypes.FileEntry
	Ranges []streamtypes.FetchRange
}

// Plan computes the fetch plan for the given files, logical range and
// chunk size. Files are visited in manifest order; files entirely
// outside the window, empty files, and degenerate clipped spans
// contribute nothing and are omitted rather than reported as errors.
// chunkSize must be positive; the caller validates it.
func Plan(files []streamtypes.FileEntry, rng streamtypes.Range, chunkSize int64) []FilePlan {
	plans := make([]FilePlan, 0, len(files))

	for _, entry := range files {
		ranges := fileRanges(entry, rng, chunkSize)
		if len(ranges) == 0 {
			continue
		}
		plans = append(plans, FilePlan{Entry: entry, Ranges: ranges})
	}

	return plans
}

// TotalFetches returns the number of fetch ranges across all file plans.
func TotalFetches(plans []FilePlan) int {
	var n int
	for _, p := range plans {
		n += len(p.Ranges)
	}
	return n
}

// fileRanges computes the fetch ranges for a single file, or nil when
// the file contributes nothing to the requested window.
func fileRanges(entry streamtypes.FileEntry, rng streamtypes.Range, chunkSize int64) []streamtypes.FetchRange {
	if entry.Size == 0 {
		return nil
	}

	fileEnd := entry.LogicalOffset + entry.Size - 1

	// A file entirely outside the window contributes nothing. Each bound
	// rejects on its own side; a file only partially covered is not
	// rejected, it is clipped below.
	if rng.Start != nil && fileEnd < *rng.Start {
		return nil
	}
	if rng.End != nil && entry.LogicalOffset > *rng.End {
		return nil
	}

	// Clip the file's local span [0, size-1] to the requested window,
	// clamping subtraction at zero so an unbounded or earlier-starting
	// window never underflows the local offset.
	localStart := int64(0)
	localEnd := entry.Size - 1

	if rng.Start != nil {
		localStart = max(localStart, saturatingSub(*rng.Start, entry.LogicalOffset))
	}
	if rng.End != nil {
		localEnd = min(localEnd, saturatingSub(*rng.End, entry.LogicalOffset))
	}

	// Degenerate clipped span, possible only for malformed input.
	// Treated as no contribution, same as the overlap rejection.
	if localEnd < localStart {
		return nil
	}

	// Translate into absolute offsets within the remote object.
	absStart := localStart + entry.DataOffset
	absEnd := localEnd + entry.DataOffset

	ranges := make([]streamtypes.FetchRange, 0, (absEnd-absStart)/chunkSize+1)
	for start := absStart; start <= absEnd; start += chunkSize {
		ranges = append(ranges, streamtypes.FetchRange{
			Bucket: entry.Bucket,
			Key:    entry.Key,
			Start:  start,
			End:    min(start+chunkSize-1, absEnd),
		})
	}

	return ranges
}

// saturatingSub returns a-b, clamped at zero.
func saturatingSub(a, b int64) int64 {
	if a < b {
		return 0
	}
	return a - b
}
