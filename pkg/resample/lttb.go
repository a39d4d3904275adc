// Package resample implements the multi-channel MinMax-LTTB downsampler
// (C1): fixed-budget point reduction over arbitrary x-ranges that still
// preserves every channel's local extrema, grounded on the Python
// tsdownsample.MinMaxLTTBDownsampler usage this was ported from.
package resample

import (
	"math"
	"sort"
)

// lttbIndices runs the classic Largest-Triangle-Three-Buckets algorithm
// over one channel and returns the selected sample indices into x/y,
// always including the first and last point. It never rejects a channel
// outright — the uniform-stride fallback in Resample is a caller-side
// decision for malformed input (NaN-only data, zero-length slices), not
// something this function raises itself.
func lttbIndices(x, y []float64, nOut int) []int {
	n := len(x)
	if nOut >= n || nOut < 3 {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}

	indices := make([]int, 0, nOut)
	indices = append(indices, 0)

	// Bucket size, excluding the mandatory first/last points.
	bucketSize := float64(n-2) / float64(nOut-2)

	a := 0 // index of previously selected point
	for i := 0; i < nOut-2; i++ {
		bucketStart := int(math.Floor(float64(i)*bucketSize)) + 1
		bucketEnd := int(math.Floor(float64(i+1)*bucketSize)) + 1
		if bucketEnd > n-1 {
			bucketEnd = n - 1
		}
		if bucketStart >= bucketEnd {
			bucketStart = bucketEnd - 1
		}

		nextBucketStart := int(math.Floor(float64(i+2)*bucketSize)) + 1
		nextBucketEnd := int(math.Floor(float64(i+3)*bucketSize)) + 1
		if nextBucketEnd > n {
			nextBucketEnd = n
		}
		if nextBucketStart >= nextBucketEnd {
			nextBucketStart = nextBucketEnd - 1
		}

		var avgX, avgY float64
		cnt := 0
		for j := nextBucketStart; j < nextBucketEnd; j++ {
			avgX += x[j]
			avgY += y[j]
			cnt++
		}
		if cnt > 0 {
			avgX /= float64(cnt)
			avgY /= float64(cnt)
		}

		pointAX, pointAY := x[a], y[a]

		maxArea := -1.0
		maxAreaIdx := bucketStart
		var bucketMin, bucketMax float64
		minIdx, maxIdx := bucketStart, bucketStart
		bucketMin, bucketMax = y[bucketStart], y[bucketStart]

		for j := bucketStart; j < bucketEnd; j++ {
			area := math.Abs((pointAX-avgX)*(y[j]-pointAY)-(pointAX-x[j])*(avgY-pointAY)) * 0.5
			if area > maxArea {
				maxArea = area
				maxAreaIdx = j
			}
			if y[j] < bucketMin {
				bucketMin = y[j]
				minIdx = j
			}
			if y[j] > bucketMax {
				bucketMax = y[j]
				maxIdx = j
			}
		}

		// MinMax extension: keep the bucket's min/max in addition to the
		// LTTB-selected representative point, so spikes inside a bucket
		// never vanish just because they lost the triangle-area contest.
		indices = append(indices, minIdx, maxIdx, maxAreaIdx)
		a = maxAreaIdx
	}

	indices = append(indices, n-1)
	return dedupeSorted(indices)
}

func dedupeSorted(idx []int) []int {
	sort.Ints(idx)
	out := idx[:0]
	last := -1
	for _, v := range idx {
		if v != last {
			out = append(out, v)
			last = v
		}
	}
	return out
}
