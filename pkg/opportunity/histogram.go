package opportunity

import (
	"math"
	"strconv"
)

// Bucket is one histogram bin covering [Lo, Hi].
type Bucket struct {
	Lo    float64 `json:"lo"`
	Hi    float64 `json:"hi"`
	Count int     `json:"count"`
}

const ratingBucketWidth = 0.25

// UsersBucket returns the decade bucket of a user count: 0 for exactly
// zero users, otherwise the number of decimal digits, so bucket k covers
// [10^(k-1), 10^k - 1].
func UsersBucket(users int64) int {
	if users <= 0 {
		return 0
	}
	return len(strconv.FormatInt(users, 10))
}

// UsersBucketBounds returns the inclusive range of a decade bucket.
func UsersBucketBounds(k int) (lo, hi int64) {
	if k <= 0 {
		return 0, 0
	}
	lo = 1
	for i := 1; i < k; i++ {
		lo *= 10
	}
	if k >= 19 {
		return lo, math.MaxInt64
	}
	return lo, lo*10 - 1
}

// UsersHistogram counts users into decade buckets, emitted contiguously from
// bucket 0 up to the highest populated bucket. Empty input yields no
// buckets.
func UsersHistogram(users []int64) []Bucket {
	if len(users) == 0 {
		return []Bucket{}
	}
	top := 0
	counts := make(map[int]int)
	for _, u := range users {
		k := UsersBucket(u)
		counts[k]++
		if k > top {
			top = k
		}
	}

	out := make([]Bucket, 0, top+1)
	for k := 0; k <= top; k++ {
		lo, hi := UsersBucketBounds(k)
		out = append(out, Bucket{Lo: float64(lo), Hi: float64(hi), Count: counts[k]})
	}
	return out
}

// RatingBucket returns the index of the 0.25-wide rating bin. A rating of
// exactly 5 falls in the last bin.
func RatingBucket(rating float64) int {
	n := int(maxRating / ratingBucketWidth)
	k := int(math.Floor(Finite(rating) / ratingBucketWidth))
	if k < 0 {
		return 0
	}
	if k >= n {
		return n - 1
	}
	return k
}

// RatingHistogram counts ratings into the fixed 0.25-wide bins over [0,5].
func RatingHistogram(ratings []float64) []Bucket {
	n := int(maxRating / ratingBucketWidth)
	out := make([]Bucket, n)
	for k := range out {
		out[k].Lo = float64(k) * ratingBucketWidth
		out[k].Hi = float64(k+1) * ratingBucketWidth
	}
	for _, r := range ratings {
		out[RatingBucket(r)].Count++
	}
	return out
}
