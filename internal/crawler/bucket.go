package crawler

// Bucket is the terminal classification of a candidate.
type Bucket string

// Bucket values. BucketExcluded candidates are counted but not reported.
const (
	BucketKeywordMatch Bucket = "keyword_matches"
	BucketCareersOnly  Bucket = "has_careers_page"
	BucketNoCareers    Bucket = "no_careers_page"
	BucketExcluded     Bucket = "excluded"
)

// AssignBucket places a fully enriched candidate. Candidates without a
// website are excluded; the remaining three buckets partition the rest.
func AssignBucket(c Candidate) Bucket {
	switch {
	case !c.HasWebsite():
		return BucketExcluded
	case c.CareerURL == "":
		return BucketNoCareers
	case len(c.KeywordsFound) > 0:
		return BucketKeywordMatch
	default:
		return BucketCareersOnly
	}
}

// Summarize counts candidates and splits the website-bearing ones into
// buckets, preserving input order within each bucket.
func Summarize(candidates []Candidate) (Summary, map[Bucket][]Candidate) {
	buckets := map[Bucket][]Candidate{
		BucketKeywordMatch: {},
		BucketCareersOnly:  {},
		BucketNoCareers:    {},
	}
	summary := Summary{Total: len(candidates)}
	for _, c := range candidates {
		b := AssignBucket(c)
		if b == BucketExcluded {
			continue
		}
		summary.WithWebsite++
		buckets[b] = append(buckets[b], c)
	}
	summary.KeywordMatches = len(buckets[BucketKeywordMatch])
	summary.CareersOnly = len(buckets[BucketCareersOnly])
	summary.NoCareers = len(buckets[BucketNoCareers])
	return summary, buckets
}
