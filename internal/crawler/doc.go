// Package crawler holds the job-discovery domain model and the heuristics
// that enrich a business candidate: career page location, keyword
// classification, and bucket assignment. Network access goes through the
// Fetcher interface so the heuristics stay testable offline.
package crawler
