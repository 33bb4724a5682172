// Package internal contains private implementation details for the streaming module.
// These packages are not intended for external use and may change without notice.
//
// The internal packages are organized as follows:
//   - planner: Range planning across file manifests
//   - fetcher: Single ranged GetObject execution and re-chunking
//   - assembler: Ordered assembly of fetches with request pipelining
//   - s3api: S3 client interface for mocking
//   - validation: Input validation logic
//   - testutil: Test mocks and an in-memory ranged object store
package internal
