// Package content manages the lifecycle of the content the Open Graph
// generator reads from.
//
// Content is distributed as a JSON document of posts, members and groups.
// The core components are:
//   - [Loader]: resolves the current document hash from SSM, downloads the
//     document from S3, verifies its digest and optional KMS signature
//   - [Manager]: stores the active snapshot using atomic.Pointer for lock-free reads
//   - [Watcher]: polls SSM for hash changes and hot-swaps snapshots into the Manager
//   - [Snapshot]: an immutable index over one document, implementing the
//     generator's repository interfaces
//
// A YAML seed (see [ParseSeed]) is embedded in the binary so the service
// can serve pages before the first remote document is loaded.
package content
