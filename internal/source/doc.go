// Package source implements the upstream data adapters.
//
// Every adapter satisfies the Adapter capability set: Fetch retrieves raw
// items from one upstream, Normalize converts each into the common Record
// shape, and Collect drives the pair while dropping and counting anything
// unusable. One adapter's failure never takes down another; the pipeline
// invokes them concurrently.
package source
