// Package sse turns a chunk-delivered server-sent-events byte stream into
// an ordered sequence of content deltas.
//
// The pipeline has three stages. A [Decoder] reassembles logical lines
// from arbitrary chunks, [Classify] sorts lines into data events, noise
// and the end-of-stream sentinel, and [Extract] pulls the content delta
// out of a data payload. [Stream] drives the pipeline over an HTTP
// response body and exposes it as a pull-based [parley.Stream].
package sse

const (
	// DoneSentinel is the payload value marking in-band end of stream.
	DoneSentinel = "[DONE]"

	dataPrefix    = "data:"
	commentPrefix = ":"

	defaultChunkSize = 4096
)
