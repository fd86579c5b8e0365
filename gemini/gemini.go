// Package gemini implements parley's backend interfaces for the Google
// Gemini API.
//
// It wraps the google.golang.org/genai SDK. Gemini keeps no server-side
// session, so every request carries the prior turns of the conversation.
// Streaming uses the SDK's iter.Seq2 iterator, wrapped into the pull-based
// [parley.Stream] interface.
package gemini

const defaultModel = "gemini-3.1-pro-preview"
