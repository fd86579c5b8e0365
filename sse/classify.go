package sse

import "strings"

// FrameKind classifies a decoded line.
type FrameKind int

const (
	FrameSkip FrameKind = iota // Blank, comment or unrecognized line.
	FrameData                  // Data event; Payload holds its text.
	FrameDone                  // End-of-stream sentinel.
)

// Frame is a classified line.
type Frame struct {
	Kind    FrameKind
	Payload string
}

// Classify sorts one decoded line. Unknown fields such as "event:" or
// "id:" are skipped rather than treated as errors.
func Classify(line string) Frame {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, commentPrefix) {
		return Frame{Kind: FrameSkip}
	}
	payload, ok := strings.CutPrefix(line, dataPrefix)
	if !ok {
		return Frame{Kind: FrameSkip}
	}
	payload = strings.TrimSpace(payload)
	if payload == DoneSentinel {
		return Frame{Kind: FrameDone}
	}
	return Frame{Kind: FrameData, Payload: payload}
}
