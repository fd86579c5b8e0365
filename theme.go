package parley

// Theme defines semantic color mappings using ANSI color indices (0-15).
// The user's terminal theme determines the actual RGB values, so the app
// automatically matches any color scheme. A negative index means no color.
type Theme struct {
	UserMsg   int // User message accent
	Streaming int // Pending reply indicator
	Error     int // Error messages
	Success   int // Success indicators
	Muted     int // Status bar, placeholders
	CodeBg    int // Code block background
	Accent    int // Headings, links
}

// DefaultTheme returns the default ANSI color mapping.
func DefaultTheme() Theme {
	return Theme{
		UserMsg:   4,
		Streaming: 6,
		Error:     1,
		Success:   2,
		Muted:     8,
		CodeBg:    0,
		Accent:    5,
	}
}
