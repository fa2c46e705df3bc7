package format

import "strings"

// IconType represents the type of icon to display for an issue.
type IconType int

const (
	// IconNone indicates no icon should be displayed.
	IconNone IconType = iota
	// IconHotTopic indicates a hot topic (fire emoji).
	IconHotTopic
	// IconQuickWin indicates an issue labelled for newcomers (lightning emoji).
	IconQuickWin
	// IconPullRequest indicates the item is a pull request.
	IconPullRequest
)

// quickWinLabels mark issues that are easy to pick up.
var quickWinLabels = []string{"good first issue", "help wanted", "easy"}

// IconOptions contains the fields needed to determine which icon to display.
type IconOptions struct {
	CommentCount      int
	HotTopicThreshold int
	IsPR              bool
	Labels            []string
}

// Icon decides which icon (if any) should be displayed for an issue.
// Pull requests are marked first, then hot topics, then quick wins.
func Icon(opts IconOptions) IconType {
	if opts.IsPR {
		return IconPullRequest
	}
	if opts.HotTopicThreshold > 0 && opts.CommentCount > opts.HotTopicThreshold {
		return IconHotTopic
	}
	for _, l := range opts.Labels {
		for _, q := range quickWinLabels {
			if strings.EqualFold(l, q) {
				return IconQuickWin
			}
		}
	}
	return IconNone
}

// String returns the emoji for the icon, or "" for IconNone.
func (i IconType) String() string {
	switch i {
	case IconHotTopic:
		return HotTopicIcon
	case IconQuickWin:
		return QuickWinIcon
	case IconPullRequest:
		return PullRequestIcon
	default:
		return ""
	}
}

// Icon strings for display (renderers can apply their own styling)
const (
	// HotTopicIcon is the fire emoji for hot topics.
	HotTopicIcon = "\U0001F525" // 🔥

	// QuickWinIcon is the lightning emoji for quick wins.
	// Using U+26A1 + U+FE0F to force emoji presentation for consistent 2-column width.
	QuickWinIcon = "\u26A1\uFE0F" // ⚡️

	// PullRequestIcon marks pull requests returned by the issues endpoint.
	PullRequestIcon = "\U0001F500" // 🔀

	// IconWidth is the display width reserved for the icon column (emoji=2 + space=1).
	IconWidth = 3
)
