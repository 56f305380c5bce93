package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"clicktracker/internal/domain"
)

const helpMessage = `Welcome to ClickTracker! Send me a link and I'll shorten it.

/shorten <url> [minutes] [code] - create a short link
/list - show all links
/stats <code> - show clicks for a link
/delete <id> - remove a link`

// maxListed bounds /list replies to stay under Telegram's message size limit.
const maxListed = 20

var errUsage = errors.New("usage: /shorten <url> [minutes] [code]")

type shortenArgs struct {
	URL        string
	Minutes    int
	CustomCode string
}

// parseShortenArgs parses the text after /shorten. The optional tokens may
// come in either order: a number is the validity, anything else the code.
func parseShortenArgs(text string, defaultMinutes int) (shortenArgs, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 || len(fields) > 3 {
		return shortenArgs{}, errUsage
	}

	args := shortenArgs{URL: fields[0], Minutes: defaultMinutes}
	minutesSet := false
	for _, f := range fields[1:] {
		if n, err := strconv.Atoi(f); err == nil && !minutesSet {
			args.Minutes = n
			minutesSet = true
			continue
		}
		if args.CustomCode != "" {
			return shortenArgs{}, errUsage
		}
		args.CustomCode = f
	}
	return args, nil
}

// commandName returns the leading /command token without any @botname suffix.
func commandName(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	name, _, _ := strings.Cut(fields[0], "@")
	return name
}

// commandArg returns the text after the leading /command token.
func commandArg(text string) string {
	_, rest, _ := strings.Cut(strings.TrimSpace(text), " ")
	return strings.TrimSpace(rest)
}

// extractURL returns the first http(s) token in text.
func extractURL(text string) (string, bool) {
	for _, f := range strings.Fields(text) {
		lower := strings.ToLower(f)
		if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
			return f, true
		}
	}
	return "", false
}

func formatCreated(link domain.Link, now time.Time) string {
	return fmt.Sprintf("Short link created: %s\n%s\nExpires %s (%s)\nID: %s",
		link.ShortURL, link.OriginalURL,
		link.ExpiresAt.Format(time.RFC1123), link.TimeRemaining(now), link.ID)
}

func formatList(links []domain.Link, now time.Time) string {
	if len(links) == 0 {
		return "No shortened URLs yet. Send me a link to create one."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Links (%d):\n", len(links))
	for i, link := range links {
		if i == maxListed {
			fmt.Fprintf(&b, "...and %d more", len(links)-maxListed)
			break
		}
		fmt.Fprintf(&b, "\n%s -> %s\n%s, %s\n", link.ShortURL, link.OriginalURL,
			link.TimeRemaining(now), pluralClicks(len(link.Clicks)))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatStats(link domain.Link, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s -> %s\n%s, %s", link.ShortURL, link.OriginalURL,
		link.TimeRemaining(now), pluralClicks(len(link.Clicks)))

	// Most recent first, like the list view's analytics panel.
	for i := len(link.Clicks) - 1; i >= 0 && len(link.Clicks)-i <= maxListed; i-- {
		c := link.Clicks[i]
		referrer := c.Referrer
		if referrer == "" {
			referrer = "direct"
		}
		fmt.Fprintf(&b, "\n%s  source: %s, referrer: %s",
			c.Timestamp.Format("Jan 2, 2006 15:04:05"), c.Source, referrer)
	}
	return b.String()
}

func pluralClicks(n int) string {
	if n == 1 {
		return "1 click"
	}
	return fmt.Sprintf("%d clicks", n)
}
