package gateway

import "strings"

const (
	kindBook      = "book"
	kindIndicator = "indicator"
)

// Patterns the gateway subscribes to. They match the channels written by
// the processor's Redis writer.
var subscribePatterns = []string{"pub:book:*", "pub:ind:*"}

// parsedChannel holds the components of a PubSub channel name.
type parsedChannel struct {
	kind      string // kindBook or kindIndicator
	indicator string // e.g. "SMA_10", indicator channels only
	symbol    string
}

// parseChannel parses "pub:book:BTCUSD" or "pub:ind:SMA_10:BTCUSD".
// Returns nil for anything else.
func parseChannel(channel string) *parsedChannel {
	parts := strings.Split(channel, ":")
	if len(parts) < 3 || parts[0] != "pub" {
		return nil
	}
	switch {
	case parts[1] == "book" && len(parts) == 3 && parts[2] != "":
		return &parsedChannel{kind: kindBook, symbol: parts[2]}
	case parts[1] == "ind" && len(parts) == 4 && parts[2] != "" && parts[3] != "":
		return &parsedChannel{kind: kindIndicator, indicator: parts[2], symbol: parts[3]}
	}
	return nil
}
