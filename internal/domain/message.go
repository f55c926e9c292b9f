package domain

import "time"

type InboundMessage struct {
	Channel   string
	AccountID string
	ChatID    string
	SenderID  string
	Content   string
	Timestamp time.Time
}

type OutboundMessage struct {
	Channel   string
	ChatID    string
	Content   string
	MediaURLs []string
}

// ReplyPayload is one unit of agent output handed to a channel delivery
// callback. Media may arrive either as a list or, from older agents, as a
// single URL in the legacy field; AllMedia merges both.
type ReplyPayload struct {
	Text      string   `json:"text,omitempty"`
	MediaURLs []string `json:"media_urls,omitempty"`
	Media     string   `json:"media,omitempty"`
}

// AllMedia returns every media URL in delivery order: the list first, then
// the legacy single field unless it duplicates a list entry.
func (p ReplyPayload) AllMedia() []string {
	urls := make([]string, 0, len(p.MediaURLs)+1)
	urls = append(urls, p.MediaURLs...)
	if p.Media != "" {
		for _, u := range p.MediaURLs {
			if u == p.Media {
				return urls
			}
		}
		urls = append(urls, p.Media)
	}
	return urls
}
