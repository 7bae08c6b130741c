package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Discord sends notifications via Discord webhook.
type Discord struct {
	client     *http.Client
	webhookURL string
}

// NewDiscord creates a new Discord notifier.
func NewDiscord(webhookURL string) *Discord {
	return &Discord{
		client:     &http.Client{Timeout: 10 * time.Second},
		webhookURL: webhookURL,
	}
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) Send(ctx context.Context, n *Notification) error {
	var lines []string
	for _, e := range topEntries(n, 5) {
		name := e.Name
		if e.URL != "" {
			name = fmt.Sprintf("[%s](%s)", e.Name, e.URL)
		}
		lines = append(lines, fmt.Sprintf("• %s [%s] %.1f", name, e.Category, e.Score))
	}

	embed := map[string]any{
		"title":       n.Title,
		"description": fmt.Sprintf("**Top score:** %.1f\n\n%s\n\n%s", n.TopScore, n.Body, strings.Join(lines, "\n")),
		"color":       0x2E86DE,
		"timestamp":   n.GeneratedAt.Format(time.RFC3339),
	}

	body, err := json.Marshal(map[string]any{"embeds": []map[string]any{embed}})
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}
	return post(ctx, d.client, "discord", d.webhookURL, body, nil)
}
