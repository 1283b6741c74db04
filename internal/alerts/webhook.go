package alerts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// deliver fans the alert's current state out to every configured webhook
// target. Delivery errors are logged and never reach the evaluation path.
func (e *Engine) deliver(a *Alert) {
	for _, wh := range e.webhooks {
		url := wh.URL()
		if url == "" {
			continue
		}

		var err error
		switch wh.Type {
		case "slack":
			err = e.sendSlack(url, a)
		case "teams":
			err = e.sendTeams(url, a)
		case "pagerduty", "http":
			err = e.sendHTTP(url, a)
		default:
			slog.Warn("alerts: unknown webhook type — skipping", "type", wh.Type)
			continue
		}

		if err != nil {
			slog.Error("alerts: webhook delivery failed",
				"type", wh.Type,
				"rule", a.RuleName,
				"state", a.State,
				"err", err,
			)
		} else {
			slog.Debug("alerts: webhook delivered",
				"type", wh.Type,
				"rule", a.RuleName,
				"state", a.State,
			)
		}
	}
}

func (e *Engine) sendSlack(url string, a *Alert) error {
	body, _ := json.Marshal(map[string]string{
		"text": fmt.Sprintf("%s mesh alert *%s* %s — %s (observed %.2f)",
			severityLabel(a.Severity), a.RuleName, stateLabel(a.State), a.Message, a.Value),
	})
	return e.post(url, body)
}

func (e *Engine) sendTeams(url string, a *Alert) error {
	payload := map[string]interface{}{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": severityColor(a.Severity),
		"summary":    fmt.Sprintf("%s %s", a.RuleName, a.State),
		"title":      fmt.Sprintf("meshwatch mesh alert %s: %s", stateLabel(a.State), a.RuleName),
		"text":       a.Message,
		"sections": []map[string]interface{}{{
			"facts": []map[string]string{
				{"name": "Rule", "value": a.RuleName},
				{"name": "Severity", "value": a.Severity},
				{"name": "State", "value": a.State},
				{"name": "Observed", "value": fmt.Sprintf("%.2f", a.Value)},
			},
		}},
	}
	body, _ := json.Marshal(payload)
	return e.post(url, body)
}

func (e *Engine) sendHTTP(url string, a *Alert) error {
	body, _ := json.Marshal(map[string]interface{}{
		"source": "meshwatch",
		"state":  a.State,
		"alert":  a,
	})
	return e.post(url, body)
}

func (e *Engine) post(url string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func stateLabel(state string) string {
	if state == "resolved" {
		return "RESOLVED"
	}
	return "FIRING"
}

func severityLabel(s string) string {
	switch s {
	case "critical":
		return "[CRITICAL]"
	case "warning":
		return "[WARNING]"
	default:
		return "[INFO]"
	}
}

// severityColor maps severity onto the dashboard's alert palette.
func severityColor(s string) string {
	switch s {
	case "critical":
		return "C0392B"
	case "warning":
		return "D68910"
	default:
		return "1F7A8C"
	}
}
