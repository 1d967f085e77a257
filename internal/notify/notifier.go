// Package notify delivers fulfillment emails through the Resend API.
// Delivery is fire-and-forget relative to credential state: a bounce or
// provider outage is logged, never rolled back into the store.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	resendEndpoint = "https://api.resend.com/emails"
	sendTimeout    = 10 * time.Second
)

// CredentialsEmail is the outbound notification for one fulfillment.
type CredentialsEmail struct {
	To         string
	BrandLabel string
	PlanLabel  string
	Quantity   int
	AccessURLs []string
}

type Notifier interface {
	SendCredentialsEmail(ctx context.Context, email CredentialsEmail) error
}

// ResendNotifier sends through the Resend HTTP API.
type ResendNotifier struct {
	apiKey string
	from   string
	client *http.Client
}

func NewResendNotifier(apiKey, from string) *ResendNotifier {
	return &ResendNotifier{
		apiKey: apiKey,
		from:   from,
		client: &http.Client{Timeout: sendTimeout},
	}
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

func (n *ResendNotifier) SendCredentialsEmail(ctx context.Context, email CredentialsEmail) error {
	subject := "Your report access links"
	if email.BrandLabel != "" {
		subject = fmt.Sprintf("Your %s report access links", email.BrandLabel)
	}

	payload := resendRequest{
		From:    n.from,
		To:      []string{email.To},
		Subject: subject,
		HTML:    renderCredentialsHTML(email),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, resendEndpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+n.apiKey)

	start := time.Now()
	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Error().
			Int("status", resp.StatusCode).
			Dur("elapsed", time.Since(start)).
			Msg("resend rejected fulfillment email")
		return fmt.Errorf("resend returned status %d", resp.StatusCode)
	}

	log.Info().
		Str("to", email.To).
		Int("quantity", email.Quantity).
		Dur("elapsed", time.Since(start)).
		Msg("fulfillment email sent")

	return nil
}

func renderCredentialsHTML(email CredentialsEmail) string {
	var b strings.Builder
	b.WriteString("<p>Thank you for your")
	if email.PlanLabel != "" {
		fmt.Fprintf(&b, " %s", email.PlanLabel)
	}
	b.WriteString(" purchase")
	if email.BrandLabel != "" {
		fmt.Fprintf(&b, " with %s", email.BrandLabel)
	}
	b.WriteString(".</p>")
	fmt.Fprintf(&b, "<p>Your %d secure link(s):</p><ul>", email.Quantity)
	for _, u := range email.AccessURLs {
		fmt.Fprintf(&b, `<li><a href="%s">%s</a></li>`, u, u)
	}
	b.WriteString("</ul><p>Each link can be used once and expires automatically.</p>")
	return b.String()
}

// NopNotifier drops emails; used when no API key is configured.
type NopNotifier struct{}

func (NopNotifier) SendCredentialsEmail(ctx context.Context, email CredentialsEmail) error {
	log.Warn().Str("to", email.To).Msg("email delivery disabled: dropping fulfillment notification")
	return nil
}
