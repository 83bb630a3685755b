package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"gofire/internal/constants"
	"gofire/internal/errs"
)

// newHTTPClient builds the outbound client used for every delivery attempt:
// a 30s overall timeout and a 5-redirect cap, per spec.md §4.4 step 4.
func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: constants.DeliveryTimeout * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= constants.MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", constants.MaxRedirects)
			}
			return nil
		},
	}
}

// validateTarget enforces spec.md §4.4 step 2: target must parse as an
// absolute http(s) URL, and — if an allow-list is configured — its
// hostname must match it.
func validateTarget(target string, allowed func(hostname string) bool) (*url.URL, error) {
	u, err := url.Parse(target)
	if err != nil || !u.IsAbs() {
		return nil, errs.Wrap(errs.KindValidation, "target is not an absolute URL", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errs.New(errs.KindValidation, "target scheme must be http or https")
	}
	if !allowed(u.Hostname()) {
		return nil, errs.New(errs.KindUnauthorizedTarget, "target host is not in the allow-list")
	}
	return u, nil
}

// post performs a single delivery attempt and classifies the outcome per
// spec.md §7.
func (d *Deliverer) post(ctx context.Context, target string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return errs.Wrap(errs.KindClient, "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", constants.UserAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return errs.Wrap(errs.KindTimeout, "delivery timed out", err)
		}
		return errs.Wrap(errs.KindNetwork, "delivery failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return classifyStatus(resp.StatusCode)
}

func classifyStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errs.New(errs.KindUnauthorizedTarget, fmt.Sprintf("target rejected the request with status %d", status))
	case status == http.StatusRequestEntityTooLarge:
		return errs.New(errs.KindPayloadTooLarge, fmt.Sprintf("target rejected the payload with status %d", status))
	case status >= 400 && status < 500:
		return errs.New(errs.KindClient, fmt.Sprintf("target returned client error status %d", status))
	case status >= 500:
		return errs.New(errs.KindServer, fmt.Sprintf("target returned server error status %d", status))
	default:
		return errs.New(errs.KindUnknown, fmt.Sprintf("target returned unexpected status %d", status))
	}
}
