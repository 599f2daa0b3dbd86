package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// SMSGateway posts messages to a Twilio-compatible REST endpoint:
// POST {baseURL}/Accounts/{sid}/Messages.json with To, From and Body form fields.
type SMSGateway struct {
	baseURL    string
	accountSID string
	authToken  string
	from       string
	client     *http.Client
}

func NewSMSGateway(baseURL, accountSID, authToken, from string, timeout time.Duration) *SMSGateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SMSGateway{
		baseURL:    strings.TrimRight(baseURL, "/"),
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type gatewayError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (g *SMSGateway) Send(ctx context.Context, address, _, body string) error {
	form := url.Values{}
	form.Set("To", address)
	form.Set("From", g.from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", g.baseURL, url.PathEscape(g.accountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(g.accountSID, g.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return networkError(err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	te := &TransportError{
		Message: fmt.Sprintf("sms gateway returned %d", resp.StatusCode),
		Code:    strconv.Itoa(resp.StatusCode),
		Status:  resp.StatusCode,
	}
	var ge gatewayError
	if json.Unmarshal(raw, &ge) == nil {
		if ge.Code != 0 {
			te.Code = strconv.Itoa(ge.Code)
		}
		if ge.Message != "" {
			te.Message = ge.Message
		}
	} else if len(raw) > 0 {
		te.Message = fmt.Sprintf("%s body=%q", te.Message, string(raw))
	}
	return te
}
