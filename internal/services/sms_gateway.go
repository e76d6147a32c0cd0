package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/twilio/twilio-go"
	twilioClient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"github.com/uzleague/league-api/internal/config"
	"github.com/uzleague/league-api/internal/logging"
	"github.com/uzleague/league-api/internal/observability"
	"github.com/uzleague/league-api/internal/utils/httpclient"
	"go.uber.org/zap"
)

// SMSGateway delivers a text message to a phone number
type SMSGateway interface {
	Send(ctx context.Context, phone, message string) error
	Name() string
}

// NewSMSGateway builds the gateway selected by cfg.SMSProvider
func NewSMSGateway(cfg *config.Config, logger *logging.SafeLogger) (SMSGateway, error) {
	switch cfg.SMSProvider {
	case config.SMSProviderLog, "":
		return NewLogGateway(logger), nil
	case config.SMSProviderHTTP:
		if cfg.SMSHTTPURL == "" {
			return nil, fmt.Errorf("SMS_HTTP_URL is required for the http SMS provider")
		}
		return NewHTTPGateway(cfg.SMSHTTPURL, cfg.SMSHTTPToken, cfg.SMSSender, httpclient.GetGlobalPool()), nil
	case config.SMSProviderTwilio:
		if cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" || cfg.TwilioFromPhone == "" {
			return nil, fmt.Errorf("TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_FROM_PHONE are required for the twilio SMS provider")
		}
		return NewTwilioGateway(newTwilioRestClient(cfg).Api, cfg.TwilioFromPhone), nil
	default:
		return nil, fmt.Errorf("unknown SMS provider %q", cfg.SMSProvider)
	}
}

// LogGateway only logs messages. Used in development.
type LogGateway struct {
	logger *logging.SafeLogger
}

// NewLogGateway creates a dry-run gateway
func NewLogGateway(logger *logging.SafeLogger) *LogGateway {
	return &LogGateway{logger: logger}
}

func (g *LogGateway) Name() string { return config.SMSProviderLog }

func (g *LogGateway) Send(_ context.Context, phone, message string) error {
	g.logger.Info("sms dry run",
		zap.String("phone", observability.MaskPhone(phone)),
		zap.String("message", message))
	return nil
}

// HTTPGateway posts messages to a form based SMS HTTP API
type HTTPGateway struct {
	endpoint string
	token    string
	sender   string
	pool     *httpclient.HTTPClientPool
}

// NewHTTPGateway creates a gateway posting to endpoint
func NewHTTPGateway(endpoint, token, sender string, pool *httpclient.HTTPClientPool) *HTTPGateway {
	return &HTTPGateway{endpoint: endpoint, token: token, sender: sender, pool: pool}
}

func (g *HTTPGateway) Name() string { return config.SMSProviderHTTP }

type smsAPIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (g *HTTPGateway) Send(ctx context.Context, phone, message string) error {
	form := url.Values{}
	form.Set("phone", strings.TrimPrefix(phone, "+"))
	form.Set("message", message)
	if g.sender != "" {
		form.Set("from", g.sender)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	client := g.pool.Get()
	defer g.pool.Put(client)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send sms request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("failed to read sms response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sms request failed with status: %d", resp.StatusCode)
	}

	var apiResp smsAPIResponse
	if len(body) > 0 && json.Unmarshal(body, &apiResp) == nil && strings.EqualFold(apiResp.Status, "error") {
		return fmt.Errorf("sms provider rejected message: %s", apiResp.Message)
	}
	return nil
}

// newTwilioRestClient bounds every Twilio HTTP call by SMS_TIMEOUT so an abandoned send stops
// with the caller's deadline.
func newTwilioRestClient(cfg *config.Config) *twilio.RestClient {
	base := &twilioClient.Client{
		Credentials: twilioClient.NewCredentials(cfg.TwilioAccountSID, cfg.TwilioAuthToken),
	}
	base.SetAccountSid(cfg.TwilioAccountSID)
	if cfg.SMSTimeout > 0 {
		base.SetTimeout(cfg.SMSTimeout)
	}
	return twilio.NewRestClientWithParams(twilio.ClientParams{Client: base})
}

// twilioMessageAPI is the part of the Twilio REST client the gateway needs
type twilioMessageAPI interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioGateway sends messages through the Twilio Messages API
type TwilioGateway struct {
	api  twilioMessageAPI
	from string
}

// NewTwilioGateway creates a gateway sending from the given number
func NewTwilioGateway(api twilioMessageAPI, from string) *TwilioGateway {
	return &TwilioGateway{api: api, from: from}
}

func (g *TwilioGateway) Name() string { return config.SMSProviderTwilio }

// Send waits for the Twilio call or ctx, whichever finishes first. CreateMessage takes no context,
// so a call abandoned on ctx may still deliver the SMS until the client's HTTP timeout fires.
func (g *TwilioGateway) Send(ctx context.Context, phone, message string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(phone)
	params.SetFrom(g.from)
	params.SetBody(message)

	done := make(chan error, 1)
	go func() {
		_, err := g.api.CreateMessage(params)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("twilio send failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("twilio send aborted: %w", ctx.Err())
	}
}
