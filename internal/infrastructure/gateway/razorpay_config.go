package gateway

import "errors"

const defaultRazorpayBaseURL = "https://api.razorpay.com"

// RazorpayConfig contains credentials for the Razorpay REST API
type RazorpayConfig struct {
	// KeyID is the API key identifier, used as the basic auth username
	KeyID string
	// KeySecret signs API requests and checkout proofs
	KeySecret string
	// WebhookSecret signs webhook deliveries. Separate from KeySecret;
	// webhook verification fails closed when it is empty.
	WebhookSecret string
	// BaseURL overrides the API endpoint (tests, mock gateways)
	BaseURL string
}

// Errors for configuration validation
var (
	ErrRazorpayMissingKeyID     = errors.New("razorpay: missing key ID")
	ErrRazorpayMissingKeySecret = errors.New("razorpay: missing key secret")
)

// Validate validates the configuration
func (c *RazorpayConfig) Validate() error {
	if c.KeyID == "" {
		return ErrRazorpayMissingKeyID
	}
	if c.KeySecret == "" {
		return ErrRazorpayMissingKeySecret
	}
	if c.BaseURL == "" {
		c.BaseURL = defaultRazorpayBaseURL
	}
	return nil
}

// RazorpayConfigBuilder helps build RazorpayConfig
type RazorpayConfigBuilder struct {
	config RazorpayConfig
}

// NewRazorpayConfigBuilder creates a new config builder
func NewRazorpayConfigBuilder() *RazorpayConfigBuilder {
	return &RazorpayConfigBuilder{}
}

// SetKeyID sets the API key ID
func (b *RazorpayConfigBuilder) SetKeyID(keyID string) *RazorpayConfigBuilder {
	b.config.KeyID = keyID
	return b
}

// SetKeySecret sets the API key secret
func (b *RazorpayConfigBuilder) SetKeySecret(secret string) *RazorpayConfigBuilder {
	b.config.KeySecret = secret
	return b
}

// SetWebhookSecret sets the webhook signing secret
func (b *RazorpayConfigBuilder) SetWebhookSecret(secret string) *RazorpayConfigBuilder {
	b.config.WebhookSecret = secret
	return b
}

// SetBaseURL overrides the API endpoint
func (b *RazorpayConfigBuilder) SetBaseURL(baseURL string) *RazorpayConfigBuilder {
	b.config.BaseURL = baseURL
	return b
}

// Build validates and returns the configuration
func (b *RazorpayConfigBuilder) Build() (*RazorpayConfig, error) {
	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
