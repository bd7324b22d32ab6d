package apple

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/devsisters/go-applereceipt"
	"github.com/devsisters/go-applereceipt/applepki"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/pashaMoroz/entitlement-server/entitlement"
	"github.com/pashaMoroz/entitlement-server/receipt"
)

const (
	// Verification endpoints. Which one a deployment talks to is resolved
	// at startup via Config.VerifyURL, never per-request.
	SandboxVerifyURL    = "https://sandbox.itunes.apple.com/verifyReceipt"
	ProductionVerifyURL = "https://buy.itunes.apple.com/verifyReceipt"

	defaultTimeout = 30 * time.Second

	expiresDateLayout = "2006-01-02 15:04:05"
)

var (
	// ErrMalformedResponse is returned when the verification response is
	// missing the latest_receipt_info array or cannot be decoded at all.
	ErrMalformedResponse = errors.New("malformed verification response")

	// ErrBundleMismatch is returned by the local pre-check when the receipt
	// was issued for a different app bundle.
	ErrBundleMismatch = errors.New("receipt bundle identifier mismatch")
)

// NetworkError wraps a transport-level failure of the verification call.
type NetworkError struct {
	cause error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("verification request failed: %v", e.cause)
}

func (e *NetworkError) Unwrap() error {
	return e.cause
}

type Config struct {
	// VerifyURL is SandboxVerifyURL or ProductionVerifyURL.
	VerifyURL string

	// SharedSecret is the app-specific shared secret sent as the request
	// password.
	SharedSecret string

	// BundleID, when set, enables a local receipt decode that rejects
	// receipts issued for other apps before any network call is made.
	BundleID string

	// Timeout bounds the verification round trip. Defaults to 30s.
	Timeout time.Duration
}

type Verifier struct {
	log          *zap.Logger
	conf         Config
	entitlements entitlement.Store
	httpClient   *http.Client

	now func() time.Time
}

func NewVerifier(log *zap.Logger, conf Config, entitlements entitlement.Store) *Verifier {
	timeout := conf.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Verifier{
		log:          log,
		conf:         conf,
		entitlements: entitlements,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		now: time.Now,
	}
}

var _ receipt.Verifier = (*Verifier)(nil)

type verifyRequest struct {
	ReceiptData            string `json:"receipt-data"`
	Password               string `json:"password"`
	ExcludeOldTransactions bool   `json:"exclude-old-transactions"`
}

type verifyResponse struct {
	Status            int               `json:"status"`
	Environment       string            `json:"environment"`
	LatestReceiptInfo []json.RawMessage `json:"latest_receipt_info"`
}

type latestReceiptInfo struct {
	ProductID   string `json:"product_id"`
	ExpiresDate string `json:"expires_date"`
}

func (v *Verifier) VerifyReceipt(ctx context.Context, receiptBlob []byte) error {
	encoded := base64.StdEncoding.EncodeToString(receiptBlob)

	if v.conf.BundleID != "" {
		decoded, err := applereceipt.DecodeBase64(encoded, applepki.CertPool())
		if err != nil {
			return errors.Wrap(err, "error decoding receipt")
		}
		if decoded.BundleIdentifier != v.conf.BundleID {
			return ErrBundleMismatch
		}
	}

	resp, err := v.sendVerifyRequest(ctx, &verifyRequest{
		ReceiptData:            encoded,
		Password:               v.conf.SharedSecret,
		ExcludeOldTransactions: true,
	})
	if err != nil {
		return err
	}

	if resp.LatestReceiptInfo == nil {
		v.log.Warn("Verification response has no latest_receipt_info", zap.Int("status", resp.Status))
		return ErrMalformedResponse
	}

	now := v.now()
	for _, raw := range resp.LatestReceiptInfo {
		var info latestReceiptInfo
		if err := json.Unmarshal(raw, &info); err != nil {
			// Best effort per record
			v.log.Debug("Skipping malformed receipt record", zap.Error(err))
			continue
		}

		expiresAt, err := parseExpiresDate(info.ExpiresDate)
		if err != nil {
			v.log.Debug("Skipping receipt record with unparseable expiration",
				zap.String("product_id", info.ProductID),
				zap.String("expires_date", info.ExpiresDate),
			)
			continue
		}

		// Never overwrite a valid cached entitlement with an expired date
		if !expiresAt.After(now) {
			continue
		}

		err = v.entitlements.Put(ctx, &entitlement.Record{
			ProductID: info.ProductID,
			ExpiresAt: expiresAt,
		})
		if err != nil {
			return errors.Wrap(err, "error persisting entitlement")
		}

		v.log.Debug("Updated entitlement",
			zap.String("product_id", info.ProductID),
			zap.Time("expires_at", expiresAt),
		)
	}

	return nil
}

func (v *Verifier) sendVerifyRequest(ctx context.Context, reqBody *verifyRequest) (*verifyResponse, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, errors.Wrap(err, "error marshalling verification request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.conf.VerifyURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, errors.Wrap(err, "error creating verification request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &NetworkError{cause: fmt.Errorf("verification endpoint returned %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{cause: err}
	}

	var verifyResp verifyResponse
	if err := json.Unmarshal(body, &verifyResp); err != nil {
		return nil, ErrMalformedResponse
	}

	return &verifyResp, nil
}

// parseExpiresDate parses Apple's "yyyy-MM-dd HH:mm:ss <zone>" expiration
// format, where the zone is usually an IANA name like "Etc/GMT".
func parseExpiresDate(value string) (time.Time, error) {
	parts := strings.SplitN(value, " ", 3)
	if len(parts) == 3 {
		loc, err := time.LoadLocation(parts[2])
		if err == nil {
			return time.ParseInLocation(expiresDateLayout, parts[0]+" "+parts[1], loc)
		}
	}

	// Zone abbreviations such as plain "GMT"
	return time.Parse(expiresDateLayout+" MST", value)
}
