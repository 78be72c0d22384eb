package payments

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	config "github.com/otieno254/affiliate_program/configs"
	"github.com/shopspring/decimal"
)

type accessTokenResponse struct {
	AccessToken string `json:"access_token"`
}

type payPalPayoutResponse struct {
	BatchHeader struct {
		PayoutBatchID string `json:"payout_batch_id"`
		BatchStatus   string `json:"batch_status"`
	} `json:"batch_header"`
}

func getPayPalAccessToken() (string, error) {
	apiBase := config.Config("PAYPAL_API_BASE_URL")
	clientID := config.Config("PAYPAL_CLIENT_ID")
	clientSecret := config.Config("PAYPAL_CLIENT_SECRET")

	reqBody := strings.NewReader("grant_type=client_credentials")
	req, err := http.NewRequest("POST", fmt.Sprintf("%s/v1/oauth2/token", apiBase), reqBody)
	if err != nil {
		return "", err
	}

	req.SetBasicAuth(clientID, clientSecret)
	req.Header.Add("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to get access token, status: %s", resp.Status)
	}

	var tokenResp accessTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", err
	}

	return tokenResp.AccessToken, nil
}

// SendPayPalPayout disburses the given amount to the recipient's PayPal
// account and returns the payout batch id for the ledger record.
func SendPayPalPayout(recipientEmail string, amount decimal.Decimal, payoutRefID string) (string, error) {
	accessToken, err := getPayPalAccessToken()
	if err != nil {
		return "", err
	}

	apiBase := config.Config("PAYPAL_API_BASE_URL")
	currency := config.ConfigOr("PAYOUT_CURRENCY", "USD")

	payload := map[string]interface{}{
		"sender_batch_header": map[string]string{
			"sender_batch_id": payoutRefID,
			"email_subject":   "You have received an affiliate payout",
		},
		"items": []map[string]interface{}{
			{
				"recipient_type": "EMAIL",
				"receiver":       recipientEmail,
				"amount": map[string]string{
					"currency": currency,
					"value":    amount.StringFixed(2),
				},
				"sender_item_id": payoutRefID,
			},
		},
	}
	body, _ := json.Marshal(payload)

	req, _ := http.NewRequest("POST", fmt.Sprintf("%s/v1/payments/payouts", apiBase), bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", accessToken))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("failed to create payout: %s", string(respBody))
	}

	var payoutResp payPalPayoutResponse
	if err := json.NewDecoder(resp.Body).Decode(&payoutResp); err != nil {
		return "", err
	}

	return payoutResp.BatchHeader.PayoutBatchID, nil
}
