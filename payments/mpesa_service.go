package payments

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	config "github.com/otieno254/affiliate_program/configs"
	"github.com/shopspring/decimal"
)

const kcbBaseURL = "https://api.buni.kcbgroup.com"
const kcbTokenURL = kcbBaseURL + "/token?grant_type=client_credentials"

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

var (
	kcbToken       string
	kcbTokenExpiry time.Time
	tokenMutex     sync.RWMutex
)

func getKcbAccessToken() (string, error) {
	tokenMutex.RLock()
	if kcbToken != "" && time.Now().Before(kcbTokenExpiry) {
		token := kcbToken
		tokenMutex.RUnlock()
		return token, nil
	}
	tokenMutex.RUnlock()

	tokenMutex.Lock()
	defer tokenMutex.Unlock()

	if kcbToken != "" && time.Now().Before(kcbTokenExpiry) {
		return kcbToken, nil
	}

	log.Println("Fetching new KCB access token...")
	apiKey := config.Config("KCB_API_KEY")
	apiSecret := config.Config("KCB_API_SECRET")

	reqBody := strings.NewReader("grant_type=client_credentials")
	req, err := http.NewRequest("POST", kcbTokenURL, reqBody)
	if err != nil {
		return "", err
	}

	req.SetBasicAuth(apiKey, apiSecret)
	req.Header.Add("Content-Type", "application/x-www-form-urlencoded")

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("KCB token API returned non-200 status: %s", resp.Status)
	}

	var tokenResp tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", err
	}

	kcbToken = tokenResp.AccessToken
	kcbTokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn-300) * time.Second)

	return kcbToken, nil
}

var nonNumericRegex = regexp.MustCompile(`[^0-9]`)

func SanitizeMpesaNumber(phone string) (string, error) {
	sanitized := nonNumericRegex.ReplaceAllString(phone, "")

	if (strings.HasPrefix(sanitized, "07") || strings.HasPrefix(sanitized, "01")) && len(sanitized) == 10 {
		return "254" + sanitized[1:], nil
	}
	if (strings.HasPrefix(sanitized, "7") || strings.HasPrefix(sanitized, "1")) && len(sanitized) == 9 {
		return "254" + sanitized, nil
	}
	if strings.HasPrefix(sanitized, "254") && len(sanitized) == 12 {
		return sanitized, nil
	}

	return "", errors.New("invalid M-Pesa phone number format")
}

type b2cRequest struct {
	PhoneNumber     string `json:"phoneNumber"`
	Amount          string `json:"amount"`
	InvoiceNumber   string `json:"invoiceNumber"`
	OrgShortCode    string `json:"orgShortCode"`
	CallbackURL     string `json:"callbackUrl"`
	TransactionDesc string `json:"transactionDescription"`
}

type b2cResponse struct {
	Header struct {
		StatusCode        string `json:"statusCode"`
		StatusDescription string `json:"statusDescription"`
	} `json:"header"`
	Response struct {
		TransactionID       string `json:"transactionId"`
		ResponseCode        string `json:"ResponseCode"`
		ResponseDescription string `json:"ResponseDescription"`
	} `json:"response"`
}

// SendMpesaPayout pushes a B2C transfer to the affiliate's phone and returns
// the provider transaction id.
func SendMpesaPayout(phoneNumber string, amount decimal.Decimal, payoutRefID string) (string, error) {
	accessToken, err := getKcbAccessToken()
	if err != nil {
		return "", fmt.Errorf("failed to get KCB access token: %v", err)
	}

	sanitized, err := SanitizeMpesaNumber(phoneNumber)
	if err != nil {
		return "", err
	}

	payload := b2cRequest{
		PhoneNumber:     sanitized,
		Amount:          amount.StringFixed(2),
		InvoiceNumber:   payoutRefID,
		OrgShortCode:    config.Config("KCB_SHORT_CODE"),
		CallbackURL:     config.Config("KCB_CALLBACK_URL"),
		TransactionDesc: "Affiliate payout",
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequest("POST", kcbBaseURL+"/mm/b2c/api/request/1.0.0", bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", accessToken))

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var b2cResp b2cResponse
	if err := json.NewDecoder(resp.Body).Decode(&b2cResp); err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK || b2cResp.Response.ResponseCode != "0" {
		return "", fmt.Errorf("M-Pesa B2C request failed: %s", b2cResp.Response.ResponseDescription)
	}

	return b2cResp.Response.TransactionID, nil
}
