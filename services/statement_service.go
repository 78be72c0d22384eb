package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
	config "github.com/otieno254/affiliate_program/configs"
	"github.com/otieno254/affiliate_program/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type StatementLine struct {
	Date        string
	Description string
	Amount      string
}

type statementData struct {
	AffiliateName string
	AffiliateCode string
	Period        string
	Lines         []StatementLine
	TotalEarned   string
	TotalPaidOut  string
	Balance       string
	GeneratedOn   string
}

// GenerateMonthlyStatement renders an affiliate's ledger activity for the
// given month as a PDF and uploads it, returning the download URL.
func GenerateMonthlyStatement(db *gorm.DB, affiliateID uuid.UUID, year int, month time.Month) (string, error) {
	var affiliate models.Affiliate
	if err := db.Preload("User").First(&affiliate, "id = ?", affiliateID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", ErrNotFound
		}
		return "", err
	}

	periodStart := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := periodStart.AddDate(0, 1, 0)

	var commissions []models.Commission
	if err := db.Where("affiliate_id = ? AND status = ? AND decided_at >= ? AND decided_at < ?",
		affiliateID, models.CommissionStatusApproved, periodStart, periodEnd).
		Order("decided_at asc").Find(&commissions).Error; err != nil {
		return "", err
	}

	var payouts []models.Payout
	if err := db.Where("affiliate_id = ? AND status <> ? AND requested_at >= ? AND requested_at < ?",
		affiliateID, models.PayoutStatusCancelled, periodStart, periodEnd).
		Order("requested_at asc").Find(&payouts).Error; err != nil {
		return "", err
	}

	totalEarned := decimal.Zero
	totalPaidOut := decimal.Zero
	var lines []StatementLine
	for _, commission := range commissions {
		totalEarned = totalEarned.Add(commission.Amount)
		lines = append(lines, StatementLine{
			Date:        commission.DecidedAt.Format("2006-01-02"),
			Description: fmt.Sprintf("Commission (%s %s)", commission.SourceType, commission.SourceID),
			Amount:      commission.Amount.StringFixed(2),
		})
	}
	for _, payout := range payouts {
		totalPaidOut = totalPaidOut.Add(payout.Amount)
		lines = append(lines, StatementLine{
			Date:        payout.RequestedAt.Format("2006-01-02"),
			Description: fmt.Sprintf("Payout via %s (%s)", payout.Method, payout.Status),
			Amount:      "-" + payout.Amount.StringFixed(2),
		})
	}

	data := statementData{
		AffiliateName: affiliate.User.FullName,
		AffiliateCode: affiliate.AffiliateCode,
		Period:        periodStart.Format("January 2006"),
		Lines:         lines,
		TotalEarned:   totalEarned.StringFixed(2),
		TotalPaidOut:  totalPaidOut.StringFixed(2),
		Balance:       affiliate.WalletBalance.StringFixed(2),
		GeneratedOn:   time.Now().Format("January 2, 2006"),
	}

	htmlData, err := renderStatementHTML(data)
	if err != nil {
		return "", err
	}

	pdfBytes, err := generatePDFFromHTML(htmlData)
	if err != nil {
		return "", err
	}

	return uploadStatement(pdfBytes, affiliate.AffiliateCode, periodStart)
}

func renderStatementHTML(data statementData) (string, error) {
	tmpl, err := template.ParseFiles("templates/statement.html")
	if err != nil {
		return "", err
	}

	var renderedHTML bytes.Buffer
	if err := tmpl.Execute(&renderedHTML, data); err != nil {
		return "", err
	}
	return renderedHTML.String(), nil
}

func generatePDFFromHTML(htmlContent string) ([]byte, error) {
	ctx, cancel := chromedp.NewContext(context.Background())
	defer cancel()

	var pdfBuffer []byte
	err := chromedp.Run(ctx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, htmlContent).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			pdf, _, err := page.PrintToPDF().WithPrintBackground(true).Do(ctx)
			if err != nil {
				return err
			}
			pdfBuffer = pdf
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}
	return pdfBuffer, nil
}

func uploadStatement(fileBytes []byte, affiliateCode string, period time.Time) (string, error) {
	cld, err := cloudinary.NewFromURL(config.Config("CLOUDINARY_URL"))
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	uploadParams := uploader.UploadParams{
		PublicID:     fmt.Sprintf("statements/%s_%s", affiliateCode, period.Format("2006_01")),
		Folder:       "affiliate_statements",
		ResourceType: "raw",
	}

	uploadResult, err := cld.Upload.Upload(ctx, bytes.NewReader(fileBytes), uploadParams)
	if err != nil {
		return "", err
	}

	return uploadResult.SecureURL, nil
}
