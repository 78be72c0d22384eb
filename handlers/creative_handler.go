package handlers

import (
	"net/url"
	"strconv"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/gofiber/fiber/v2"
	config "github.com/otieno254/affiliate_program/configs"
	"github.com/otieno254/affiliate_program/database"
	"github.com/otieno254/affiliate_program/models"
)

type CreativeRequest struct {
	Name           string  `json:"name" validate:"required,min=2"`
	Type           string  `json:"type" validate:"required,oneof=text_link image_banner html_snippet"`
	Content        string  `json:"content" validate:"required"`
	ImageURL       *string `json:"image_url"`
	DestinationURL string  `json:"destination_url" validate:"required,url"`
	IsActive       *bool   `json:"is_active"`
}

func CreateCreative(c *fiber.Ctx) error {
	var req CreativeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	creative := models.Creative{
		Name:           req.Name,
		Type:           req.Type,
		Content:        req.Content,
		ImageURL:       req.ImageURL,
		DestinationURL: req.DestinationURL,
		IsActive:       true,
	}
	if req.IsActive != nil {
		creative.IsActive = *req.IsActive
	}

	if err := database.DB.Create(&creative).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create creative"})
	}

	return c.Status(fiber.StatusCreated).JSON(creative)
}

func ListCreatives(c *fiber.Ctx) error {
	var creatives []models.Creative
	database.DB.Order("created_at desc").Find(&creatives)
	return c.JSON(creatives)
}

func UpdateCreative(c *fiber.Ctx) error {
	creativeID := c.Params("creativeId")

	var creative models.Creative
	if err := database.DB.First(&creative, "id = ?", creativeID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Creative not found", "code": "not_found"})
	}

	var req CreativeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	creative.Name = req.Name
	creative.Type = req.Type
	creative.Content = req.Content
	creative.ImageURL = req.ImageURL
	creative.DestinationURL = req.DestinationURL
	if req.IsActive != nil {
		creative.IsActive = *req.IsActive
	}

	if err := database.DB.Save(&creative).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update creative"})
	}

	return c.JSON(creative)
}

func DeleteCreative(c *fiber.Ctx) error {
	creativeID := c.Params("creativeId")

	var creative models.Creative
	if err := database.DB.First(&creative, "id = ?", creativeID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Creative not found", "code": "not_found"})
	}

	database.DB.Delete(&creative)

	return c.SendStatus(fiber.StatusNoContent)
}

// GenerateBannerUploadSignature creates a secure signature so the admin UI
// can upload banner images straight to Cloudinary.
func GenerateBannerUploadSignature(c *fiber.Ctx) error {
	cloudinaryURL := config.Config("CLOUDINARY_URL")
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to initialize Cloudinary"})
	}

	parsedURL, err := url.Parse(cloudinaryURL)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to parse Cloudinary URL"})
	}
	secret, _ := parsedURL.User.Password()

	paramsToSign, err := api.StructToParams(uploader.UploadParams{
		Folder: "affiliate_banners",
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to prepare signature params"})
	}

	timestamp := time.Now().Unix()
	paramsToSign.Set("timestamp", strconv.FormatInt(timestamp, 10))

	signature, err := api.SignParameters(paramsToSign, secret)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to sign upload params"})
	}

	apiKey := cld.Config.Cloud.APIKey

	return c.JSON(fiber.Map{
		"signature": signature,
		"timestamp": timestamp,
		"api_key":   apiKey,
		"folder":    "affiliate_banners",
	})
}
