package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	cldapi "github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"

	"github.com/etelemed/etelemed-api/config"
)

// CloudinaryHandler signs direct-to-Cloudinary uploads for health record
// attachments (lab results, scans) and removes attachments on request.
// Files never pass through this API.
type CloudinaryHandler struct{}

// GenerateSignature generates a signed parameter set the portal uses to
// upload an attachment directly to Cloudinary.
func (c CloudinaryHandler) GenerateSignature(w http.ResponseWriter, r *http.Request) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	uploadPreset := os.Getenv("CLOUDINARY_UPLOAD_PRESET")
	apiSecret := os.Getenv("CLOUDINARY_API_SECRET")

	params := url.Values{}
	params.Set("timestamp", timestamp)
	params.Set("upload_preset", uploadPreset)
	signature, err := cldapi.SignParameters(params, apiSecret)
	if err != nil {
		config.ErrorStatus("failed to sign upload parameters", http.StatusInternalServerError, w, err)
		return
	}

	response := map[string]string{
		"timestamp": timestamp,
		"signature": signature,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// DestroyAttachmentHandler deletes an uploaded attachment by its Cloudinary
// public ID.
func (c CloudinaryHandler) DestroyAttachmentHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PublicID string `json:"publicId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if body.PublicID == "" {
		config.ErrorStatus("publicId is required", http.StatusBadRequest, w, fmt.Errorf("missing publicId"))
		return
	}

	cld, err := cloudinary.NewFromParams(
		os.Getenv("CLOUDINARY_CLOUD_NAME"),
		os.Getenv("CLOUDINARY_API_KEY"),
		os.Getenv("CLOUDINARY_API_SECRET"),
	)
	if err != nil {
		config.ErrorStatus("failed to initialize cloudinary", http.StatusInternalServerError, w, err)
		return
	}

	result, err := cld.Upload.Destroy(r.Context(), uploader.DestroyParams{PublicID: body.PublicID})
	if err != nil {
		config.ErrorStatus("failed to delete attachment", http.StatusInternalServerError, w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"result": result.Result,
	})
}
