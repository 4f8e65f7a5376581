package handlers

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/yeqown/go-qrcode/v2"
	"github.com/yeqown/go-qrcode/writer/standard"
)

type qrResponse struct {
	Code    string `json:"code"`
	JoinURL string `json:"joinUrl"`
	QRCode  string `json:"qrCode"` // base64 PNG
}

// RoomQRCode renders the room's join link as a QR code.
func (h *Handler) RoomQRCode(w http.ResponseWriter, r *http.Request) {
	room, ok := h.lookup(w, r)
	if !ok {
		return
	}

	joinURL := h.baseURL(r) + "/join/" + room.Code
	encoded, err := generateQRCode(joinURL)
	if err != nil {
		h.log.Errorf("QR code for room %s: %v", room.Code, err)
		http.Error(w, "Failed to generate QR code", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, qrResponse{Code: room.Code, JoinURL: joinURL, QRCode: encoded})
}

type bufferCloser struct {
	bytes.Buffer
}

func (*bufferCloser) Close() error { return nil }

// generateQRCode encodes url as a base64 PNG
func generateQRCode(url string) (string, error) {
	// Create QR code with medium error correction level
	qrc, err := qrcode.NewWith(url,
		qrcode.WithErrorCorrectionLevel(qrcode.ErrorCorrectionMedium),
		qrcode.WithEncodingMode(qrcode.EncModeByte),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create QR code: %w", err)
	}

	buf := &bufferCloser{}
	w := standard.NewWithWriter(buf,
		standard.WithBuiltinImageEncoder(standard.PNG_FORMAT),
		standard.WithQRWidth(8), // 8 pixels per module
	)

	if err := qrc.Save(w); err != nil {
		return "", fmt.Errorf("failed to save QR code: %w", err)
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
