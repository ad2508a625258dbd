package handlers

import (
	"fmt"
	"net/http"
	"time"

	"chainvoice/internal/common"
	"chainvoice/internal/models"
	"chainvoice/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const paymentProofBucket = "payment-proofs"

// PaymentHandlers handles HTTP requests for the payment ledger
type PaymentHandlers struct {
	ledgerService services.LedgerService
	minioSvc      services.MinioService
}

func NewPaymentHandlers(ledgerService services.LedgerService, minioSvc services.MinioService) *PaymentHandlers {
	return &PaymentHandlers{
		ledgerService: ledgerService,
		minioSvc:      minioSvc,
	}
}

// RecordPayment handles POST /invoices/:id/payments
// Payments are recorded by payers, so this endpoint does not require the
// caller to be the invoice creator.
func (h *PaymentHandlers) RecordPayment(c echo.Context) error {
	ctx := c.Request().Context()

	invoiceID, err := common.ValidateUUID(c.Param("id"), "invoice_id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	var record models.PaymentRecord
	if err := c.Bind(&record); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	invoice, err := h.ledgerService.RecordPayment(ctx, invoiceID, &record)
	if err != nil {
		return common.SendDomainError(c, err)
	}

	return c.JSON(http.StatusCreated, invoice)
}

// VerifyBankPayment handles POST /invoices/:id/payments/:recordId/verify
// Only the invoice creator may accept or reject a pending bank transfer.
func (h *PaymentHandlers) VerifyBankPayment(c echo.Context) error {
	ctx := c.Request().Context()

	creatorWallet, ok := common.GetCreatorWalletFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	invoiceID, err := common.ValidateUUID(c.Param("id"), "invoice_id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}
	recordID, err := common.ValidateUUID(c.Param("recordId"), "payment_record_id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	var req struct {
		Decision string  `json:"decision"`
		Note     *string `json:"note"`
	}
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	if err := common.ValidateOptionalString(req.Note, "note", 1000); err != nil {
		return common.SendValidationError(c, "note", err.Error())
	}

	invoice, err := h.ledgerService.VerifyBankPayment(ctx, creatorWallet, invoiceID, recordID, req.Decision, req.Note)
	if err != nil {
		return common.SendDomainError(c, err)
	}

	return c.JSON(http.StatusOK, invoice)
}

// UploadPaymentProof handles POST /invoices/:id/payment-proof
// Stores a bank transfer proof document and returns the object key the payer
// includes in the payment record.
func (h *PaymentHandlers) UploadPaymentProof(c echo.Context) error {
	ctx := c.Request().Context()

	invoiceID, err := common.ValidateUUID(c.Param("id"), "invoice_id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	fileHeader, err := c.FormFile("proof")
	if err != nil {
		return common.SendClientError(c, "proof file is required")
	}

	// 10 MB cap on proof documents
	if fileHeader.Size > 10*1024*1024 {
		return common.SendValidationError(c, "proof", "file cannot exceed 10 MB")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return common.SendServerError(c, "Failed to read uploaded file: "+err.Error())
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	objectName := fmt.Sprintf("%s/%s-%s", invoiceID.String(), uuid.NewString(), fileHeader.Filename)

	if err := h.minioSvc.UploadObject(ctx, paymentProofBucket, objectName, contentType, file, fileHeader.Size); err != nil {
		return common.SendServerError(c, "Failed to store payment proof: "+err.Error())
	}

	proofURL, err := h.minioSvc.GetPresignedURL(paymentProofBucket, objectName, time.Hour)
	if err != nil {
		return common.SendServerError(c, "Failed to generate proof URL: "+err.Error())
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"object_key": objectName,
		"proof_url":  proofURL,
	})
}

// GetPaymentProofURL handles GET /invoices/:id/payment-proof
// Returns a fresh presigned URL for a stored proof object.
func (h *PaymentHandlers) GetPaymentProofURL(c echo.Context) error {
	ctx := c.Request().Context()

	if _, ok := common.GetCreatorWalletFromContext(ctx); !ok {
		return common.SendUnauthorizedError(c)
	}

	objectKey := c.QueryParam("object_key")
	if objectKey == "" {
		return common.SendClientError(c, "object_key is required")
	}

	proofURL, err := h.minioSvc.GetPresignedURL(paymentProofBucket, objectKey, time.Hour)
	if err != nil {
		return common.SendServerError(c, "Failed to generate proof URL: "+err.Error())
	}

	return c.JSON(http.StatusOK, map[string]string{
		"proof_url": proofURL,
	})
}
