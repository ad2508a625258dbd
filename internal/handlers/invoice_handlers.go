package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"chainvoice/internal/common"
	"chainvoice/internal/models"
	"chainvoice/internal/services"

	"github.com/jung-kurt/gofpdf"
	"github.com/labstack/echo/v4"
)

// InvoiceHandlers handles HTTP requests for invoices
type InvoiceHandlers struct {
	invoiceService services.InvoiceServiceInterface
	minioSvc       services.MinioService
}

// NewInvoiceHandlers creates a new invoice handlers instance
func NewInvoiceHandlers(invoiceService services.InvoiceServiceInterface, minioSvc services.MinioService) *InvoiceHandlers {
	return &InvoiceHandlers{
		invoiceService: invoiceService,
		minioSvc:       minioSvc,
	}
}

// CreateInvoice handles POST /invoices
func (h *InvoiceHandlers) CreateInvoice(c echo.Context) error {
	ctx := c.Request().Context()

	creatorWallet, ok := common.GetCreatorWalletFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	var invoice models.Invoice
	if err := c.Bind(&invoice); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	// The authenticated wallet always wins over whatever the body claims
	invoice.CreatorWallet = creatorWallet

	if err := h.invoiceService.CreateInvoice(ctx, &invoice); err != nil {
		return common.SendDomainError(c, err)
	}

	return c.JSON(http.StatusCreated, invoice)
}

// GetInvoices handles GET /invoices
func (h *InvoiceHandlers) GetInvoices(c echo.Context) error {
	ctx := c.Request().Context()

	creatorWallet, ok := common.GetCreatorWalletFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	limit := 50
	offset := 0

	if limitParam := c.QueryParam("limit"); limitParam != "" {
		if l, err := strconv.Atoi(limitParam); err == nil && l > 0 {
			limit = l
		}
	}
	if offsetParam := c.QueryParam("offset"); offsetParam != "" {
		if o, err := strconv.Atoi(offsetParam); err == nil && o >= 0 {
			offset = o
		}
	}

	limit, offset, err := common.ValidatePaginationParams(limit, offset)
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	status := c.QueryParam("status")

	invoices, err := h.invoiceService.ListInvoices(ctx, creatorWallet, status, limit, offset)
	if err != nil {
		return common.SendDomainError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"invoices": invoices,
		"limit":    limit,
		"offset":   offset,
	})
}

// GetInvoiceByID handles GET /invoices/:id
func (h *InvoiceHandlers) GetInvoiceByID(c echo.Context) error {
	ctx := c.Request().Context()

	creatorWallet, ok := common.GetCreatorWalletFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	invoiceID, err := common.ValidateUUID(c.Param("id"), "invoice_id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	invoice, err := h.invoiceService.GetInvoice(ctx, creatorWallet, invoiceID)
	if err != nil {
		return common.SendDomainError(c, err)
	}

	return c.JSON(http.StatusOK, invoice)
}

// UpdateInvoice handles PUT /invoices/:id
func (h *InvoiceHandlers) UpdateInvoice(c echo.Context) error {
	ctx := c.Request().Context()

	creatorWallet, ok := common.GetCreatorWalletFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	invoiceID, err := common.ValidateUUID(c.Param("id"), "invoice_id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	var invoice models.Invoice
	if err := c.Bind(&invoice); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	invoice.ID = invoiceID
	invoice.CreatorWallet = creatorWallet

	if err := h.invoiceService.UpdateInvoice(ctx, &invoice); err != nil {
		return common.SendDomainError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message": "Invoice updated successfully",
	})
}

// RejectInvoice handles POST /invoices/:id/reject
func (h *InvoiceHandlers) RejectInvoice(c echo.Context) error {
	ctx := c.Request().Context()

	creatorWallet, ok := common.GetCreatorWalletFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	invoiceID, err := common.ValidateUUID(c.Param("id"), "invoice_id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	invoice, err := h.invoiceService.RejectInvoice(ctx, creatorWallet, invoiceID, req.Reason)
	if err != nil {
		return common.SendDomainError(c, err)
	}

	return c.JSON(http.StatusOK, invoice)
}

// DeleteInvoice handles DELETE /invoices/:id
func (h *InvoiceHandlers) DeleteInvoice(c echo.Context) error {
	ctx := c.Request().Context()

	creatorWallet, ok := common.GetCreatorWalletFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	invoiceID, err := common.ValidateUUID(c.Param("id"), "invoice_id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	if err := h.invoiceService.DeleteInvoice(ctx, creatorWallet, invoiceID); err != nil {
		return common.SendDomainError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message": "Invoice deleted successfully",
	})
}

// generateInvoicePDF renders an invoice to PDF
func (h *InvoiceHandlers) generateInvoicePDF(invoice *models.Invoice) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	marginX := 20.0
	marginY := 20.0
	pdf.SetMargins(marginX, marginY, marginX)
	pdf.SetAutoPageBreak(true, marginY)

	pdf.SetFont("Arial", "B", 16)
	pdf.SetTextColor(33, 37, 41)

	pdf.SetXY(marginX, marginY)
	pdf.Cell(0, 10, "INVOICE")
	pdf.Ln(15)

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Invoice Number: %d", invoice.InvoiceNumber))
	pdf.Ln(8)
	pdf.Cell(0, 8, fmt.Sprintf("Issue Date: %s", invoice.IssueDate.Format("02-Jan-2006")))
	pdf.Ln(8)
	pdf.Cell(0, 8, fmt.Sprintf("Due Date: %s", invoice.DueDate.Format("02-Jan-2006")))
	pdf.Ln(8)
	pdf.Cell(0, 8, fmt.Sprintf("Status: %s", invoice.Status))
	pdf.Ln(13)

	pdf.SetFont("Arial", "B", 11)
	pdf.Cell(0, 8, "BILL TO:")
	pdf.Ln(6)

	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, invoice.Client.Name)
	pdf.Ln(6)
	pdf.Cell(0, 6, invoice.Client.Email)
	pdf.Ln(10)

	// Items table
	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(240, 240, 240)

	headers := []string{"Description", "Qty", "Rate", "Disc %", "Amount"}
	colWidths := []float64{70, 15, 30, 20, 35}

	for i, header := range headers {
		pdf.CellFormat(colWidths[i], 8, header, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 10)
	pdf.SetFillColor(255, 255, 255)

	for _, item := range invoice.Items {
		pdf.CellFormat(colWidths[0], 8, item.Name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(colWidths[1], 8, fmt.Sprintf("%d", item.Quantity), "1", 0, "C", false, 0, "")
		pdf.CellFormat(colWidths[2], 8, fmt.Sprintf("%.2f", item.UnitPrice), "1", 0, "R", false, 0, "")
		pdf.CellFormat(colWidths[3], 8, fmt.Sprintf("%.1f", item.DiscountPercent), "1", 0, "R", false, 0, "")
		pdf.CellFormat(colWidths[4], 8, fmt.Sprintf("%.2f", item.AmountAfterDiscount), "1", 0, "R", false, 0, "")
		pdf.Ln(8)
	}

	pdf.Ln(5)

	// Totals
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(135, 6, "Subtotal:", "", 0, "R", false, 0, "")
	pdf.CellFormat(35, 6, fmt.Sprintf("%s %.2f", invoice.Currency, invoice.SubTotalBeforeDiscount), "", 0, "R", false, 0, "")
	pdf.Ln(6)

	if invoice.TotalDiscountValue > 0 {
		pdf.SetFont("Arial", "", 9)
		pdf.CellFormat(135, 5, "Discount:", "", 0, "R", false, 0, "")
		pdf.CellFormat(35, 5, fmt.Sprintf("-%s %.2f", invoice.Currency, invoice.TotalDiscountValue), "", 0, "R", false, 0, "")
		pdf.Ln(5)
	}
	if invoice.VATValue > 0 {
		pdf.SetFont("Arial", "", 9)
		pdf.CellFormat(135, 5, fmt.Sprintf("VAT (%.1f%%):", invoice.VATPercent), "", 0, "R", false, 0, "")
		pdf.CellFormat(35, 5, fmt.Sprintf("%s %.2f", invoice.Currency, invoice.VATValue), "", 0, "R", false, 0, "")
		pdf.Ln(5)
	}

	pdf.SetFont("Arial", "B", 11)
	pdf.SetTextColor(220, 20, 60)
	pdf.CellFormat(135, 8, "TOTAL:", "", 0, "R", false, 0, "")
	pdf.CellFormat(35, 8, fmt.Sprintf("%s %.2f", invoice.Currency, invoice.GrandTotal), "", 0, "R", false, 0, "")
	pdf.Ln(8)

	pdf.SetTextColor(33, 37, 41)
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(135, 6, "Amount Received:", "", 0, "R", false, 0, "")
	pdf.CellFormat(35, 6, fmt.Sprintf("%s %.2f", invoice.Currency, invoice.TotalAmountReceived), "", 0, "R", false, 0, "")
	pdf.Ln(6)
	pdf.CellFormat(135, 6, "Balance Due:", "", 0, "R", false, 0, "")
	pdf.CellFormat(35, 6, fmt.Sprintf("%s %.2f", invoice.Currency, invoice.RemainingAmount), "", 0, "R", false, 0, "")
	pdf.Ln(10)

	// Payment instructions
	if invoice.PaymentMethod == models.PaymentMethodBank && invoice.PaymentDetails != nil {
		pdf.SetFont("Arial", "B", 9)
		pdf.Cell(0, 6, "Payment Instructions:")
		pdf.Ln(6)
		pdf.SetFont("Arial", "", 8)
		pdf.Cell(0, 5, fmt.Sprintf("Bank: %s", invoice.PaymentDetails.BankName))
		pdf.Ln(5)
		pdf.Cell(0, 5, fmt.Sprintf("Account: %s (%s)", invoice.PaymentDetails.AccountNumber, invoice.PaymentDetails.AccountName))
		pdf.Ln(5)
		if invoice.PaymentDetails.RoutingNumber != "" {
			pdf.Cell(0, 5, fmt.Sprintf("Routing: %s", invoice.PaymentDetails.RoutingNumber))
			pdf.Ln(5)
		}
	} else {
		pdf.SetFont("Arial", "B", 9)
		pdf.Cell(0, 6, "Payment Instructions:")
		pdf.Ln(6)
		pdf.SetFont("Arial", "", 8)
		pdf.Cell(0, 5, fmt.Sprintf("Pay in stablecoin to: %s", invoice.CreatorWallet))
		pdf.Ln(5)
	}

	if invoice.Notes != nil && *invoice.Notes != "" {
		pdf.Ln(5)
		pdf.SetFont("Arial", "I", 8)
		pdf.Cell(0, 5, *invoice.Notes)
		pdf.Ln(5)
	}

	pdf.Ln(10)
	pdf.SetFont("Arial", "I", 8)
	pdf.SetTextColor(128, 128, 128)
	pdf.Cell(0, 5, "Thank you for your business!")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	return buf.Bytes(), nil
}

// GenerateInvoicePDF handles POST /invoices/:id/generate-pdf
// Renders the invoice, stores the PDF in MinIO and returns a download URL
func (h *InvoiceHandlers) GenerateInvoicePDF(c echo.Context) error {
	ctx := c.Request().Context()

	creatorWallet, ok := common.GetCreatorWalletFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	invoiceID, err := common.ValidateUUID(c.Param("id"), "invoice_id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	invoice, err := h.invoiceService.GetInvoice(ctx, creatorWallet, invoiceID)
	if err != nil {
		return common.SendDomainError(c, err)
	}

	pdfBytes, err := h.generateInvoicePDF(invoice)
	if err != nil {
		return common.SendServerError(c, fmt.Sprintf("Failed to generate PDF: %v", err))
	}
	if len(pdfBytes) == 0 {
		return common.SendServerError(c, "Generated PDF is empty")
	}

	bucketName := "invoices"
	objectName := fmt.Sprintf("%s/%d.pdf", creatorWallet, invoice.InvoiceNumber)

	if err := h.minioSvc.UploadObject(ctx, bucketName, objectName, "application/pdf", bytes.NewReader(pdfBytes), int64(len(pdfBytes))); err != nil {
		return common.SendServerError(c, "Failed to upload PDF to storage: "+err.Error())
	}

	pdfURL, err := h.minioSvc.GetPresignedURL(bucketName, objectName, 24*time.Hour)
	if err != nil {
		return common.SendServerError(c, "Failed to generate download URL: "+err.Error())
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":    "PDF generated and uploaded successfully",
		"pdf_url":    pdfURL,
		"expires_in": "24 hours",
	})
}
