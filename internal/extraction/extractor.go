package extraction

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
	"go.uber.org/zap"

	"github.com/invoicedesk/invoicedesk/internal/models"
)

const extractFunctionName = "extract_invoice_data"

// Config holds extractor configuration
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
}

// Extractor extracts structured invoice data from document text through the
// OpenAI chat-completions API with a fixed function-call schema.
type Extractor struct {
	client      *openai.Client
	model       string
	temperature float32
	logger      *zap.Logger
}

// NewExtractor creates a new invoice extractor
func NewExtractor(cfg Config, logger *zap.Logger) *Extractor {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Extractor{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		logger:      logger,
	}
}

// Extract issues one completion request for the given document text and
// parses the function-call arguments into an invoice record.
//
// Shape failures degrade instead of aborting: if the model selects no
// function call, a different function, or returns arguments that are not
// valid JSON, Extract returns the empty invoice skeleton with a nil error so
// one bad document never blocks review of the rest of the batch. Transport
// errors propagate.
func (e *Extractor) Extract(ctx context.Context, text string) (*models.Invoice, error) {
	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.model,
		Temperature: e.temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are an AI assistant that extracts structured invoice data from text. Pay close attention to correctly identifying all required fields.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf("Extract the invoice data from the following text and format it according to the specified structure:\n\n%s", text),
			},
		},
		Functions: []openai.FunctionDefinition{
			{
				Name:        extractFunctionName,
				Description: "Extracts structured invoice data from text",
				Parameters:  invoiceSchema(),
			},
		},
		FunctionCall: openai.FunctionCall{Name: extractFunctionName},
	})
	if err != nil {
		e.logger.Error("Completion API call failed", zap.Error(err))
		return nil, fmt.Errorf("failed to extract invoice data: %w", err)
	}

	if len(resp.Choices) == 0 {
		e.logger.Warn("Completion response had no choices, degrading to empty invoice")
		return models.EmptyInvoice(), nil
	}

	call := resp.Choices[0].Message.FunctionCall
	if call == nil || call.Name != extractFunctionName {
		e.logger.Warn("Completion response did not select the extraction function, degrading to empty invoice")
		return models.EmptyInvoice(), nil
	}

	var inv models.Invoice
	if err := json.Unmarshal([]byte(call.Arguments), &inv); err != nil {
		e.logger.Warn("Failed to parse extraction arguments, degrading to empty invoice",
			zap.Error(err),
			zap.String("arguments", call.Arguments))
		return models.EmptyInvoice(), nil
	}

	if inv.Items == nil {
		inv.Items = []models.LineItem{}
	}

	e.logger.Info("Invoice data extracted",
		zap.String("invoice_number", inv.Invoice.InvoiceNumber),
		zap.Float64("total_amount", inv.Invoice.TotalAmount),
		zap.Int("items", len(inv.Items)))

	return &inv, nil
}

// invoiceSchema is the fixed parameter schema of extract_invoice_data:
// invoice, supplier, customer and items groups, with the same required
// fields the review flow expects.
func invoiceSchema() jsonschema.Definition {
	return jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"invoice": {
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"invoice_number": {Type: jsonschema.String},
					"date":           {Type: jsonschema.String},
					"due_date":       {Type: jsonschema.String},
					"type":           {Type: jsonschema.String, Enum: []string{models.TypeIncoming, models.TypeOutgoing}},
					"total_amount":   {Type: jsonschema.Number},
					"vat_amount":     {Type: jsonschema.Number},
					"status":         {Type: jsonschema.String, Enum: []string{models.StatusPaid, models.StatusUnpaid, models.StatusPartial}},
					"notes":          {Type: jsonschema.String},
				},
				Required: []string{"invoice_number", "date", "type", "total_amount", "vat_amount", "status"},
			},
			"supplier": partySchema(),
			"customer": partySchema(),
			"items": {
				Type: jsonschema.Array,
				Items: &jsonschema.Definition{
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"item_name":   {Type: jsonschema.String},
						"item_code":   {Type: jsonschema.String},
						"description": {Type: jsonschema.String},
						"quantity":    {Type: jsonschema.Number},
						"unit_price":  {Type: jsonschema.Number},
						"total_price": {Type: jsonschema.Number},
					},
					Required: []string{"item_name", "quantity", "unit_price", "total_price", "item_code"},
				},
			},
		},
		Required: []string{"invoice", "supplier", "customer", "items"},
	}
}

func partySchema() jsonschema.Definition {
	return jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"name":           {Type: jsonschema.String},
			"contact_person": {Type: jsonschema.String},
			"email":          {Type: jsonschema.String},
			"phone":          {Type: jsonschema.String},
			"address":        {Type: jsonschema.String},
			"trn":            {Type: jsonschema.String},
		},
		Required: []string{"name"},
	}
}
