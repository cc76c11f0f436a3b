// Package assistant is a Gemini function-calling agent over the quote
// book: it answers questions about quotes and taxes and can move a
// quote through its lifecycle on request.
package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/constructo-erp/constructo-erp/internal/quotes"
)

// maxToolRounds bounds the tool-call loop so a confused model cannot
// spin forever.
const maxToolRounds = 6

type Agent struct {
	client *genai.Client
	model  string
	quotes *quotes.Service
	logger *slog.Logger
}

func NewAgent(ctx context.Context, apiKey, model string, quoteService *quotes.Service, logger *slog.Logger) (*Agent, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Agent{client: client, model: model, quotes: quoteService, logger: logger}, nil
}

func (a *Agent) Close() error {
	return a.client.Close()
}

func (a *Agent) tools() []*genai.Tool {
	return []*genai.Tool{{
		FunctionDeclarations: []*genai.FunctionDeclaration{
			{
				Name:        "list_quotes",
				Description: "List quotes, optionally filtered by status (DRAFT, VALIDATED, SENT, APPROVED, COMPLETED, CANCELLED, EXPIRED).",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"status": {Type: genai.TypeString, Description: "Optional status filter"},
					},
				},
			},
			{
				Name:        "get_quote",
				Description: "Get the full detail of a quote by its document number, including lines, totals and history.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"doc_number": {Type: genai.TypeString, Description: "Document number, e.g. DEVIS-2026-001"},
					},
					Required: []string{"doc_number"},
				},
			},
			{
				Name:        "quote_statistics",
				Description: "Aggregate statistics of the quote book: counts and amounts per status, acceptance rate, overdue count.",
			},
			{
				Name:        "compute_taxes",
				Description: "Compute Québec TPS/TVQ and rebates for a pre-tax amount, client type and sector.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"subtotal":    {Type: genai.TypeNumber, Description: "Pre-tax amount in CAD"},
						"client_type": {Type: genai.TypeString, Description: "INDIVIDUAL, COMPANY or PUBLIC_BODY"},
						"sector":      {Type: genai.TypeString, Description: "RESIDENTIAL, COMMERCIAL, INDUSTRIAL or INSTITUTIONAL"},
					},
					Required: []string{"subtotal"},
				},
			},
			{
				Name:        "change_quote_status",
				Description: "Change the status of a quote identified by document number. Approving a quote opens its project.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"doc_number":  {Type: genai.TypeString, Description: "Document number"},
						"status":      {Type: genai.TypeString, Description: "Target status"},
						"employee_id": {Type: genai.TypeInteger, Description: "Employee performing the change"},
						"comment":     {Type: genai.TypeString, Description: "Optional audit comment"},
					},
					Required: []string{"doc_number", "status", "employee_id"},
				},
			},
		},
	}}
}

func (a *Agent) systemPrompt() string {
	return fmt.Sprintf(`Tu es l'assistant devis d'une entreprise de construction québécoise. Nous sommes le %s.
Réponds en français. Utilise les outils pour consulter les devis, calculer les taxes (TPS 5 %%, TVQ 9,975 %%) et changer les statuts.
Ne devine jamais un montant: calcule-le ou lis-le dans un devis.`, time.Now().Format("2006-01-02"))
}

// Ask runs one user turn, dispatching tool calls until the model
// produces a text answer.
func (a *Agent) Ask(ctx context.Context, message string) (string, error) {
	model := a.client.GenerativeModel(a.model)
	model.Tools = a.tools()
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(a.systemPrompt())}}

	session := model.StartChat()
	resp, err := session.SendMessage(ctx, genai.Text(message))
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}

	for round := 0; round < maxToolRounds; round++ {
		call, ok := pendingCall(resp)
		if !ok {
			return textOf(resp), nil
		}

		a.logger.InfoContext(ctx, "assistant tool call", "tool", call.Name)
		result := a.dispatch(ctx, call)
		resp, err = session.SendMessage(ctx, genai.FunctionResponse{
			Name:     call.Name,
			Response: result,
		})
		if err != nil {
			return "", fmt.Errorf("send tool response: %w", err)
		}
	}
	return textOf(resp), nil
}

func pendingCall(resp *genai.GenerateContentResponse) (genai.FunctionCall, bool) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return genai.FunctionCall{}, false
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if call, ok := part.(genai.FunctionCall); ok {
			return call, true
		}
	}
	return genai.FunctionCall{}, false
}

func textOf(resp *genai.GenerateContentResponse) string {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "Je n'ai pas de réponse."
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			return string(txt)
		}
	}
	return "Action effectuée."
}

func (a *Agent) dispatch(ctx context.Context, call genai.FunctionCall) map[string]any {
	switch call.Name {
	case "list_quotes":
		return a.listQuotes(ctx, call.Args)
	case "get_quote":
		return a.getQuote(ctx, call.Args)
	case "quote_statistics":
		return a.statistics(ctx)
	case "compute_taxes":
		return computeTaxes(call.Args)
	case "change_quote_status":
		return a.changeStatus(ctx, call.Args)
	}
	return map[string]any{"error": fmt.Sprintf("unknown tool %q", call.Name)}
}

func toolError(err error) map[string]any {
	return map[string]any{"error": err.Error()}
}

func toolJSON(key string, v any) map[string]any {
	payload, err := json.Marshal(v)
	if err != nil {
		return toolError(err)
	}
	return map[string]any{key: string(payload)}
}

func (a *Agent) listQuotes(ctx context.Context, args map[string]any) map[string]any {
	var req quotes.ListQuotesRequest
	if v, ok := args["status"].(string); ok && v != "" {
		status := quotes.QuoteStatus(v)
		req.Status = &status
	}
	summaries, total, err := a.quotes.List(ctx, req)
	if err != nil {
		return toolError(err)
	}
	result := toolJSON("quotes", summaries)
	result["total"] = total
	return result
}

func (a *Agent) getQuote(ctx context.Context, args map[string]any) map[string]any {
	docNumber, _ := args["doc_number"].(string)
	details, err := a.quotes.GetByDocNumber(ctx, docNumber)
	if err != nil {
		return toolError(err)
	}
	return toolJSON("quote", details)
}

func (a *Agent) statistics(ctx context.Context) map[string]any {
	stats, err := a.quotes.Statistics(ctx)
	if err != nil {
		return toolError(err)
	}
	return toolJSON("statistics", stats)
}

func computeTaxes(args map[string]any) map[string]any {
	subtotal, _ := args["subtotal"].(float64)
	clientType := quotes.ClientTypeIndividual
	if v, ok := args["client_type"].(string); ok && v != "" {
		clientType = quotes.ClientType(v)
	}
	sector := quotes.SectorResidential
	if v, ok := args["sector"].(string); ok && v != "" {
		sector = quotes.Sector(v)
	}
	return toolJSON("totals", quotes.ConstructionTaxes(subtotal, clientType, sector))
}

func (a *Agent) changeStatus(ctx context.Context, args map[string]any) map[string]any {
	docNumber, _ := args["doc_number"].(string)
	status, _ := args["status"].(string)
	employeeID, _ := args["employee_id"].(float64)
	comment, _ := args["comment"].(string)

	details, err := a.quotes.GetByDocNumber(ctx, docNumber)
	if err != nil {
		return toolError(err)
	}
	updated, err := a.quotes.ChangeStatus(ctx, details.ID, quotes.ChangeStatusRequest{
		Status:     quotes.QuoteStatus(status),
		EmployeeID: int64(employeeID),
		Comment:    comment,
	})
	if err != nil {
		return toolError(err)
	}
	return map[string]any{
		"doc_number": updated.DocNumber,
		"status":     string(updated.Status),
	}
}
