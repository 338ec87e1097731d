package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"stock-sentinel/internal/market"
	"stock-sentinel/internal/models"
	"stock-sentinel/internal/security"
	"stock-sentinel/internal/store"
	"stock-sentinel/pkg/utils"
)

// ActivityReader reads stored congressional disclosures.
type ActivityReader interface {
	RecentActivities(ctx context.Context, politician string, limit int) ([]models.PoliticianActivity, error)
}

// ToolExecutor executes assistant tool calls against the watch list.
type ToolExecutor struct {
	entities   store.EntityStore
	quotes     market.QuoteProvider
	activities ActivityReader
}

// NewToolExecutor creates a new tool executor. quotes and activities may be nil.
func NewToolExecutor(entities store.EntityStore, quotes market.QuoteProvider, activities ActivityReader) *ToolExecutor {
	return &ToolExecutor{
		entities:   entities,
		quotes:     quotes,
		activities: activities,
	}
}

func tool(name, description, params string) openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        name,
			Description: description,
			Parameters:  json.RawMessage(params),
		},
	}
}

const symbolParams = `{
	"type": "object",
	"properties": {
		"symbol": {"type": "string", "description": "Stock ticker, e.g. AAPL"}
	},
	"required": ["symbol"]
}`

const nameParams = `{
	"type": "object",
	"properties": {
		"name": {"type": "string", "description": "Full name of the member of Congress"}
	},
	"required": ["name"]
}`

const noParams = `{"type": "object", "properties": {}}`

// GetToolDefinitions returns all available tool definitions for OpenAI function calling.
func GetToolDefinitions() []openai.Tool {
	return []openai.Tool{
		tool("add_stock", "Start tracking a stock for daily price-movement alerts.", symbolParams),
		tool("remove_stock", "Stop tracking a stock.", symbolParams),
		tool("list_stocks", "List tracked stocks.", noParams),
		tool("add_politician", "Start tracking a member of Congress for trading disclosures.", nameParams),
		tool("remove_politician", "Stop tracking a member of Congress.", nameParams),
		tool("list_politicians", "List tracked members of Congress.", noParams),
		tool("get_stock_price", "Get the latest price and change versus previous close.", symbolParams),
		tool("get_politician_activity", "Get recently disclosed trades of a member of Congress.", nameParams),
	}
}

// ExecuteTool executes a tool call and returns the result as a string.
func (te *ToolExecutor) ExecuteTool(ctx context.Context, toolName string, args json.RawMessage) (string, error) {
	var params map[string]interface{}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &params); err != nil {
			return "", fmt.Errorf("failed to parse tool arguments: %w", err)
		}
	}

	switch toolName {
	case "add_stock":
		return te.add(ctx, models.KindStock, getStringParam(params, "symbol", ""))
	case "remove_stock":
		return te.remove(ctx, models.KindStock, getStringParam(params, "symbol", ""))
	case "list_stocks":
		return te.list(ctx, models.KindStock)
	case "add_politician":
		return te.add(ctx, models.KindPolitician, getStringParam(params, "name", ""))
	case "remove_politician":
		return te.remove(ctx, models.KindPolitician, getStringParam(params, "name", ""))
	case "list_politicians":
		return te.list(ctx, models.KindPolitician)
	case "get_stock_price":
		return te.price(ctx, getStringParam(params, "symbol", ""))
	case "get_politician_activity":
		return te.activity(ctx, getStringParam(params, "name", ""))
	default:
		return "", fmt.Errorf("unknown tool: %s", toolName)
	}
}

// Helper to get string param with default
func getStringParam(params map[string]interface{}, key, defaultVal string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return defaultVal
}

func (te *ToolExecutor) add(ctx context.Context, kind models.EntityKind, raw string) (string, error) {
	id, err := security.ValidateEntity(kind, raw)
	if err != nil {
		return "", err
	}
	e, err := te.entities.AddEntity(ctx, kind, id)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Now tracking %s %s.", kind, e.ID), nil
}

func (te *ToolExecutor) remove(ctx context.Context, kind models.EntityKind, id string) (string, error) {
	if err := te.entities.RemoveEntity(ctx, kind, id); err != nil {
		return "", err
	}
	return fmt.Sprintf("Stopped tracking %s %s.", kind, models.NormalizeID(kind, id)), nil
}

func (te *ToolExecutor) list(ctx context.Context, kind models.EntityKind) (string, error) {
	entities, err := te.entities.ListActive(ctx, kind)
	if err != nil {
		return "", err
	}
	if len(entities) == 0 {
		return fmt.Sprintf("No %s entities are tracked.", kind), nil
	}
	ids := make([]string, len(entities))
	for i, e := range entities {
		ids[i] = e.ID
	}
	return strings.Join(ids, ", "), nil
}

func (te *ToolExecutor) price(ctx context.Context, symbol string) (string, error) {
	if te.quotes == nil {
		return "Price data is not configured.", nil
	}
	q, err := te.quotes.GetQuote(ctx, symbol)
	if err != nil {
		return "", err
	}
	if q.PreviousClose == 0 {
		return fmt.Sprintf("%s last traded at %s.", q.Symbol, utils.FormatUSD(q.Current)), nil
	}
	return fmt.Sprintf("%s last traded at %s, %s versus previous close %s.",
		q.Symbol, utils.FormatUSD(q.Current), utils.FormatRatio(q.Current/q.PreviousClose-1), utils.FormatUSD(q.PreviousClose)), nil
}

func (te *ToolExecutor) activity(ctx context.Context, name string) (string, error) {
	if te.activities == nil {
		return "Congressional trading data is not configured.", nil
	}
	activities, err := te.activities.RecentActivities(ctx, name, 10)
	if err != nil {
		return "", err
	}
	return FormatActivities(models.NormalizeID(models.KindPolitician, name), activities), nil
}
