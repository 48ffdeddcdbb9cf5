package tradernet

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aristath/watchfolio/internal/domain"
)

// Field fallbacks, in order of preference
var (
	priceKeys     = []string{"p", "ltp", "last_price"}
	changeKeys    = []string{"chg", "change"}
	changePctKeys = []string{"pcp", "chg_pc", "change_pct"}
	symbolKeys    = []string{"c", "symbol", "i", "ticker"}
)

// transformQuote extracts symbol's quote from a getStockQuotesJson response.
// The result may be {"q": [...]}, a bare array, or a map keyed by symbol.
func transformQuote(sdkResult map[string]interface{}, symbol string) (*domain.Quote, error) {
	result, ok := sdkResult["result"]
	if !ok {
		return nil, fmt.Errorf("invalid SDK result format: missing 'result' field")
	}

	data, err := findQuoteData(result, symbol)
	if err != nil {
		return nil, err
	}

	price, ok := firstFloat(data, priceKeys)
	if !ok || price <= 0 {
		return nil, fmt.Errorf("quote for %s has no price", symbol)
	}

	quote := &domain.Quote{Symbol: symbol, LastPrice: price}
	if change, ok := firstFloat(data, changeKeys); ok {
		quote.ChangePerShare = domain.Float(change)
	}
	if pct, ok := firstFloat(data, changePctKeys); ok {
		quote.PercentChange = domain.Float(pct)
	}
	return quote, nil
}

func findQuoteData(result interface{}, symbol string) (map[string]interface{}, error) {
	var items []interface{}

	switch v := result.(type) {
	case []interface{}:
		items = v
	case map[string]interface{}:
		if q, ok := v["q"].([]interface{}); ok {
			items = q
			break
		}
		if data, ok := v[symbol].(map[string]interface{}); ok {
			return data, nil
		}
		return nil, fmt.Errorf("quote not found for symbol: %s", symbol)
	default:
		return nil, fmt.Errorf("invalid SDK result format: 'result' must be array or map, got %T", result)
	}

	for _, item := range items {
		itemMap, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		if strings.EqualFold(firstString(itemMap, symbolKeys), symbol) {
			return itemMap, nil
		}
	}
	return nil, fmt.Errorf("quote not found for symbol: %s", symbol)
}

// transformProfile maps the best tickerFinder match to a profile. The API
// uses short names ("t", "nm", "x_curr", "mkt") with long-form fallbacks.
func transformProfile(sdkResult map[string]interface{}, symbol string) (*domain.Profile, error) {
	found, ok := sdkResult["found"]
	if !ok || found == nil {
		found = sdkResult["result"]
	}
	items, ok := found.([]interface{})
	if !ok || len(items) == 0 {
		return nil, fmt.Errorf("no instrument found for %s", symbol)
	}

	var match map[string]interface{}
	for _, item := range items {
		itemMap, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		if match == nil {
			match = itemMap
		}
		if strings.EqualFold(firstString(itemMap, []string{"t", "symbol"}), symbol) {
			match = itemMap
			break
		}
	}
	if match == nil {
		return nil, fmt.Errorf("no instrument found for %s", symbol)
	}

	return &domain.Profile{
		Symbol:   symbol,
		Name:     firstString(match, []string{"nm", "name", "n"}),
		Exchange: firstString(match, []string{"mkt", "codesub_nm", "market"}),
		Industry: firstString(match, []string{"sector_code", "sector"}),
		Country:  firstString(match, []string{"issuer_country_code", "country"}),
		Currency: firstString(match, []string{"x_curr", "currency"}),
	}, nil
}

// Helper functions

func firstString(m map[string]interface{}, keys []string) string {
	for _, key := range keys {
		if s, ok := m[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// firstFloat returns the first key holding a number. Tradernet sends some
// numeric fields as strings ("p": "141.4").
func firstFloat(m map[string]interface{}, keys []string) (float64, bool) {
	for _, key := range keys {
		if f, ok := toFloat64(m[key]); ok {
			return f, true
		}
	}
	return 0, false
}

func toFloat64(val interface{}) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
