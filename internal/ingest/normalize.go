package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-insights/internal/domain"
	"github.com/dvloznov/finance-insights/internal/logger"
	"github.com/shopspring/decimal"
)

// RecordError describes one input record that could not be normalized.
type RecordError struct {
	Index int
	Err   error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %d: %v", e.Index, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// Batch is a normalized transaction batch plus the records that were skipped.
type Batch struct {
	Transactions []domain.Transaction
	Rejected     []*RecordError
}

// Normalize converts raw transaction records (as decoded from JSON) into domain transactions.
// Malformed records are skipped and reported in Batch.Rejected; they never abort the batch.
func Normalize(ctx context.Context, raw []map[string]interface{}) Batch {
	log := logger.FromContext(ctx)

	batch := Batch{Transactions: make([]domain.Transaction, 0, len(raw))}

	for i, obj := range raw {
		tx, err := normalizeRecord(obj)
		if err != nil {
			recErr := &RecordError{Index: i, Err: err}
			batch.Rejected = append(batch.Rejected, recErr)
			log.Warn().Err(err).Int("index", i).Msg("Skipping malformed transaction")
			continue
		}
		batch.Transactions = append(batch.Transactions, tx)
	}

	if len(batch.Rejected) > 0 {
		log.Info().
			Int("accepted", len(batch.Transactions)).
			Int("rejected", len(batch.Rejected)).
			Msg("Normalized transaction batch")
	}

	return batch
}

// DecodeJSON accepts either a top-level array of records or an object with a
// "transactions" array, mirroring the shapes the upstream collaborators emit.
func DecodeJSON(data []byte) ([]map[string]interface{}, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, nil
	}

	// numbers stay json.Number so amounts reach decimal without a float64 round trip
	dec := json.NewDecoder(strings.NewReader(trimmed))
	dec.UseNumber()

	var parsed interface{}
	if err := dec.Decode(&parsed); err != nil {
		return nil, fmt.Errorf("DecodeJSON: unmarshal: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("DecodeJSON: unexpected data after top-level value")
	}

	if obj, ok := parsed.(map[string]interface{}); ok {
		txAny, ok := obj["transactions"]
		if !ok {
			return nil, fmt.Errorf("DecodeJSON: missing 'transactions' key")
		}
		parsed = txAny
	}

	txSlice, ok := parsed.([]interface{})
	if !ok {
		return nil, fmt.Errorf("DecodeJSON: transactions is %T, want []interface{}", parsed)
	}

	records := make([]map[string]interface{}, 0, len(txSlice))
	for i, item := range txSlice {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("DecodeJSON: element %d is %T, want object", i, item)
		}
		records = append(records, obj)
	}
	return records, nil
}

func normalizeRecord(obj map[string]interface{}) (domain.Transaction, error) {
	amount, err := getAmountField(obj, "amount")
	if err != nil {
		return domain.Transaction{}, err
	}

	dateStr, err := getStringField(obj, "date", true)
	if err != nil {
		return domain.Transaction{}, err
	}
	date, err := parseDate(dateStr)
	if err != nil {
		return domain.Transaction{}, err
	}

	name, err := getStringField(obj, "name", false)
	if err != nil {
		return domain.Transaction{}, err
	}

	merchant, err := getOptionalStringField(obj, "merchant_name")
	if err != nil {
		return domain.Transaction{}, err
	}

	category, err := getOptionalStringField(obj, "category")
	if err != nil {
		return domain.Transaction{}, err
	}

	id, err := getOptionalStringField(obj, "transaction_id")
	if err != nil {
		return domain.Transaction{}, err
	}
	if id == nil {
		id, err = getOptionalIDField(obj, "id")
		if err != nil {
			return domain.Transaction{}, err
		}
	}

	tx := domain.Transaction{
		Date:     date,
		Name:     strings.TrimSpace(name),
		Amount:   amount,
		Category: domain.DefaultCategory,
	}
	if merchant != nil {
		tx.Merchant = *merchant
	}
	if category != nil {
		tx.Category = *category
	}
	if id != nil {
		tx.ID = *id
	}

	return tx, nil
}

// parseDate accepts "YYYY-MM-DD" or an RFC 3339 timestamp, keeping only the calendar date.
func parseDate(s string) (civil.Date, error) {
	s = strings.TrimSpace(s)
	if d, err := civil.ParseDate(s); err == nil {
		return d, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return civil.Date{}, fmt.Errorf("invalid date %q", s)
	}
	return civil.DateOf(t), nil
}

func getStringField(m map[string]interface{}, key string, required bool) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		if required {
			return "", fmt.Errorf("missing required field %q", key)
		}
		return "", nil
	}
	switch val := v.(type) {
	case string:
		if required && strings.TrimSpace(val) == "" {
			return "", fmt.Errorf("required field %q is empty", key)
		}
		return val, nil
	default:
		return "", fmt.Errorf("field %q has type %T, want string", key, v)
	}
}

func getOptionalStringField(m map[string]interface{}, key string) (*string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch val := v.(type) {
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return nil, nil
		}
		return &s, nil
	default:
		return nil, fmt.Errorf("field %q has type %T, want string or null", key, v)
	}
}

// getOptionalIDField accepts numeric database ids as well as strings.
func getOptionalIDField(m map[string]interface{}, key string) (*string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch val := v.(type) {
	case json.Number:
		s := val.String()
		return &s, nil
	case float64:
		s := decimal.NewFromFloat(val).String()
		return &s, nil
	default:
		return getOptionalStringField(m, key)
	}
}

// getAmountField parses an amount as an exact decimal. Values that overflow float64 are
// rejected since every statistic downstream runs on float64.
func getAmountField(m map[string]interface{}, key string) (decimal.Decimal, error) {
	d, err := parseAmount(m, key)
	if err != nil {
		return decimal.Zero, err
	}
	if f := d.InexactFloat64(); math.IsInf(f, 0) || math.IsNaN(f) {
		return decimal.Zero, fmt.Errorf("field %q is out of range: %s", key, d)
	}
	return d, nil
}

func parseAmount(m map[string]interface{}, key string) (decimal.Decimal, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return decimal.Zero, fmt.Errorf("missing required field %q", key)
	}
	switch val := v.(type) {
	case float64:
		if math.IsInf(val, 0) || math.IsNaN(val) {
			return decimal.Zero, fmt.Errorf("field %q is not finite", key)
		}
		return decimal.NewFromFloat(val), nil
	case int:
		return decimal.NewFromInt(int64(val)), nil
	case json.Number:
		d, err := decimal.NewFromString(val.String())
		if err != nil {
			return decimal.Zero, fmt.Errorf("field %q is not numeric: %q", key, val)
		}
		return d, nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(val))
		if err != nil {
			return decimal.Zero, fmt.Errorf("field %q is not numeric: %q", key, val)
		}
		return d, nil
	default:
		return decimal.Zero, fmt.Errorf("field %q has type %T, want number", key, v)
	}
}
