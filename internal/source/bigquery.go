package source

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-insights/internal/domain"
	"github.com/dvloznov/finance-insights/internal/ingest"
	"github.com/dvloznov/finance-insights/internal/logger"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"
)

// numericScale is the fractional precision of BigQuery NUMERIC.
const numericScale = 9

// TransactionRow is the subset of finance.transactions the engine reads.
type TransactionRow struct {
	TransactionID         string              `bigquery:"transaction_id"`
	TransactionDate       civil.Date          `bigquery:"transaction_date"`
	Amount                *big.Rat            `bigquery:"amount"`
	RawDescription        string              `bigquery:"raw_description"`
	NormalizedDescription bigquery.NullString `bigquery:"normalized_description"`
	CategoryName          bigquery.NullString `bigquery:"category_name"`
	SubcategoryName       bigquery.NullString `bigquery:"subcategory_name"`
}

// rowIterator is satisfied by *bigquery.RowIterator.
type rowIterator interface {
	Next(dst interface{}) error
}

// BigQuery reads a date range from the transactions table.
// Only rows from successful parsing runs are returned.
type BigQuery struct {
	client  *bigquery.Client
	dataset string
	start   civil.Date
	end     civil.Date
}

// NewBigQuery returns a source over [start, end] using a caller-owned client.
func NewBigQuery(client *bigquery.Client, dataset string, start, end civil.Date) (*BigQuery, error) {
	if !start.IsValid() || !end.IsValid() {
		return nil, fmt.Errorf("NewBigQuery: invalid date range %s..%s", start, end)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("NewBigQuery: end %s before start %s", end, start)
	}
	if dataset == "" || strings.ContainsAny(dataset, "`. ") {
		return nil, fmt.Errorf("NewBigQuery: invalid dataset %q", dataset)
	}
	return &BigQuery{client: client, dataset: dataset, start: start, end: end}, nil
}

func (b *BigQuery) query() string {
	return fmt.Sprintf(`
		SELECT
			t.transaction_id,
			t.transaction_date,
			t.amount,
			t.raw_description,
			t.normalized_description,
			t.category_name,
			t.subcategory_name
		FROM %[1]s.transactions t
		INNER JOIN %[1]s.parsing_runs pr
		  ON t.parsing_run_id = pr.parsing_run_id
		WHERE t.transaction_date >= @start_date
		  AND t.transaction_date <= @end_date
		  AND pr.status = 'SUCCESS'
		ORDER BY t.transaction_date, t.created_ts
	`, b.dataset)
}

// Fetch implements Source.
func (b *BigQuery) Fetch(ctx context.Context) (ingest.Batch, error) {
	q := b.client.Query(b.query())
	q.Parameters = []bigquery.QueryParameter{
		{Name: "start_date", Value: b.start},
		{Name: "end_date", Value: b.end},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return ingest.Batch{}, fmt.Errorf("BigQuery.Fetch: query read: %w", err)
	}

	rows, err := collectRows(it)
	if err != nil {
		return ingest.Batch{}, fmt.Errorf("BigQuery.Fetch: %w", err)
	}

	batch := rowsToBatch(ctx, rows)

	log := logger.FromContext(ctx)
	log.Debug().
		Str("start", b.start.String()).
		Str("end", b.end.String()).
		Int("rows", len(rows)).
		Msg("Loaded transactions from BigQuery")

	return batch, nil
}

func collectRows(it rowIterator) ([]*TransactionRow, error) {
	var rows []*TransactionRow
	for {
		var r TransactionRow
		err := it.Next(&r)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("collectRows: iter next: %w", err)
		}
		rows = append(rows, &r)
	}
	return rows, nil
}

// rowsToBatch maps table rows to transactions, rejecting rows with no amount or date.
func rowsToBatch(ctx context.Context, rows []*TransactionRow) ingest.Batch {
	log := logger.FromContext(ctx)
	batch := ingest.Batch{Transactions: make([]domain.Transaction, 0, len(rows))}

	for i, row := range rows {
		tx, err := rowToTransaction(row)
		if err != nil {
			batch.Rejected = append(batch.Rejected, &ingest.RecordError{Index: i, Err: err})
			log.Warn().Err(err).Str("transaction_id", row.TransactionID).Msg("Skipping malformed row")
			continue
		}
		batch.Transactions = append(batch.Transactions, tx)
	}
	return batch
}

func rowToTransaction(row *TransactionRow) (domain.Transaction, error) {
	if row.Amount == nil {
		return domain.Transaction{}, fmt.Errorf("rowToTransaction: %s: missing amount", row.TransactionID)
	}
	if !row.TransactionDate.IsValid() {
		return domain.Transaction{}, fmt.Errorf("rowToTransaction: %s: invalid transaction_date", row.TransactionID)
	}

	tx := domain.Transaction{
		ID:     row.TransactionID,
		Date:   row.TransactionDate,
		Name:   row.RawDescription,
		Amount: decimal.NewFromBigRat(row.Amount, numericScale),
	}
	if row.NormalizedDescription.Valid {
		tx.Merchant = row.NormalizedDescription.StringVal
	}

	// "Category:Subcategory" when both levels are known
	if row.CategoryName.Valid && row.CategoryName.StringVal != "" {
		tx.Category = row.CategoryName.StringVal
		if row.SubcategoryName.Valid && row.SubcategoryName.StringVal != "" {
			tx.Category += ":" + row.SubcategoryName.StringVal
		}
	}

	return tx, nil
}
