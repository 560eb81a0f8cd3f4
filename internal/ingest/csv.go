package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/vanshika/ringtrace/internal/domain"
)

// Column names every upload must carry. Matching is case-insensitive and extra
// columns are ignored.
const (
	ColumnTransactionID = "transaction_id"
	ColumnSenderID      = "sender_id"
	ColumnReceiverID    = "receiver_id"
	ColumnAmount        = "amount"
	ColumnTimestamp     = "timestamp"
)

// MaxReportedRowErrors caps the row errors carried by a ValidationError.
const MaxReportedRowErrors = 10

var (
	requiredColumns = []string{
		ColumnTransactionID,
		ColumnSenderID,
		ColumnReceiverID,
		ColumnAmount,
		ColumnTimestamp,
	}

	whitespaceRegex = regexp.MustCompile(`\s+`)
	validate        = validator.New(validator.WithRequiredStructEnabled())
)

// ParseCSV reads a header row followed by one transaction per row. Every row is
// checked; when any row is malformed the first MaxReportedRowErrors problems are
// returned in a *ValidationError and no transactions are returned. A header with
// no data rows yields domain.ErrEmptyInput.
func ParseCSV(r io.Reader) ([]domain.Transaction, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &ValidationError{Reason: "csv file is empty or has no header row"}
	}
	if err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("read header: %v", err)}
	}

	index, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var (
		txs     []domain.Transaction
		invalid = &ValidationError{}
	)
	for row := 2; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				invalid.add(RowError{Row: row, Err: parseErr.Err})
				// the reader cannot resynchronise after a quoting error
				if errors.Is(parseErr.Err, csv.ErrQuote) || errors.Is(parseErr.Err, csv.ErrBareQuote) {
					break
				}
				continue
			}
			return nil, fmt.Errorf("read row %d: %w", row, err)
		}

		tx, err := parseRecord(record, index)
		if err != nil {
			invalid.add(RowError{Row: row, Err: err})
			continue
		}
		txs = append(txs, tx)
	}

	if invalid.Total > 0 {
		return nil, invalid
	}
	if len(txs) == 0 {
		return nil, domain.ErrEmptyInput
	}
	return txs, nil
}

func columnIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		key := normalizeHeader(name)
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}

	var missing []string
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &ValidationError{Reason: fmt.Sprintf(
			"missing required columns: %s (required: %s)",
			strings.Join(missing, ", "), strings.Join(requiredColumns, ", "),
		)}
	}
	return index, nil
}

func parseRecord(record []string, index map[string]int) (domain.Transaction, error) {
	field := func(col string) (string, error) {
		i := index[col]
		if i >= len(record) {
			return "", fmt.Errorf("missing value for %s", col)
		}
		return strings.TrimSpace(record[i]), nil
	}

	values := make(map[string]string, len(requiredColumns))
	for _, col := range requiredColumns {
		v, err := field(col)
		if err != nil {
			return domain.Transaction{}, err
		}
		values[col] = v
	}

	amount, err := decimal.NewFromString(values[ColumnAmount])
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("invalid amount %q", values[ColumnAmount])
	}
	ts, err := time.ParseInLocation(domain.TimestampLayout, values[ColumnTimestamp], time.UTC)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("invalid timestamp %q: expected layout %s", values[ColumnTimestamp], domain.TimestampLayout)
	}

	tx := domain.Transaction{
		ID:         values[ColumnTransactionID],
		SenderID:   values[ColumnSenderID],
		ReceiverID: values[ColumnReceiverID],
		Amount:     amount.InexactFloat64(),
		Timestamp:  ts,
	}
	if err := validate.Struct(tx); err != nil {
		return domain.Transaction{}, describeValidation(err)
	}
	return tx, nil
}

var fieldColumns = map[string]string{
	"ID":         ColumnTransactionID,
	"SenderID":   ColumnSenderID,
	"ReceiverID": ColumnReceiverID,
	"Amount":     ColumnAmount,
	"Timestamp":  ColumnTimestamp,
}

func describeValidation(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		col := fieldColumns[fe.Field()]
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", col))
		case "gt":
			msgs = append(msgs, fmt.Sprintf("%s must be greater than %s", col, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", col, fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

// normalizeHeader lowercases a column name, drops a UTF-8 byte order mark and
// collapses inner whitespace.
func normalizeHeader(name string) string {
	name = strings.TrimPrefix(name, "\ufeff")
	name = whitespaceRegex.ReplaceAllString(name, " ")
	return strings.ToLower(strings.TrimSpace(name))
}
