package generator

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"

	"github.com/vanshika/ringtrace/internal/domain"
)

var csvHeader = []string{"transaction_id", "sender_id", "receiver_id", "amount", "timestamp"}

// WriteCSV serializes transactions in the upload format accepted by the
// detection API.
func WriteCSV(w io.Writer, txs []domain.Transaction) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, tx := range txs {
		record := []string{
			tx.ID,
			tx.SenderID,
			tx.ReceiverID,
			decimal.NewFromFloat(tx.Amount).StringFixed(2),
			tx.Timestamp.UTC().Format(domain.TimestampLayout),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write %s: %w", tx.ID, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteDataset writes the transactions CSV to path. When truthPath is not
// empty the planted patterns are written there as JSON.
func WriteDataset(dataset Dataset, path, truthPath string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()
	if err := WriteCSV(file, dataset.Transactions); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	if truthPath == "" {
		return nil
	}
	return writeJSON(truthPath, dataset.Planted)
}

func writeJSON(path string, data any) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encode json for %s: %w", path, err)
	}
	return nil
}
