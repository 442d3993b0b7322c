package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/shopspring/decimal"

	"github.com/bcbs239/regtech/pkg/money"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/model"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/port"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/valueobject"
)

// ErrUnsupportedURI is returned for batch locations that are neither s3:// nor file://.
var ErrUnsupportedURI = errors.New("unsupported batch URI")

// batchDocument is the parsed batch written by the ingestion service.
type batchDocument struct {
	FormatVersion string            `json:"format_version"`
	BatchID       string            `json:"batch_id"`
	BankInfo      bankInfo          `json:"bank_info"`
	Exposures     []json.RawMessage `json:"exposures"`
	Mitigations   []mitigationLine  `json:"credit_risk_mitigation"`
}

type bankInfo struct {
	BankName string `json:"bank_name"`
	AbiCode  string `json:"abi_code"`
	LEICode  string `json:"lei_code"`
}

type exposureLine struct {
	ExposureID       string              `json:"exposure_id"`
	InstrumentID     string              `json:"instrument_id"`
	CounterpartyID   string              `json:"counterparty_id"`
	CounterpartyName string              `json:"counterparty_name"`
	CounterpartyLEI  string              `json:"counterparty_lei"`
	Amount           decimal.NullDecimal `json:"exposure_amount"`
	Currency         string              `json:"currency"`
	ProductType      string              `json:"product_type"`
	InstrumentType   string              `json:"instrument_type"`
	BalanceSheetType string              `json:"balance_sheet_type"`
	Country          string              `json:"country_code"`
}

type mitigationLine struct {
	ExposureID     string              `json:"exposure_id"`
	CounterpartyID string              `json:"counterparty_id"`
	Type           string              `json:"mitigation_type"`
	Value          decimal.NullDecimal `json:"value"`
	Currency       string              `json:"currency"`
}

// BatchSource loads parsed batches from S3 or the local filesystem.
type BatchSource struct {
	downloader Downloader
	logger     *slog.Logger
}

var _ port.ExposureSource = (*BatchSource)(nil)

// NewBatchSource creates a BatchSource. client may be nil when only file://
// locations are used.
func NewBatchSource(client *s3.Client, logger *slog.Logger) *BatchSource {
	if client == nil {
		return &BatchSource{logger: logger}
	}
	return NewBatchSourceWithDownloader(manager.NewDownloader(client), logger)
}

// NewBatchSourceWithDownloader creates a BatchSource around any Downloader.
func NewBatchSourceWithDownloader(downloader Downloader, logger *slog.Logger) *BatchSource {
	return &BatchSource{downloader: downloader, logger: logger}
}

// Load fetches and parses the batch at uri.
func (s *BatchSource) Load(ctx context.Context, uri string) (port.BatchData, error) {
	data, err := s.fetch(ctx, uri)
	if err != nil {
		return port.BatchData{}, err
	}
	batch, err := ParseBatch(data, s.logger)
	if err != nil {
		return port.BatchData{}, fmt.Errorf("failed to parse batch %s: %w", uri, err)
	}
	s.logger.Info("batch loaded",
		"uri", uri,
		"batch_id", batch.BatchID.String(),
		"exposures", len(batch.Exposures),
		"mitigations", len(batch.Mitigations),
		"skipped", batch.Skipped,
		"bytes", len(data),
	)
	return batch, nil
}

func (s *BatchSource) fetch(ctx context.Context, uri string) ([]byte, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrUnsupportedURI, uri, err)
	}

	switch u.Scheme {
	case "s3":
		if s.downloader == nil {
			return nil, fmt.Errorf("%w: %q: no s3 client configured", ErrUnsupportedURI, uri)
		}
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return nil, fmt.Errorf("%w: %q: bucket and key are required", ErrUnsupportedURI, uri)
		}
		buf := manager.NewWriteAtBuffer(nil)
		if _, err := s.downloader.Download(ctx, buf, &s3.GetObjectInput{
			Bucket: aws.String(u.Host),
			Key:    aws.String(key),
		}); err != nil {
			return nil, fmt.Errorf("failed to download %s: %w", uri, err)
		}
		return buf.Bytes(), nil
	case "file":
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(u.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", uri, err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedURI, uri)
	}
}

// ParseBatch decodes a batch document. Exposures that fail validation, and
// repeats of an exposure_id already seen, are skipped and counted; mitigation lines without a resolvable counterparty are
// dropped. A document that is not valid JSON, or has no batch_id, is an error.
func ParseBatch(data []byte, logger *slog.Logger) (port.BatchData, error) {
	var doc batchDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return port.BatchData{}, fmt.Errorf("invalid batch document: %w", err)
	}
	batchID, err := valueobject.NewBatchID(doc.BatchID)
	if err != nil {
		return port.BatchData{}, fmt.Errorf("invalid batch document: %w", err)
	}

	batch := port.BatchData{
		BatchID:   batchID,
		BankID:    strings.TrimSpace(doc.BankInfo.AbiCode),
		BankName:  strings.TrimSpace(doc.BankInfo.BankName),
		Exposures: make([]model.ExposureRecording, 0, len(doc.Exposures)),
	}

	// exposure_id -> counterparty_id, for mitigation lines that only name the exposure.
	counterparties := make(map[string]string, len(doc.Exposures))
	seen := make(map[valueobject.ExposureID]bool, len(doc.Exposures))
	for i, raw := range doc.Exposures {
		var line exposureLine
		if err := json.Unmarshal(raw, &line); err != nil {
			batch.Skipped++
			logger.Warn("skipping undecodable exposure", "batch_id", batchID.String(), "index", i, "error", err)
			continue
		}
		exposure, err := line.toRecording(batchID)
		if err != nil {
			batch.Skipped++
			logger.Warn("skipping invalid exposure",
				"batch_id", batchID.String(),
				"index", i,
				"exposure_id", line.ExposureID,
				"error", err,
			)
			continue
		}
		if seen[exposure.ID()] {
			batch.Skipped++
			logger.Warn("skipping duplicate exposure",
				"batch_id", batchID.String(),
				"index", i,
				"exposure_id", line.ExposureID,
			)
			continue
		}
		seen[exposure.ID()] = true
		batch.Exposures = append(batch.Exposures, exposure)
		counterparties[strings.TrimSpace(line.ExposureID)] = exposure.Counterparty().ID()
	}

	for i, m := range doc.Mitigations {
		counterpartyID := strings.TrimSpace(m.CounterpartyID)
		if counterpartyID == "" {
			counterpartyID = counterparties[strings.TrimSpace(m.ExposureID)]
		}
		if counterpartyID == "" || !m.Value.Valid {
			logger.Warn("dropping mitigation without counterparty or value",
				"batch_id", batchID.String(),
				"index", i,
				"exposure_id", m.ExposureID,
			)
			continue
		}
		batch.Mitigations = append(batch.Mitigations, model.MitigationRecord{
			CounterpartyID: counterpartyID,
			Type:           m.Type,
			Value:          m.Value.Decimal,
			Currency:       m.Currency,
		})
	}

	return batch, nil
}

func (l exposureLine) toRecording(batchID valueobject.BatchID) (model.ExposureRecording, error) {
	id, err := valueobject.ExposureIDFromSource(batchID, l.ExposureID)
	if err != nil {
		return model.ExposureRecording{}, err
	}

	var instrumentID valueobject.InstrumentID
	if strings.TrimSpace(l.InstrumentID) != "" {
		if instrumentID, err = valueobject.NewInstrumentID(l.InstrumentID); err != nil {
			return model.ExposureRecording{}, err
		}
	}

	counterparty, err := valueobject.NewCounterpartyRef(l.CounterpartyID, l.CounterpartyName, l.CounterpartyLEI)
	if err != nil {
		return model.ExposureRecording{}, err
	}

	if !l.Amount.Valid {
		return model.ExposureRecording{}, fmt.Errorf("exposure_amount is required")
	}
	currency, err := money.ParseCurrency(l.Currency)
	if err != nil {
		return model.ExposureRecording{}, err
	}
	amount, err := money.NewMonetaryAmount(l.Amount.Decimal, currency)
	if err != nil {
		return model.ExposureRecording{}, err
	}

	country, err := valueobject.NewCountryCode(l.Country)
	if err != nil {
		return model.ExposureRecording{}, err
	}
	classification, err := model.NewExposureClassification(
		l.ProductType,
		valueobject.ParseInstrumentType(l.InstrumentType),
		valueobject.ParseBalanceSheetType(l.BalanceSheetType),
		country,
	)
	if err != nil {
		return model.ExposureRecording{}, err
	}

	return model.NewExposureRecording(id, l.ExposureID, instrumentID, counterparty, amount, classification)
}
