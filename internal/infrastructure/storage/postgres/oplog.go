package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"medistock/internal/core/id"
)

// CompressionAlgo specifies the compression algorithm used for a payload.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// OperationRecord is one stored stock operation with its payload, e.g. the
// allocation plan a consume executed.
type OperationRecord struct {
	ID                id.ID           `db:"id"`
	Operation         string          `db:"operation"`
	EntityID          id.ID           `db:"entity_id"`
	Actor             string          `db:"actor"`
	Payload           json.RawMessage `db:"payload"`
	PayloadCompressed []byte          `db:"payload_compressed"`
	CompressionAlgo   CompressionAlgo `db:"compression_algo"`
	CreatedAt         time.Time       `db:"created_at"`
}

// OperationLog records stock operations for offline inspection. Payloads
// above the threshold are zstd-compressed; a consume plan over a wide batch
// spread can run long.
type OperationLog struct {
	txManager         *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

// NewOperationLog creates an operation log.
func NewOperationLog(txManager *TxManager) (*OperationLog, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &OperationLog{
		txManager:         txManager,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: 10 * 1024, // 10KB
	}, nil
}

// Record stores one operation with its payload.
func (l *OperationLog) Record(ctx context.Context, operation string, entityID id.ID, actor string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal operation payload: %w", err)
	}

	rec := OperationRecord{
		ID:              id.New(),
		Operation:       operation,
		EntityID:        entityID,
		Actor:           actor,
		Payload:         raw,
		CompressionAlgo: CompressionNone,
		CreatedAt:       time.Now().UTC(),
	}
	if len(rec.Payload) > l.compressThreshold {
		rec.PayloadCompressed = l.encoder.EncodeAll(rec.Payload, nil)
		rec.Payload = nil
		rec.CompressionAlgo = CompressionZstd
	}

	sql := `
		INSERT INTO stock_operation_log (
			id, operation, entity_id, actor,
			payload, payload_compressed, compression_algo, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = l.txManager.GetQuerier(ctx).Exec(ctx, sql,
		rec.ID, rec.Operation, rec.EntityID, rec.Actor,
		rec.Payload, rec.PayloadCompressed, rec.CompressionAlgo, rec.CreatedAt,
	)
	if err != nil {
		return TranslateError(err)
	}
	return nil
}

// History retrieves recorded operations for an entity, newest first.
func (l *OperationLog) History(ctx context.Context, entityID id.ID, limit int) ([]OperationRecord, error) {
	sql := `
		SELECT id, operation, entity_id, actor,
			   payload, payload_compressed, compression_algo, created_at
		FROM stock_operation_log
		WHERE entity_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := l.txManager.GetQuerier(ctx).Query(ctx, sql, entityID, limit)
	if err != nil {
		return nil, TranslateError(fmt.Errorf("query operation log: %w", err))
	}
	defer rows.Close()

	var records []OperationRecord
	for rows.Next() {
		var r OperationRecord
		err := rows.Scan(
			&r.ID, &r.Operation, &r.EntityID, &r.Actor,
			&r.Payload, &r.PayloadCompressed, &r.CompressionAlgo, &r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan operation record: %w", err)
		}

		if r.CompressionAlgo == CompressionZstd && len(r.PayloadCompressed) > 0 {
			decompressed, err := l.decoder.DecodeAll(r.PayloadCompressed, nil)
			if err != nil {
				return nil, fmt.Errorf("decompress payload: %w", err)
			}
			r.Payload = decompressed
			r.PayloadCompressed = nil
		}
		records = append(records, r)
	}

	return records, rows.Err()
}
