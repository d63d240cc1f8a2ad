package database

import (
	"fmt"
	"log"
	"strings"
	"time"

	models "perpsignal/database/models_pkg"

	"gorm.io/gorm"
)

// InitSchema performs auto-migration and TimescaleDB hypertable setup.
// Hypertable conversion is attempted via raw SQL and only logged on failure,
// since a plain Postgres instance without the extension is also a supported
// deployment target.
func InitSchema(db *Database) error {
	log.Println("🔄 Starting database schema initialization...")

	if err := db.db.AutoMigrate(
		&models.Signal{},
		&models.TradeRecord{},
		&models.Kline{},
		&models.PerformanceMetric{},
		&models.DailyStat{},
	); err != nil {
		return fmt.Errorf("auto-migration failed: %w", err)
	}

	if err := db.db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_klines_unique
		ON klines (instrument, interval, open_time)
	`).Error; err != nil {
		return fmt.Errorf("failed to create klines uniqueness index: %w", err)
	}

	if err := db.db.Exec(`SELECT create_hypertable('klines', 'open_time', if_not_exists => TRUE, migrate_data => TRUE)`).Error; err != nil {
		log.Printf("⚠️  Hypertable conversion skipped for klines (TimescaleDB not available?): %v", err)
	}

	log.Println("✅ Schema initialization complete")
	return nil
}

// SignalRepository handles persistence of Signal rows (§3 "Signal", §6 "signals").
type SignalRepository struct {
	db *Database
}

// NewSignalRepository creates a new signal repository.
func NewSignalRepository(db *Database) *SignalRepository {
	return &SignalRepository{db: db}
}

// SaveSignal persists a newly accepted signal with status OPEN.
func (r *SignalRepository) SaveSignal(signal *models.Signal) error {
	if err := r.db.db.Create(signal).Error; err != nil {
		return fmt.Errorf("SaveSignal: %w", err)
	}
	return nil
}

// GetSignalByID retrieves a signal by id, returning (nil, nil) if absent.
func (r *SignalRepository) GetSignalByID(id int64) (*models.Signal, error) {
	var signal models.Signal
	err := r.db.db.First(&signal, id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetSignalByID: %w", err)
	}
	return &signal, nil
}

// GetOpenSignals loads every signal currently OPEN, for the Cache
// Resynchronizer's 5 s bulk refresh (§4.11).
func (r *SignalRepository) GetOpenSignals() ([]models.Signal, error) {
	var signals []models.Signal
	if err := r.db.db.Where("status = ?", "OPEN").Order("created_at ASC").Find(&signals).Error; err != nil {
		return nil, fmt.Errorf("GetOpenSignals: %w", err)
	}
	return signals, nil
}

// UpdatePartial applies the TP1-partial field set to a signal, but only
// when the signal is still OPEN; this is the conditional update that
// defeats duplicate-closure races for the non-closing transition (§5).
func (r *SignalRepository) UpdatePartial(id int64, updates map[string]interface{}) (bool, error) {
	updates["updated_at"] = time.Now()
	result := r.db.db.Model(&models.Signal{}).
		Where("id = ? AND status = ?", id, "OPEN").
		Updates(updates)
	if result.Error != nil {
		return false, fmt.Errorf("UpdatePartial: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// CloseSignal transitions a signal to CLOSED, applying the final field
// set, but only if it is currently OPEN. Returns false with no error when
// the row was already closed by a concurrent batch — §5's "closures use a
// conditional update (close only when current status is OPEN) to defeat
// duplicate-closure races", and §8's idempotence law ("closure of a signal
// is idempotent: a second attempt is a no-op").
func (r *SignalRepository) CloseSignal(id int64, updates map[string]interface{}) (bool, error) {
	updates["status"] = "CLOSED"
	updates["updated_at"] = time.Now()
	result := r.db.db.Model(&models.Signal{}).
		Where("id = ? AND status = ?", id, "OPEN").
		Updates(updates)
	if result.Error != nil {
		return false, fmt.Errorf("CloseSignal: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		log.Printf("⚠️  CloseSignal: signal %d was already closed, skipping", id)
	}
	return result.RowsAffected > 0, nil
}

// TradeRecordRepository handles persistence of the immutable closure
// history (§3 "Trade Record").
type TradeRecordRepository struct {
	db *Database
}

// NewTradeRecordRepository creates a new trade-record repository.
func NewTradeRecordRepository(db *Database) *TradeRecordRepository {
	return &TradeRecordRepository{db: db}
}

// SaveTradeRecord writes one closure history row; called once per signal
// on full closure, never on a TP1 partial.
func (r *TradeRecordRepository) SaveTradeRecord(record *models.TradeRecord) error {
	if err := r.db.db.Create(record).Error; err != nil {
		return fmt.Errorf("SaveTradeRecord: %w", err)
	}
	return nil
}

// KlineRepository handles persistence and retrieval of closed candles
// (§3 "Candle", §6 "klines"). Only closed candles are ever written, per
// the Non-goal that intraday raw trades are not persisted.
type KlineRepository struct {
	db *Database
}

// NewKlineRepository creates a new kline repository.
func NewKlineRepository(db *Database) *KlineRepository {
	return &KlineRepository{db: db}
}

func isDuplicateKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "duplicate key value violates unique constraint")
}

// SaveKline inserts one closed candle, silently ignoring a duplicate on
// the (instrument, interval, open_time) uniqueness constraint.
func (r *KlineRepository) SaveKline(kline *models.Kline) error {
	if err := r.db.db.Create(kline).Error; err != nil {
		if isDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("SaveKline: %w", err)
	}
	return nil
}

// BatchSaveKlines writes a batch of closed candles in chunks of 100,
// tolerating duplicate-key errors per chunk so one re-delivered candle
// does not fail the whole batch.
func (r *KlineRepository) BatchSaveKlines(klines []*models.Kline) error {
	if len(klines) == 0 {
		return nil
	}

	const batchSize = 100
	for i := 0; i < len(klines); i += batchSize {
		end := i + batchSize
		if end > len(klines) {
			end = len(klines)
		}
		batch := klines[i:end]

		interfaceBatch := make([]interface{}, len(batch))
		for j, k := range batch {
			interfaceBatch[j] = k
		}

		if err := r.db.db.CreateInBatches(interfaceBatch, len(batch)).Error; err != nil {
			if isDuplicateKeyError(err) {
				continue
			}
			return fmt.Errorf("BatchSaveKlines batch %d: %w", i/batchSize, err)
		}
	}
	return nil
}

// GetRecentClosedCandles returns the `limit` most recent closed candles for
// (instrument, interval), in chronological (oldest-first) order, as
// required by the Volatility Estimator (§4.4).
func (r *KlineRepository) GetRecentClosedCandles(instrument, interval string, limit int) ([]models.Kline, error) {
	var klines []models.Kline
	if err := r.db.db.
		Where("instrument = ? AND interval = ?", instrument, interval).
		Order("open_time DESC").
		Limit(limit).
		Find(&klines).Error; err != nil {
		return nil, fmt.Errorf("GetRecentClosedCandles: %w", err)
	}
	for i, j := 0, len(klines)-1; i < j; i, j = i+1, j-1 {
		klines[i], klines[j] = klines[j], klines[i]
	}
	return klines, nil
}

// GetHistoricalCandles returns every closed 1-minute candle for an
// instrument since the given time, chronologically ordered — feeds the
// Levels Analyzer's 6-hour historical-volume profile (§4.5).
func (r *KlineRepository) GetHistoricalCandles(instrument, interval string, since time.Time) ([]models.Kline, error) {
	var klines []models.Kline
	if err := r.db.db.
		Where("instrument = ? AND interval = ? AND open_time >= ?", instrument, interval, since).
		Order("open_time ASC").
		Find(&klines).Error; err != nil {
		return nil, fmt.Errorf("GetHistoricalCandles: %w", err)
	}
	return klines, nil
}
