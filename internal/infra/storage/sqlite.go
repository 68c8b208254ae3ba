package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"trade_sim/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Model record names.
const (
	ModelSlippage   = "slippage"
	ModelMakerTaker = "maker_taker"
)

// ModelRecord holds one fitted coefficient set as JSON.
type ModelRecord struct {
	Name         string `gorm:"primaryKey"`
	Coefficients string `gorm:"type:text;not null"`
	SampleCount  int
	FittedAt     time.Time
}

// EstimateRecord is a persisted CostEstimate.
type EstimateRecord struct {
	ID                uint64 `gorm:"primaryKey;autoIncrement"`
	Seq               uint64 `gorm:"index"`
	Exchange          string
	Symbol            string `gorm:"index"`
	OrderType         string
	QuantityUSD       decimal.Decimal `gorm:"type:text"`
	MidPrice          decimal.Decimal `gorm:"type:text"`
	FeeUSD            decimal.Decimal `gorm:"type:text"`
	ImpactUSD         decimal.Decimal `gorm:"type:text"`
	SlippageUSD       decimal.Decimal `gorm:"type:text"`
	NetCostUSD        decimal.Decimal `gorm:"type:text"`
	MakerProbability  decimal.Decimal `gorm:"type:text"`
	InternalLatencyNs int64
	TickTimestamp     time.Time
	CreatedAt         time.Time
}

// Setting is a free-form key/value pair (e.g. the source of the last fit).
type Setting struct {
	Key   string `gorm:"primaryKey"`
	Value string
}

// Storage persists model parameters and estimates in SQLite.
type Storage struct {
	db *gorm.DB
}

// NewStorage opens (or creates) the database at path.
// An empty path resolves to the per-user config directory.
func NewStorage(path string) (*Storage, error) {
	if path == "" {
		p, err := getDBPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve DB path: %w", err)
		}
		path = p
	}

	// Ensure directory exists
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create DB directory: %w", err)
		}
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Auto Migration
	if err := db.AutoMigrate(&ModelRecord{}, &EstimateRecord{}, &Setting{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db}, nil
}

// getDBPath resolves the database file path based on OS
func getDBPath() (string, error) {
	var configDir string
	var err error

	if runtime.GOOS == "windows" {
		configDir = os.Getenv("LOCALAPPDATA")
		if configDir == "" {
			configDir, err = os.UserConfigDir()
		}
	} else {
		configDir, err = os.UserConfigDir()
	}

	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, "TradeSim", "data", "trade_sim.db"), nil
}

// Close releases the underlying connection.
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ======================================================================================
// Model Parameters
// ======================================================================================

// SaveSlippage stores fitted slippage coefficients, replacing any previous set.
func (s *Storage) SaveSlippage(ctx context.Context, p domain.SlippageParams) error {
	return s.saveModel(ctx, ModelSlippage, p, p.SampleCount)
}

// SaveMakerTaker stores fitted maker/taker coefficients, replacing any previous set.
func (s *Storage) SaveMakerTaker(ctx context.Context, p domain.MakerTakerParams) error {
	return s.saveModel(ctx, ModelMakerTaker, p, p.SampleCount)
}

// LoadSlippage returns the fitted slippage coefficients, or nil if none were saved.
func (s *Storage) LoadSlippage(ctx context.Context) (*domain.SlippageParams, error) {
	var p domain.SlippageParams
	ok, err := s.loadModel(ctx, ModelSlippage, &p)
	if err != nil || !ok {
		return nil, err
	}
	return &p, nil
}

// LoadMakerTaker returns the fitted maker/taker coefficients, or nil if none were saved.
func (s *Storage) LoadMakerTaker(ctx context.Context) (*domain.MakerTakerParams, error) {
	var p domain.MakerTakerParams
	ok, err := s.loadModel(ctx, ModelMakerTaker, &p)
	if err != nil || !ok {
		return nil, err
	}
	return &p, nil
}

func (s *Storage) saveModel(ctx context.Context, name string, coefficients any, samples int) error {
	b, err := json.Marshal(coefficients)
	if err != nil {
		return fmt.Errorf("encode %s coefficients: %w", name, err)
	}
	rec := ModelRecord{
		Name:         name,
		Coefficients: string(b),
		SampleCount:  samples,
		FittedAt:     time.Now().UTC(),
	}
	return s.db.WithContext(ctx).Save(&rec).Error
}

func (s *Storage) loadModel(ctx context.Context, name string, out any) (bool, error) {
	var rec ModelRecord
	err := s.db.WithContext(ctx).First(&rec, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil // Not found is not an error
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(rec.Coefficients), out); err != nil {
		return false, fmt.Errorf("decode %s coefficients: %w", name, err)
	}
	return true, nil
}

// ======================================================================================
// Estimates
// ======================================================================================

// RecordEstimate appends an estimate to the history table.
func (s *Storage) RecordEstimate(ctx context.Context, est domain.CostEstimate) error {
	rec := EstimateRecord{
		Seq:               est.Seq,
		Exchange:          est.Exchange,
		Symbol:            est.Symbol,
		OrderType:         string(est.OrderType),
		QuantityUSD:       est.QuantityUSD,
		MidPrice:          est.MidPrice,
		FeeUSD:            est.FeeUSD,
		ImpactUSD:         est.ImpactUSD,
		SlippageUSD:       est.SlippageUSD,
		NetCostUSD:        est.NetCostUSD,
		MakerProbability:  est.MakerProbability,
		InternalLatencyNs: est.InternalLatency.Nanoseconds(),
		TickTimestamp:     est.TickTimestamp,
	}
	return s.db.WithContext(ctx).Create(&rec).Error
}

// RecentEstimates returns up to limit estimates for symbol, newest first.
func (s *Storage) RecentEstimates(ctx context.Context, symbol string, limit int) ([]EstimateRecord, error) {
	var recs []EstimateRecord
	err := s.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: true}).
		Limit(limit).
		Find(&recs).Error
	return recs, err
}

// ======================================================================================
// Settings
// ======================================================================================

// SaveSetting saves a key/value setting
func (s *Storage) SaveSetting(key, value string) error {
	return s.db.Save(&Setting{Key: key, Value: value}).Error
}

// LoadSettings loads all settings as a map
func (s *Storage) LoadSettings() (map[string]string, error) {
	var settings []Setting
	if err := s.db.Find(&settings).Error; err != nil {
		return nil, err
	}

	result := make(map[string]string)
	for _, st := range settings {
		result[st.Key] = st.Value
	}
	return result, nil
}
