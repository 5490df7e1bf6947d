package store

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/VAnkata19/TraderAI/pkg/decision"
)

const (
	defaultPostgresHost    = "localhost"
	defaultPostgresPort    = 5432
	defaultPostgresSSLMode = "disable"
)

// PostgresOption defines connection options for the decision journal.
type PostgresOption struct {
	Host       string
	Port       int
	User       string
	Password   string
	Database   string
	SSLMode    string
	Params     map[string]string
	ConnString string
	Config     *gorm.Config
}

// DecisionRow is the journal table.
type DecisionRow struct {
	ID               string `gorm:"primaryKey;size:36"`
	Symbol           string `gorm:"index;size:16"`
	Decision         string `gorm:"size:8"`
	Quantity         int
	Confidence       float64
	Reasoning        string `gorm:"type:text"`
	NewsSummary      string `gorm:"type:text"`
	ChartSummary     string `gorm:"type:text"`
	Executed         bool
	OrderResult      string `gorm:"type:text"`
	Downgraded       bool
	ActionsUsedToday int
	CreatedAt        time.Time `gorm:"index"`
}

// TableName overrides the gorm default.
func (DecisionRow) TableName() string {
	return "trade_decisions"
}

func rowFromRecord(rec DecisionRecord) DecisionRow {
	return DecisionRow{
		ID:               rec.ID,
		Symbol:           rec.Symbol,
		Decision:         string(rec.Decision),
		Quantity:         rec.Quantity,
		Confidence:       rec.Confidence,
		Reasoning:        rec.Reasoning,
		NewsSummary:      rec.NewsSummary,
		ChartSummary:     rec.ChartSummary,
		Executed:         rec.Executed,
		OrderResult:      rec.OrderResult,
		Downgraded:       rec.Downgraded,
		ActionsUsedToday: rec.ActionsUsedToday,
		CreatedAt:        rec.Timestamp,
	}
}

func (r DecisionRow) record() DecisionRecord {
	return DecisionRecord{
		ID:               r.ID,
		Symbol:           r.Symbol,
		Decision:         decision.Action(r.Decision),
		Quantity:         r.Quantity,
		Confidence:       r.Confidence,
		Reasoning:        r.Reasoning,
		NewsSummary:      r.NewsSummary,
		ChartSummary:     r.ChartSummary,
		Executed:         r.Executed,
		OrderResult:      r.OrderResult,
		Downgraded:       r.Downgraded,
		ActionsUsedToday: r.ActionsUsedToday,
		Timestamp:        r.CreatedAt,
	}
}

// PostgresJournal stores decisions in PostgreSQL through gorm.
type PostgresJournal struct {
	db *gorm.DB
}

// OpenPostgresJournal connects and migrates the journal table.
func OpenPostgresJournal(option PostgresOption) (*PostgresJournal, error) {
	connString, err := option.dsn()
	if err != nil {
		return nil, err
	}

	config := option.Config
	if config == nil {
		config = &gorm.Config{}
	}

	db, err := gorm.Open(postgres.Open(connString), config)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return NewPostgresJournal(db)
}

// NewPostgresJournal wraps an open connection and migrates the journal table.
func NewPostgresJournal(db *gorm.DB) (*PostgresJournal, error) {
	if err := db.AutoMigrate(&DecisionRow{}); err != nil {
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return &PostgresJournal{db: db}, nil
}

// Record inserts rec.
func (j *PostgresJournal) Record(ctx context.Context, rec DecisionRecord) error {
	row := rowFromRecord(rec)
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	return j.db.WithContext(ctx).Create(&row).Error
}

// Recent returns up to limit rows, newest first.
func (j *PostgresJournal) Recent(ctx context.Context, limit int) ([]DecisionRecord, error) {
	q := j.db.WithContext(ctx).Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []DecisionRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]DecisionRecord, len(rows))
	for i, r := range rows {
		out[i] = r.record()
	}
	return out, nil
}

// Close closes the underlying connection pool.
func (j *PostgresJournal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (opt PostgresOption) dsn() (string, error) {
	if opt.ConnString != "" {
		return opt.ConnString, nil
	}

	host := opt.Host
	if host == "" {
		host = defaultPostgresHost
	}

	port := opt.Port
	if port == 0 {
		port = defaultPostgresPort
	}

	sslMode := opt.SSLMode
	if sslMode == "" {
		sslMode = defaultPostgresSSLMode
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", host, port),
	}

	if opt.User != "" {
		if opt.Password != "" {
			u.User = url.UserPassword(opt.User, opt.Password)
		} else {
			u.User = url.User(opt.User)
		}
	}

	if opt.Database != "" {
		u.Path = "/" + opt.Database
	}

	query := url.Values{}
	query.Set("sslmode", sslMode)
	for key, value := range opt.Params {
		if key == "" {
			continue
		}
		query.Set(key, value)
	}
	u.RawQuery = query.Encode()

	return u.String(), nil
}

// Multi records into several journals and reads from the first.
type Multi []Journal

// Record writes rec to every journal, returning the first error.
func (m Multi) Record(ctx context.Context, rec DecisionRecord) error {
	var first error
	for _, j := range m {
		if err := j.Record(ctx, rec); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Recent reads from the first journal.
func (m Multi) Recent(ctx context.Context, limit int) ([]DecisionRecord, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return m[0].Recent(ctx, limit)
}
