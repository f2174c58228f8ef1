package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/walletrank/walletrank/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB wraps the GORM database connection
type DB struct {
	conn *gorm.DB
	log  *logrus.Logger
}

// New creates a new database connection with GORM
func New(cfg *config.Config, log *logrus.Logger) (*DB, error) {
	gormLogger := logger.New(
		&gormLogAdapter{log: log},
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	conn, err := gorm.Open(mysql.Open(cfg.DatabaseDSN), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.DatabaseMaxConns)
	sqlDB.SetMaxIdleConns(cfg.DatabaseMaxConns / 2)
	sqlDB.SetConnMaxIdleTime(cfg.DatabaseMaxIdleTime)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Info("Database connection established")

	return &DB{conn: conn, log: log}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	sqlDB, err := db.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AutoMigrate runs GORM auto-migration (for development only)
func (db *DB) AutoMigrate() error {
	return db.conn.AutoMigrate(
		&User{},
		&InviteCode{},
		&PortfolioSnapshot{},
		&Event{},
	)
}

// FindUserByWalletHash retrieves a user by wallet address hash
func (db *DB) FindUserByWalletHash(ctx context.Context, hash string) (*User, error) {
	var user User
	result := db.conn.WithContext(ctx).Where("wallet_address_hash = ?", hash).First(&user)
	if result.Error == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &user, nil
}

// FindUserByID retrieves a user by id
func (db *DB) FindUserByID(ctx context.Context, id string) (*User, error) {
	var user User
	result := db.conn.WithContext(ctx).Where("id = ?", id).First(&user)
	if result.Error == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &user, nil
}

// InsertUser inserts a new user record and returns its id
func (db *DB) InsertUser(ctx context.Context, user *User) (string, error) {
	result := db.conn.WithContext(ctx).Create(user)
	if result.Error != nil {
		return "", result.Error
	}
	return user.ID, nil
}

// UpdateUserInviteCodeIssued records the invite code a user has issued
func (db *DB) UpdateUserInviteCodeIssued(ctx context.Context, userID, code string) error {
	return db.conn.WithContext(ctx).
		Model(&User{}).
		Where("id = ?", userID).
		Update("invite_code_issued", code).Error
}

// UpdateUserShareCompleted marks a user's share card as shared
func (db *DB) UpdateUserShareCompleted(ctx context.Context, userID string) error {
	return db.conn.WithContext(ctx).
		Model(&User{}).
		Where("id = ?", userID).
		Update("share_completed", true).Error
}

// FindUsersByReferredByCode retrieves all users referred by an invite code,
// in insertion order for deterministic traversal
func (db *DB) FindUsersByReferredByCode(ctx context.Context, code string) ([]User, error) {
	var users []User
	result := db.conn.WithContext(ctx).
		Where("referred_by_invite_code = ?", code).
		Order("created_ts ASC, id ASC").
		Find(&users)
	return users, result.Error
}

// FindInviteCodeByCode retrieves an invite code record
func (db *DB) FindInviteCodeByCode(ctx context.Context, code string) (*InviteCode, error) {
	var invite InviteCode
	result := db.conn.WithContext(ctx).Where("code = ?", code).First(&invite)
	if result.Error == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &invite, nil
}

// InviteCodeExists checks whether an invite code is already allocated
func (db *DB) InviteCodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	result := db.conn.WithContext(ctx).
		Model(&InviteCode{}).
		Where("code = ?", code).
		Count(&count)
	if result.Error != nil {
		return false, result.Error
	}
	return count > 0, nil
}

// InsertInviteCode inserts a new invite code record
func (db *DB) InsertInviteCode(ctx context.Context, invite *InviteCode) error {
	return db.conn.WithContext(ctx).Create(invite).Error
}

// InsertPortfolioSnapshot inserts a portfolio snapshot for a user
func (db *DB) InsertPortfolioSnapshot(ctx context.Context, snapshot *PortfolioSnapshot) error {
	return db.conn.WithContext(ctx).Create(snapshot).Error
}

// FindLatestPortfolioSnapshot retrieves the most recent snapshot for a user
func (db *DB) FindLatestPortfolioSnapshot(ctx context.Context, userID string) (*PortfolioSnapshot, error) {
	var snapshot PortfolioSnapshot
	result := db.conn.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_ts DESC, id DESC").
		First(&snapshot)
	if result.Error == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &snapshot, nil
}

// InsertEvent inserts an audit event
func (db *DB) InsertEvent(ctx context.Context, event *Event) error {
	return db.conn.WithContext(ctx).Create(event).Error
}

// gormLogAdapter adapts logrus to GORM's logger interface
type gormLogAdapter struct {
	log *logrus.Logger
}

func (l *gormLogAdapter) Printf(format string, args ...interface{}) {
	l.log.Debugf(format, args...)
}
