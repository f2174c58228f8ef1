package storage

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Event types recorded against users.
const (
	EventWalletAnalyzed = "WALLET_ANALYZED"
	EventShareCompleted = "SHARE_COMPLETED"
)

// User is an analyzed wallet admitted through an invite code.
type User struct {
	ID                   string `gorm:"primaryKey;size:36"`
	WalletAddress        string `gorm:"size:128;not null"`
	WalletAddressHash    string `gorm:"uniqueIndex;size:64;not null"`
	InviteCodeIssued     string `gorm:"size:8;index"`
	ReferredByInviteCode string `gorm:"size:8;not null;index"`
	Rank                 string `gorm:"size:32;not null"`
	Score                int    `gorm:"not null"`
	Eligibility          bool   `gorm:"not null;default:false;index"`
	ShareCompleted       bool   `gorm:"not null;default:false"`
	UTMSource            string `gorm:"size:128"`
	UTMMedium            string `gorm:"size:128"`
	UTMCampaign          string `gorm:"size:128"`
	GAClientID           string `gorm:"size:128"`
	CreatedTS            int64  `gorm:"not null;index"`
}

func (User) TableName() string {
	return "users"
}

// InviteCode gates access to wallet analysis and forms referral-graph edges.
type InviteCode struct {
	Code            string `gorm:"primaryKey;size:8"`
	CreatedByUserID string `gorm:"size:36;index"`
	SourceKol       string `gorm:"size:128"`
	CreatedTS       int64  `gorm:"not null;index"`
}

func (InviteCode) TableName() string {
	return "invite_codes"
}

// PortfolioSnapshot is the wallet dataset captured at analysis time.
type PortfolioSnapshot struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	UserID       string `gorm:"size:36;not null;index"`
	SnapshotJSON string `gorm:"type:longtext;not null"`
	CreatedTS    int64  `gorm:"not null;index"`
}

func (PortfolioSnapshot) TableName() string {
	return "portfolio_snapshots"
}

// Event is an append-only audit record.
type Event struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	UserID       string `gorm:"size:36;index"`
	EventType    string `gorm:"size:64;not null;index"`
	MetadataJSON string `gorm:"type:text"`
	CreatedTS    int64  `gorm:"not null;index"`
}

func (Event) TableName() string {
	return "events"
}

// BeforeCreate hooks for ids and timestamps.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedTS == 0 {
		u.CreatedTS = time.Now().Unix()
	}
	return nil
}

func (c *InviteCode) BeforeCreate(tx *gorm.DB) error {
	if c.CreatedTS == 0 {
		c.CreatedTS = time.Now().Unix()
	}
	return nil
}

func (s *PortfolioSnapshot) BeforeCreate(tx *gorm.DB) error {
	if s.CreatedTS == 0 {
		s.CreatedTS = time.Now().Unix()
	}
	return nil
}

func (e *Event) BeforeCreate(tx *gorm.DB) error {
	if e.CreatedTS == 0 {
		e.CreatedTS = time.Now().Unix()
	}
	return nil
}
