package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	"demo_trader/internal/models"

	"github.com/shopspring/decimal"
)

// SchemaVersion is stamped into every saved account record.
const SchemaVersion = "1.0"

// Store persists the single account record as a JSON file.
type Store struct {
	Path           string
	InitialBalance decimal.Decimal
}

// NewStore returns a store writing to path. initialBalance seeds the account
// when no file exists yet.
func NewStore(path string, initialBalance decimal.Decimal) *Store {
	return &Store{Path: path, InitialBalance: initialBalance}
}

// Load reads the account from disk. If the file is missing, a fresh account
// with the configured starting balance is created and saved immediately so
// the next load finds it.
func (s *Store) Load() (models.Account, error) {
	var a models.Account

	if _, err := os.Stat(s.Path); os.IsNotExist(err) {
		log.Println("Account file missing, initializing demo account...")
		a = models.Account{
			Version:  SchemaVersion,
			Balance:  s.InitialBalance,
			Holdings: map[string]models.Position{},
			Alerts:   []models.Alert{},
		}
		if err := s.Save(a); err != nil {
			return a, err
		}
		return a, nil
	}

	f, err := os.Open(s.Path)
	if err != nil {
		return a, err
	}
	defer f.Close()

	b, err := io.ReadAll(f)
	if err != nil {
		return a, err
	}

	if err := json.Unmarshal(b, &a); err != nil {
		return a, fmt.Errorf("corrupt account file %s: %w", s.Path, err)
	}

	// Normalize records written by hand or by older builds.
	if normalize(&a) {
		log.Printf("INFO: Account normalized to schema %s. Saving...", a.Version)
		if err := s.Save(a); err != nil {
			return a, err
		}
	}

	return a, nil
}

// normalize backfills fields a partial record may lack.
// Returns true if changes were made and the record needs to be saved.
func normalize(a *models.Account) bool {
	updated := false

	if a.Holdings == nil {
		a.Holdings = map[string]models.Position{}
		updated = true
	}
	if a.Alerts == nil {
		a.Alerts = []models.Alert{}
		updated = true
	}
	if a.Version != SchemaVersion {
		a.Version = SchemaVersion
		updated = true
	}

	return updated
}

// Save writes the account to disk using an atomic write pattern:
// 1. Write to a temporary file.
// 2. Sync to ensure data is on disk.
// 3. Rename temporary file to destination (atomic operation).
//
// Unlike a best-effort log write, a failure here must reach the caller: the
// ledger rolls the mutation back when the state cannot be made durable.
func (s *Store) Save(a models.Account) error {
	b, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal account: %w", err)
	}

	tmpFile := s.Path + ".tmp"
	f, err := os.Create(tmpFile)
	if err != nil {
		return fmt.Errorf("create temp account file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(b); err != nil {
		return fmt.Errorf("write temp account file: %w", err)
	}

	// Force sync to disk to prevent data loss on power failure before rename
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync temp account file: %w", err)
	}

	// Close explicitly before renaming (essential on Windows)
	f.Close()

	if err := os.Rename(tmpFile, s.Path); err != nil {
		return fmt.Errorf("replace account file: %w", err)
	}
	return nil
}
