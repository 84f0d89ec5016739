// Package patients exposes the slice of the patient store the agent
// governance layer needs: lookup by account id, the do-not-contact flag,
// and the display name used in prompts. The full CRUD surface lives in the
// clinic backend; this package only consumes its data.
package patients

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"lucid/internal/errors"
)

// Patient is the subset of the clinic record relevant to governance.
type Patient struct {
	AccountID string `json:"account_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	CellPhone string `json:"cell_phone,omitempty"`
	Email     string `json:"email,omitempty"`
	Tier      string `json:"tier,omitempty"`
	IsDNC     bool   `json:"is_dnc"`
}

// FullName returns "First Last" with surrounding whitespace trimmed.
func (p *Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Directory looks up patients by account id. Lookup returns a not-found
// error when the account is unknown.
type Directory interface {
	Lookup(accountID string) (*Patient, error)
}

// FileDirectory reads a JSON array of patients once and serves lookups from
// memory. The file is the agent service's read replica of the clinic store.
type FileDirectory struct {
	mu       sync.RWMutex
	byID     map[string]*Patient
	filePath string
}

// NewFileDirectory loads the patient file. A missing file yields an empty
// directory rather than an error so the service can start before the first
// sync.
func NewFileDirectory(path string) (*FileDirectory, error) {
	d := &FileDirectory{byID: map[string]*Patient{}, filePath: path}
	if err := d.Reload(); err != nil {
		return nil, err
	}
	return d, nil
}

// Reload re-reads the backing file.
func (d *FileDirectory) Reload() error {
	data, err := os.ReadFile(d.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read patients db: %w", err)
	}

	var records []*Patient
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("decode patients db: %w", err)
	}

	byID := make(map[string]*Patient, len(records))
	for _, p := range records {
		if p.AccountID != "" {
			byID[p.AccountID] = p
		}
	}

	d.mu.Lock()
	d.byID = byID
	d.mu.Unlock()
	return nil
}

func (d *FileDirectory) Lookup(accountID string) (*Patient, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.byID[accountID]
	if !ok {
		return nil, errors.NotFoundf("patient not found: %s", accountID)
	}
	return p, nil
}

// StaticDirectory serves a fixed set of patients. Used in tests.
type StaticDirectory map[string]*Patient

func (d StaticDirectory) Lookup(accountID string) (*Patient, error) {
	p, ok := d[accountID]
	if !ok {
		return nil, errors.NotFoundf("patient not found: %s", accountID)
	}
	return p, nil
}
