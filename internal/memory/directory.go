package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/spbu-ds-practicum-2025/dinarflow-transfer-engine/internal/domain"
)

// Directory implements domain.Directory over a list of profiles.
type Directory struct {
	mu       sync.RWMutex
	profiles []domain.Profile
}

// NewDirectory creates a Directory holding the given profiles.
func NewDirectory(profiles ...domain.Profile) *Directory {
	d := &Directory{}
	for _, p := range profiles {
		d.Put(p)
	}
	return d
}

// Put adds a profile, replacing any profile of the same account.
func (d *Directory) Put(p domain.Profile) {
	p.Email = strings.ToLower(p.Email)

	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.profiles {
		if d.profiles[i].AccountID == p.AccountID {
			d.profiles[i] = p
			return
		}
	}
	d.profiles = append(d.profiles, p)
}

func (d *Directory) FindByPhone(_ context.Context, phone string) ([]domain.Profile, error) {
	return d.find(func(p domain.Profile) bool { return p.Phone == phone }), nil
}

func (d *Directory) FindByEmail(_ context.Context, email string) ([]domain.Profile, error) {
	return d.find(func(p domain.Profile) bool { return p.Email == email }), nil
}

func (d *Directory) FindByDisplayName(_ context.Context, name string) ([]domain.Profile, error) {
	return d.find(func(p domain.Profile) bool { return strings.EqualFold(p.DisplayName, name) }), nil
}

func (d *Directory) find(match func(domain.Profile) bool) []domain.Profile {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []domain.Profile
	for _, p := range d.profiles {
		if match(p) {
			out = append(out, p)
		}
	}
	return out
}
