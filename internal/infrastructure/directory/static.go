// Package directory provides the static user directory loaded from YAML.
package directory

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/garyjia/forms-workflow/internal/application/port"
	"github.com/garyjia/forms-workflow/internal/domain/entity"
	"github.com/garyjia/forms-workflow/pkg/utils"
)

var knownRoles = map[string]bool{
	entity.RoleEmployee: true,
	entity.RoleManager:  true,
	entity.RoleDirector: true,
	entity.RoleAdmin:    true,
}

type directoryFile struct {
	Users []*entity.Actor `yaml:"users"`
}

// Static is an in-memory directory of actors indexed by identity
type Static struct {
	path    string
	mu      sync.RWMutex
	users   map[string]*entity.Actor
	reports map[string][]*entity.Actor
}

// Load reads the directory from a YAML file
func Load(path string) (*Static, error) {
	d := &Static{path: path}
	if err := d.Sync(); err != nil {
		return nil, err
	}
	return d, nil
}

// New builds a directory from actors
func New(users []*entity.Actor) (*Static, error) {
	d := &Static{}
	if err := d.replace(users); err != nil {
		return nil, err
	}
	return d, nil
}

// Sync reloads the directory file from disk. The previous contents stay in
// place when the file is invalid.
func (d *Static) Sync() error {
	data, err := os.ReadFile(d.path)
	if err != nil {
		return fmt.Errorf("directory: reading %s: %w", d.path, err)
	}

	var f directoryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("directory: parsing %s: %w", d.path, err)
	}
	if err := d.replace(f.Users); err != nil {
		return fmt.Errorf("directory: %s: %w", d.path, err)
	}
	return nil
}

// GetUserByIdentity returns the actor with the given identity
func (d *Static) GetUserByIdentity(id string) (*entity.Actor, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[id]
	return u, ok
}

// GetManagerOf returns the manager of the given user
func (d *Static) GetManagerOf(id string) (*entity.Actor, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[id]
	if !ok || u.ManagerID == "" {
		return nil, false
	}
	m, ok := d.users[u.ManagerID]
	return m, ok
}

// GetDirectReports returns the users managed by managerID, sorted by identity
func (d *Static) GetDirectReports(managerID string) []*entity.Actor {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]*entity.Actor(nil), d.reports[managerID]...)
}

// Len returns the number of users
func (d *Static) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.users)
}

func (d *Static) replace(list []*entity.Actor) error {
	users := make(map[string]*entity.Actor, len(list))
	for i, u := range list {
		if u == nil || u.ID == "" {
			return fmt.Errorf("user %d has no id", i)
		}
		if _, dup := users[u.ID]; dup {
			return fmt.Errorf("duplicate user %q", u.ID)
		}
		if u.Email != "" {
			if err := utils.ValidateEmail(u.Email); err != nil {
				return fmt.Errorf("user %q: %w", u.ID, err)
			}
		}
		for _, r := range u.Roles {
			if !knownRoles[r] {
				return fmt.Errorf("user %q has unknown role %q", u.ID, r)
			}
		}
		users[u.ID] = u
	}

	reports := make(map[string][]*entity.Actor)
	for _, u := range users {
		if u.ManagerID == "" {
			continue
		}
		if _, ok := users[u.ManagerID]; !ok {
			return fmt.Errorf("user %q has unknown manager %q", u.ID, u.ManagerID)
		}
		reports[u.ManagerID] = append(reports[u.ManagerID], u)
	}
	for _, rs := range reports {
		sort.Slice(rs, func(i, j int) bool { return rs[i].ID < rs[j].ID })
	}

	if err := checkCycles(users); err != nil {
		return err
	}

	d.mu.Lock()
	d.users, d.reports = users, reports
	d.mu.Unlock()
	return nil
}

// checkCycles rejects management chains that loop back on themselves
func checkCycles(users map[string]*entity.Actor) error {
	for id := range users {
		seen := map[string]bool{id: true}
		for cur := users[id].ManagerID; cur != ""; cur = users[cur].ManagerID {
			if seen[cur] {
				return fmt.Errorf("management cycle through %q", cur)
			}
			seen[cur] = true
		}
	}
	return nil
}

var _ port.Directory = (*Static)(nil)
