// Package registry records who currently holds each position id.
package registry

import (
	"fmt"
	"sort"

	"poolbet/internal/domain"
)

// Registry maps position ids to their current holder.
type Registry struct {
	name     string
	notOwner error
	owners   map[uint64]domain.Account
	counts   map[domain.Account]int
	nextID   uint64
}

// New creates a registry. notOwner is returned when a transfer is
// attempted by someone other than the holder.
func New(name string, notOwner error) *Registry {
	return &Registry{
		name:     name,
		notOwner: notOwner,
		owners:   make(map[uint64]domain.Account),
		counts:   make(map[domain.Account]int),
		nextID:   1,
	}
}

// Name identifies the registry in events and logs.
func (r *Registry) Name() string { return r.name }

// Mint issues the next sequential id to owner.
func (r *Registry) Mint(owner domain.Account) uint64 {
	for {
		id := r.nextID
		r.nextID++
		if _, taken := r.owners[id]; !taken {
			r.assign(id, owner)
			return id
		}
	}
}

// MintAt issues a caller-chosen id. Panics if the id is held.
func (r *Registry) MintAt(id uint64, owner domain.Account) {
	if _, taken := r.owners[id]; taken {
		panic(fmt.Sprintf("REGISTRY_ID_TAKEN: %s #%d", r.name, id))
	}
	r.assign(id, owner)
}

func (r *Registry) assign(id uint64, owner domain.Account) {
	r.owners[id] = owner
	r.counts[owner]++
}

func (r *Registry) unassign(id uint64) {
	owner := r.owners[id]
	delete(r.owners, id)
	if r.counts[owner]--; r.counts[owner] == 0 {
		delete(r.counts, owner)
	}
}

// OwnerOf returns the holder of id.
func (r *Registry) OwnerOf(id uint64) (domain.Account, bool) {
	owner, ok := r.owners[id]
	return owner, ok
}

// CheckOwner fails unless account holds id.
func (r *Registry) CheckOwner(account domain.Account, id uint64) error {
	owner, ok := r.owners[id]
	if !ok {
		return domain.ErrTokenNotExists
	}
	if owner != account {
		return r.notOwner
	}
	return nil
}

// Transfer moves id from one holder to another.
func (r *Registry) Transfer(from, to domain.Account, id uint64) error {
	if err := r.CheckOwner(from, id); err != nil {
		return err
	}
	if to == "" {
		return domain.ErrWrongParameter
	}
	r.unassign(id)
	r.assign(id, to)
	return nil
}

// Burn removes id. Unknown ids are ignored.
func (r *Registry) Burn(id uint64) {
	if _, ok := r.owners[id]; ok {
		r.unassign(id)
	}
}

// BalanceOf is the number of ids held by owner.
func (r *Registry) BalanceOf(owner domain.Account) int {
	return r.counts[owner]
}

// IDsOf lists the ids held by owner in ascending order.
func (r *Registry) IDsOf(owner domain.Account) []uint64 {
	var ids []uint64
	for id, o := range r.owners {
		if o == owner {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
