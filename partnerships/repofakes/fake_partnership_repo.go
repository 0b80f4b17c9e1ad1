package partnershiprepofakes

import (
	"context"
	"sync"

	"github.com/google/uuid"
	autherrors "github.com/jrsteele09/ses-client-auth/internal/errors"
	"github.com/jrsteele09/ses-client-auth/partnerships"
)

var _ partnerships.Registry = (*FakePartnershipRepo)(nil)

type FakePartnershipRepo struct {
	partnerships map[string]*partnerships.Partnership
	grants       map[string][]*partnerships.Grant // partnership id to grants
	failWith     error
	lock         sync.RWMutex
}

func NewFakePartnershipRepo() *FakePartnershipRepo {
	return &FakePartnershipRepo{
		partnerships: make(map[string]*partnerships.Partnership),
		grants:       make(map[string][]*partnerships.Grant),
	}
}

func (r *FakePartnershipRepo) UpsertPartnership(p *partnerships.Partnership) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	cp := *p
	r.partnerships[p.ID] = &cp
	return nil
}

// UpsertGrant stores g. Activating a grant deactivates the partnership's other grants.
func (r *FakePartnershipRepo) UpsertGrant(g *partnerships.Grant) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if g.ID == "" {
		g.ID = uuid.New().String()
	}
	cp := *g
	cp.EngineerIDs = append([]string(nil), g.EngineerIDs...)

	grants := r.grants[g.PartnershipID]
	replaced := false
	for i, existing := range grants {
		if cp.Active && existing.ID != cp.ID {
			existing.Active = false
		}
		if existing.ID == cp.ID {
			grants[i] = &cp
			replaced = true
		}
	}
	if !replaced {
		grants = append(grants, &cp)
	}
	r.grants[g.PartnershipID] = grants
	return nil
}

func (r *FakePartnershipRepo) SetPartnershipActive(id string, active bool) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	p, ok := r.partnerships[id]
	if !ok {
		return autherrors.ErrNotFound
	}
	p.Active = active
	return nil
}

// FailWith makes every subsequent call return err. Pass nil to recover.
func (r *FakePartnershipRepo) FailWith(err error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.failWith = err
}

func (r *FakePartnershipRepo) FindPartnership(ctx context.Context, id string) (*partnerships.Partnership, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	if err := r.check(ctx); err != nil {
		return nil, err
	}
	p, ok := r.partnerships[id]
	if !ok {
		return nil, autherrors.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *FakePartnershipRepo) FindActiveGrant(ctx context.Context, partnershipID string) (*partnerships.Grant, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	if err := r.check(ctx); err != nil {
		return nil, err
	}
	for _, g := range r.grants[partnershipID] {
		if g.Active {
			cp := *g
			cp.EngineerIDs = append([]string(nil), g.EngineerIDs...)
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *FakePartnershipRepo) check(ctx context.Context) error {
	if r.failWith != nil {
		return r.failWith
	}
	return ctx.Err()
}
