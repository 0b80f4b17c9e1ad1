package engineerrepofake

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/ses-client-auth/engineers"
	autherrors "github.com/jrsteele09/ses-client-auth/internal/errors"
	"github.com/jrsteele09/ses-client-auth/visibility"
)

var _ engineers.Directory = (*FakeEngineerRepo)(nil)

type FakeEngineerRepo struct {
	engineers map[string]*engineers.Engineer
	failWith  error
	lock      sync.RWMutex
}

func NewFakeEngineerRepo() *FakeEngineerRepo {
	return &FakeEngineerRepo{
		engineers: make(map[string]*engineers.Engineer),
	}
}

func (r *FakeEngineerRepo) Upsert(e *engineers.Engineer) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	cp := *e
	r.engineers[e.ID] = &cp
	return nil
}

// FailWith makes every subsequent call return err. Pass nil to recover.
func (r *FakeEngineerRepo) FailWith(err error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.failWith = err
}

func (r *FakeEngineerRepo) Find(ctx context.Context, id string) (*engineers.Engineer, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	if err := r.check(ctx); err != nil {
		return nil, err
	}
	e, ok := r.engineers[id]
	if !ok {
		return nil, autherrors.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

// List returns the engineers matching filter, ordered by name then id.
func (r *FakeEngineerRepo) List(ctx context.Context, filter visibility.Filter) ([]engineers.Engineer, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	if err := r.check(ctx); err != nil {
		return nil, err
	}
	list := make([]engineers.Engineer, 0)
	for _, e := range r.engineers {
		if filter.Matches(*e) {
			list = append(list, *e)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Name != list[j].Name {
			return list[i].Name < list[j].Name
		}
		return list[i].ID < list[j].ID
	})
	return list, nil
}

func (r *FakeEngineerRepo) check(ctx context.Context) error {
	if r.failWith != nil {
		return r.failWith
	}
	return ctx.Err()
}
