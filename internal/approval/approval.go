// Package approval owns the photo lifecycle: pending -> approved, and
// pending or approved -> deleted. Deleted is terminal and the row is removed;
// deleting it again is a no-op.
package approval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/zaidhuda/wedding-gallery-sub000/pkg/domain"
	"github.com/zaidhuda/wedding-gallery-sub000/pkg/storage"
	"github.com/zaidhuda/wedding-gallery-sub000/pkg/store"
)

// State is a lifecycle state.
type State string

const (
	StatePending  State = "pending"
	StateApproved State = "approved"
	StateDeleted  State = "deleted"
)

// Action is an administrative or moderation-driven transition.
type Action string

const (
	ActionApprove   Action = "approve"
	ActionDelete    Action = "delete"
	ActionUnapprove Action = "unapprove"
)

var (
	ErrNotFound          = errors.New("photo not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrUnknownAction     = errors.New("unknown action")
)

// bulkConcurrency bounds the per-id goroutines of one Bulk call.
const bulkConcurrency = 4

// ParseAction accepts the admin bulk actions.
func ParseAction(raw string) (Action, error) {
	switch Action(raw) {
	case ActionApprove, ActionDelete:
		return Action(raw), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, raw)
	}
}

// StateOf reports the lifecycle state of a stored photo.
func StateOf(p domain.Photo) State {
	if p.IsApproved {
		return StateApproved
	}
	return StatePending
}

// Transition is the lifecycle table. Approving an approved photo is a no-op,
// as is deleting or unapproving a deleted one. Unapprove is destructive and
// only leaves the approved state.
func Transition(from State, action Action) (State, error) {
	switch action {
	case ActionApprove:
		if from == StateDeleted {
			return StateDeleted, fmt.Errorf("%w: %s is terminal", ErrInvalidTransition, from)
		}
		return StateApproved, nil
	case ActionDelete:
		return StateDeleted, nil
	case ActionUnapprove:
		if from == StatePending {
			return from, fmt.Errorf("%w: unapprove from %s", ErrInvalidTransition, from)
		}
		return StateDeleted, nil
	default:
		return from, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}

// Machine applies transitions to the store. The current state is checked
// against Transition, then the write is a single store statement that
// re-checks the state, so a concurrent delete always wins.
type Machine struct {
	store   store.Store
	objects storage.ObjectStore
}

// New builds a Machine. objects may be nil, in which case stored bytes are
// left in place.
func New(s store.Store, objects storage.ObjectStore) *Machine {
	return &Machine{store: s, objects: objects}
}

// current loads the state of id. A missing row is deleted: rows are removed
// on delete and ids are never reused.
func (m *Machine) current(ctx context.Context, id int64) (State, error) {
	photo, ok, err := m.store.GetPhoto(ctx, id)
	if err != nil {
		return "", fmt.Errorf("get photo %d: %w", id, err)
	}
	if !ok {
		return StateDeleted, nil
	}
	return StateOf(photo), nil
}

// Apply runs one action on one id and returns the resulting state.
func (m *Machine) Apply(ctx context.Context, action Action, id int64) (State, error) {
	from, err := m.current(ctx, id)
	if err != nil {
		return "", err
	}
	to, err := Transition(from, action)
	if err != nil {
		if from == StateDeleted {
			return from, ErrNotFound
		}
		return from, err
	}
	if from == to {
		return to, nil
	}

	switch action {
	case ActionApprove:
		ok, err := m.store.ApprovePhoto(ctx, id)
		if err != nil {
			return from, fmt.Errorf("approve photo %d: %w", id, err)
		}
		if !ok {
			return StateDeleted, ErrNotFound
		}
	case ActionDelete:
		photo, ok, err := m.store.DeletePhoto(ctx, id)
		if err != nil {
			return from, fmt.Errorf("delete photo %d: %w", id, err)
		}
		if ok {
			m.discardObject(ctx, photo)
		}
	case ActionUnapprove:
		photo, ok, err := m.store.DeleteApprovedPhoto(ctx, id)
		if err != nil {
			return from, fmt.Errorf("unapprove photo %d: %w", id, err)
		}
		if ok {
			m.discardObject(ctx, photo)
		}
	}
	return to, nil
}

// Approve moves a pending photo to approved. Approving twice is a no-op; a
// missing id is ErrNotFound.
func (m *Machine) Approve(ctx context.Context, id int64) error {
	_, err := m.Apply(ctx, ActionApprove, id)
	return err
}

// Delete removes a photo in any state. A missing id is a no-op.
func (m *Machine) Delete(ctx context.Context, id int64) error {
	_, err := m.Apply(ctx, ActionDelete, id)
	return err
}

// Unapprove removes an approved photo. Pending photos are rejected with
// ErrInvalidTransition; a photo that is already gone is a no-op.
func (m *Machine) Unapprove(ctx context.Context, id int64) error {
	_, err := m.Apply(ctx, ActionUnapprove, id)
	return err
}

// ApplyVerdict drives the initial transition of a freshly inserted pending
// photo and returns the resulting state. Unsure leaves it pending.
func (m *Machine) ApplyVerdict(ctx context.Context, id int64, verdict domain.Verdict) (State, error) {
	switch verdict {
	case domain.VerdictSafe:
		return m.Apply(ctx, ActionApprove, id)
	case domain.VerdictUnsafe:
		return m.Apply(ctx, ActionDelete, id)
	default:
		return m.current(ctx, id)
	}
}

// Failure is one id a bulk action could not apply.
type Failure struct {
	ID    int64  `json:"id"`
	Error string `json:"error"`
}

// BulkResult partitions the requested ids. Successes are never rolled back.
type BulkResult struct {
	Succeeded []int64   `json:"succeeded"`
	Failed    []Failure `json:"failed"`
}

// OK reports whether every id succeeded.
func (r BulkResult) OK() bool {
	return len(r.Failed) == 0
}

// Bulk applies action to every distinct id concurrently. There is no
// ordering across ids.
func (m *Machine) Bulk(ctx context.Context, action Action, ids []int64) BulkResult {
	unique := dedupe(ids)
	errs := make([]error, len(unique))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bulkConcurrency)
	for i, id := range unique {
		i, id := i, id
		g.Go(func() error {
			_, errs[i] = m.Apply(gctx, action, id)
			return nil
		})
	}
	_ = g.Wait()

	res := BulkResult{Succeeded: []int64{}, Failed: []Failure{}}
	for i, id := range unique {
		if errs[i] != nil {
			slog.Warn("approval bulk item failed", "action", action, "id", id, "err", errs[i])
			res.Failed = append(res.Failed, Failure{ID: id, Error: errs[i].Error()})
			continue
		}
		res.Succeeded = append(res.Succeeded, id)
	}
	sort.Slice(res.Succeeded, func(i, j int) bool { return res.Succeeded[i] < res.Succeeded[j] })
	sort.Slice(res.Failed, func(i, j int) bool { return res.Failed[i].ID < res.Failed[j].ID })
	return res
}

func (m *Machine) discardObject(ctx context.Context, photo domain.Photo) {
	if m.objects == nil || photo.ObjectKey == "" {
		return
	}
	if err := m.objects.Delete(ctx, photo.ObjectKey); err != nil {
		slog.Warn("discard photo object failed", "id", photo.ID, "object_key", photo.ObjectKey, "err", err)
	}
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
