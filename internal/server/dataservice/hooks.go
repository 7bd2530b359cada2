package dataservice

import "context"

// Operation names one data service entry point, used to key hooks.
type Operation string

const (
	OpGetAll     Operation = "getAll"
	OpGet        Operation = "get"
	OpCreate     Operation = "create"
	OpCreateBulk Operation = "createBulk"
	OpUpdate     Operation = "update"
	OpDelete     Operation = "delete"
	OpDeleteAll  Operation = "deleteAll"
	OpSearch     Operation = "search"
)

// BeforeHook runs before an operation touches any store. A non-nil error
// aborts the operation before any write happens.
type BeforeHook func(ctx context.Context, op Operation, input any) error

// AfterHook runs after an operation has committed its relational write and
// side effects. A non-nil error propagates to the caller, but the write has
// already happened and is not rolled back.
type AfterHook func(ctx context.Context, op Operation, input, result any) error

// Hooks is an ordered observer chain per operation. Hooks registered via
// AddHooks run after constructor-supplied ones, in registration order.
type Hooks struct {
	Before map[Operation][]BeforeHook
	After  map[Operation][]AfterHook
}

// Merge appends other's hooks to h, preserving order within each operation.
func (h *Hooks) Merge(other Hooks) {
	if h.Before == nil {
		h.Before = make(map[Operation][]BeforeHook)
	}
	if h.After == nil {
		h.After = make(map[Operation][]AfterHook)
	}
	for op, hooks := range other.Before {
		h.Before[op] = append(h.Before[op], hooks...)
	}
	for op, hooks := range other.After {
		h.After[op] = append(h.After[op], hooks...)
	}
}

func (h *Hooks) runBefore(ctx context.Context, op Operation, input any) error {
	for _, hook := range h.Before[op] {
		if err := hook(ctx, op, input); err != nil {
			return err
		}
	}
	return nil
}

func (h *Hooks) runAfter(ctx context.Context, op Operation, input, result any) error {
	for _, hook := range h.After[op] {
		if err := hook(ctx, op, input, result); err != nil {
			return err
		}
	}
	return nil
}
