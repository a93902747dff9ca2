package harness

import (
	"fmt"

	"github.com/roach88/catom/internal/change"
	"github.com/roach88/catom/internal/containers"
)

// container runs a container step. The returned value is whatever the
// operation yields (the popped item for pop, the stored value for
// setdefault, a [key, value] pair for popitem), or nil.
func (h *Harness) container(c *ContainerStep) (any, error) {
	v, err := h.inst.Get(c.Member)
	if err != nil {
		return nil, err
	}
	op := change.Op(c.Op)
	switch target := v.(type) {
	case *containers.List:
		return listOp(target, op, c.Args)
	case *containers.Dict:
		return dictOp(target, op, c.Args)
	case *containers.Set:
		return setOp(target, op, c.Args)
	}
	return nil, fmt.Errorf("member %q holds %T, not a container", c.Member, v)
}

func listOp(l *containers.List, op change.Op, args []any) (any, error) {
	switch op {
	case change.OpAppend:
		if err := arity(op, args, 1); err != nil {
			return nil, err
		}
		return nil, l.Append(args[0])
	case change.OpInsert:
		i, err := indexArg(op, args, 2)
		if err != nil {
			return nil, err
		}
		return nil, l.Insert(i, args[1])
	case change.OpExtend:
		return nil, l.Extend(args...)
	case change.OpSetItem:
		i, err := indexArg(op, args, 2)
		if err != nil {
			return nil, err
		}
		return nil, l.Set(i, args[1])
	case change.OpDelItem:
		i, err := indexArg(op, args, 1)
		if err != nil {
			return nil, err
		}
		return nil, l.Delete(i)
	case change.OpPop:
		i := -1
		if len(args) > 0 {
			var err error
			if i, err = indexArg(op, args, 1); err != nil {
				return nil, err
			}
		}
		return l.Pop(i)
	case change.OpRemove:
		if err := arity(op, args, 1); err != nil {
			return nil, err
		}
		return nil, l.Remove(args[0])
	case change.OpClear:
		return nil, l.Clear()
	case change.OpSort:
		return nil, l.Sort(nil)
	case change.OpReverse:
		return nil, l.Reverse()
	}
	return nil, fmt.Errorf("list does not support %q", op)
}

func dictOp(d *containers.Dict, op change.Op, args []any) (any, error) {
	switch op {
	case change.OpSetItem:
		if err := arity(op, args, 2); err != nil {
			return nil, err
		}
		return nil, d.Set(args[0], args[1])
	case change.OpDelItem:
		if err := arity(op, args, 1); err != nil {
			return nil, err
		}
		return nil, d.Delete(args[0])
	case change.OpPop:
		if err := arity(op, args, 1); err != nil {
			return nil, err
		}
		return d.Pop(args[0])
	case change.OpPopItem:
		k, v, err := d.PopItem()
		if err != nil {
			return nil, err
		}
		return []any{k, v}, nil
	case change.OpSetDefault:
		if err := arity(op, args, 2); err != nil {
			return nil, err
		}
		return d.SetDefault(args[0], args[1])
	case change.OpUpdate:
		if err := arity(op, args, 1); err != nil {
			return nil, err
		}
		entries, ok := containers.Entries(args[0])
		if !ok {
			return nil, fmt.Errorf("update wants a mapping, got %T", args[0])
		}
		return nil, d.Update(entries...)
	case change.OpClear:
		return nil, d.Clear()
	}
	return nil, fmt.Errorf("dict does not support %q", op)
}

func setOp(s *containers.Set, op change.Op, args []any) (any, error) {
	switch op {
	case change.OpAdd:
		if err := arity(op, args, 1); err != nil {
			return nil, err
		}
		return nil, s.Add(args[0])
	case change.OpDiscard:
		if err := arity(op, args, 1); err != nil {
			return nil, err
		}
		return nil, s.Discard(args[0])
	case change.OpRemove:
		if err := arity(op, args, 1); err != nil {
			return nil, err
		}
		return nil, s.Remove(args[0])
	case change.OpPop:
		return s.Pop()
	case change.OpUpdate:
		return nil, s.Update(args...)
	case change.OpClear:
		return nil, s.Clear()
	}
	return nil, fmt.Errorf("set does not support %q", op)
}

func arity(op change.Op, args []any, n int) error {
	if len(args) != n {
		return fmt.Errorf("%s takes %d argument(s), got %d", op, n, len(args))
	}
	return nil
}

// indexArg checks the arity and returns args[0] as an index.
func indexArg(op change.Op, args []any, n int) (int, error) {
	if err := arity(op, args, n); err != nil {
		return 0, err
	}
	i, ok := args[0].(int)
	if !ok {
		return 0, fmt.Errorf("%s index must be an integer, got %T", op, args[0])
	}
	return i, nil
}
