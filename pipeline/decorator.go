package pipeline

import "github.com/surveyforge/surveyforge/pipeline/emit"

// procFunc is the shape every process-layer decorator wraps: given an
// input, produce an output or an error.
type procFunc func(in any) (any, error)

// procDecorator wraps a procFunc with additional behavior. Each decorator
// declares a sortKey that fixes its position in the stack independent of
// registration order, so user-supplied middleware can never accidentally
// shift the two mandatory wrappers out of place.
type procDecorator struct {
	name    string
	sortKey int
	wrap    func(next procFunc) procFunc
}

// Sort keys for the process-layer stack, lowest first. The stack is applied
// outermost-last: building from the innermost (the raw processing function)
// outward, decorators with a higher sortKey wrap decorators with a lower
// one. The skip-error wrapper must end up outermost of everything, and the
// labelling wrapper outermost of every non-error wrapper, so both receive
// the highest keys in the stack.
const (
	sortKeyUser        = 0 // user-supplied pre-process middleware
	sortKeyLabel       = 100
	sortKeySkipErrors  = 200
)

// buildProcChain orders decorators by sortKey (ascending) and composes them
// around base, innermost (base) to outermost (highest sortKey last).
func buildProcChain(base procFunc, decorators []procDecorator) procFunc {
	ordered := make([]procDecorator, len(decorators))
	copy(ordered, decorators)
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && ordered[j-1].sortKey > ordered[j].sortKey; j-- {
			ordered[j-1], ordered[j] = ordered[j], ordered[j-1]
		}
	}
	fn := base
	for _, d := range ordered {
		fn = d.wrap(fn)
	}
	return fn
}

// skipErrorsDecorator forwards a *ProcessingError input unchanged instead
// of handing it to next. It is always given sortKeySkipErrors so it is the
// outermost wrapper on any node with SkipErrors set.
func skipErrorsDecorator() procDecorator {
	return procDecorator{
		name:    "skip-errors",
		sortKey: sortKeySkipErrors,
		wrap: func(next procFunc) procFunc {
			return func(in any) (any, error) {
				if pe, ok := in.(*ProcessingError); ok {
					return pe, nil
				}
				return next(in)
			}
		},
	}
}

// labelDecorator tags every successful production with the producing
// node's name by emitting an EventProduced through the node's emitter.
// A *ProcessingError result is skipped here since wrapProc already
// emitted its own EventError for it; emitting both would label a failure
// as a production.
func labelDecorator(name string, emitter emit.Emitter) procDecorator {
	return procDecorator{
		name:    "label",
		sortKey: sortKeyLabel,
		wrap: func(next procFunc) procFunc {
			return func(in any) (any, error) {
				out, err := next(in)
				if err == nil {
					if _, isErr := out.(*ProcessingError); !isErr {
						emitter.Emit(emit.Event{Type: emit.EventProduced, Node: name})
					}
				}
				return out, err
			}
		},
	}
}
