package eventwire

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/eventwire/eventwire/typeref"
)

// Shared test hierarchy:
//
//	Item <- Book <- Novel
//	Container[T] <- List[T]
var (
	testItem      = typeref.NewClass("Item")
	testBook      = typeref.NewClass("Book", typeref.ClassRef(testItem))
	testNovel     = typeref.NewClass("Novel", typeref.ClassRef(testBook))
	testContainer = typeref.NewGenericClass("Container", []string{"T"})
	testList      = typeref.NewGenericClass("List", []string{"T"},
		typeref.Parameterized(testContainer, typeref.Variable("T")))
)

// bookEvent is a payload advertising Book as its dynamic class.
type bookEvent struct{ title string }

func (bookEvent) EventClass() *typeref.Class { return testBook }

// novelEvent is a payload advertising Novel as its dynamic class.
type novelEvent struct{ title string }

func (novelEvent) EventClass() *typeref.Class { return testNovel }

func newTestBus(opts ...Option) *Bus {
	opts = append([]Option{WithLogger(slog.Default())}, opts...)
	return New(opts...)
}

// countingHandler returns a handler that counts invocations.
func countingHandler(count *atomic.Int64) NotifyFunc {
	return func(context.Context, any, EventMetadata) error {
		count.Add(1)
		return nil
	}
}

// orderedHandler returns a handler recording its tag into order.
func orderedHandler(tag string, order *[]string) NotifyFunc {
	return func(context.Context, any, EventMetadata) error {
		*order = append(*order, tag)
		return nil
	}
}

func mustObserver(cfg ObserverConfig) *Observer {
	observer, err := NewObserver(cfg)
	if err != nil {
		panic(err)
	}
	return observer
}

func nopHandler(context.Context, any, EventMetadata) error { return nil }
