package reconcile

import "context"

type (
	// Reader reads a point-in-time subtree. A missing path yields a nil value, not an error.
	Reader interface {
		Get(ctx context.Context, path string) (interface{}, error)
	}

	// Updater applies values, keyed by paths relative to path, as one atomic multi-path update.
	// A nil value deletes the addressed node.
	Updater interface {
		Update(ctx context.Context, path string, values map[string]interface{}) error
	}

	// Subscriber registers onChange for changes at or under path.
	// onChange is called once right after registration, then after every change, from a goroutine
	// owned by the store (never synchronously from Subscribe) and never concurrently for one subscription.
	// The payload is the new subtree when the store has it at hand, nil otherwise.
	Subscriber interface {
		Subscribe(ctx context.Context, path string, onChange func(payload map[string]interface{})) (Subscription, error)
	}

	Subscription interface {
		// Cancel deregisters the listener. It may be called more than once.
		Cancel() error
	}

	// Store is the external hierarchical document store the driver reconciles.
	Store interface {
		Reader
		Updater
		Subscriber
	}
)
