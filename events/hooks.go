package events

import "github.com/sirupsen/logrus"

// Hooks collects side effects registered during a transaction and runs
// them only once the transaction has committed. Delivery is best-effort:
// a failing hook is logged and the rest still run.
type Hooks struct {
	log   *logrus.Logger
	hooks []func() error
}

func NewHooks(log *logrus.Logger) *Hooks {
	return &Hooks{log: log}
}

func (h *Hooks) Register(hook func() error) {
	h.hooks = append(h.hooks, hook)
}

// RunAfterCommit fires all registered hooks and clears the registry.
func (h *Hooks) RunAfterCommit() {
	hooks := h.hooks
	h.hooks = nil
	for _, hook := range hooks {
		if err := hook(); err != nil {
			h.log.WithError(err).Warn("Post-commit hook failed")
		}
	}
}

// Discard drops registered hooks without running them; called on rollback.
func (h *Hooks) Discard() {
	h.hooks = nil
}
