package common

import "errors"

var ErrModulePaused = errors.New("module paused")

// PauseView reports whether an operator has paused a marketplace module.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard fails with ErrModulePaused when module is paused.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// PauseSet is a static PauseView built from configuration.
type PauseSet map[string]bool

// NewPauseSet builds a PauseSet from module names.
func NewPauseSet(modules []string) PauseSet {
	set := make(PauseSet, len(modules))
	for _, m := range modules {
		if m != "" {
			set[m] = true
		}
	}
	return set
}

func (p PauseSet) IsPaused(module string) bool { return p[module] }
