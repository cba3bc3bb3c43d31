package common

import "errors"

var ErrModulePaused = errors.New("module paused")

type PauseView interface {
	IsPaused(module string) bool
}

// PauseStore extends PauseView with the ability to toggle a module flag.
type PauseStore interface {
	PauseView
	SetPaused(module string, paused bool) error
}

func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
