// Package router maps application phases to the screen the presentation
// layer should show. It is the boundary of the core: everything past the
// Screen value (layout, rendering, navigation) belongs to the UI.
package router

import (
	"sync"

	"github.com/swypapp/sessionkit/session"
)

// Screen identifies a top-level screen.
type Screen string

const (
	ScreenLogin           Screen = "login"
	ScreenTerms           Screen = "terms"
	ScreenRegisterFriends Screen = "register_friends"
	ScreenSetFrequency    Screen = "set_frequency"
	ScreenHome            Screen = "home"
)

// ScreenFor maps a phase to its screen. Total over all phases; unknown
// values fall back to the login screen, the only safe default.
func ScreenFor(p session.Phase) Screen {
	switch p {
	case session.PhaseNeedsConsent:
		return ScreenTerms
	case session.PhaseNeedsOnboardingImport:
		return ScreenRegisterFriends
	case session.PhaseNeedsOnboardingFrequency:
		return ScreenSetFrequency
	case session.PhaseSteadyState:
		return ScreenHome
	default:
		return ScreenLogin
	}
}

// Router consumes a controller's phase feed and exposes the current screen.
type Router struct {
	controller *session.Controller
	sub        *session.Subscription

	mu      sync.RWMutex
	current Screen
	done    chan struct{}
}

// New starts a Router tracking the controller's phase. Call Close when the
// UI shuts down.
func New(controller *session.Controller) *Router {
	r := &Router{
		controller: controller,
		sub:        controller.Subscribe(),
		current:    ScreenFor(controller.Phase()),
		done:       make(chan struct{}),
	}
	go r.follow()
	return r
}

// Current returns the screen for the latest observed phase.
func (r *Router) Current() Screen {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Close stops following phase changes.
func (r *Router) Close() {
	r.controller.Unsubscribe(r.sub)
	<-r.done
}

func (r *Router) follow() {
	defer close(r.done)
	for phase := range r.sub.C() {
		r.mu.Lock()
		r.current = ScreenFor(phase)
		r.mu.Unlock()
	}
}
