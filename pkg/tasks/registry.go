package tasks

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrUnknownApp is returned for an index or name not in the registry.
	ErrUnknownApp = errors.New("unknown app")

	// ErrDuplicateApp is returned when registering a name twice.
	ErrDuplicateApp = errors.New("app already registered")
)

// App is one entry of the application table. E is the environment handed
// to Run.
type App[E any] struct {
	Name        string
	Description string
	Run         func(ctx context.Context, env E) error
}

// Registry is the ordered, static application table. Indices are stable
// in registration order.
type Registry[E any] struct {
	apps []App[E]
}

// NewRegistry builds a registry from apps in order.
func NewRegistry[E any](apps ...App[E]) (*Registry[E], error) {
	r := &Registry[E]{}
	for _, app := range apps {
		if err := r.Register(app); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register appends an app.
func (r *Registry[E]) Register(app App[E]) error {
	if app.Name == "" || app.Run == nil {
		return fmt.Errorf("register app %q: missing name or run function", app.Name)
	}
	if _, _, err := r.LookupName(app.Name); err == nil {
		return fmt.Errorf("%w: %s", ErrDuplicateApp, app.Name)
	}
	r.apps = append(r.apps, app)
	return nil
}

// Lookup returns the app at index.
func (r *Registry[E]) Lookup(index int) (App[E], error) {
	if index < 0 || index >= len(r.apps) {
		return App[E]{}, fmt.Errorf("%w: index %d, have %d apps", ErrUnknownApp, index, len(r.apps))
	}
	return r.apps[index], nil
}

// LookupName returns the app with the given name and its index.
func (r *Registry[E]) LookupName(name string) (App[E], int, error) {
	for i, app := range r.apps {
		if app.Name == name {
			return app, i, nil
		}
	}
	return App[E]{}, -1, fmt.Errorf("%w: %q", ErrUnknownApp, name)
}

// List returns the apps in order.
func (r *Registry[E]) List() []App[E] {
	return append([]App[E](nil), r.apps...)
}

// Len returns the number of apps.
func (r *Registry[E]) Len() int {
	return len(r.apps)
}
