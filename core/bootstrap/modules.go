package bootstrap

import "context"

// Seeder writes reference data once storage of type S is open.
type Seeder[S any] interface {
	Seed(ctx context.Context, storage S) error
}

// SeederFunc adapts a function to Seeder.
type SeederFunc[S any] func(ctx context.Context, storage S) error

func (f SeederFunc[S]) Seed(ctx context.Context, storage S) error {
	return f(ctx, storage)
}

// NamedSeeder labels a seeder in startup logs. Seeders run in slice order.
type NamedSeeder[S any] struct {
	Name   string
	Seeder Seeder[S]
}
