package database

import (
	"context"
	"encoding/json"
	"fmt"
)

// Store gives typed access to the collections held by a Backend. Each call
// reads or writes a whole collection; there is no locking between a load and
// the save that follows it, so concurrent writers are last-writer-wins.
type Store struct {
	backend Backend
}

func NewStore(backend Backend) *Store {
	return &Store{backend: backend}
}

func (s *Store) Users(ctx context.Context) ([]User, error) {
	return loadCollection[User](ctx, s.backend, UsersCollection)
}

func (s *Store) SaveUsers(ctx context.Context, users []User) error {
	return saveCollection(ctx, s.backend, UsersCollection, users)
}

func (s *Store) Tasks(ctx context.Context) ([]Task, error) {
	return loadCollection[Task](ctx, s.backend, TasksCollection)
}

func (s *Store) SaveTasks(ctx context.Context, tasks []Task) error {
	return saveCollection(ctx, s.backend, TasksCollection, tasks)
}

func (s *Store) Projects(ctx context.Context) ([]Project, error) {
	return loadCollection[Project](ctx, s.backend, ProjectsCollection)
}

func (s *Store) SaveProjects(ctx context.Context, projects []Project) error {
	return saveCollection(ctx, s.backend, ProjectsCollection, projects)
}

func (s *Store) Clients(ctx context.Context) ([]Client, error) {
	return loadCollection[Client](ctx, s.backend, ClientsCollection)
}

func (s *Store) SaveClients(ctx context.Context, clients []Client) error {
	return saveCollection(ctx, s.backend, ClientsCollection, clients)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

func (s *Store) Close() error {
	return s.backend.Close()
}

func loadCollection[T any](ctx context.Context, b Backend, name string) ([]T, error) {
	data, err := b.Load(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", name, err)
	}

	items := []T{}
	if len(data) == 0 {
		return items, nil
	}
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", name, err)
	}
	return items, nil
}

func saveCollection[T any](ctx context.Context, b Backend, name string, items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}
	if err := b.Save(ctx, name, data); err != nil {
		return fmt.Errorf("failed to save %s: %w", name, err)
	}
	return nil
}
