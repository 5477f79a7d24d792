package services

import (
	"context"
	"strings"
	"time"

	"github.com/CrowderSoup/taskpulse/database"
	"go.uber.org/zap"
)

type CreateClientInput struct {
	Name        string                `json:"name"`
	ContactName string                `json:"contactName"`
	Email       string                `json:"email"`
	Phone       string                `json:"phone"`
	Description string                `json:"description"`
	Status      database.ClientStatus `json:"status"`
	Links       []string              `json:"links"`
}

type UpdateClientInput struct {
	Name        *string                `json:"name"`
	ContactName *string                `json:"contactName"`
	Email       *string                `json:"email"`
	Phone       *string                `json:"phone"`
	Description *string                `json:"description"`
	Status      *database.ClientStatus `json:"status"`
	Links       *[]string              `json:"links"`
}

type ClientService struct {
	repo Repository
	log  *zap.Logger
	now  func() time.Time
}

func NewClientService(repo Repository, logger *zap.Logger) *ClientService {
	return &ClientService{
		repo: repo,
		log:  logger,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *ClientService) List(ctx context.Context) ([]database.Client, error) {
	return s.repo.Clients(ctx)
}

func (s *ClientService) Get(ctx context.Context, id string) (database.Client, error) {
	clients, err := s.repo.Clients(ctx)
	if err != nil {
		return database.Client{}, err
	}
	if idx := indexOfClient(clients, id); idx >= 0 {
		return clients[idx], nil
	}
	return database.Client{}, notFound("client")
}

func (s *ClientService) Create(ctx context.Context, actor Actor, in CreateClientInput) (database.Client, error) {
	name := cleanText(in.Name)
	email := strings.TrimSpace(in.Email)
	if name == "" || email == "" {
		return database.Client{}, invalid("all fields required: name and email")
	}
	if !strings.Contains(email, "@") {
		return database.Client{}, invalid("invalid email address")
	}
	status := in.Status
	if status == "" {
		status = database.ClientActive
	}
	if !status.Valid() {
		return database.Client{}, invalid("invalid status %q", status)
	}
	links, err := validLinks(in.Links)
	if err != nil {
		return database.Client{}, err
	}

	now := s.now()
	client := database.Client{
		ID:          newID(),
		Name:        name,
		ContactName: cleanText(in.ContactName),
		Email:       email,
		Phone:       strings.TrimSpace(in.Phone),
		Description: cleanText(in.Description),
		Status:      status,
		Links:       links,
		CreatedBy:   actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	clients, err := s.repo.Clients(ctx)
	if err != nil {
		return database.Client{}, err
	}
	clients = append(clients, client)
	if err := s.repo.SaveClients(ctx, clients); err != nil {
		return database.Client{}, err
	}

	s.log.Info("client created", zap.String("client_id", client.ID), zap.String("actor_id", actor.ID))
	return client, nil
}

func (s *ClientService) Update(ctx context.Context, id string, in UpdateClientInput) (database.Client, error) {
	clients, err := s.repo.Clients(ctx)
	if err != nil {
		return database.Client{}, err
	}
	idx := indexOfClient(clients, id)
	if idx < 0 {
		return database.Client{}, notFound("client")
	}
	c := clients[idx]

	if in.Name != nil {
		if c.Name = cleanText(*in.Name); c.Name == "" {
			return database.Client{}, invalid("name cannot be empty")
		}
	}
	if in.Email != nil {
		email := strings.TrimSpace(*in.Email)
		if !strings.Contains(email, "@") {
			return database.Client{}, invalid("invalid email address")
		}
		c.Email = email
	}
	if in.ContactName != nil {
		c.ContactName = cleanText(*in.ContactName)
	}
	if in.Phone != nil {
		c.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.Description != nil {
		c.Description = cleanText(*in.Description)
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return database.Client{}, invalid("invalid status %q", *in.Status)
		}
		c.Status = *in.Status
	}
	if in.Links != nil {
		if c.Links, err = validLinks(*in.Links); err != nil {
			return database.Client{}, err
		}
	}
	c.UpdatedAt = s.now()

	clients[idx] = c
	if err := s.repo.SaveClients(ctx, clients); err != nil {
		return database.Client{}, err
	}
	return c, nil
}

// Delete removes a client. Projects and tasks keep their dangling clientId;
// enhanced views resolve it to null.
func (s *ClientService) Delete(ctx context.Context, actor Actor, id string) error {
	clients, err := s.repo.Clients(ctx)
	if err != nil {
		return err
	}
	idx := indexOfClient(clients, id)
	if idx < 0 {
		return notFound("client")
	}

	clients = append(clients[:idx], clients[idx+1:]...)
	if err := s.repo.SaveClients(ctx, clients); err != nil {
		return err
	}
	s.log.Info("client deleted", zap.String("client_id", id), zap.String("actor_id", actor.ID))
	return nil
}

func indexOfClient(clients []database.Client, id string) int {
	for i, c := range clients {
		if c.ID == id {
			return i
		}
	}
	return -1
}
