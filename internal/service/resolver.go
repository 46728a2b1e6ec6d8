package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/godswillmedia-source/stylesync-pwa/internal/domain"
	"github.com/godswillmedia-source/stylesync-pwa/internal/repository"
)

// ClientResolver maps extracted customer names onto the owner's roster.
// Matching order: exact (canonical or alias, case-insensitive), then
// partial against canonical names, then create. Partial hits record the
// new spelling as an alias, so the roster self-heals across the source
// platform's inconsistent formatting.
type ClientResolver struct {
	clients *repository.ClientRepo
}

func NewClientResolver(clients *repository.ClientRepo) *ClientResolver {
	return &ClientResolver{clients: clients}
}

func (r *ClientResolver) Resolve(ctx context.Context, ownerID, extractedName string) (*domain.Client, error) {
	name := strings.TrimSpace(extractedName)
	lower := strings.ToLower(name)

	roster, err := r.clients.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	// exact, canonical or any alias
	for i := range roster {
		c := &roster[i]
		if strings.EqualFold(c.CanonicalName, name) {
			return c, nil
		}
		for _, a := range c.Aliases {
			if strings.EqualFold(a, name) {
				return c, nil
			}
		}
	}

	// partial, either direction (handles a dropped middle name etc.);
	// the extracted spelling becomes an alias of the match
	for i := range roster {
		c := &roster[i]
		canon := strings.ToLower(c.CanonicalName)
		if strings.Contains(canon, lower) || strings.Contains(lower, canon) {
			if !hasAlias(c, name) {
				c.Aliases = append(c.Aliases, name)
				if err := r.clients.Save(ctx, c); err != nil {
					return nil, err
				}
			}
			return c, nil
		}
	}

	now := time.Now().UTC()
	c := &domain.Client{
		ID:            uuid.NewString(),
		OwnerID:       ownerID,
		CanonicalName: name,
		Aliases:       datatypes.JSONSlice[string]{},
		FirstSeen:     now,
		LastSeen:      now,
	}
	if err := r.clients.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func hasAlias(c *domain.Client, name string) bool {
	for _, a := range c.Aliases {
		if strings.EqualFold(a, name) {
			return true
		}
	}
	return false
}
