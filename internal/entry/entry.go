package entry

import (
	"context"
	"errors"
)

// ErrNotFound covers both a missing entry and an entry owned by someone
// else. The two are deliberately indistinguishable so the API never
// leaks whether a foreign record exists.
var ErrNotFound = errors.New("entry: not found")

// Entry is one coffee journal record. OwnerKey is stamped from the
// authenticated session's external subject at creation and is immutable;
// it is excluded from JSON entirely, so a forged owner field in a client
// payload simply does not parse into anything.
type Entry struct {
	ID       string `json:"id"`
	OwnerKey string `json:"-"`

	CreatedAt  string `json:"created_at"`
	BrewDate   string `json:"brew_date"`
	CoffeeName string `json:"coffee_name"`

	Roastery   string `json:"roastery,omitempty"`
	Origin     string `json:"origin,omitempty"`
	Process    string `json:"process,omitempty"`
	BrewMethod string `json:"brew_method,omitempty"`
	GrindSize  string `json:"grind_size,omitempty"`

	WaterTemp   *float64 `json:"water_temp,omitempty"`
	Dose        *float64 `json:"dose,omitempty"`
	YieldAmount *float64 `json:"yield,omitempty"`
	BrewTime    string   `json:"brew_time,omitempty"`

	Aroma      []string `json:"aroma"`
	Flavor     []string `json:"flavor"`
	Aftertaste []string `json:"aftertaste"`
	Defects    []string `json:"defects"`

	Acidity    *int `json:"acidity,omitempty"`
	Sweetness  *int `json:"sweetness,omitempty"`
	Bitterness *int `json:"bitterness,omitempty"`
	Body       *int `json:"body,omitempty"`
	Balance    *int `json:"balance,omitempty"`
	Overall    *int `json:"overall,omitempty"`

	Notes string `json:"notes,omitempty"`
}

// Store persists entries. Every operation is scoped to an owner key;
// reads and deletes of entries the owner does not hold yield ErrNotFound.
type Store interface {
	ListByOwner(ctx context.Context, owner string) ([]Entry, error)

	// Get returns the entry only when it exists and belongs to owner.
	Get(ctx context.Context, id string, owner string) (*Entry, error)

	// UpsertBatch inserts or updates the given entries, all owned by the
	// same caller. If any id is held by another owner, nothing is
	// written and ErrNotFound is returned.
	UpsertBatch(ctx context.Context, entries []Entry) error

	// Delete removes the entry when it exists and belongs to owner.
	Delete(ctx context.Context, id string, owner string) error
}
