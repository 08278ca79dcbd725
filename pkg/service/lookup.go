package service

import (
	"context"
	"strconv"
	"time"

	"github.com/zfogg/circle/cli/pkg/cache"
	"github.com/zfogg/circle/cli/pkg/db"
	clierrors "github.com/zfogg/circle/cli/pkg/errors"
	"github.com/zfogg/circle/cli/pkg/models"
	"github.com/zfogg/circle/cli/pkg/resource"
)

// Lookups are the reference tables activities point into
type Lookups struct {
	Domains     []models.Domain     `json:"domains"`
	Functions   []models.Function   `json:"functions"`
	Occupations []models.Occupation `json:"occupations"`
}

// LookupService serves domains, functions and occupations. The tables
// change rarely, so they are never polled.
type LookupService struct {
	db      *db.Client
	lookups *resource.Resource[*Lookups]
}

const lookupsKey = "lookups"

// NewLookupService creates a lookup service cached in c
func NewLookupService(client *db.Client, c *cache.Cache[*Lookups], opts ...resource.Option) *LookupService {
	ls := &LookupService{db: client}
	ls.lookups = resource.New[*Lookups]("lookups", c, resource.FetchFunc[*Lookups](ls.fetch), time.Hour, opts...)
	return ls
}

// All returns every lookup table
func (ls *LookupService) All(ctx context.Context) (*Lookups, error) {
	return ls.lookups.Load(ctx, lookupsKey)
}

// Domains lists domains by name
func (ls *LookupService) Domains(ctx context.Context) ([]models.Domain, error) {
	l, err := ls.All(ctx)
	if err != nil {
		return nil, err
	}
	return l.Domains, nil
}

// Functions lists functions, restricted to domainID when it is positive
func (ls *LookupService) Functions(ctx context.Context, domainID int) ([]models.Function, error) {
	l, err := ls.All(ctx)
	if err != nil {
		return nil, err
	}
	if domainID <= 0 {
		return l.Functions, nil
	}
	out := make([]models.Function, 0, len(l.Functions))
	for _, f := range l.Functions {
		if f.DomainID == domainID {
			out = append(out, f)
		}
	}
	return out, nil
}

// Occupations lists occupations by name
func (ls *LookupService) Occupations(ctx context.Context) ([]models.Occupation, error) {
	l, err := ls.All(ctx)
	if err != nil {
		return nil, err
	}
	return l.Occupations, nil
}

// Close stops the lookup resource
func (ls *LookupService) Close() {
	ls.lookups.Close()
}

// validate checks that the selected ids exist. Zero ids are skipped.
func (ls *LookupService) validate(ctx context.Context, domainID, functionID, occupationID int) error {
	l, err := ls.All(ctx)
	if err != nil {
		return err
	}

	if domainID > 0 && !containsID(len(l.Domains), func(i int) int { return l.Domains[i].ID }, domainID) {
		return clierrors.ValidationError("domain", "unknown id "+strconv.Itoa(domainID))
	}
	if functionID > 0 && !containsID(len(l.Functions), func(i int) int { return l.Functions[i].ID }, functionID) {
		return clierrors.ValidationError("function", "unknown id "+strconv.Itoa(functionID))
	}
	if occupationID > 0 && !containsID(len(l.Occupations), func(i int) int { return l.Occupations[i].ID }, occupationID) {
		return clierrors.ValidationError("occupation", "unknown id "+strconv.Itoa(occupationID))
	}
	return nil
}

func (ls *LookupService) fetch(ctx context.Context, _ string) (*Lookups, error) {
	var l Lookups
	if err := ls.db.From(models.TableDomains).Order("name", true).Execute(ctx, &l.Domains); err != nil {
		return nil, err
	}
	if err := ls.db.From(models.TableFunctions).Order("name", true).Execute(ctx, &l.Functions); err != nil {
		return nil, err
	}
	if err := ls.db.From(models.TableOccupations).Order("name", true).Execute(ctx, &l.Occupations); err != nil {
		return nil, err
	}
	return &l, nil
}

func containsID(n int, id func(int) int, want int) bool {
	for i := 0; i < n; i++ {
		if id(i) == want {
			return true
		}
	}
	return false
}
