package resolver

import (
	"context"
	"strconv"
	"strings"
	"unicode/utf8"

	"authentik-admin/internal/domain"
	"authentik-admin/internal/metrics"
)

// PendingUsername is used when neither name part is known.
const PendingUsername = "pending"

// Directory is the part of the directory cache the resolver needs.
type Directory interface {
	Exists(username string) bool
	Refresh(ctx context.Context) error
}

// DeriveBase builds the canonical username candidate from name parts:
// "first-l" when both are present, otherwise whichever part is present, and
// "pending" when neither is.
func DeriveBase(firstName, lastName string) string {
	first := strings.TrimSpace(firstName)
	last := strings.TrimSpace(lastName)

	var base string
	switch {
	case first != "" && last != "":
		r, _ := utf8.DecodeRuneInString(last)
		base = strings.ToLower(first) + "-" + strings.ToLower(string(r))
	case first != "":
		base = strings.ToLower(first)
	case last != "":
		base = strings.ToLower(last)
	default:
		return PendingUsername
	}
	return strings.ReplaceAll(base, " ", "-")
}

// Resolver finds a username that is free in the directory.
type Resolver struct {
	dir     Directory
	metrics *metrics.Metrics
}

func New(dir Directory, m *metrics.Metrics) *Resolver {
	return &Resolver{dir: dir, metrics: m}
}

// ResolveUnique returns base when it is free. Otherwise it refreshes the
// directory once and probes base-2, base-3, ... until a free name is found.
// A failed refresh does not abort resolution; the result is marked Stale.
func (r *Resolver) ResolveUnique(ctx context.Context, base string) domain.Resolution {
	if !r.dir.Exists(base) {
		r.metrics.Resolved(0)
		return domain.Resolution{Username: base}
	}

	res := domain.Resolution{}
	if err := r.dir.Refresh(ctx); err != nil {
		res.Stale = true
	}

	candidate := base
	for n := 2; r.dir.Exists(candidate); n++ {
		candidate = base + "-" + strconv.Itoa(n)
		res.Probes++
	}

	res.Username = candidate
	r.metrics.Resolved(res.Probes)
	return res
}
