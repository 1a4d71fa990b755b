// Package membership resolves which users count as insiders. Items authored
// by an insider are internal traffic and are excluded from analysis; events
// authored by an insider are the responses being measured.
package membership

import (
	"context"
	"fmt"
	"strings"

	"github.com/triagestats/triagestats/internal/githubapi"
	"go.uber.org/zap"
)

// MemberLister is the membership service surface consumed by the resolver.
type MemberLister interface {
	ListOrgMembers(ctx context.Context, org string) (githubapi.MembersResult, error)
	ListTeamMembers(ctx context.Context, org, teamSlug string) (githubapi.MembersResult, error)
}

// Config configures membership resolution.
type Config struct {
	Org string
	// TeamsByRepo scopes the insider set per repository. Repos without an
	// entry use the full org member set.
	TeamsByRepo map[string][]string
	Bots        []string
}

// Set answers exclusion and responder-eligibility queries for one repository.
// A user in both a roster and the bot list is excluded; bots never count as
// responders.
type Set struct {
	insiders map[string]struct{}
	bots     map[string]struct{}
}

// Excluded reports whether login's items must be dropped from analysis.
func (s *Set) Excluded(login string) bool {
	key := normalizeLogin(login)
	if _, ok := s.bots[key]; ok {
		return true
	}
	_, ok := s.insiders[key]
	return ok
}

// EligibleResponder reports whether an event by login qualifies as a response.
func (s *Set) EligibleResponder(login string) bool {
	key := normalizeLogin(login)
	if key == "" {
		return false
	}
	if _, ok := s.bots[key]; ok {
		return false
	}
	_, ok := s.insiders[key]
	return ok
}

// Resolver holds the resolved membership sets for one run. Team rosters are
// fetched once per distinct team and cached as instance state, so a team
// referenced by several repositories costs a single call.
type Resolver struct {
	orgMembers map[string]struct{}
	bots       map[string]struct{}
	setsByRepo map[string]*Set
	defaultSet *Set
}

// Resolve fetches org members and configured team rosters up front. An org
// member fetch failure is fatal: defaulting the set in either direction would
// corrupt the metric. A team roster fetch failure is logged and that roster
// treated as empty.
func Resolve(ctx context.Context, lister MemberLister, cfg Config, logger *zap.Logger) (*Resolver, error) {
	if lister == nil {
		return nil, fmt.Errorf("member lister is required")
	}
	if strings.TrimSpace(cfg.Org) == "" {
		return nil, fmt.Errorf("organization is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	orgResult, err := lister.ListOrgMembers(ctx, cfg.Org)
	if err != nil {
		return nil, fmt.Errorf("list org members: %w", err)
	}
	if orgResult.Status != githubapi.EndpointStatusOK {
		return nil, fmt.Errorf("list org members: unexpected status %s", orgResult.Status)
	}

	resolver := &Resolver{
		orgMembers: loginSet(orgResult.Logins),
		bots:       loginSet(cfg.Bots),
		setsByRepo: make(map[string]*Set, len(cfg.TeamsByRepo)),
	}
	resolver.defaultSet = &Set{
		insiders: resolver.orgMembers,
		bots:     resolver.bots,
	}
	logger.Info("resolved organization members",
		zap.String("org", cfg.Org),
		zap.Int("members", len(resolver.orgMembers)),
		zap.Int("bots", len(resolver.bots)),
	)

	rosterCache := make(map[string][]string)
	for repo, teams := range cfg.TeamsByRepo {
		insiders := make(map[string]struct{})
		for _, team := range teams {
			roster, ok := rosterCache[team]
			if !ok {
				roster, err = fetchTeamRoster(ctx, lister, cfg.Org, team, logger)
				if err != nil {
					return nil, err
				}
				rosterCache[team] = roster
			}
			for _, login := range roster {
				insiders[normalizeLogin(login)] = struct{}{}
			}
		}
		resolver.setsByRepo[repo] = &Set{
			insiders: insiders,
			bots:     resolver.bots,
		}
	}

	return resolver, nil
}

// ForRepo returns the membership set scoped to repo.
func (r *Resolver) ForRepo(repo string) *Set {
	if set, ok := r.setsByRepo[repo]; ok {
		return set
	}
	return r.defaultSet
}

// Team roster failures are recovered per team, except quota exhaustion which
// always aborts the run.
func fetchTeamRoster(ctx context.Context, lister MemberLister, org, team string, logger *zap.Logger) ([]string, error) {
	result, err := lister.ListTeamMembers(ctx, org, team)
	if err != nil {
		if githubapi.IsRateLimit(err) {
			return nil, fmt.Errorf("list team members %s/%s: %w", org, team, err)
		}
		logger.Warn("team roster fetch failed; treating roster as empty",
			zap.String("org", org),
			zap.String("team", team),
			zap.Error(err),
		)
		return nil, nil
	}
	if result.Status != githubapi.EndpointStatusOK {
		logger.Warn("team roster fetch returned non-ok status; treating roster as empty",
			zap.String("org", org),
			zap.String("team", team),
			zap.String("status", string(result.Status)),
		)
		return nil, nil
	}
	return result.Logins, nil
}

func loginSet(logins []string) map[string]struct{} {
	set := make(map[string]struct{}, len(logins))
	for _, login := range logins {
		key := normalizeLogin(login)
		if key == "" {
			continue
		}
		set[key] = struct{}{}
	}
	return set
}

func normalizeLogin(login string) string {
	return strings.ToLower(strings.TrimSpace(login))
}
