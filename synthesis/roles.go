package synthesis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/danvers-labs/provkg/ai"
	"github.com/danvers-labs/provkg/hashid"
	"github.com/danvers-labs/provkg/store"
)

type roleAssignment struct {
	Name            string `json:"entity_name"`
	Role            string `json:"role"`
	Theme           string `json:"theme"`
	ImportanceRank  int    `json:"importance_rank"`
	ContextSummary  string `json:"context_summary"`
}

// ClassifyDatabaseRoles runs entity role classification at database scope,
// using the entity census as its roster.
func ClassifyDatabaseRoles(ctx context.Context, s *store.Store, p ai.Provider, opts Options) (int, error) {
	census, err := s.EntityCensus(ctx, opts.censusTopN())
	if err != nil {
		return 0, fmt.Errorf("synthesis: load census for role classification: %w", err)
	}
	if len(census) == 0 {
		return 0, nil
	}
	var lines []string
	for _, c := range census {
		lines = append(lines, fmt.Sprintf("- %s (%s)", c.CanonicalName, c.EntityType))
	}
	return classifyRoles(ctx, s, p, lines, store.ScopeDatabase, nil)
}

// ClassifyDocumentRoles runs entity role classification scoped to a single
// document's roster.
func ClassifyDocumentRoles(ctx context.Context, s *store.Store, p ai.Provider, documentID string, opts Options) (int, error) {
	roster, err := buildRoster(s, ctx, documentID, opts.rosterLimit())
	if err != nil {
		return 0, err
	}
	if len(roster) == 0 {
		return 0, nil
	}
	var lines []string
	for _, r := range roster {
		lines = append(lines, fmt.Sprintf("- %s (%s)", r.entity.RawText, r.entity.EntityType))
	}
	return classifyRoles(ctx, s, p, lines, store.ScopeDocument, &documentID)
}

func classifyRoles(ctx context.Context, s *store.Store, p ai.Provider, roster []string, scope store.RoleScope, documentID *string) (int, error) {
	prompt := fmt.Sprintf(`Classify the role each entity plays in this corpus. Respond with a JSON array of objects:
{"entity_name": <name>, "role": <short role label, e.g. plaintiff, defendant, treating physician, witness, filing court>,
"theme": <short theme tag>, "importance_rank": <1 = most important>, "context_summary": <1 sentence>}

Entities:
%s

Respond with JSON only.`, strings.Join(roster, "\n"))

	resp, err := p.Chat(ctx, ai.ChatRequest{
		Messages:       []ai.Message{{Role: "user", Content: prompt}},
		Temperature:    0.2,
		ResponseFormat: "json_object",
	})
	if err != nil {
		slog.Warn("synthesis: role classification call failed", "scope", scope, "error", err)
		return 0, fmt.Errorf("synthesis: role classification: %w", err)
	}

	var assignments []roleAssignment
	if err := json.Unmarshal([]byte(extractJSON(resp.Content)), &assignments); err != nil {
		return 0, fmt.Errorf("synthesis: parse role classification response: %w", err)
	}

	created := 0
	for _, a := range assignments {
		node, err := s.FindNodeByNameOrAlias(ctx, normalizeNodeName(a.Name))
		if err != nil {
			slog.Warn("synthesis: unresolved role subject", "name", a.Name, "error", err)
			continue
		}
		theme := a.Theme
		rank := a.ImportanceRank
		seedParts := []string{"role", node.ID, string(scope)}
		if documentID != nil {
			seedParts = append(seedParts, *documentID)
		}
		recID := hashid.NewIDFromSeed(seedParts...)
		prov := &store.Provenance{
			ID: recID, Kind: store.KindCorpusIntel, RootDocumentID: rootOrEmpty(documentID),
			ContentHash: hashid.HashText(a.Role + a.ContextSummary), Processor: "synthesis.role_classification",
		}
		rec := &store.EntityRole{
			ID: recID, NodeID: node.ID, Scope: scope, DocumentID: documentID,
			Role: a.Role, Theme: &theme, ImportanceRank: &rank, ContextSummary: a.ContextSummary,
		}
		if err := s.InsertEntityRole(ctx, rec, prov); err != nil {
			return created, fmt.Errorf("synthesis: persist entity role: %w", err)
		}
		created++
	}

	slog.Info("synthesis: role classification complete", "scope", scope, "roles_created", created)
	return created, nil
}

func rootOrEmpty(documentID *string) string {
	if documentID == nil {
		return ""
	}
	return *documentID
}
