package orchestrator

import (
	"strings"
	"time"

	"github.com/pulsedesk/notification-engine/internal/domain"
)

// Options carries the optional parts of a notification request.
type Options struct {
	Category domain.Category
	Priority domain.Priority
	Title    string
	Actions  []domain.Action
	Entity   string
	Subtype  string
	Context  map[string]string
	Duration time.Duration
}

// substituteTokens replaces {token} placeholders in s with values from
// the request context. Unknown tokens are left untouched.
func substituteTokens(s string, context map[string]string) string {
	if len(context) == 0 || !strings.Contains(s, "{") {
		return s
	}
	for key, value := range context {
		s = strings.ReplaceAll(s, "{"+key+"}", value)
	}
	return s
}

// resolveActions applies token substitution to action paths and
// endpoints.
func resolveActions(actions []domain.Action, context map[string]string) []domain.Action {
	if len(actions) == 0 {
		return nil
	}
	out := make([]domain.Action, len(actions))
	copy(out, actions)
	for i := range out {
		out[i].Path = substituteTokens(out[i].Path, context)
		out[i].Endpoint = substituteTokens(out[i].Endpoint, context)
	}
	return out
}

// Category presets: each convenience entry point fixes the category
// and, for some, attaches a prebuilt action whose path carries a
// {token} placeholder resolved from the request context.
var categoryPresets = map[domain.Category][]domain.Action{
	domain.CategoryAuth: {
		{Kind: domain.ActionNavigate, Label: "Review activity", Path: "/settings/security"},
	},
	domain.CategoryClient: {
		{Kind: domain.ActionNavigate, Label: "View client", Path: "/clients/{clientId}"},
	},
	domain.CategoryTask: {
		{Kind: domain.ActionNavigate, Label: "Open task", Path: "/calendar/{taskId}"},
	},
	domain.CategoryAI: {
		{Kind: domain.ActionNavigate, Label: "View ideas", Path: "/ideas"},
	},
	domain.CategoryDocument: {
		{Kind: domain.ActionNavigate, Label: "Open document", Path: "/documents/{documentId}"},
	},
}

// presetActions returns the category's prebuilt actions when the
// caller supplied none and the context can satisfy every placeholder.
func presetActions(category domain.Category, context map[string]string) []domain.Action {
	preset, ok := categoryPresets[category]
	if !ok {
		return nil
	}
	resolved := resolveActions(preset, context)
	for _, action := range resolved {
		if strings.Contains(action.Path, "{") {
			// An unsatisfied placeholder means the caller did not
			// provide the entity; skip the preset entirely.
			return nil
		}
	}
	return resolved
}
