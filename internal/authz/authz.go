// Package authz is the authorization collaborator boundary: it answers, for
// a given actor, project and action, which field scopes are granted.
//
// Grants are loaded from a YAML file and are immutable afterwards. The
// query subsystem never consults anything else for permissions; a field
// outside the granted scopes is simply unknown to the actor.
package authz

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/strata/internal/schema"
)

// Grants maps actors to their per-project, per-action scope sets.
//
// YAML shape:
//
//	actors:
//	  alice:
//	    projects:
//	      mycology:
//	        view: [base, metrics]
//	        filter: [base]
//	  bob:
//	    projects:
//	      mycology:
//	        view: [base, admin]
type Grants struct {
	Actors map[string]ActorGrants `yaml:"actors"`
}

// ActorGrants holds one actor's project grants.
type ActorGrants struct {
	Projects map[string]ProjectGrants `yaml:"projects"`
}

// ProjectGrants maps action names to granted scope names.
type ProjectGrants map[string][]string

// Load reads and validates a grants file.
func Load(path string) (*Grants, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read grants: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates grants from YAML bytes.
// Unknown action names are rejected at load time, not at request time.
func Parse(data []byte) (*Grants, error) {
	var g Grants
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parse grants: %w", err)
	}

	for actor, actorGrants := range g.Actors {
		for project, projectGrants := range actorGrants.Projects {
			for action := range projectGrants {
				if _, err := schema.ParseAction(action); err != nil {
					return nil, fmt.Errorf("actor %q, project %q: %w", actor, project, err)
				}
			}
		}
	}
	return &g, nil
}

// Scopes returns the scope names granted to an actor for a project and
// action. A nil or empty result means the action is not granted at all.
func (g *Grants) Scopes(actor, project string, action schema.Action) []string {
	actorGrants, ok := g.Actors[actor]
	if !ok {
		return nil
	}
	projectGrants, ok := actorGrants.Projects[project]
	if !ok {
		return nil
	}
	scopes := projectGrants[string(action)]
	out := make([]string, len(scopes))
	copy(out, scopes)
	return out
}

// Allowed reports whether the actor is granted the action on the project
// at all (any scope, including just base).
func (g *Grants) Allowed(actor, project string, action schema.Action) bool {
	return len(g.Scopes(actor, project, action)) > 0
}
