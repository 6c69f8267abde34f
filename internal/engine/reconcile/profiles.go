package reconcile

import (
	"context"
	"fmt"
	"strings"

	"cardsheets/internal/platform/docstore"
	"cardsheets/internal/platform/models"
)

func (p *Planner) planProfile(ctx context.Context, businessID string, in *ProfileInput, plan *Plan) error {
	if !validID(in.ID) {
		p.log.Warn().Str("profile_name", in.Name).Msg("skipping profile without a valid id")
		plan.note("Skipped profile %q: missing id", in.Name)
		return nil
	}

	profilePath := docstore.Doc(docstore.TemplateProfiles(businessID), in.ID)

	if in.Action == ActionRemove {
		// Cards keep their typeOfProfile; deletions do not cascade.
		plan.stage(WriteDelete, profilePath, nil)
		plan.ProfilesUpdated++
		plan.note("Profile %s deleted", in.ID)
		return nil
	}

	if strings.TrimSpace(in.Name) == "" {
		p.log.Warn().Str("profile_id", in.ID).Msg("skipping profile without a name")
		plan.note("Skipped profile %s: missing name", in.ID)
		return nil
	}

	existing, err := p.reader.Get(ctx, profilePath)
	if err != nil {
		return fmt.Errorf("read profile %s: %w", in.ID, err)
	}

	var previousName string
	if existing.Exists {
		previousName = models.Fields(existing.Data).String(models.FieldName)
	}
	renamed := previousName != "" && previousName != in.Name

	relabeled := 0
	if renamed && len(in.Templates) > 0 {
		for _, typeOfCards := range distinctTypesOfCards(in.Templates) {
			relabeled += p.relabelCards(ctx, businessID, typeOfCards, previousName, in.Name, plan)
		}
		plan.CardsUpdated += relabeled
		p.metrics.cardsRelabeled(relabeled)
	}

	templates := in.Templates
	if templates == nil {
		templates = []models.Fields{}
	}
	pipelines := in.Pipelines
	if pipelines == nil {
		pipelines = []interface{}{}
	}

	plan.stage(WriteMerge, profilePath, docstore.Document{
		"id":        in.ID,
		"name":      in.Name,
		"templates": templates,
		"pipelines": pipelines,
		"updatedAt": docstore.ServerTimestamp,
	})
	plan.ProfilesUpdated++

	switch {
	case renamed:
		plan.note("Profile %s renamed from %q to %q; %d cards relabeled", in.ID, previousName, in.Name, relabeled)
	case existing.Exists:
		plan.note("Profile %s (%q) updated", in.ID, in.Name)
	default:
		plan.note("Profile %s (%q) created", in.ID, in.Name)
	}
	return nil
}

// relabelCards stages typeOfProfile=newName for cards of typeOfCards still
// labelled with previousName. Cards labelled otherwise are left alone.
func (p *Planner) relabelCards(ctx context.Context, businessID, typeOfCards, previousName, newName string, plan *Plan) int {
	snaps, err := p.reader.Query(ctx, docstore.Cards(businessID), models.FieldTypeOfCards, typeOfCards)
	if err != nil {
		p.softFailure(plan, err, "card query failed during profile rename")
		plan.note("Could not relabel %q cards: %v", typeOfCards, err)
		return 0
	}

	count := 0
	for _, snap := range snaps {
		card := models.CardFromSnapshot(snap)
		if card.TypeOfProfile != previousName {
			continue
		}
		plan.stage(WriteUpdate, snap.Path, docstore.Document{models.FieldTypeOfProfile: newName})
		count++
	}
	return count
}

func distinctTypesOfCards(templates []models.Fields) []string {
	seen := make(map[string]bool, len(templates))
	var types []string
	for _, t := range templates {
		typeOfCards := t.String(models.FieldTypeOfCards)
		if typeOfCards == "" || seen[typeOfCards] {
			continue
		}
		seen[typeOfCards] = true
		types = append(types, typeOfCards)
	}
	return types
}
