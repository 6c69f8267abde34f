package reconcile

import (
	"context"

	"cardsheets/internal/platform/docstore"
	"cardsheets/internal/platform/models"
)

func (p *Planner) planTemplateUpdate(ctx context.Context, businessID string, in *TemplateUpdate, plan *Plan) {
	if !validID(in.DocID) || in.TypeOfCards == "" {
		p.log.Warn().Str("doc_id", in.DocID).Str("type_of_cards", in.TypeOfCards).Msg("skipping template update without docId or typeOfCards")
		plan.note("Skipped template update: docId and typeOfCards are required")
		return
	}

	templatePath := docstore.Doc(docstore.CardTemplates(businessID), in.DocID)

	if in.Action == ActionRemove {
		plan.stage(WriteDelete, templatePath, nil)
		plan.TemplatesUpdated++
		plan.note("Template %s deleted", in.DocID)
		return
	}

	snaps, err := p.reader.Query(ctx, docstore.Cards(businessID), models.FieldTypeOfCards, in.TypeOfCards)
	if err != nil {
		// Renaming the template without its cards would orphan them, so the
		// whole entry is skipped.
		p.softFailure(plan, err, "card query failed during template update")
		plan.note("Skipped template %s: %v", in.DocID, err)
		return
	}

	updated := 0
	for _, snap := range snaps {
		if fields := cardPatch(models.CardFromSnapshot(snap), in); len(fields) > 0 {
			plan.stage(WriteUpdate, snap.Path, fields)
			updated++
		}
	}
	plan.CardsUpdated += updated

	switch {
	case in.NewTemplate != nil:
		plan.stage(WriteSet, templatePath, docstore.Document(in.NewTemplate))
		plan.TemplatesUpdated++
	case in.NewTypeOfCards != "":
		plan.stage(WriteUpdate, templatePath, docstore.Document{
			models.FieldTypeOfCards: in.NewTypeOfCards,
			models.FieldName:        in.NewTypeOfCards,
		})
		plan.TemplatesUpdated++
	}

	plan.note("Template %s: %d cards updated", in.DocID, updated)
}

// cardPatch builds the field update a legacy entry implies for one card.
func cardPatch(card *models.Card, in *TemplateUpdate) docstore.Document {
	fields := docstore.Document{}

	for _, key := range in.DeletedKeys {
		if card.Has(key) {
			fields[key] = docstore.DeleteField
		}
	}

	if _, deletingHistory := fields[models.FieldHistory]; len(in.DeletedKeys) > 0 && !deletingHistory {
		if kept, changed := card.HistoryWithout(in.DeletedKeys); changed {
			fields[models.FieldHistory] = kept
		}
	}

	if in.NewTypeOfCards != "" && in.NewTypeOfCards != card.TypeOfCards {
		fields[models.FieldTypeOfCards] = in.NewTypeOfCards
	}

	return fields
}
