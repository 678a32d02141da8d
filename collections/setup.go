package collections

import (
	"github.com/pocketbase/pocketbase/core"
	"go.uber.org/zap"
)

// JSON payloads of large tenders exceed the 1MB PocketBase default.
const reportMaxSize = 16 << 20

// Setup programmatically creates/ensures the boq_imports and boq_import_rows
// collections exist.
func Setup(app core.App) {
	imports := ensureCollection(app, "boq_imports", func(c *core.Collection) {
		c.Fields.Add(&core.TextField{Name: "file_name", Required: true})
		c.Fields.Add(&core.SelectField{
			Name:      "status",
			Required:  true,
			Values:    []string{"auto_accepted", "needs_review"},
			MaxSelect: 1,
		})
		c.Fields.Add(&core.TextField{Name: "currency", Required: false})
		c.Fields.Add(&core.NumberField{Name: "confidence", Required: false})
		c.Fields.Add(&core.NumberField{Name: "rows_parsed", Required: false})
		c.Fields.Add(&core.NumberField{Name: "rows_skipped", Required: false})
		c.Fields.Add(&core.NumberField{Name: "warning_count", Required: false})
		c.Fields.Add(&core.JSONField{Name: "report", MaxSize: reportMaxSize})
		c.Fields.Add(&core.JSONField{Name: "suggested_mapping"})
		c.Fields.Add(&core.AutodateField{Name: "created", OnCreate: true})
		c.Fields.Add(&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true})
	})

	ensureCollection(app, "boq_import_rows", func(c *core.Collection) {
		c.Fields.Add(&core.RelationField{
			Name:          "boq_import",
			Required:      true,
			CollectionId:  imports.Id,
			CascadeDelete: true,
			MaxSelect:     1,
		})
		c.Fields.Add(&core.NumberField{Name: "sort_order", Required: true})
		c.Fields.Add(&core.TextField{Name: "sheet_name", Required: false})
		c.Fields.Add(&core.NumberField{Name: "raw_row_index", Required: false})
		c.Fields.Add(&core.SelectField{
			Name:      "role",
			Required:  true,
			Values:    []string{"data_item", "category_heading", "subtotal", "grand_total", "remark", "page_artifact"},
			MaxSelect: 1,
		})
		c.Fields.Add(&core.TextField{Name: "sr_no", Required: false})
		c.Fields.Add(&core.TextField{Name: "description", Required: false})
		c.Fields.Add(&core.NumberField{Name: "tender_amount", Required: false})
		c.Fields.Add(&core.JSONField{Name: "data"})
		c.AddIndex("idx_boq_import_rows_import", false, "boq_import, sort_order", "")
	})
}

// ensureCollection checks if a collection already exists by name. If it does,
// the existing collection is returned. Otherwise a new base collection is
// created, the addFields callback is invoked to populate its fields, and the
// collection is saved.
func ensureCollection(app core.App, name string, addFields func(*core.Collection)) *core.Collection {
	existing, err := app.FindCollectionByNameOrId(name)
	if err == nil && existing != nil {
		zap.L().Debug("collections: already exists, skipping creation", zap.String("collection", name))
		return existing
	}

	collection := core.NewBaseCollection(name)
	addFields(collection)

	if err := app.Save(collection); err != nil {
		zap.L().Fatal("collections: failed to create collection", zap.String("collection", name), zap.Error(err))
	}

	zap.L().Info("collections: created collection", zap.String("collection", name), zap.String("id", collection.Id))
	return collection
}
