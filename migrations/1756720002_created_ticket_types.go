package migrations

import (
	"encoding/json"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		jsonData := `{
			"id": "evz_tickettypes",
			"name": "ticket_types",
			"type": "base",
			"system": false,
			"fields": [
				{"name": "event", "type": "relation", "collectionId": "evz_events_0001", "maxSelect": 1, "required": true},
				{"name": "name", "type": "text", "required": true},
				{"name": "price", "type": "number", "min": 0},
				{"name": "quantity_total", "type": "number", "min": 0, "onlyInt": true},
				{"name": "quantity_sold", "type": "number", "min": 0, "onlyInt": true},
				{"name": "created", "type": "autodate", "onCreate": true},
				{"name": "updated", "type": "autodate", "onCreate": true, "onUpdate": true}
			],
			"indexes": ["CREATE INDEX idx_ticket_types_event ON ticket_types (event)"],
			"listRule": "",
			"viewRule": "",
			"createRule": null,
			"updateRule": null,
			"deleteRule": null
		}`

		collection := &core.Collection{}
		if err := json.Unmarshal([]byte(jsonData), collection); err != nil {
			return err
		}

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("evz_tickettypes")
		if err != nil {
			return err
		}

		return app.Delete(collection)
	})
}
