package migrations

import (
	"encoding/json"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		jsonData := `{
			"id": "evz_purchases01",
			"name": "ticket_purchases",
			"type": "base",
			"system": false,
			"fields": [
				{"name": "registration", "type": "relation", "collectionId": "evz_registr0001", "maxSelect": 1, "required": true},
				{"name": "ticket_type", "type": "relation", "collectionId": "evz_tickettypes", "maxSelect": 1, "required": true},
				{"name": "quantity", "type": "number", "min": 1, "onlyInt": true, "required": true},
				{"name": "unit_price", "type": "number", "min": 0},
				{"name": "total_price", "type": "number", "min": 0},
				{"name": "created", "type": "autodate", "onCreate": true},
				{"name": "updated", "type": "autodate", "onCreate": true, "onUpdate": true}
			],
			"indexes": ["CREATE INDEX idx_ticket_purchases_registration ON ticket_purchases (registration)"],
			"listRule": null,
			"viewRule": null,
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
		collection, err := app.FindCollectionByNameOrId("evz_purchases01")
		if err != nil {
			return err
		}

		return app.Delete(collection)
	})
}
