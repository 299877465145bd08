package migrations

import (
	"encoding/json"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		jsonData := `{
			"id": "evz_registr0001",
			"name": "registrations",
			"type": "base",
			"system": false,
			"fields": [
				{"name": "event", "type": "relation", "collectionId": "evz_events_0001", "maxSelect": 1, "required": true},
				{"name": "user", "type": "relation", "collectionId": "_pb_users_auth_", "maxSelect": 1, "required": true},
				{"name": "status", "type": "select", "maxSelect": 1, "values": ["pending", "confirmed", "cancelled", "completed"]},
				{"name": "payment_status", "type": "select", "maxSelect": 1, "values": ["unpaid", "paid", "refunded"]},
				{"name": "total_amount", "type": "number", "min": 0},
				{"name": "confirmed_at", "type": "date"},
				{"name": "created", "type": "autodate", "onCreate": true},
				{"name": "updated", "type": "autodate", "onCreate": true, "onUpdate": true}
			],
			"indexes": ["CREATE INDEX idx_registrations_user ON registrations (user)"],
			"listRule": "user = @request.auth.id",
			"viewRule": "user = @request.auth.id",
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
		collection, err := app.FindCollectionByNameOrId("evz_registr0001")
		if err != nil {
			return err
		}

		return app.Delete(collection)
	})
}
