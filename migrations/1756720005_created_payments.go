package migrations

import (
	"encoding/json"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		jsonData := `{
			"id": "evz_payments001",
			"name": "payments",
			"type": "base",
			"system": false,
			"fields": [
				{"name": "registration", "type": "relation", "collectionId": "evz_registr0001", "maxSelect": 1, "required": true},
				{"name": "amount", "type": "number", "min": 0, "required": true},
				{"name": "currency", "type": "text"},
				{"name": "payment_method", "type": "select", "maxSelect": 1, "values": ["mtn_money", "orange_money", "credit_card", "bank_transfer"]},
				{"name": "status", "type": "select", "maxSelect": 1, "values": ["pending", "processing", "completed", "failed", "refunded", "cancelled"]},
				{"name": "transaction_id", "type": "text"},
				{"name": "billing_phone", "type": "text"},
				{"name": "failure_reason", "type": "text"},
				{"name": "payment_date", "type": "date"},
				{"name": "created", "type": "autodate", "onCreate": true},
				{"name": "updated", "type": "autodate", "onCreate": true, "onUpdate": true}
			],
			"indexes": [
				"CREATE INDEX idx_payments_registration ON payments (registration)",
				"CREATE INDEX idx_payments_status ON payments (status)"
			],
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
		collection, err := app.FindCollectionByNameOrId("evz_payments001")
		if err != nil {
			return err
		}

		return app.Delete(collection)
	})
}
