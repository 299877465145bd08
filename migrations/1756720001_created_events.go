package migrations

import (
	"encoding/json"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		jsonData := `{
			"id": "evz_events_0001",
			"name": "events",
			"type": "base",
			"system": false,
			"fields": [
				{"name": "name", "type": "text", "required": true},
				{"name": "description", "type": "editor"},
				{"name": "venue", "type": "text"},
				{"name": "start_time", "type": "date"},
				{"name": "end_time", "type": "date"},
				{"name": "status", "type": "select", "maxSelect": 1, "values": ["draft", "published", "started", "ended"]},
				{"name": "organizer", "type": "relation", "collectionId": "_pb_users_auth_", "maxSelect": 1},
				{"name": "created", "type": "autodate", "onCreate": true},
				{"name": "updated", "type": "autodate", "onCreate": true, "onUpdate": true}
			],
			"indexes": [],
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
		collection, err := app.FindCollectionByNameOrId("evz_events_0001")
		if err != nil {
			return err
		}

		return app.Delete(collection)
	})
}
