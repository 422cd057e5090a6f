package models

import "github.com/google/uuid"

// assignID fills a nil primary key. Postgres also defaults ids via
// gen_random_uuid(); the hook keeps sqlite-backed tests and dev mode working.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// All lists every persisted model in dependency order.
func All() []any {
	return []any{
		&Lab{},
		&Student{},
		&Faculty{},
		&Staff{},
		&Item{},
		&LabInventory{},
		&ItemAsset{},
		&Transaction{},
		&TransactionItem{},
		&ComponentRequest{},
		&Bill{},
	}
}
