package model

// OutboxEntry is a change recorded for later sync. It is written in the same
// atomic unit as the change it describes.
type OutboxEntry struct {
	ID                  int64   `db:"id" json:"id"`
	OpID                string  `db:"opId" json:"opId"`
	EntityType          string  `db:"entityType" json:"entityType"`
	EntityID            *string `db:"entityId" json:"entityId"`
	Op                  string  `db:"op" json:"op"`
	PayloadJSON         *string `db:"payloadJson" json:"payloadJson"`
	CreatedAtMillis     int64   `db:"createdAtMillis" json:"createdAtMillis"`
	LastAttemptAtMillis *int64  `db:"lastAttemptAtMillis" json:"lastAttemptAtMillis"`
	Status              string  `db:"status" json:"status"`
	Error               *string `db:"error" json:"error"`
}
