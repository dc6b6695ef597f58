package dynamo

// DynamoDB attribute names used in update expressions across all repos.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldEnable    = "enable"
	fieldUpdatedAt = "updated_at"
	fieldPK        = "pk"
	fieldCodeID    = "code_id"
	fieldTTL       = "ttl"
	fieldUserID    = "user_id"
	fieldUsername  = "username"
	fieldEmail     = "email"
	fieldPhone     = "phone"
)

// Uniqueness markers live in the users table under "<prefix><value>". They
// carry no indexed attributes, so the GSIs never return them.
const (
	markerUsername = "USERNAME#"
	markerEmail    = "EMAIL#"
	markerPhone    = "PHONE#"
)

const (
	indexUsername    = "username-index"
	indexEmail       = "email-index"
	indexPhone       = "phone-index"
	indexSessionUser = "user_id-index"
)
