package domain

import "time"

// DefaultPreferredCity is applied at signup when the user leaves the city blank.
const DefaultPreferredCity = "Coimbatore"

// Preferred area choices.
const (
	AreaRSPuram       = "rs_puram"
	AreaGandhipuram   = "gandhipuram"
	AreaPeelamedu     = "peelamedu"
	AreaHopes         = "hopes"
	AreaSaibabaColony = "saibaba_colony"
	AreaSinganallur   = "singanallur"
	AreaOther         = "other"
)

// Preferred price choices.
const (
	PriceEconomical = "economical"
	PriceAverage    = "average"
	PricePremium    = "premium"
)

type User struct {
	UserID         string    `json:"id" dynamodbav:"user_id"`
	Username       string    `json:"username" dynamodbav:"username"`
	Email          *string   `json:"email" dynamodbav:"email,omitempty"`
	Phone          *string   `json:"phone_number" dynamodbav:"phone,omitempty"`
	PasswordHash   string    `json:"-" dynamodbav:"password_hash"`
	Age            *int      `json:"age,omitempty" dynamodbav:"age,omitempty"`
	PreferredCity  string    `json:"preferred_city" dynamodbav:"preferred_city"`
	PreferredArea  *string   `json:"preferred_area,omitempty" dynamodbav:"preferred_area,omitempty"`
	PreferredPrice *string   `json:"preferred_price,omitempty" dynamodbav:"preferred_price,omitempty"`
	TasteTags      string    `json:"taste_tags" dynamodbav:"taste_tags"`
	ProfilePhoto   *string   `json:"profile_photo,omitempty" dynamodbav:"profile_photo,omitempty"`
	Verified       bool      `json:"is_verified" dynamodbav:"is_verified"`
	EmailVerified  bool      `json:"email_verified" dynamodbav:"email_verified"`
	PhoneVerified  bool      `json:"phone_verified" dynamodbav:"phone_verified"`
	Enable         bool      `json:"enable" dynamodbav:"enable"`
	CreatedAt      time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt      time.Time `json:"updated" dynamodbav:"updated_at"`
}

// ContactFor returns the address on file for the given channel, or "" when the user has none.
func (u *User) ContactFor(ch Channel) string {
	switch ch {
	case ChannelEmail:
		if u.Email != nil {
			return *u.Email
		}
	case ChannelPhone:
		if u.Phone != nil {
			return *u.Phone
		}
	}
	return ""
}

// ProfileEdits holds pending, not yet persisted, profile changes. Nil fields are left untouched.
type ProfileEdits struct {
	Username       *string `json:"username,omitempty"`
	Email          *string `json:"email,omitempty"`
	Phone          *string `json:"phone_number,omitempty"`
	Age            *int    `json:"age,omitempty"`
	PreferredCity  *string `json:"preferred_city,omitempty"`
	PreferredArea  *string `json:"preferred_area,omitempty"`
	PreferredPrice *string `json:"preferred_price,omitempty"`
	TasteTags      *string `json:"taste_tags,omitempty"`
	// PhotoKey is the object key of a staged upload waiting for verification.
	PhotoKey   *string `json:"photo_key,omitempty"`
	ClearPhoto bool    `json:"clear_photo,omitempty"`
}
