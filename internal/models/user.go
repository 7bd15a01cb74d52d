package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents a document in the MongoDB users collection.
// Username and email are stored lowercase and carry unique indexes.
// RefreshToken is the single active session slot: issuing a new refresh
// token overwrites the old one, implicitly invalidating it.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username     string             `bson:"username" json:"username"`
	Email        string             `bson:"email" json:"email"`
	FullName     string             `bson:"fullName" json:"fullName"`
	Password     string             `bson:"password,omitempty" json:"-"` // never serialize
	Avatar       string             `bson:"avatar" json:"avatar"`
	CoverImage   string             `bson:"coverImage,omitempty" json:"coverImage,omitempty"`
	RefreshToken string             `bson:"refreshToken,omitempty" json:"-"` // never serialize
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Sanitized returns a copy with the credential hash and the refresh-token
// slot stripped, safe to hand to handlers and middleware.
func (u *User) Sanitized() *User {
	c := *u
	c.Password = ""
	c.RefreshToken = ""
	return &c
}

// LoginRequest is the JSON body for POST /api/v1/users/login.
// Either username or email identifies the account.
type LoginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest is the JSON body fallback for POST /api/v1/users/refresh-token
// when the refresh token is not presented as a cookie.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}
