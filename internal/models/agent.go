package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AgentRole string

const (
	RoleAgent      AgentRole = "agent"
	RoleSupervisor AgentRole = "supervisor"
	RoleAdmin      AgentRole = "admin"
)

type Agent struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Shop         string             `bson:"shop" json:"shop"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email" validate:"required,email"`
	PasswordHash string             `bson:"password_hash" json:"-"`
	Role         AgentRole          `bson:"role" json:"role"`
	DeviceToken  string             `bson:"device_token,omitempty" json:"-"`
	Phone        string             `bson:"phone,omitempty" json:"-"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}
