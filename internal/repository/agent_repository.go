package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"livechat-app/internal/models"
)

type AgentRepository struct {
	agentsCol *mongo.Collection
}

func NewAgentRepository(db *mongo.Database) *AgentRepository {
	return &AgentRepository{agentsCol: db.Collection("agents")}
}

func (r *AgentRepository) Create(ctx context.Context, agent *models.Agent) error {
	agent.ID = primitive.NewObjectID()
	agent.CreatedAt = time.Now()
	_, err := r.agentsCol.InsertOne(ctx, agent)
	return err
}

func (r *AgentRepository) GetByEmail(ctx context.Context, email string) (*models.Agent, error) {
	var agent models.Agent
	err := r.agentsCol.FindOne(ctx, bson.M{"email": email}).Decode(&agent)
	if err != nil {
		return nil, err
	}
	return &agent, nil
}

func (r *AgentRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Agent, error) {
	var agent models.Agent
	err := r.agentsCol.FindOne(ctx, bson.M{"_id": id}).Decode(&agent)
	if err != nil {
		return nil, err
	}
	return &agent, nil
}

func (r *AgentRepository) GetByShop(ctx context.Context, shop string) ([]models.Agent, error) {
	cursor, err := r.agentsCol.Find(ctx, bson.M{"shop": shop})
	if err != nil {
		return nil, err
	}
	var result []models.Agent
	err = cursor.All(ctx, &result)
	return result, err
}

func (r *AgentRepository) UpdateDeviceToken(ctx context.Context, id primitive.ObjectID, token string) error {
	_, err := r.agentsCol.UpdateByID(ctx, id, bson.M{"$set": bson.M{"device_token": token}})
	return err
}
