package services

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"livechat-app/internal/models"
	"livechat-app/internal/utils"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
)

type AgentRepo interface {
	GetByEmail(ctx context.Context, email string) (*models.Agent, error)
	GetByShop(ctx context.Context, shop string) ([]models.Agent, error)
	Create(ctx context.Context, agent *models.Agent) error
	UpdateDeviceToken(ctx context.Context, id primitive.ObjectID, token string) error
}

type AuthService struct {
	agents AgentRepo
	jwt    *utils.JWTUtil
}

func NewAuthService(agents AgentRepo, jwt *utils.JWTUtil) *AuthService {
	return &AuthService{agents: agents, jwt: jwt}
}

func (s *AuthService) Login(ctx context.Context, email, password string) (string, *models.Agent, error) {
	agent, err := s.agents.GetByEmail(ctx, email)
	if err != nil {
		return "", nil, ErrInvalidCredentials
	}

	if bcrypt.CompareHashAndPassword([]byte(agent.PasswordHash), []byte(password)) != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.jwt.GenerateToken(agent.ID.Hex(), agent.Shop, string(agent.Role))
	if err != nil {
		return "", nil, err
	}
	return token, agent, nil
}

func (s *AuthService) CreateAgent(ctx context.Context, agent *models.Agent, password string) error {
	switch agent.Role {
	case "":
		agent.Role = models.RoleAgent
	case models.RoleAgent, models.RoleSupervisor, models.RoleAdmin:
	default:
		return fmt.Errorf("unknown role %q", agent.Role)
	}

	if existing, err := s.agents.GetByEmail(ctx, agent.Email); err == nil && existing != nil {
		return ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	agent.PasswordHash = string(hash)
	return s.agents.Create(ctx, agent)
}

func (s *AuthService) ListAgents(ctx context.Context, shop string) ([]models.Agent, error) {
	return s.agents.GetByShop(ctx, shop)
}

// RegisterDeviceToken stores the push token the dashboard app obtained
// after login, so replies can be pushed to the agent's device.
func (s *AuthService) RegisterDeviceToken(ctx context.Context, agentID, token string) error {
	id, err := primitive.ObjectIDFromHex(agentID)
	if err != nil {
		return errors.New("invalid agent id")
	}
	return s.agents.UpdateDeviceToken(ctx, id, token)
}
