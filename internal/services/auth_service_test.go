package services

import (
	"context"
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"livechat-app/internal/models"
	"livechat-app/internal/utils"
)

type fakeAgentRepo struct {
	agents map[string]*models.Agent // by email
}

func newFakeAgentRepo() *fakeAgentRepo {
	return &fakeAgentRepo{agents: make(map[string]*models.Agent)}
}

func (f *fakeAgentRepo) GetByEmail(ctx context.Context, email string) (*models.Agent, error) {
	agent, ok := f.agents[email]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	copied := *agent
	return &copied, nil
}

func (f *fakeAgentRepo) GetByShop(ctx context.Context, shop string) ([]models.Agent, error) {
	var out []models.Agent
	for _, agent := range f.agents {
		if agent.Shop == shop {
			out = append(out, *agent)
		}
	}
	return out, nil
}

func (f *fakeAgentRepo) Create(ctx context.Context, agent *models.Agent) error {
	agent.ID = primitive.NewObjectID()
	f.agents[agent.Email] = agent
	return nil
}

func (f *fakeAgentRepo) UpdateDeviceToken(ctx context.Context, id primitive.ObjectID, token string) error {
	for _, agent := range f.agents {
		if agent.ID == id {
			agent.DeviceToken = token
			return nil
		}
	}
	return mongo.ErrNoDocuments
}

func TestCreateAgentHashesPasswordAndDefaultsRole(t *testing.T) {
	repo := newFakeAgentRepo()
	svc := NewAuthService(repo, utils.NewJWTUtil("test-secret"))

	agent := &models.Agent{Shop: "shop", Name: "Sam", Email: "sam@example.com"}
	if err := svc.CreateAgent(context.Background(), agent, "hunter2hunter2"); err != nil {
		t.Fatal(err)
	}

	stored := repo.agents["sam@example.com"]
	if stored == nil {
		t.Fatal("agent not stored")
	}
	if stored.Role != models.RoleAgent {
		t.Errorf("role = %q, want default agent", stored.Role)
	}
	if stored.PasswordHash == "hunter2hunter2" || stored.PasswordHash == "" {
		t.Fatal("password stored without hashing")
	}
	if bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("hunter2hunter2")) != nil {
		t.Error("stored hash does not verify against the password")
	}
}

func TestCreateAgentRejectsDuplicateEmail(t *testing.T) {
	repo := newFakeAgentRepo()
	svc := NewAuthService(repo, utils.NewJWTUtil("test-secret"))

	first := &models.Agent{Shop: "shop", Email: "sam@example.com"}
	if err := svc.CreateAgent(context.Background(), first, "hunter2hunter2"); err != nil {
		t.Fatal(err)
	}

	dup := &models.Agent{Shop: "shop", Email: "sam@example.com"}
	if err := svc.CreateAgent(context.Background(), dup, "otherpassword"); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("error = %v, want ErrEmailTaken", err)
	}
}

func TestCreateAgentRejectsUnknownRole(t *testing.T) {
	repo := newFakeAgentRepo()
	svc := NewAuthService(repo, utils.NewJWTUtil("test-secret"))

	agent := &models.Agent{Shop: "shop", Email: "sam@example.com", Role: "superuser"}
	if err := svc.CreateAgent(context.Background(), agent, "hunter2hunter2"); err == nil {
		t.Fatal("expected unknown role to be rejected")
	}
	if len(repo.agents) != 0 {
		t.Error("agent with unknown role was stored")
	}
}

func TestLoginRoundTrip(t *testing.T) {
	repo := newFakeAgentRepo()
	jwt := utils.NewJWTUtil("test-secret")
	svc := NewAuthService(repo, jwt)

	agent := &models.Agent{Shop: "shop", Email: "sam@example.com", Role: models.RoleSupervisor}
	if err := svc.CreateAgent(context.Background(), agent, "hunter2hunter2"); err != nil {
		t.Fatal(err)
	}

	token, got, err := svc.Login(context.Background(), "sam@example.com", "hunter2hunter2")
	if err != nil {
		t.Fatal(err)
	}
	if got.Email != "sam@example.com" {
		t.Errorf("agent email = %q", got.Email)
	}

	claims, err := jwt.ParseToken(token)
	if err != nil {
		t.Fatalf("issued token does not parse: %v", err)
	}
	if claims["shop"] != "shop" || claims["role"] != "supervisor" {
		t.Errorf("claims = %v, want shop and supervisor role", claims)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	repo := newFakeAgentRepo()
	svc := NewAuthService(repo, utils.NewJWTUtil("test-secret"))

	agent := &models.Agent{Shop: "shop", Email: "sam@example.com"}
	if err := svc.CreateAgent(context.Background(), agent, "hunter2hunter2"); err != nil {
		t.Fatal(err)
	}

	if _, _, err := svc.Login(context.Background(), "sam@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("error = %v, want ErrInvalidCredentials", err)
	}
	if _, _, err := svc.Login(context.Background(), "nobody@example.com", "hunter2hunter2"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("error = %v, want ErrInvalidCredentials for unknown email", err)
	}
}

func TestRegisterDeviceToken(t *testing.T) {
	repo := newFakeAgentRepo()
	svc := NewAuthService(repo, utils.NewJWTUtil("test-secret"))

	agent := &models.Agent{Shop: "shop", Email: "sam@example.com"}
	if err := svc.CreateAgent(context.Background(), agent, "hunter2hunter2"); err != nil {
		t.Fatal(err)
	}

	if err := svc.RegisterDeviceToken(context.Background(), agent.ID.Hex(), "fcm-token-1"); err != nil {
		t.Fatal(err)
	}
	if repo.agents["sam@example.com"].DeviceToken != "fcm-token-1" {
		t.Error("device token not stored")
	}

	if err := svc.RegisterDeviceToken(context.Background(), "not-an-object-id", "x"); err == nil {
		t.Error("expected invalid agent id to be rejected")
	}
}

func TestListAgentsScopedToShop(t *testing.T) {
	repo := newFakeAgentRepo()
	svc := NewAuthService(repo, utils.NewJWTUtil("test-secret"))

	for _, a := range []*models.Agent{
		{Shop: "shop-a", Email: "one@example.com"},
		{Shop: "shop-a", Email: "two@example.com"},
		{Shop: "shop-b", Email: "three@example.com"},
	} {
		if err := svc.CreateAgent(context.Background(), a, "hunter2hunter2"); err != nil {
			t.Fatal(err)
		}
	}

	agents, err := svc.ListAgents(context.Background(), "shop-a")
	if err != nil {
		t.Fatal(err)
	}
	if len(agents) != 2 {
		t.Errorf("agents = %d, want 2 for shop-a", len(agents))
	}
}
