package identity

import (
	"context"
	"fmt"
	"sync"

	"recruiting-pipeline/internal/domain"
	"recruiting-pipeline/pkg/validation"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type memoryAccount struct {
	email        string
	passwordHash []byte
}

// MemoryService is a local stand-in for the identity provider.
type MemoryService struct {
	mu       sync.Mutex
	byEmail  map[string]string
	accounts map[string]memoryAccount
}

func NewMemoryService() *MemoryService {
	return &MemoryService{byEmail: make(map[string]string), accounts: make(map[string]memoryAccount)}
}

func (m *MemoryService) CreateAccount(_ context.Context, email, password, _ string) (string, error) {
	if !validation.IsEmail(email) {
		return "", fmt.Errorf("%w: %s", domain.ErrInvalidEmail, email)
	}
	if len(password) < 8 {
		return "", domain.ErrWeakPassword
	}
	key := validation.NormalizeEmail(email)

	// bcrypt only looks at the first 72 bytes
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrWeakPassword, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byEmail[key]; exists {
		return "", fmt.Errorf("%w: %s", domain.ErrDuplicateEmail, email)
	}
	id := uuid.NewString()
	m.byEmail[key] = id
	m.accounts[id] = memoryAccount{email: key, passwordHash: hash}
	return id, nil
}

func (m *MemoryService) DeleteAccount(_ context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if acc, ok := m.accounts[accountID]; ok {
		delete(m.byEmail, acc.email)
		delete(m.accounts, accountID)
	}
	return nil
}

// Authenticate returns the account id when the password matches.
func (m *MemoryService) Authenticate(email, password string) (string, bool) {
	m.mu.Lock()
	id, ok := m.byEmail[validation.NormalizeEmail(email)]
	acc := m.accounts[id]
	m.mu.Unlock()
	if !ok {
		return "", false
	}
	if bcrypt.CompareHashAndPassword(acc.passwordHash, []byte(password)) != nil {
		return "", false
	}
	return id, true
}

// Count reports the number of live accounts.
func (m *MemoryService) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.accounts)
}
