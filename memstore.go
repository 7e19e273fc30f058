package authcore

import (
	"context"
	"crypto/subtle"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory CredentialStore and TokenStore. It backs the
// test suite and single-process development setups; production deployments
// use pgstore. A single mutex covers everything, which keeps the composite
// consume operations trivially atomic.
type MemoryStore struct {
	mu         sync.Mutex
	tenants    map[string]Tenant    // by id
	byDomain   map[string]string    // domain -> tenant id
	principals map[string]Principal // by id
	byEmail    map[string]string    // tenantID + "\x00" + lowercase email -> principal id
	refresh    map[uuid.UUID]RefreshToken
	singleUse  map[uuid.UUID]SingleUseToken
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tenants:    make(map[string]Tenant),
		byDomain:   make(map[string]string),
		principals: make(map[string]Principal),
		byEmail:    make(map[string]string),
		refresh:    make(map[uuid.UUID]RefreshToken),
		singleUse:  make(map[uuid.UUID]SingleUseToken),
	}
}

func emailKey(tenantID, email string) string {
	return tenantID + "\x00" + strings.ToLower(email)
}

// AddTenant seeds a tenant, overwriting any previous one with the same id.
func (s *MemoryStore) AddTenant(t Tenant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants[t.ID] = t
	s.byDomain[strings.ToLower(t.Domain)] = t.ID
}

// AddPrincipal seeds a principal, overwriting any previous one with the
// same id.
func (s *MemoryStore) AddPrincipal(p Principal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.principals[p.ID] = p
	s.byEmail[emailKey(p.TenantID, p.Email)] = p.ID
}

func (s *MemoryStore) FindTenantByDomain(_ context.Context, domain string) (Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byDomain[strings.ToLower(domain)]
	if !ok {
		return Tenant{}, ErrTenantNotFound
	}
	return s.tenants[id], nil
}

func (s *MemoryStore) FindTenantByID(_ context.Context, tenantID string) (Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[tenantID]
	if !ok {
		return Tenant{}, ErrTenantNotFound
	}
	return t, nil
}

func (s *MemoryStore) FindPrincipalByEmail(_ context.Context, tenantID, email string) (Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[emailKey(tenantID, email)]
	if !ok {
		return Principal{}, ErrUserNotFound
	}
	return s.principals[id], nil
}

func (s *MemoryStore) FindPrincipalByID(_ context.Context, userID string) (Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.principals[userID]
	if !ok {
		return Principal{}, ErrUserNotFound
	}
	return p, nil
}

func (s *MemoryStore) UpdatePasswordHash(_ context.Context, userID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatePasswordLocked(userID, passwordHash, time.Now())
}

func (s *MemoryStore) updatePasswordLocked(userID, passwordHash string, at time.Time) error {
	p, ok := s.principals[userID]
	if !ok {
		return ErrUserNotFound
	}
	p.PasswordHash = passwordHash
	p.UpdatedAt = at
	s.principals[userID] = p
	return nil
}

func (s *MemoryStore) SetEmailVerified(_ context.Context, userID string, verified bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.principals[userID]
	if !ok {
		return ErrUserNotFound
	}
	p.EmailVerified = verified
	p.UpdatedAt = time.Now()
	s.principals[userID] = p
	return nil
}

func (s *MemoryStore) SetActive(_ context.Context, userID string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.principals[userID]
	if !ok {
		return ErrUserNotFound
	}
	p.Active = active
	p.UpdatedAt = time.Now()
	s.principals[userID] = p
	return nil
}

func (s *MemoryStore) CreateTenantWithAdmin(_ context.Context, tenant Tenant, admin Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byDomain[strings.ToLower(tenant.Domain)]; exists {
		return ErrDomainTaken
	}
	if _, exists := s.byEmail[emailKey(admin.TenantID, admin.Email)]; exists {
		return ErrEmailTaken
	}
	s.tenants[tenant.ID] = tenant
	s.byDomain[strings.ToLower(tenant.Domain)] = tenant.ID
	s.principals[admin.ID] = admin
	s.byEmail[emailKey(admin.TenantID, admin.Email)] = admin.ID
	return nil
}

func (s *MemoryStore) CreateRefreshToken(_ context.Context, token RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh[token.ID] = token
	return nil
}

func (s *MemoryStore) GetRefreshToken(_ context.Context, id uuid.UUID) (RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.refresh[id]
	if !ok {
		return RefreshToken{}, ErrTokenNotFound
	}
	return t, nil
}

func (s *MemoryStore) RevokeRefreshToken(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.refresh[id]
	if !ok {
		return false, ErrTokenNotFound
	}
	if t.Revoked {
		return false, nil
	}
	t.Revoked = true
	t.RevokedAt = at
	s.refresh[id] = t
	return true, nil
}

func (s *MemoryStore) RevokeAllUserTokens(_ context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revokeAllLocked(userID, at)
	return nil
}

func (s *MemoryStore) revokeAllLocked(userID string, at time.Time) {
	for id, t := range s.refresh {
		if t.UserID == userID && !t.Revoked {
			t.Revoked = true
			t.RevokedAt = at
			s.refresh[id] = t
		}
	}
}

func (s *MemoryStore) CreateSingleUseToken(_ context.Context, token SingleUseToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.singleUse[token.ID] = token
	return nil
}

func (s *MemoryStore) consumeLocked(id uuid.UUID, kind TokenKind, secretHash [32]byte, at time.Time) (SingleUseToken, error) {
	t, ok := s.singleUse[id]
	if !ok || t.Kind != kind {
		return SingleUseToken{}, ErrSingleUseInvalid
	}
	if subtle.ConstantTimeCompare(t.SecretHash[:], secretHash[:]) != 1 {
		return SingleUseToken{}, ErrSingleUseInvalid
	}
	if t.Used || at.After(t.ExpiresAt) {
		return SingleUseToken{}, ErrSingleUseInvalid
	}
	t.Used = true
	s.singleUse[id] = t
	return t, nil
}

func (s *MemoryStore) ConsumePasswordReset(_ context.Context, id uuid.UUID, secretHash [32]byte, newPasswordHash string, at time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.consumeLocked(id, KindPasswordReset, secretHash, at)
	if err != nil {
		return "", err
	}
	if err := s.updatePasswordLocked(t.UserID, newPasswordHash, at); err != nil {
		// Roll the consume back; the token stays usable if the principal
		// vanished underneath it.
		t.Used = false
		s.singleUse[id] = t
		return "", err
	}
	s.revokeAllLocked(t.UserID, at)
	return t.UserID, nil
}

func (s *MemoryStore) ConsumeEmailVerification(_ context.Context, id uuid.UUID, secretHash [32]byte, at time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.consumeLocked(id, KindEmailVerification, secretHash, at)
	if err != nil {
		return "", err
	}
	p, ok := s.principals[t.UserID]
	if !ok {
		t.Used = false
		s.singleUse[id] = t
		return "", ErrUserNotFound
	}
	p.EmailVerified = true
	p.UpdatedAt = at
	s.principals[t.UserID] = p
	return t.UserID, nil
}
